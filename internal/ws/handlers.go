package ws

import (
	"encoding/json"

	"opendebate/backend/internal/hub"
	"opendebate/backend/pkg/apperrors"
)

// requestPairingData is the payload of the request_pairing client event.
type requestPairingData struct {
	DebateID      *uint  `json:"debate_id"`
	DesiredStance *bool  `json:"desired_stance"`
	Mode          string `json:"mode"`
}

func (d *requestPairingData) validate() error {
	if d.DebateID == nil || *d.DebateID == 0 || d.DesiredStance == nil {
		return apperrors.InvalidArg("missing debate_id or desired_stance")
	}
	switch d.Mode {
	case "", "active", "passive":
		return nil
	}
	return apperrors.InvalidArg("mode must be \"active\" or \"passive\"")
}

func (g *Gateway) handlePairing(c *connection, env Envelope) {
	switch env.EventType {
	case "request_pairing":
		var data requestPairingData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			c.reply(hub.Error(apperrors.ErrMalformedEnvelope.Error()))
			return
		}
		if err := data.validate(); err != nil {
			c.reply(hub.Error(err.Error()))
			return
		}
		passive := data.Mode == "passive"
		if _, err := g.pairing.CreateRequest(c.userID, *data.DebateID, *data.DesiredStance, passive); err != nil {
			c.replyServiceError(err)
		}

	case "start_search":
		if err := g.pairing.StartActiveSearch(c.userID); err != nil {
			c.replyServiceError(err)
		}

	case "cancel":
		if err := g.pairing.Cancel(c.userID); err != nil {
			c.replyServiceError(err)
		}

	case "keepalive":
		if err := g.pairing.Keepalive(c.userID); err != nil {
			c.replyServiceError(err)
			return
		}
		c.reply(hub.Success("keepalive_ack", nil))

	default:
		c.reply(hub.Error(apperrors.ErrInvalidEventType.Error()))
	}
}

// newMessageData is the payload of the new_message client event.
type newMessageData struct {
	DiscussionID *uint  `json:"discussion_id"`
	Message      string `json:"message"`
}

// readMessagesData is the payload of the read_messages client event.
type readMessagesData struct {
	DiscussionID *uint `json:"discussion_id"`
}

func (g *Gateway) handleDiscussion(c *connection, env Envelope) {
	switch env.EventType {
	case "new_message":
		var data newMessageData
		if err := json.Unmarshal(env.Data, &data); err != nil || data.DiscussionID == nil || *data.DiscussionID == 0 {
			c.reply(hub.Error("missing discussion_id or message"))
			return
		}
		if _, err := g.discussions.PostMessage(c.userID, *data.DiscussionID, data.Message); err != nil {
			c.replyServiceError(err)
		}

	case "read_messages":
		var data readMessagesData
		if err := json.Unmarshal(env.Data, &data); err != nil || data.DiscussionID == nil || *data.DiscussionID == 0 {
			c.reply(hub.Error("missing discussion_id"))
			return
		}
		if _, err := g.discussions.ReadMessages(c.userID, *data.DiscussionID); err != nil {
			c.replyServiceError(err)
		}

	default:
		c.reply(hub.Error(apperrors.ErrInvalidEventType.Error()))
	}
}
