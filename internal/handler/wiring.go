package handler

import (
	"opendebate/backend/internal/discussion"
	"opendebate/backend/internal/invite"
	"opendebate/backend/internal/notification"
	"opendebate/backend/internal/pairing"
)

var (
	pairingService      *pairing.Service
	discussionService   *discussion.Service
	notificationService *notification.Service
	inviteService       *invite.Service
)

// Init wires the services the handlers depend on. Must be called once at
// startup before any route is served.
func Init(pairingSvc *pairing.Service, discussionSvc *discussion.Service, notificationSvc *notification.Service, inviteSvc *invite.Service) {
	pairingService = pairingSvc
	discussionService = discussionSvc
	notificationService = notificationSvc
	inviteService = inviteSvc
}
