package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint) *uint { return &v }
func boolPtr(v bool) *bool { return &v }

func TestRequestPairingDataValidate(t *testing.T) {
	tests := []struct {
		name    string
		data    requestPairingData
		wantErr bool
	}{
		{"valid active", requestPairingData{DebateID: uintPtr(1), DesiredStance: boolPtr(true), Mode: "active"}, false},
		{"valid passive", requestPairingData{DebateID: uintPtr(1), DesiredStance: boolPtr(false), Mode: "passive"}, false},
		{"mode defaults to active", requestPairingData{DebateID: uintPtr(1), DesiredStance: boolPtr(true)}, false},
		{"missing debate_id", requestPairingData{DesiredStance: boolPtr(true)}, true},
		{"zero debate_id", requestPairingData{DebateID: uintPtr(0), DesiredStance: boolPtr(true)}, true},
		{"missing desired_stance", requestPairingData{DebateID: uintPtr(1)}, true},
		{"bogus mode", requestPairingData{DebateID: uintPtr(1), DesiredStance: boolPtr(true), Mode: "lurk"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvelopeUnmarshal(t *testing.T) {
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"event_type":"new_message","data":{"discussion_id":3,"message":"hi"}}`), &env))
	assert.Equal(t, "new_message", env.EventType)

	var data newMessageData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotNil(t, data.DiscussionID)
	assert.Equal(t, uint(3), *data.DiscussionID)
	assert.Equal(t, "hi", data.Message)
}

func TestEnvelopeUnmarshalToleratesMissingData(t *testing.T) {
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"event_type":"cancel"}`), &env))
	assert.Equal(t, "cancel", env.EventType)
	assert.Nil(t, env.Data)
}

func TestDesiredStanceFalseSurvivesDecoding(t *testing.T) {
	// desired_stance=false must be distinguishable from the field being
	// absent, which is why the payload uses pointers.
	var data requestPairingData
	require.NoError(t, json.Unmarshal([]byte(`{"debate_id":1,"desired_stance":false}`), &data))
	require.NotNil(t, data.DesiredStance)
	assert.False(t, *data.DesiredStance)
	assert.NoError(t, data.validate())
}
