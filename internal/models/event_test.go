package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboundEvent_ChallengePresence(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		present bool
		value   string
	}{
		{"absent", `{"token":"T"}`, false, ""},
		{"empty string", `{"token":"T","challenge":""}`, true, ""},
		{"value", `{"token":"T","challenge":"abc123"}`, true, "abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ev InboundEvent
			require.NoError(t, json.Unmarshal([]byte(tt.body), &ev))
			if !tt.present {
				assert.Nil(t, ev.Challenge)
				return
			}
			require.NotNil(t, ev.Challenge)
			assert.Equal(t, tt.value, *ev.Challenge)
		})
	}
}

func TestInboundEvent_SlackPayload(t *testing.T) {
	body := `{
		"token": "T",
		"team_id": "T0001",
		"event_id": "Ev01",
		"type": "event_callback",
		"event": {
			"type": "message",
			"subtype": "file_share",
			"channel": "C1",
			"files": [{"id": "f1", "url_private": "u", "mimetype": "image/png", "size": 1000}]
		}
	}`

	var ev InboundEvent
	require.NoError(t, json.Unmarshal([]byte(body), &ev))
	require.NotNil(t, ev.Event)
	assert.Equal(t, SubtypeFileShare, ev.Event.Subtype)
	assert.Equal(t, "C1", ev.Event.Channel)
	require.Len(t, ev.Event.Files, 1)
	assert.Equal(t, FileReference{ID: "f1", URLPrivate: "u", Mimetype: "image/png", Size: 1000}, ev.Event.Files[0])
	assert.Equal(t, "Ev01", ev.EventID)
}

func TestVerdictFor(t *testing.T) {
	tests := []struct {
		name   string
		labels []Label
		want   Verdict
	}{
		{"exact match", []Label{{Name: "Food"}, {Name: "Hot Dog", Confidence: 95}}, VerdictPositive},
		{"no match", []Label{{Name: "Pizza", Confidence: 99}}, VerdictNegative},
		{"case differs", []Label{{Name: "hot dog", Confidence: 99}}, VerdictNegative},
		{"partial", []Label{{Name: "Hot Dog Bun", Confidence: 99}}, VerdictNegative},
		{"empty", nil, VerdictNegative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerdictFor(&ClassificationResult{Labels: tt.labels}, "Hot Dog"))
		})
	}

	assert.Equal(t, VerdictNegative, VerdictFor(nil, "Hot Dog"))
}
