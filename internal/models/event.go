package models

// SubtypeFileShare marks a message event that carries uploaded files.
const SubtypeFileShare = "file_share"

// InboundEvent is the Slack Events API envelope. Challenge is a pointer
// because its presence matters even when the value is empty.
type InboundEvent struct {
	Token     string        `json:"token"`
	Challenge *string       `json:"challenge,omitempty"`
	Type      string        `json:"type,omitempty"`
	TeamID    string        `json:"team_id,omitempty"`
	EventID   string        `json:"event_id,omitempty"`
	Event     *EventPayload `json:"event,omitempty"`

	// Retry is set from the X-Slack-Retry-Num header, never from the body.
	Retry bool `json:"-"`
}

// EventPayload is the inner message event.
type EventPayload struct {
	Type    string          `json:"type,omitempty"`
	Subtype string          `json:"subtype,omitempty"`
	Channel string          `json:"channel"`
	User    string          `json:"user,omitempty"`
	Files   []FileReference `json:"files,omitempty"`
}

// FileReference points at a file uploaded to Slack.
type FileReference struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	URLPrivate string `json:"url_private"`
	Mimetype   string `json:"mimetype"`
	Size       int64  `json:"size"`
}

// ChallengeResponse answers a url_verification handshake.
type ChallengeResponse struct {
	Challenge string `json:"challenge"`
}
