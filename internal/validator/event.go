package validator

import (
	"crypto/subtle"

	"github.com/telhawk-systems/hotdog/internal/models"
)

// DefaultMaxFileSize is the largest image Rekognition accepts as raw bytes (5 MiB).
const DefaultMaxFileSize int64 = 5242880

// DefaultSupportedTypes lists the MIME types acted upon.
var DefaultSupportedTypes = []string{"image/jpeg", "image/jpg", "image/png"}

// EventValidator turns an InboundEvent into a Decision. It holds only
// read-only settings and is safe for concurrent use.
type EventValidator struct {
	token          []byte
	supportedTypes map[string]struct{}
	maxFileSize    int64
	ignoreRetries  bool
}

// NewEventValidator creates a validator for the given verification token.
// Empty supportedTypes or a non-positive maxFileSize fall back to the defaults.
func NewEventValidator(token string, supportedTypes []string, maxFileSize int64) *EventValidator {
	if len(supportedTypes) == 0 {
		supportedTypes = DefaultSupportedTypes
	}
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	types := make(map[string]struct{}, len(supportedTypes))
	for _, t := range supportedTypes {
		types[t] = struct{}{}
	}

	return &EventValidator{
		token:          []byte(token),
		supportedTypes: types,
		maxFileSize:    maxFileSize,
	}
}

// WithIgnoreRetries makes Evaluate drop redelivered events once the token
// has been checked.
func (v *EventValidator) WithIgnoreRetries(ignore bool) *EventValidator {
	v.ignoreRetries = ignore
	return v
}

// Evaluate applies the guards in order: token, challenge, retry, payload,
// subtype, files, MIME type, size. Only the first file is considered.
func (v *EventValidator) Evaluate(ev *models.InboundEvent) Decision {
	if ev == nil || !v.tokenMatches(ev.Token) {
		return Ignored(ReasonInvalidToken)
	}

	if ev.Challenge != nil {
		return Challenge(*ev.Challenge)
	}

	if ev.Retry && v.ignoreRetries {
		return Ignored(ReasonRetry)
	}

	payload := ev.Event
	if payload == nil {
		return Ignored(ReasonMissingEvent)
	}
	if payload.Subtype != models.SubtypeFileShare {
		return Ignored(ReasonNotFileShare)
	}
	if len(payload.Files) == 0 {
		return Ignored(ReasonNoFiles)
	}

	file := payload.Files[0]
	if _, ok := v.supportedTypes[file.Mimetype]; !ok {
		return Ignored(ReasonUnsupportedType)
	}
	if file.Size > v.maxFileSize {
		return Ignored(ReasonFileTooLarge)
	}

	return Classify(payload.Channel, file)
}

func (v *EventValidator) tokenMatches(presented string) bool {
	if len(v.token) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), v.token) == 1
}
