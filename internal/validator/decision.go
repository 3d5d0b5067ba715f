package validator

import (
	"fmt"

	"github.com/telhawk-systems/hotdog/internal/models"
)

// Kind enumerates what the handler should do with an event.
type Kind int

const (
	KindIgnore Kind = iota
	KindChallenge
	KindClassify
)

func (k Kind) String() string {
	switch k {
	case KindIgnore:
		return "ignore"
	case KindChallenge:
		return "challenge"
	case KindClassify:
		return "classify"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Reason explains why an event was ignored.
type Reason string

const (
	ReasonInvalidToken    Reason = "invalid_token"
	ReasonMissingEvent    Reason = "missing_event"
	ReasonNotFileShare    Reason = "not_file_share"
	ReasonNoFiles         Reason = "no_files"
	ReasonUnsupportedType Reason = "unsupported_type"
	ReasonFileTooLarge    Reason = "file_too_large"
	ReasonRetry           Reason = "retry"
)

// Decision is the explicit outcome of evaluating an InboundEvent. Only the
// fields relevant to Kind are set.
type Decision struct {
	Kind      Kind
	Reason    Reason
	Challenge string
	Channel   string
	File      models.FileReference
}

func Ignored(reason Reason) Decision {
	return Decision{Kind: KindIgnore, Reason: reason}
}

func Challenge(value string) Decision {
	return Decision{Kind: KindChallenge, Challenge: value}
}

func Classify(channel string, file models.FileReference) Decision {
	return Decision{Kind: KindClassify, Channel: channel, File: file}
}

func (d Decision) String() string {
	switch d.Kind {
	case KindIgnore:
		return fmt.Sprintf("ignored(%s)", d.Reason)
	case KindChallenge:
		return fmt.Sprintf("challenge(%q)", d.Challenge)
	case KindClassify:
		return fmt.Sprintf("classify(%s, %s)", d.Channel, d.File.ID)
	default:
		return d.Kind.String()
	}
}
