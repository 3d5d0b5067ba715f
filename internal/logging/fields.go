package logging

import (
	"log/slog"
	"time"
)

// Common field names for consistent logging.
const (
	FieldService   = "service"
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldChannel   = "channel"
	FieldFileID    = "file_id"
	FieldEventID   = "event_id"
	FieldReason    = "reason"
	FieldVerdict   = "verdict"
	FieldBackend   = "backend"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for d in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// Channel returns a slog attribute for a chat channel ID.
func Channel(id string) slog.Attr {
	return slog.String(FieldChannel, id)
}

// FileID returns a slog attribute for a shared file ID.
func FileID(id string) slog.Attr {
	return slog.String(FieldFileID, id)
}

// EventID returns a slog attribute for a platform event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// Reason returns a slog attribute explaining why an event was ignored.
func Reason(reason string) slog.Attr {
	return slog.String(FieldReason, reason)
}

// Verdict returns a slog attribute for a classification verdict.
func Verdict(verdict string) slog.Attr {
	return slog.String(FieldVerdict, verdict)
}

// Backend returns a slog attribute for the classifier backend name.
func Backend(name string) slog.Attr {
	return slog.String(FieldBackend, name)
}
