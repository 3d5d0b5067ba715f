package slackclient

import (
	"fmt"
	"net/http"

	"github.com/slack-go/slack"
)

// VerifySignature checks the X-Slack-Signature header against body using the
// app signing secret. Requests older than five minutes are rejected.
func VerifySignature(header http.Header, body []byte, secret string) error {
	sv, err := slack.NewSecretsVerifier(header, secret)
	if err != nil {
		return fmt.Errorf("signature headers: %w", err)
	}
	if _, err := sv.Write(body); err != nil {
		return fmt.Errorf("hash body: %w", err)
	}
	if err := sv.Ensure(); err != nil {
		return fmt.Errorf("signature mismatch: %w", err)
	}
	return nil
}
