package stream

import (
	"errors"
	"fmt"
)

// ErrUnrecognizedPayload is reported by Normalize when no asset identifier
// can be extracted from a notification body. Webhook callers must still
// acknowledge the delivery to stop the platform from re-sending it.
var ErrUnrecognizedPayload = errors.New("stream: unrecognized payload")

// ErrSigningKeyUnavailable means no signing key material or key id is
// configured. Callers decide between falling back to an unsigned URL and
// refusing playback, depending on the asset's policy.
var ErrSigningKeyUnavailable = errors.New("stream: signing key unavailable")

// IngestionError carries the platform's raw response for a failed control
// API call. It is surfaced to the initiating caller and never retried here.
type IngestionError struct {
	Op     string
	Status int
	Body   string
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("stream: %s failed with status %d: %s", e.Op, e.Status, e.Body)
}
