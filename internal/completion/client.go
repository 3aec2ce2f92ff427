// Package completion sends conversations to a remote text-completion service
// and returns the assistant's reply.
//
// Clients never retry. A non-success response or transport failure comes back
// as a *RemoteServiceError so the caller can abort the run; retry policy
// belongs to the orchestrator.
package completion

import (
	"context"
	"errors"
	"fmt"

	"specforge/internal/types"
)

// Client completes a conversation.
type Client interface {
	Complete(ctx context.Context, conv types.Conversation) (string, error)
}

// modelGetter is implemented by clients that can name their backend.
type modelGetter interface {
	Provider() string
	Model() string
}

// ErrEmptyConversation rejects a request with no turns.
var ErrEmptyConversation = errors.New("completion: conversation is empty")

// Params are the fixed sampling parameters sent with every request.
type Params struct {
	MaxTokens   int
	Temperature float32
}

// DefaultParams matches the bounded-length, moderate-temperature sampling
// the generation prompt is tuned for.
func DefaultParams() Params {
	return Params{MaxTokens: 2000, Temperature: 0.5}
}

// RemoteServiceError reports a failed completion request.
// Status is the HTTP status code, or 0 when the request never got a response.
type RemoteServiceError struct {
	Provider string
	Status   int
	Body     string
	Err      error
}

func (e *RemoteServiceError) Error() string {
	msg := e.Body
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s completion failed (status %d): %s", e.Provider, e.Status, msg)
	}
	return fmt.Sprintf("%s completion failed: %s", e.Provider, msg)
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }

// IsRemoteServiceError reports whether err is, or wraps, a *RemoteServiceError.
func IsRemoteServiceError(err error) bool {
	var rerr *RemoteServiceError
	return errors.As(err, &rerr)
}
