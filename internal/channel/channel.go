package channel

import (
	"errors"
	"fmt"

	"AdvisoryDispatch/internal/ports"
)

// SendError wraps a channel failure with its retry classification. Permanent
// failures (invalid destination, content rejected by the provider) must never
// be retried; anything else is treated as transient.
type SendError struct {
	Code      string // provider error code when available
	Permanent bool
	Err       error
}

func (e *SendError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s channel error [%s]: %v", kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s channel error: %v", kind, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Permanent wraps err as a non-retryable channel failure.
func Permanent(code string, err error) error {
	return &SendError{Code: code, Permanent: true, Err: err}
}

// Transient wraps err as a retryable channel failure.
func Transient(code string, err error) error {
	return &SendError{Code: code, Err: err}
}

// IsPermanent reports whether err is classified as non-retryable. Unclassified
// errors count as transient so an unknown failure still gets its retries.
func IsPermanent(err error) bool {
	var se *SendError
	return errors.As(err, &se) && se.Permanent
}

// Registry keeps a mapping from channel names to their implementations.
type Registry struct {
	channels map[string]ports.Channel
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{channels: map[string]ports.Channel{}}
}

// Register adds or replaces a channel implementation.
func (r *Registry) Register(c ports.Channel) {
	if r.channels == nil {
		r.channels = map[string]ports.Channel{}
	}
	r.channels[c.Name()] = c
}

// Resolve returns a channel by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.Channel, error) {
	if c, ok := r.channels[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("channel %s is not registered", name)
}
