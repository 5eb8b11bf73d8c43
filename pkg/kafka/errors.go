package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/segmentio/kafka-go"
)

var (
	ErrProducerClosed = errors.New("kafka producer is closed")
	ErrEmptyKey       = errors.New("message key cannot be empty")
	ErrEmptyValue     = errors.New("message value cannot be empty")
)

type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeTransient covers broker unavailability, network issues and timeouts.
	ErrorTypeTransient
	// ErrorTypePermanent covers bad payloads and configuration.
	ErrorTypePermanent
)

// PublishError is returned by Producer.Publish when the writer rejected a
// message. Type is decided once, at the point of failure.
type PublishError struct {
	Type  ErrorType
	Topic string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s: %v", e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

func newPublishError(topic string, err error) *PublishError {
	return &PublishError{Type: ClassifyError(err), Topic: topic, Err: err}
}

// Error strings that kafka-go and the net package surface untyped.
var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"i/o timeout",
}

// ClassifyError reports whether err is worth retrying. Broker error codes are
// classified by kafka-go itself; everything else falls back to net.Error and
// a few well-known dial failures.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var publishErr *PublishError
	if errors.As(err, &publishErr) {
		return publishErr.Type
	}

	switch {
	case errors.Is(err, ErrProducerClosed), errors.Is(err, ErrEmptyKey), errors.Is(err, ErrEmptyValue):
		return ErrorTypePermanent
	case errors.Is(err, context.Canceled):
		return ErrorTypePermanent
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTransient
	}

	var brokerErr kafka.Error
	if errors.As(err, &brokerErr) {
		if brokerErr.Temporary() {
			return ErrorTypeTransient
		}
		return ErrorTypePermanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTypeTransient
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return ErrorTypeTransient
		}
	}
	return ErrorTypePermanent
}

// ShouldRetry reports whether a publish failing with err deserves another
// attempt after currentRetries retries.
func ShouldRetry(err error, currentRetries, maxRetries int) bool {
	if err == nil || currentRetries >= maxRetries {
		return false
	}
	return ClassifyError(err) == ErrorTypeTransient
}
