package kafka

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProducerClosed = errors.New("kafka producer is closed")

	ErrInvalidMessage = errors.New("invalid message")

	ErrEmptyKey = errors.New("message key cannot be empty")

	ErrEmptyValue = errors.New("message value cannot be empty")
)

type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota

	// ErrorTypeTransient covers network issues and timeouts.
	ErrorTypeTransient

	// ErrorTypePermanent covers invalid messages and misconfiguration.
	ErrorTypePermanent
)

// KafkaError wraps a publish failure with its classification.
type KafkaError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *KafkaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *KafkaError) Unwrap() error {
	return e.Err
}

func (e *KafkaError) IsTransient() bool {
	return e.Type == ErrorTypeTransient
}

func (e *KafkaError) IsPermanent() bool {
	return e.Type == ErrorTypePermanent
}

func NewTransientError(message string, err error) *KafkaError {
	return &KafkaError{Type: ErrorTypeTransient, Message: message, Err: err}
}

func NewPermanentError(message string, err error) *KafkaError {
	return &KafkaError{Type: ErrorTypePermanent, Message: message, Err: err}
}

var transientPatterns = []string{
	"connection refused",
	"timeout",
	"deadline exceeded",
	"no such host",
	"network is unreachable",
	"broken pipe",
	"connection reset",
	"temporary failure",
	"leader not available",
	"not leader for partition",
}

// ClassifyError decides whether a failed publish is worth retrying.
// Unrecognised errors are treated as transient.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var kafkaErr *KafkaError
	if errors.As(err, &kafkaErr) {
		return kafkaErr.Type
	}

	switch {
	case errors.Is(err, ErrEmptyKey), errors.Is(err, ErrEmptyValue), errors.Is(err, ErrInvalidMessage):
		return ErrorTypePermanent
	case errors.Is(err, ErrProducerClosed):
		return ErrorTypeTransient
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return ErrorTypeTransient
		}
	}
	if strings.Contains(msg, "unknown topic") || strings.Contains(msg, "message size too large") {
		return ErrorTypePermanent
	}

	return ErrorTypeTransient
}

// Classify wraps err in a KafkaError carrying its classification.
func Classify(message string, err error) *KafkaError {
	if ClassifyError(err) == ErrorTypePermanent {
		return NewPermanentError(message, err)
	}
	return NewTransientError(message, err)
}
