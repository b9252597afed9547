package utils

import (
	"github.com/google/uuid"
)

// NewClientTicketID generates the client-side idempotency key of a ticket
func NewClientTicketID() string {
	return uuid.NewString()
}

// NewRequestID generates an id for correlating local API requests in logs
func NewRequestID() string {
	return uuid.NewString()
}

// IsUUID reports whether s is a well-formed UUID
func IsUUID(s string) bool {
	return uuid.Validate(s) == nil
}
