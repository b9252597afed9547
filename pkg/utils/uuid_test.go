package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientTicketIDIsUniqueV4(t *testing.T) {
	a, b := NewClientTicketID(), NewClientTicketID()
	assert.NotEqual(t, a, b)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
}

func TestIsUUID(t *testing.T) {
	assert.True(t, IsUUID(NewRequestID()))
	assert.False(t, IsUUID("ticket-1"))
	assert.False(t, IsUUID(""))
}
