package utils

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	id := uuid.New()

	encoded := EncodeID(id)
	assert.Len(t, encoded, 22)
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")

	decoded, err := DecodeID(encoded)
	require.NoError(t, err)
	assert.Equal(t, id, decoded)
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"not-base64!!",
		"YWJj", // valid base64 but not 16 bytes
		strings.Repeat("A", 100),
	}
	for _, input := range cases {
		_, err := DecodeID(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestRoomKeysNamespaceByPurpose(t *testing.T) {
	id := uuid.New()

	monitoring := MonitoringRoom(id)
	chat := ChatRoom(id)

	assert.Equal(t, EncodeID(id)+":monitoring", monitoring)
	assert.Equal(t, EncodeID(id)+":chat", chat)
	assert.NotEqual(t, monitoring, chat)
}
