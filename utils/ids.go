package utils

import (
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// Database UUIDs are exposed to clients as URL-safe base64 strings so raw
// primary keys never appear in responses, cache keys or room keys.

// EncodeID converts a UUID into its opaque wire form.
func EncodeID(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// DecodeID converts an opaque wire id back into a UUID.
func DecodeID(encoded string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed id %q: %w", encoded, err)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed id %q: %w", encoded, err)
	}
	return id, nil
}

// MonitoringRoom returns the websocket room key for a patient's live health
// monitoring channel.
func MonitoringRoom(patientID uuid.UUID) string {
	return EncodeID(patientID) + ":monitoring"
}

// ChatRoom returns the websocket room key for a user's chat channel.
func ChatRoom(userID uuid.UUID) string {
	return EncodeID(userID) + ":chat"
}
