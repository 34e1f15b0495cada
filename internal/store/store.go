package store

import (
	"context"
	"strings"
)

const (
	// MetadataKey holds the JSON-encoded list of stored videos.
	MetadataKey = "facecam:videos"
	// PayloadPrefix namespaces per-video payload keys.
	PayloadPrefix = "facecam:video:"
)

// PayloadKey returns the storage key for a video payload.
func PayloadKey(id string) string {
	return PayloadPrefix + id
}

// PayloadID extracts the video id from a payload key.
func PayloadID(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, PayloadPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Store persists the metadata list and video payloads. Get methods report
// absence through the bool result rather than an error.
type Store interface {
	PutMetadataList(ctx context.Context, data []byte) error
	GetMetadataList(ctx context.Context) ([]byte, bool, error)
	PutPayload(ctx context.Context, id string, data []byte) error
	GetPayload(ctx context.Context, id string) ([]byte, bool, error)
	// PayloadSize reports a payload's length without loading it.
	PayloadSize(ctx context.Context, id string) (int64, bool, error)
	RemovePayload(ctx context.Context, id string) error
	PayloadIDs(ctx context.Context) ([]string, error)
	Close() error
}
