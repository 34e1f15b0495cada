package library

import (
	"strconv"
	"time"

	"facecam/internal/store"
)

// TimestampLayout is RFC 3339 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// StoredVideo is one persisted recording.
type StoredVideo struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	SizeBytes  int64  `json:"size"`
	MediaType  string `json:"mediaType"`
	PayloadKey string `json:"payloadRef"`
}

// Time parses Timestamp.
func (v StoredVideo) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, v.Timestamp)
}

func (v StoredVideo) seq() int64 {
	n, err := strconv.ParseInt(v.ID, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// valid reports whether the entry is well formed. Payload presence is
// checked separately against the store.
func (v StoredVideo) valid() bool {
	if v.seq() < 0 || v.SizeBytes <= 0 || v.MediaType == "" {
		return false
	}
	if _, err := v.Time(); err != nil {
		return false
	}
	return v.PayloadKey == store.PayloadKey(v.ID)
}

func newVideo(id int64, at time.Time, size int64, mediaType string) StoredVideo {
	idStr := strconv.FormatInt(id, 10)
	return StoredVideo{
		ID:         idStr,
		Timestamp:  at.UTC().Format(TimestampLayout),
		SizeBytes:  size,
		MediaType:  mediaType,
		PayloadKey: store.PayloadKey(idStr),
	}
}
