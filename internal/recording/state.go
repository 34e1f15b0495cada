package recording

import (
	"image"
	"sync"
	"time"

	"facecam/internal/encoder"
	"facecam/internal/library"
	"facecam/internal/overlay"
)

// State is the pipeline lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateFinalizing
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Finalize reasons.
const (
	ReasonStopped      = "stopped"
	ReasonSourceLost   = "source_lost"
	ReasonEncoderError = "encoder_error"
)

// Artifact is one finished recording.
type Artifact struct {
	Data        []byte
	MediaType   string
	StartedAt   time.Time
	FinalizedAt time.Time
	Frames      int
}

// Size is the artifact length in bytes.
func (a Artifact) Size() int64 { return int64(len(a.Data)) }

// PersistResult reports the outcome of saving an artifact.
type PersistResult struct {
	Video library.StoredVideo
	Err   error
}

// Finalized is returned once a session has been finalized. Persisted yields
// exactly one result and is then closed.
type Finalized struct {
	Artifact  Artifact
	Reason    string
	Persisted <-chan PersistResult
}

// session is the state owned by one recording. Chunks arrive from the
// encoder on arbitrary goroutines and are guarded separately from the
// pipeline lock.
type session struct {
	startedAt time.Time
	size      image.Point
	surface   *overlay.Surface
	enc       encoder.Encoder
	frames    int

	chunkMu sync.Mutex
	chunks  [][]byte
	bytes   int
	discard bool
}

func (s *session) appendChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.chunkMu.Lock()
	defer s.chunkMu.Unlock()
	if s.discard {
		return
	}
	s.chunks = append(s.chunks, chunk)
	s.bytes += len(chunk)
}

// take concatenates the chunks and releases them.
func (s *session) take() []byte {
	s.chunkMu.Lock()
	defer s.chunkMu.Unlock()
	out := make([]byte, 0, s.bytes)
	for _, c := range s.chunks {
		out = append(out, c...)
	}
	s.chunks = nil
	s.bytes = 0
	s.discard = true
	return out
}

func (s *session) drop() {
	s.chunkMu.Lock()
	s.chunks = nil
	s.bytes = 0
	s.discard = true
	s.chunkMu.Unlock()
}

func (s *session) bufferedBytes() int {
	s.chunkMu.Lock()
	defer s.chunkMu.Unlock()
	return s.bytes
}
