package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes a human-oriented two-part record: a header line
// (time, level, component, subject, message) followed by indented fields.
// Info and above show a curated field list; debug shows everything raw.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}
	kvs := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	for _, attr := range h.attrs {
		flattenAttr(&kvs, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, h.groups, attr)
		return true
	})
	kvs = lastWins(kvs)

	var b strings.Builder
	h.writeHeader(&b, record, kvs)
	if record.Level < slog.LevelInfo {
		for _, f := range kvs {
			fmt.Fprintf(&b, "    %s: %s\n", f.key, formatValue(f.value))
		}
	} else {
		fields, hidden := selectInfoFields(kvs)
		for _, f := range fields {
			fmt.Fprintf(&b, "    - %s: %s\n", f.label, f.value)
		}
		switch {
		case hidden == 1:
			b.WriteString("    + 1 more field hidden\n")
		case hidden > 1:
			fmt.Fprintf(&b, "    + %d more fields hidden\n", hidden)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) writeHeader(b *strings.Builder, record slog.Record, kvs []kv) {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(formatTimestamp(ts))
	b.WriteByte(' ')
	b.WriteString(levelLabel(record.Level))
	if component := attrValue(kvs, FieldComponent); component != "" {
		b.WriteString(" [" + component + "]")
	}
	if subject := FormatSubject(attrValue(kvs, FieldVideoID), attrValue(kvs, FieldSeq), attrValue(kvs, FieldState)); subject != "" {
		b.WriteString(" " + subject)
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(" – " + msg)
	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	b.WriteByte('\n')
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

// FormatSubject names what a record is about: a stored video, else a
// detection request, optionally followed by the pipeline state.
func FormatSubject(videoID, seq, state string) string {
	var subject string
	switch videoID, seq = strings.TrimSpace(videoID), strings.TrimSpace(seq); {
	case videoID != "":
		subject = "Video " + videoID
	case seq != "":
		subject = "Request #" + seq
	}
	state = strings.TrimSpace(state)
	switch {
	case subject == "":
		return state
	case state == "":
		return subject
	default:
		return subject + " (" + state + ")"
	}
}

type kv struct {
	key   string
	value slog.Value
}

// lastWins collapses repeated keys onto their first position, keeping the
// latest value.
func lastWins(kvs []kv) []kv {
	if len(kvs) < 2 {
		return kvs
	}
	index := make(map[string]int, len(kvs))
	out := kvs[:0:0]
	for _, f := range kvs {
		if f.key == "" {
			continue
		}
		if i, ok := index[f.key]; ok {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = append(append([]string(nil), prefix...), attr.Key)
		}
		for _, child := range attr.Value.Group() {
			flattenAttr(dst, next, child)
		}
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(prefix, ".") + "." + key
	}
	*dst = append(*dst, kv{key: key, value: attr.Value})
}

func attrValue(kvs []kv, key string) string {
	for _, f := range kvs {
		if f.key == key {
			return attrString(f.value)
		}
	}
	return ""
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
