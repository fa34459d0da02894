// Package transcript appends chat exchanges to per-session NDJSON files.
package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Directions of a transcript event relative to the user.
const (
	DirectionQuestion = "question"
	DirectionAnswer   = "answer"
)

// Event is one NDJSON line in a session transcript.
type Event struct {
	ID        string `json:"id"`
	Timestamp string `json:"ts"`
	SessionID string `json:"session_id"`
	Channel   string `json:"channel"`
	Direction string `json:"direction"`
	Content   string `json:"content"`
	Turn      int    `json:"turn,omitempty"`
}

// Config controls the transcript logger.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Logger writes transcript events asynchronously. Log never blocks the
// caller: events go through a bounded queue serviced by one writer
// goroutine and are dropped, counted, when the queue is full.
type Logger struct {
	cfg     Config
	slogger *slog.Logger

	queue   chan Event
	stop    chan struct{}
	done    chan struct{}
	dropped atomic.Int64
	once    sync.Once
}

// New creates the transcript logger. With cfg.Enabled false it returns a
// logger whose Log is a no-op.
func New(cfg Config, slogger *slog.Logger) (*Logger, error) {
	if slogger == nil {
		slogger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}

	l := &Logger{
		cfg:     cfg,
		slogger: slogger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if !cfg.Enabled {
		return l, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}

	l.queue = make(chan Event, cfg.QueueSize)
	go l.run()
	return l, nil
}

// Log enqueues one event without blocking. Missing id and timestamp fields
// are filled in; content is cleaned for readability.
func (l *Logger) Log(event Event) {
	if !l.cfg.Enabled {
		return
	}
	select {
	case <-l.stop:
		return
	default:
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	event.Content = cleanContent(event.Content)

	select {
	case l.queue <- event:
	default:
		if n := l.dropped.Add(1); n == 1 || n%100 == 0 {
			l.slogger.Warn("transcript queue full, dropping events", "dropped", n)
		}
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (l *Logger) Dropped() int64 {
	return l.dropped.Load()
}

// Close drains whatever is already queued and stops the writer.
func (l *Logger) Close() error {
	if !l.cfg.Enabled {
		return nil
	}
	l.once.Do(func() { close(l.stop) })
	<-l.done
	return nil
}

func (l *Logger) run() {
	defer close(l.done)
	for {
		select {
		case event := <-l.queue:
			l.write(event)
		case <-l.stop:
			for {
				select {
				case event := <-l.queue:
					l.write(event)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) write(event Event) {
	line, err := json.Marshal(event)
	if err != nil {
		l.slogger.Warn("transcript event not serializable", "error", err)
		return
	}

	path := filepath.Join(l.cfg.Dir, sanitizeName(event.SessionID)+".ndjson")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		l.slogger.Warn("transcript file open failed", "path", path, "error", err)
		return
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		l.slogger.Warn("transcript write failed", "path", path, "error", err)
	}
	if err := f.Close(); err != nil {
		l.slogger.Warn("transcript file close failed", "path", path, "error", err)
	}
}

// sanitizeName keeps session ids safe to use as file names.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "session"
	}
	return b.String()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// cleanContent strips ANSI escape sequences and non-printing control bytes
// so transcripts stay readable in a pager. Newlines and tabs survive.
func cleanContent(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
