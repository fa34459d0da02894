package transcript

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoggerWritesPerSessionNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(Config{Enabled: true, Dir: dir, QueueSize: 16}, discardLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Log(Event{
		SessionID: "sess-1",
		Channel:   "chat_http",
		Direction: DirectionQuestion,
		Content:   "how long is the delivery phase?",
		Turn:      1,
	})

	path := filepath.Join(dir, "sess-1.ndjson")
	line := waitForLogLine(t, path)

	var got Event
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.Content != "how long is the delivery phase?" {
		t.Errorf("content = %q", got.Content)
	}
	if got.ID == "" {
		t.Error("expected an id to be assigned")
	}
	if got.Timestamp == "" {
		t.Error("expected a timestamp to be assigned")
	}
	if got.Direction != DirectionQuestion {
		t.Errorf("direction = %q, want question", got.Direction)
	}
}

func TestLoggerCloseDrainsQueue(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(Config{Enabled: true, Dir: dir, QueueSize: 64}, discardLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	const n = 20
	for i := 0; i < n; i++ {
		logger.Log(Event{SessionID: "sess-2", Direction: DirectionAnswer, Content: "line"})
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "sess-2.ndjson"))
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != n {
		t.Errorf("got %d lines after Close, want %d", len(lines), n)
	}
}

func TestLoggerDisabled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(Config{Enabled: false, Dir: dir}, discardLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Log(Event{SessionID: "sess-3", Content: "ignored"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("disabled logger created %d files", len(entries))
	}
}

func TestLoggerCountsDrops(t *testing.T) {
	t.Parallel()

	// No writer goroutine: the queue fills and stays full.
	l := &Logger{
		cfg:     Config{Enabled: true, Dir: t.TempDir(), QueueSize: 1},
		slogger: discardLogger(),
		queue:   make(chan Event, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	l.Log(Event{SessionID: "s", Content: "kept"})
	l.Log(Event{SessionID: "s", Content: "dropped"})

	if got := l.Dropped(); got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestCleanContentStripsANSI(t *testing.T) {
	t.Parallel()

	raw := "\x1b[31merror\x1b[0m plain"
	clean := cleanContent(raw)
	if strings.Contains(clean, "\x1b[31m") {
		t.Fatalf("expected ANSI sequence to be stripped: %q", clean)
	}
	if !strings.Contains(clean, "error plain") {
		t.Fatalf("expected readable text to remain: %q", clean)
	}

	if got := cleanContent("a\r\nb\tc\x00"); got != "a\nb\tc" {
		t.Errorf("cleanContent = %q, want control bytes removed", got)
	}
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"sess-1", "sess-1"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"a b/c", "a_b_c"},
		{"", "session"},
	}
	for _, tt := range tests {
		if got := sanitizeName(tt.in); got != tt.want {
			t.Errorf("sanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
