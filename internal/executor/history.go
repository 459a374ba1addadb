package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// History appends executed commands to each persona's .bash_history
// with extended-format timestamps. Stamps for a given persona are
// strictly increasing: a burst of commands inside one wall-clock
// second still reads as distinct moments.
type History struct {
	last map[string]int64
	now  func() time.Time
	log  *zap.Logger
}

// NewHistory creates a history writer. now may be nil for the wall
// clock.
func NewHistory(now func() time.Time, log *zap.Logger) *History {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &History{last: make(map[string]int64), now: now, log: log.Named("history")}
}

// Stamp returns the next timestamp for the persona, never reusing or
// going backward relative to the previous entry.
func (h *History) Stamp(username string) int64 {
	ts := h.now().Unix()
	if prev, ok := h.last[username]; ok && ts <= prev {
		ts = prev + 1
	}
	h.last[username] = ts
	return ts
}

// Append records a command in the persona's history artifact. The
// home directory is created if missing: part of the living-filesystem
// guarantee. Failures are logged and swallowed; a missing history
// line must never block the performance.
func (h *History) Append(username, homeDir, cmd string) {
	ts := h.Stamp(username)

	path := filepath.Join(homeDir, ".bash_history")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		h.log.Warn("history home dir", zap.String("user", username), zap.Error(err))
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		h.log.Warn("history open", zap.String("user", username), zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "#%d\n%s\n", ts, cmd); err != nil {
		h.log.Warn("history write", zap.String("user", username), zap.Error(err))
	}
}
