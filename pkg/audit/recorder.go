// Package audit keeps the structured record of everything the client does:
// a per-task in-memory event trail, two durable mirror streams (socket
// connectivity and agent activity), and write-once JSON transcripts.
//
// Recording is best-effort by contract. No method on Recorder other than
// the constructor and Persist returns an error; a failed mirror write is
// silently tolerated so logging can never take down task processing.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// connectivityKeywords routes system/error events about the server link to
// the socket stream. Matching is case-insensitive substring.
var connectivityKeywords = []string{"server", "connect", "ping"}

// Recorder owns the durable side of the audit log: the two dated mirror
// streams and the transcript directory. One Recorder serves the whole
// process; trails keep per-task state out of it, so Record is safe to call
// from concurrent task goroutines.
type Recorder struct {
	dir       string
	socketLog *zap.SugaredLogger
	agentLog  *zap.SugaredLogger
	files     []*os.File

	now    func() time.Time
	suffix func() string
}

// NewRecorder creates the log directory if needed and opens the dated
// mirror streams (socket_YYYYMMDD.log, mcp_ai_YYYYMMDD.log).
func NewRecorder(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}

	r := &Recorder{
		dir:    dir,
		now:    time.Now,
		suffix: func() string { return uuid.NewString()[:8] },
	}

	day := r.now().Format("20060102")
	socketLog, socketFile, err := newFileLogger(filepath.Join(dir, "socket_"+day+".log"))
	if err != nil {
		return nil, err
	}
	agentLog, agentFile, err := newFileLogger(filepath.Join(dir, "mcp_ai_"+day+".log"))
	if err != nil {
		_ = socketFile.Close()
		return nil, err
	}

	r.socketLog = socketLog
	r.agentLog = agentLog
	r.files = []*os.File{socketFile, agentFile}
	return r, nil
}

func newFileLogger(path string) (*zap.SugaredLogger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log stream %q: %w", path, err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		MessageKey:     "M",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(f), zapcore.InfoLevel)
	return zap.New(core).Sugar(), f, nil
}

// Record appends an event to the task's trail (when trail is non-nil;
// connection-scoped events pass nil) and mirrors it to the durable streams
// by category. It never fails.
func (r *Recorder) Record(trail *Trail, category Category, content string) {
	e := Event{
		Timestamp: r.now().Format(TimestampLayout),
		Type:      category,
		Content:   content,
	}
	if trail != nil {
		trail.append(e)
	}

	switch {
	case (category == CategorySystem || category == CategoryError) && isConnectivity(content):
		r.socketLog.Infof("%s: %s", category, content)
	case category == CategorySystem || category == CategoryError || category == CategoryAIResponse:
		r.agentLog.Infof("%s: %s", category, content)
	}
}

func isConnectivity(content string) bool {
	lowered := strings.ToLower(content)
	for _, kw := range connectivityKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// Close flushes and closes the durable streams.
func (r *Recorder) Close() error {
	_ = r.socketLog.Sync()
	_ = r.agentLog.Sync()
	var firstErr error
	for _, f := range r.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
