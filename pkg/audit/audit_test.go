package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := NewRecorder(t.TempDir())
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRecordAppendsInOrder(t *testing.T) {
	r := newTestRecorder(t)
	trail := NewTrail(time.Now())

	r.Record(trail, CategoryRequest, "list files")
	r.Record(trail, CategoryParameters, "[/tmp]")
	r.Record(trail, CategorySystem, "initializing agent")

	events := trail.Events()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	wantTypes := []Category{CategoryRequest, CategoryParameters, CategorySystem}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("event[%d].Type = %q, want %q", i, events[i].Type, want)
		}
	}
	// Millisecond-precision timestamps.
	if _, err := time.Parse(TimestampLayout, events[0].Timestamp); err != nil {
		t.Errorf("timestamp %q does not match layout: %v", events[0].Timestamp, err)
	}
}

func TestRecordWithNilTrail(t *testing.T) {
	r := newTestRecorder(t)
	// Connection-scoped events have no trail; this must not panic.
	r.Record(nil, CategorySystem, "connected to server")
	r.Record(nil, CategoryError, "connection failed: dial refused")
}

func TestMirrorRouting(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder(dir)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	trail := NewTrail(time.Now())
	r.Record(trail, CategorySystem, "connected to server")            // socket stream
	r.Record(trail, CategoryError, "error sending ping: broken pipe") // socket stream
	r.Record(trail, CategorySystem, "agent initialized")              // agent stream
	r.Record(trail, CategoryAIResponse, "final answer")               // agent stream
	r.Record(trail, CategoryRequest, "list files")                    // neither
	r.Record(trail, CategoryPrint, "accepted m1")                     // neither

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	day := time.Now().Format("20060102")
	socket := readFile(t, filepath.Join(dir, "socket_"+day+".log"))
	agent := readFile(t, filepath.Join(dir, "mcp_ai_"+day+".log"))

	for _, want := range []string{"connected to server", "error sending ping"} {
		if !strings.Contains(socket, want) {
			t.Errorf("socket stream missing %q", want)
		}
	}
	for _, notWant := range []string{"agent initialized", "final answer", "list files"} {
		if strings.Contains(socket, notWant) {
			t.Errorf("socket stream unexpectedly contains %q", notWant)
		}
	}
	for _, want := range []string{"agent initialized", "final answer"} {
		if !strings.Contains(agent, want) {
			t.Errorf("agent stream missing %q", want)
		}
	}
	for _, notWant := range []string{"connected to server", "list files", "accepted m1"} {
		if strings.Contains(agent, notWant) {
			t.Errorf("agent stream unexpectedly contains %q", notWant)
		}
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestPersistWritesTranscriptAndResponseFile(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder(dir)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	defer r.Close()

	trail := NewTrail(time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC))
	r.Record(trail, CategoryRequest, "list files")
	r.Record(trail, CategorySystem, "model response complete")

	path, err := r.Persist(trail, "list files", "part1part2", []string{"/tmp"})
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	var transcript Transcript
	if err := json.Unmarshal([]byte(readFile(t, path)), &transcript); err != nil {
		t.Fatalf("transcript is not valid JSON: %v", err)
	}
	if transcript.Request.Message != "list files" {
		t.Errorf("request.message = %q", transcript.Request.Message)
	}
	if len(transcript.Request.Parameters) != 1 || transcript.Request.Parameters[0] != "/tmp" {
		t.Errorf("request.parameters = %v", transcript.Request.Parameters)
	}
	if transcript.Request.ReceivedAt != "2025-06-01 12:30:00.000" {
		t.Errorf("request.received_at = %q", transcript.Request.ReceivedAt)
	}
	if transcript.Response.Content != "part1part2" {
		t.Errorf("response.content = %q", transcript.Response.Content)
	}
	if len(transcript.Events) != 2 {
		t.Errorf("got %d events, want 2", len(transcript.Events))
	}
	if transcript.Metadata.SystemInfo.GoVersion == "" {
		t.Error("metadata.system_info.go_version is empty")
	}
	if transcript.Metadata.Timestamp.ISO == "" || transcript.Metadata.Timestamp.Date == "" {
		t.Errorf("metadata.timestamp incomplete: %+v", transcript.Metadata.Timestamp)
	}

	// Raw top-level key check: the shape is part of the external contract.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(readFile(t, path)), &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"metadata", "request", "response", "events"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("transcript missing top-level key %q", key)
		}
	}

	name := filepath.Base(path)
	matched, _ := regexp.MatchString(`^\d{12}_[0-9a-f]{8}\.txt$`, name)
	if !matched {
		t.Errorf("transcript filename %q does not match {YYYYMMDDHHmm}_{8hex}.txt", name)
	}

	responseBody := readFile(t, filepath.Join(dir, "response_"+name))
	if responseBody != "part1part2" {
		t.Errorf("response file body = %q", responseBody)
	}
}

func TestPersistNilParamsBecomesEmptyList(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	path, err := r.Persist(NewTrail(time.Now()), "msg", "resp", nil)
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if !strings.Contains(readFile(t, path), `"parameters": []`) {
		t.Error("nil parameters did not serialize as empty list")
	}
}

func TestPersistIsWriteOnce(t *testing.T) {
	r := newTestRecorder(t)
	trail := NewTrail(time.Now())

	if _, err := r.Persist(trail, "msg", "resp", nil); err != nil {
		t.Fatalf("first Persist() error = %v", err)
	}
	if _, err := r.Persist(trail, "msg", "resp", nil); err == nil {
		t.Fatal("second Persist() on same trail should fail")
	}
}

func TestFilenameSuffixUniqueness(t *testing.T) {
	r := newTestRecorder(t)

	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		s := r.suffix()
		if len(s) != 8 {
			t.Fatalf("suffix %q has length %d, want 8", s, len(s))
		}
		if seen[s] {
			t.Fatalf("duplicate suffix %q after %d draws", s, i)
		}
		seen[s] = true
	}
}

func TestIsConnectivity(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"connected to server", true},
		{"Disconnected from server", true},
		{"error sending ping: broken pipe", true},
		{"Connection error: handshake timeout", true},
		{"agent initialized", false},
		{"model response complete", false},
	}
	for _, tt := range tests {
		if got := isConnectivity(tt.content); got != tt.want {
			t.Errorf("isConnectivity(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}
