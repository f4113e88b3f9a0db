package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// SystemInfo describes the host at transcript time. It is collected per
// call; it is cheap and the host rarely changes mid-run.
type SystemInfo struct {
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	GoVersion       string `json:"go_version"`
	Machine         string `json:"machine"`
}

// CollectSystemInfo gathers the current host description.
func CollectSystemInfo() SystemInfo {
	return SystemInfo{
		Platform:        runtime.GOOS,
		PlatformVersion: osRelease(),
		GoVersion:       runtime.Version(),
		Machine:         runtime.GOARCH,
	}
}

func osRelease() string {
	data, err := os.ReadFile("/proc/sys/kernel/osrelease")
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(data))
}

// Transcript is the durable record of one completed task.
type Transcript struct {
	Metadata TranscriptMetadata `json:"metadata"`
	Request  TranscriptRequest  `json:"request"`
	Response TranscriptResponse `json:"response"`
	Events   []Event            `json:"events"`
}

type TranscriptMetadata struct {
	SystemInfo SystemInfo          `json:"system_info"`
	Timestamp  TranscriptTimestamp `json:"timestamp"`
}

type TranscriptTimestamp struct {
	ISO      string `json:"iso"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
}

type TranscriptRequest struct {
	Message    string   `json:"message"`
	Parameters []string `json:"parameters"`
	ReceivedAt string   `json:"received_at"`
}

type TranscriptResponse struct {
	Content     string `json:"content"`
	GeneratedAt string `json:"generated_at"`
}

// Persist writes the transcript for one completed task plus a sibling file
// holding only the raw response text, and returns the transcript path.
// Filenames are {YYYYMMDDHHmm}_{8-char-random}.txt so concurrent tasks
// never contend on a destination name. At most one call per trail.
func (r *Recorder) Persist(trail *Trail, message, response string, params []string) (string, error) {
	if trail.persisted {
		return "", fmt.Errorf("transcript already persisted for this task")
	}

	now := r.now()
	name := now.Format("200601021504") + "_" + r.suffix() + ".txt"
	path := filepath.Join(r.dir, name)

	zone, _ := now.Zone()
	if params == nil {
		params = []string{}
	}
	transcript := Transcript{
		Metadata: TranscriptMetadata{
			SystemInfo: CollectSystemInfo(),
			Timestamp: TranscriptTimestamp{
				ISO:      now.Format("2006-01-02T15:04:05.999999"),
				Date:     now.Format("2006-01-02"),
				Time:     now.Format("15:04:05"),
				Timezone: zone,
			},
		},
		Request: TranscriptRequest{
			Message:    message,
			Parameters: params,
			ReceivedAt: trail.StartedAt().Format(TimestampLayout),
		},
		Response: TranscriptResponse{
			Content:     response,
			GeneratedAt: now.Format(TimestampLayout),
		},
		Events: trail.Events(),
	}

	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal transcript: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write transcript: %w", err)
	}

	responsePath := filepath.Join(r.dir, "response_"+name)
	if err := os.WriteFile(responsePath, []byte(response), 0644); err != nil {
		return "", fmt.Errorf("failed to write response file: %w", err)
	}

	trail.persisted = true
	return path, nil
}
