package diagnostics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
)

// AbortDump captures everything useful about a run that reached the aborted
// stage: the terminal snapshot plus host state, for post-mortem without a
// debugger attached.
type AbortDump struct {
	Timestamp time.Time `json:"timestamp"`
	ProcessID int       `json:"process_id"`
	GoVersion string    `json:"go_version"`
	GOOS      string    `json:"goos"`
	GOARCH    string    `json:"goarch"`

	RunID       string            `json:"run_id"`
	AbortReason string            `json:"abort_reason"`
	Resources   ResourceSnapshot  `json:"resources"`
	Run         *core.RunSnapshot `json:"run"`
}

// AbortDumpWriter persists abort dumps, keeping at most maxFiles of them.
type AbortDumpWriter struct {
	dir      string
	maxFiles int
}

// NewAbortDumpWriter creates a dump writer rooted at dir. maxFiles <= 0
// means keep everything.
func NewAbortDumpWriter(dir string, maxFiles int) *AbortDumpWriter {
	return &AbortDumpWriter{dir: dir, maxFiles: maxFiles}
}

// Write persists one dump and returns its path.
func (w *AbortDumpWriter) Write(snap *core.RunSnapshot) (string, error) {
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return "", fmt.Errorf("creating dump directory: %w", err)
	}

	dump := AbortDump{
		Timestamp:   time.Now().UTC(),
		ProcessID:   os.Getpid(),
		GoVersion:   runtime.Version(),
		GOOS:        runtime.GOOS,
		GOARCH:      runtime.GOARCH,
		RunID:       snap.ID,
		AbortReason: snap.AbortReason,
		Resources:   CollectResources(),
		Run:         snap,
	}

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling dump: %w", err)
	}

	name := fmt.Sprintf("abort-%s-%s.json", snap.ID, dump.Timestamp.Format("20060102-150405"))
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing dump: %w", err)
	}

	w.prune()
	return path, nil
}

// prune removes the oldest dumps beyond the retention limit.
func (w *AbortDumpWriter) prune() {
	if w.maxFiles <= 0 {
		return
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	var dumps []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "abort-") && strings.HasSuffix(e.Name(), ".json") {
			dumps = append(dumps, e.Name())
		}
	}
	if len(dumps) <= w.maxFiles {
		return
	}
	// Timestamped names sort chronologically.
	sort.Strings(dumps)
	for _, name := range dumps[:len(dumps)-w.maxFiles] {
		os.Remove(filepath.Join(w.dir, name))
	}
}
