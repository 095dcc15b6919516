package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
)

// Store persists run artifacts on disk, one directory per run:
//
//	<dir>/<runID>/state.json   checksummed snapshot envelope
//	<dir>/<runID>/report.md    final report, only for finalized runs
//
// Writes are atomic so a crash mid-write never leaves a truncated artifact.
type Store struct {
	dir string
}

// NewStore creates a run artifact store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// snapshotEnvelope wraps a snapshot with integrity metadata.
type snapshotEnvelope struct {
	Version   int               `json:"version"`
	Checksum  string            `json:"checksum"`
	WrittenAt time.Time         `json:"written_at"`
	Snapshot  *core.RunSnapshot `json:"snapshot"`
}

// Render writes the snapshot artifacts. Implements core.RenderSink; failures
// here never change the run outcome.
func (s *Store) Render(_ context.Context, snap *core.RunSnapshot) error {
	runDir := s.runDir(snap.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}

	data, err := marshalEnvelope(snap)
	if err != nil {
		return err
	}
	if err := atomicWriteFile(filepath.Join(runDir, "state.json"), data, 0o644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}

	if snap.Finalized && snap.FinalReport != "" {
		if err := atomicWriteFile(filepath.Join(runDir, "report.md"), []byte(snap.FinalReport), 0o644); err != nil {
			return fmt.Errorf("writing report file: %w", err)
		}
	}
	return nil
}

// Load reads a stored snapshot back and verifies its checksum.
func (s *Store) Load(runID string) (*core.RunSnapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.runDir(runID), "state.json"))
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var envelope snapshotEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshaling envelope: %w", err)
	}
	if envelope.Snapshot == nil {
		return nil, core.ErrState(core.CodeStateCorrupted, "envelope has no snapshot")
	}

	snapBytes, err := json.Marshal(envelope.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot for checksum: %w", err)
	}
	if checksum(snapBytes) != envelope.Checksum {
		return nil, core.ErrState(core.CodeStateCorrupted, "checksum mismatch")
	}
	return envelope.Snapshot, nil
}

// ReportPath returns the location of a run's report file.
func (s *Store) ReportPath(runID string) string {
	return filepath.Join(s.runDir(runID), "report.md")
}

// ListRuns returns the IDs of all stored runs, newest directories last.
func (s *Store) ListRuns() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading store directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

func (s *Store) runDir(runID string) string {
	return filepath.Join(s.dir, runID)
}

func marshalEnvelope(snap *core.RunSnapshot) ([]byte, error) {
	snapBytes, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}
	envelope := snapshotEnvelope{
		Version:   1,
		Checksum:  checksum(snapBytes),
		WrittenAt: time.Now(),
		Snapshot:  snap,
	}
	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling envelope: %w", err)
	}
	return data, nil
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

var _ core.RenderSink = (*Store)(nil)
