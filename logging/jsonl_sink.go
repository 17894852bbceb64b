package logging

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gauntlet-ci/gauntlet/types"
)

const outcomesLog = "outcomes.jsonl"

// JSONLinesSink writes one JSON record per outcome to outcomes.jsonl.
// The format is stable so downstream tooling can tail the file during a run.
type JSONLinesSink struct {
	logger *FileLogger
}

// outcomeRecord is the wire form of an outcome in the JSON lines file
type outcomeRecord struct {
	Time     time.Time `json:"time"`
	Suite    string    `json:"suite,omitempty"`
	Name     string    `json:"name"`
	Index    int       `json:"index"`
	Status   string    `json:"status"`
	Error    string    `json:"error,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Duration float64   `json:"duration_seconds,omitempty"`
	Source   string    `json:"source,omitempty"`
	Output   string    `json:"output,omitempty"`
}

// Consume appends the outcome as a single JSON line
func (s *JSONLinesSink) Consume(o *types.Outcome, runID string) error {
	dir, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}

	writer, err := s.logger.getAsyncWriter(filepath.Join(dir, outcomesLog))
	if err != nil {
		return err
	}

	rec := outcomeRecord{
		Time:   time.Now(),
		Suite:  o.Suite,
		Name:   o.Name,
		Index:  o.Index,
		Status: string(o.Status),
		Reason: o.Reason,
		Source: o.Location.String(),
		Output: CleanOutput(o.Output),
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	if o.Timed {
		rec.Duration = o.Duration.Seconds()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome record: %w", err)
	}

	return writer.Write(append(data, '\n'))
}

// GetOutcomesFileForRunID returns the path to the outcomes.jsonl file for the given runID
func (s *JSONLinesSink) GetOutcomesFileForRunID(runID string) (string, error) {
	dir, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, outcomesLog), nil
}

// Complete is a no-op for JSONLinesSink
func (s *JSONLinesSink) Complete(runID string) error {
	return nil
}
