// Package reminder implements the proactive ANC reminder engine: the
// periodic check job that classifies each patient's visit schedule and the
// wake scheduler that triggers it.
package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/oumacare/ancare/internal/models"
)

// RecordSource supplies the current set of active pregnancy records. The
// patient record store is an external collaborator; the engine only reads it.
type RecordSource interface {
	Fetch(ctx context.Context) ([]models.PregnancyRecord, error)
}

// SourceFunc adapts a function to the RecordSource interface.
type SourceFunc func(ctx context.Context) ([]models.PregnancyRecord, error)

// Fetch calls the wrapped function.
func (f SourceFunc) Fetch(ctx context.Context) ([]models.PregnancyRecord, error) {
	return f(ctx)
}

// StaticSource is a fixed list of records, useful for tests and demos.
type StaticSource []models.PregnancyRecord

// Fetch returns a copy of the static record list.
func (s StaticSource) Fetch(ctx context.Context) ([]models.PregnancyRecord, error) {
	out := make([]models.PregnancyRecord, len(s))
	copy(out, s)
	return out, nil
}

// FileSource reads a JSON array of pregnancy records from a file on every
// fetch, so edits to the file are picked up without a restart.
type FileSource struct {
	Path string
}

// Fetch loads and decodes the record file.
func (f FileSource) Fetch(ctx context.Context) ([]models.PregnancyRecord, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records file %s: %w", f.Path, err)
	}
	var records []models.PregnancyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode records file %s: %w", f.Path, err)
	}
	return records, nil
}
