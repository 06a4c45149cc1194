package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/kenkyu/internal/models"
)

// Snapshot adapts a Table to whole-store load and save so a record store can
// persist directly into the relational substrate.
type Snapshot struct {
	table   Table
	timeout time.Duration
}

// NewSnapshot wraps table. Each Load and Save is bounded by timeout when positive.
func NewSnapshot(table Table, timeout time.Duration) *Snapshot {
	return &Snapshot{table: table, timeout: timeout}
}

func (s *Snapshot) opContext() (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(context.Background(), s.timeout)
	}
	return context.WithCancel(context.Background())
}

// Load reads every row in id order.
func (s *Snapshot) Load() ([]models.ChunkRecord, error) {
	ctx, cancel := s.opContext()
	defer cancel()
	records, err := s.table.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s table: %v", models.ErrBackendUnavailable, s.table.Type(), err)
	}
	return records, nil
}

// Save replaces the table contents with records.
func (s *Snapshot) Save(records []models.ChunkRecord) error {
	ctx, cancel := s.opContext()
	defer cancel()
	if err := s.table.ReplaceAll(ctx, records); err != nil {
		return fmt.Errorf("%w: save %s table: %v", models.ErrBackendUnavailable, s.table.Type(), err)
	}
	return nil
}
