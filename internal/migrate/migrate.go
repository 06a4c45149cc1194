// Package migrate copies a record snapshot into a relational table in fixed-size
// batches. It is best-effort: failures are isolated and reported, never rolled back.
package migrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kenkyu/internal/models"
	"github.com/hyperjump/kenkyu/internal/storage"
)

// DefaultBatchSize is used when Config.BatchSize is not positive.
const DefaultBatchSize = 50

// State is a step of a migration run.
type State int

const (
	StateIdle State = iota
	StateCheckTarget
	StateConfirm
	StateBatchInsert
	StateItemRetry
	StateVerifyCount
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckTarget:
		return "check_target"
	case StateConfirm:
		return "confirm"
	case StateBatchInsert:
		return "batch_insert"
	case StateItemRetry:
		return "item_retry"
	case StateVerifyCount:
		return "verify_count"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ConfirmFunc decides whether to continue into a non-empty target holding existing rows.
type ConfirmFunc func(existing int64) bool

// Config configures a Migrator.
type Config struct {
	BatchSize int
	Confirm   ConfirmFunc
}

// FailedItem is a source record that could not be inserted on its own.
type FailedItem struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Err   string `json:"error"`
}

// Report summarizes a run. Mismatch is (initial + source) - final; zero means every
// source record landed.
type Report struct {
	RunID         string       `json:"run_id"`
	Source        int          `json:"source"`
	Inserted      int          `json:"inserted"`
	Batches       int          `json:"batches"`
	FailedBatches int          `json:"failed_batches"`
	Failed        []FailedItem `json:"failed,omitempty"`
	InitialCount  int64        `json:"initial_count"`
	FinalCount    int64        `json:"final_count"`
	Mismatch      int64        `json:"mismatch"`
	VerifyErr     string       `json:"verify_error,omitempty"`
	Aborted       bool         `json:"aborted"`
	State         State        `json:"-"`
}

// Migrator runs one migration.
type Migrator struct {
	target storage.Table
	cfg    Config
	logger *zap.Logger
	state  State
	runID  string
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Migrator) { m.logger = l }
}

// New creates a migrator writing to target. A nil Confirm declines non-empty targets.
func New(target storage.Table, cfg Config, opts ...Option) *Migrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	m := &Migrator{target: target, cfg: cfg, logger: zap.NewNop(), state: StateIdle}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Migrator) enter(s State, fields ...zap.Field) {
	m.logger.Debug("migration state",
		append([]zap.Field{zap.String("run_id", m.runID), zap.Stringer("from", m.state), zap.Stringer("to", s)}, fields...)...)
	m.state = s
}

// Run copies source into the target. The returned error is non-nil only when the target
// cannot be inspected up front or ctx is cancelled; insert failures go into the report.
func (m *Migrator) Run(ctx context.Context, source []models.ChunkRecord) (*Report, error) {
	m.runID = uuid.NewString()
	rep := &Report{RunID: m.runID, Source: len(source)}

	m.enter(StateCheckTarget)
	initial, err := m.target.Count(ctx)
	if err != nil {
		m.enter(StateAborted)
		rep.State = m.state
		return rep, fmt.Errorf("check target: %w", asBackendErr(err))
	}
	rep.InitialCount = initial
	m.logger.Info("migration started",
		zap.String("run_id", m.runID),
		zap.String("target", m.target.Type()),
		zap.Int("source", len(source)),
		zap.Int64("existing", initial),
		zap.Int("batch_size", m.cfg.BatchSize),
	)

	if initial > 0 {
		m.enter(StateConfirm, zap.Int64("existing", initial))
		if m.cfg.Confirm == nil || !m.cfg.Confirm(initial) {
			m.enter(StateAborted)
			rep.Aborted = true
			rep.State = m.state
			rep.FinalCount = initial
			m.logger.Info("migration cancelled", zap.String("run_id", m.runID))
			return rep, nil
		}
	}

	for start := 0; start < len(source); start += m.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			m.enter(StateAborted)
			rep.State = m.state
			return rep, err
		}
		end := start + m.cfg.BatchSize
		if end > len(source) {
			end = len(source)
		}
		batch := source[start:end]
		rep.Batches++
		m.enter(StateBatchInsert, zap.Int("batch", rep.Batches), zap.Int("size", len(batch)))
		err := m.target.InsertBatch(ctx, batch)
		if err == nil {
			rep.Inserted += len(batch)
			m.logger.Info("batch inserted", zap.String("run_id", m.runID), zap.Int("batch", rep.Batches), zap.Int("rows", len(batch)))
			continue
		}
		rep.FailedBatches++
		m.logger.Warn("batch failed, inserting items individually",
			zap.String("run_id", m.runID), zap.Int("batch", rep.Batches),
			zap.Error(fmt.Errorf("%w: %v", models.ErrPartialBatch, err)))

		m.enter(StateItemRetry, zap.Int("batch", rep.Batches))
		for i, r := range batch {
			if err := m.target.Insert(ctx, r); err != nil {
				rep.Failed = append(rep.Failed, FailedItem{Index: start + i, Text: r.Text, Err: err.Error()})
				m.logger.Warn("item failed", zap.String("run_id", m.runID), zap.Int("index", start+i), zap.Error(err))
				continue
			}
			rep.Inserted++
		}
	}

	m.enter(StateVerifyCount)
	final, err := m.target.Count(ctx)
	if err != nil {
		rep.VerifyErr = err.Error()
		m.logger.Warn("count verification failed", zap.String("run_id", m.runID), zap.Error(err))
	} else {
		rep.FinalCount = final
		rep.Mismatch = initial + int64(len(source)) - final
	}

	m.enter(StateDone)
	rep.State = m.state
	m.logger.Info("migration finished",
		zap.String("run_id", m.runID),
		zap.Int("inserted", rep.Inserted),
		zap.Int("failed", len(rep.Failed)),
		zap.Int64("final_count", rep.FinalCount),
		zap.Int64("mismatch", rep.Mismatch),
	)
	return rep, nil
}

// State returns the current state.
func (m *Migrator) State() State { return m.state }

func asBackendErr(err error) error {
	if errors.Is(err, models.ErrBackendUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrBackendUnavailable, err)
}
