package vector

import (
	"fmt"

	"github.com/hyperjump/kenkyu/internal/store"
	"github.com/hyperjump/kenkyu/internal/storage"
)

// IndexType represents the ranking strategy.
type IndexType string

const (
	// IndexTypeScan scores every record of an in-process store.
	IndexTypeScan IndexType = "scan"
	// IndexTypeANN delegates to a relational match function.
	IndexTypeANN IndexType = "ann"
)

// ForBackend maps a storage backend name to its ranking strategy.
// "file" (or empty) scans; "sqlite" and "postgres" delegate.
func ForBackend(backend string) IndexType {
	switch backend {
	case storage.BackendSQLite, storage.BackendPostgres:
		return IndexTypeANN
	default:
		return IndexTypeScan
	}
}

// NewIndex creates an index of the given type. Scan requires s; ANN requires table.
func NewIndex(indexType IndexType, s *store.RecordStore, table storage.Table) (Index, error) {
	switch indexType {
	case IndexTypeScan, "":
		return NewScanIndex(s)
	case IndexTypeANN:
		return NewANNIndex(table)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: scan, ann)", indexType)
	}
}
