package pipeline

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
)

// Dataset holds the most recently prepared table for concurrent readers.
// Tables are immutable, so swapping the pointer is enough.
type Dataset struct {
	table atomic.Pointer[domain.Table]
}

// Store replaces the current table.
func (d *Dataset) Store(t domain.Table) {
	d.table.Store(&t)
}

// Current returns the current table, or an empty one before the first Store.
func (d *Dataset) Current() domain.Table {
	if t := d.table.Load(); t != nil {
		return *t
	}
	return domain.Table{}
}

// CheckReadiness returns nil once a table has been stored. An empty table
// counts: zero events inside the boundary is a valid result.
func (d *Dataset) CheckReadiness(_ context.Context) error {
	if d.table.Load() == nil {
		return errors.New("no dataset loaded yet")
	}
	return nil
}
