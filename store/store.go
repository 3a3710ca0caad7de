// Package store provides read-only access to sources and their records,
// plus the time-window policy that bounds an aggregation pass.
package store

import (
	"context"
	"time"

	"rssmerge/types"
)

// SourceStore is the read-only query contract the aggregator consumes.
// Implementations must return only active rows; records are ordered by
// publish time descending within a source.
type SourceStore interface {
	// ListActiveSources returns every source flagged active.
	ListActiveSources(ctx context.Context) ([]types.Source, error)

	// RecentRecords returns the active records of one source whose publish
	// time falls in [start, end), newest first.
	RecentRecords(ctx context.Context, sourceID string, start, end time.Time) ([]types.Record, error)
}
