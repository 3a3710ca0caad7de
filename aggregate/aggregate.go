// Package aggregate joins sources with their recent records into the flat
// rows that make up one snapshot.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"rssmerge/store"
	"rssmerge/types"
)

// Result is the outcome of one aggregation pass.
type Result struct {
	Rows []types.MergedRow
	// Start and End are the half-open window the pass covered.
	Start time.Time
	End   time.Time
	// SourceCount is how many active sources were consulted.
	SourceCount int
}

// Merge inner-joins records to their owning sources. Records whose source id
// has no match are dropped. Input order is preserved and no deduplication is
// performed; a record appearing twice yields two rows.
func Merge(sources []types.Source, records []types.Record) []types.MergedRow {
	byID := make(map[string]types.Source, len(sources))
	for _, s := range sources {
		byID[s.ID] = s
	}

	rows := make([]types.MergedRow, 0, len(records))
	for _, r := range records {
		src, ok := byID[r.SourceID]
		if !ok {
			continue
		}
		rows = append(rows, types.MergedRow{
			ID:          r.ID,
			SourceID:    r.SourceID,
			SourceName:  src.Name,
			SourceIntro: src.Intro,
			Title:       r.Title,
			URL:         r.URL,
			Content:     r.Content,
			Description: r.Description,
			PublishTime: r.PublishTime,
		})
	}

	return rows
}

// Run executes a full aggregation pass: compute the window for recentDays,
// list the active sources, pull each source's recent records, and merge.
// Row order is per-source fetch order concatenated in source order; records
// stay newest-first within a source but there is no global time sort.
func Run(ctx context.Context, st store.SourceStore, recentDays int, now time.Time) (*Result, error) {
	start, end := store.Window(recentDays, now)

	sources, err := st.ListActiveSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	var records []types.Record
	for _, s := range sources {
		recs, err := st.RecentRecords(ctx, s.ID, start, end)
		if err != nil {
			return nil, fmt.Errorf("recent records for %s: %w", s.ID, err)
		}
		records = append(records, recs...)
	}

	return &Result{
		Rows:        Merge(sources, records),
		Start:       start,
		End:         end,
		SourceCount: len(sources),
	}, nil
}
