// Command seed fetches an RSS/Atom feed and inserts it as a source with its
// items as records, so a local instance has data to aggregate against.
//
// Usage:
//
//	go run ./cmd/seed -config config/config.yaml -feed st -count 10
//
// The feed flag accepts a preset name or a direct URL.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/mmcdole/gofeed"

	"rssmerge/config"
	"rssmerge/logger"
	"rssmerge/types"
)

// feedPresets maps friendly names to RSS feed URLs.
var feedPresets = map[string]string{
	"cna": "https://www.channelnewsasia.com/api/v1/rss-outbound-feed?_format=xml",
	"st":  "https://www.straitstimes.com/news/singapore/rss.xml",
	"hn":  "https://hnrss.org/newest",
	"tr":  "https://www.technologyreview.com/feed/",
}

// resolveFeedURL resolves a preset name to a URL, passing direct URLs through.
func resolveFeedURL(feedInput string) string {
	if url, ok := feedPresets[feedInput]; ok {
		return url
	}
	return feedInput
}

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config/config.yaml", "path to the configuration file")
	feedFlag := flag.String("feed", "st", "feed preset name or URL")
	count := flag.Int("count", 10, "maximum number of items to insert")
	flag.Parse()

	log := logger.New("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}

	feedURL := resolveFeedURL(*feedFlag)
	log.Info("fetching feed", "url", feedURL)

	source, records, err := fetchFeed(feedURL, *count)
	if err != nil {
		log.Error("feed fetch failed", "err", err)
		os.Exit(1)
	}
	log.Info("fetched items", "source", source.Name, "count", len(records))

	db, err := sql.Open("mysql", cfg.Database.DSN())
	if err != nil {
		log.Error("database open failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	inserted, err := insert(ctx, db, source, records)
	if err != nil {
		log.Error("insert failed", "err", err)
		os.Exit(1)
	}

	log.Info("seed complete", "source_id", source.ID, "records", inserted)
}

// fetchFeed parses the feed and maps it onto a source with its records.
func fetchFeed(feedURL string, maxCount int) (*types.Source, []types.Record, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseURL(feedURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	source := &types.Source{
		ID:     fmt.Sprintf("seed-%x", time.Now().Unix()),
		Name:   feed.Title,
		Intro:  feed.Description,
		Active: true,
	}

	count := min(len(feed.Items), maxCount)
	records := make([]types.Record, 0, count)
	for i := 0; i < count; i++ {
		item := feed.Items[i]

		published := time.Now()
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}

		records = append(records, types.Record{
			ID:          fmt.Sprintf("%s-%d", source.ID, i),
			SourceID:    source.ID,
			Title:       item.Title,
			URL:         item.Link,
			Content:     item.Content,
			Description: item.Description,
			PublishTime: published.Unix(),
		})
	}

	return source, records, nil
}

// insert writes the source and its records, skipping duplicates.
func insert(ctx context.Context, db *sql.DB, source *types.Source, records []types.Record) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO feeds (id, mp_name, mp_intro, status) VALUES (?, ?, ?, 1)`,
		source.ID, source.Name, source.Intro,
	); err != nil {
		return 0, fmt.Errorf("insert feed: %w", err)
	}

	inserted := 0
	for _, r := range records {
		res, err := tx.ExecContext(ctx,
			`INSERT IGNORE INTO articles (id, mp_id, title, url, content, description, publish_time, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
			r.ID, r.SourceID, r.Title, r.URL, r.Content, r.Description, r.PublishTime,
		)
		if err != nil {
			return 0, fmt.Errorf("insert article %s: %w", r.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	return inserted, nil
}
