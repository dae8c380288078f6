// Package collection builds the deduplicated collection of classified posts from thread snapshots
package collection

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-pkgz/lgr"

	"github.com/dirtypig/pig/pkg/content"
	"github.com/dirtypig/pig/pkg/domain"
	"github.com/dirtypig/pig/pkg/dvach"
)

// Store persists a complete collection
type Store interface {
	ReplaceCollection(ctx context.Context, records []domain.Record, snapshots int) (int, error)
}

// Builder walks all stored snapshots and replaces the collection with what it finds
type Builder struct {
	store      Store
	classifier *content.Classifier
	normalizer *content.Normalizer
	contentDir string
}

// Result summarizes a build
type Result struct {
	Snapshots int
	Skipped   int
	Records   int
}

// NewBuilder makes a builder reading snapshots from contentDir
func NewBuilder(store Store, normalizer *content.Normalizer, contentDir string) *Builder {
	return &Builder{
		store:      store,
		classifier: content.NewClassifier(normalizer),
		normalizer: normalizer,
		contentDir: contentDir,
	}
}

// Build classifies posts of every snapshot, dedups them by post number and display text and stores the result.
// Unreadable snapshots are skipped. The stored collection is replaced only if everything is collected.
func (b *Builder) Build(ctx context.Context) (Result, error) {
	var res Result

	files, err := b.snapshots()
	if err != nil {
		return res, err
	}

	// runs are read oldest first, a later snapshot of a post replaces its earlier text
	var order []int64
	byNum := map[int64]domain.Record{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		thread, err := dvach.ReadThread(path)
		if err != nil {
			lgr.Printf("[WARN] skip snapshot %s: %v", path, err)
			res.Skipped++
			continue
		}
		res.Snapshots++

		for _, post := range b.classifier.Classify(thread.Posts) {
			text := b.normalizer.Normalize(post.Comment, content.ModeDisplay)
			if text == "" {
				continue
			}
			num := int64(post.Num)
			if _, ok := byNum[num]; !ok {
				order = append(order, num)
			}
			byNum[num] = domain.NewRecord(post, text)
		}
	}

	records := make([]domain.Record, 0, len(order))
	seenText := map[string]bool{}
	for _, num := range order {
		rec := byNum[num]
		if seenText[rec.Text] {
			continue
		}
		seenText[rec.Text] = true
		records = append(records, rec)
	}

	n, err := b.store.ReplaceCollection(ctx, records, res.Snapshots)
	if err != nil {
		return res, fmt.Errorf("store collection: %w", err)
	}
	res.Records = n
	lgr.Printf("[INFO] collection built with %d records from %d snapshots", res.Records, res.Snapshots)
	return res, nil
}

// snapshots lists thread snapshot files of all runs, runs and files in lexical order
func (b *Builder) snapshots() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(b.contentDir, "*", "[0-9]*.json"))
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	if len(files) == 0 {
		if _, err := os.Stat(b.contentDir); err != nil {
			return nil, fmt.Errorf("check content dir: %w", err)
		}
	}
	sort.Strings(files)
	return files, nil
}
