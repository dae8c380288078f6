package dvach

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/dirtypig/pig/pkg/domain"
)

// RunDirLayout is the time layout of per-run snapshot directories, sortable lexically
const RunDirLayout = "2006-01-02_15-04-05"

// ManifestName is the file with the sorted catalog written once per run
const ManifestName = "threads.json"

// Fetcher reads the board catalog and threads
type Fetcher interface {
	Threads(ctx context.Context, board, sortBy string) ([]domain.ThreadMeta, error)
	Thread(ctx context.Context, board string, num domain.Num) (*domain.Thread, error)
}

// Scraper saves snapshots of the top threads of a board
type Scraper struct {
	fetcher    Fetcher
	board      string
	sortBy     string
	saveTop    int
	contentDir string
	now        func() time.Time
}

// ScraperConfig holds Scraper settings
type ScraperConfig struct {
	Board      string
	SortBy     string
	SaveTop    int
	ContentDir string
}

// RunResult summarizes a scraping run
type RunResult struct {
	Dir    string
	Found  int
	Saved  int
	Failed int
}

// NewScraper makes a scraper writing snapshots under cfg.ContentDir
func NewScraper(fetcher Fetcher, cfg ScraperConfig) *Scraper {
	if cfg.SaveTop <= 0 {
		cfg.SaveTop = 10
	}
	return &Scraper{
		fetcher:    fetcher,
		board:      cfg.Board,
		sortBy:     cfg.SortBy,
		saveTop:    cfg.SaveTop,
		contentDir: cfg.ContentDir,
		now:        time.Now,
	}
}

// Run fetches the catalog and the top threads into a new timestamped directory.
// A thread that can't be fetched or saved is skipped, the run goes on.
func (s *Scraper) Run(ctx context.Context) (RunResult, error) {
	res := RunResult{Dir: filepath.Join(s.contentDir, s.now().Format(RunDirLayout))}
	if err := os.MkdirAll(res.Dir, 0o750); err != nil {
		return res, fmt.Errorf("create run directory: %w", err)
	}
	lgr.Printf("[INFO] scraping %s/, writing to %s", s.board, res.Dir)

	threads, err := s.fetcher.Threads(ctx, s.board, s.sortBy)
	if err != nil {
		return res, fmt.Errorf("get catalog: %w", err)
	}
	res.Found = len(threads)
	lgr.Printf("[INFO] found %d threads in %s/", len(threads), s.board)

	if err := writeJSON(filepath.Join(res.Dir, ManifestName), threads); err != nil {
		return res, fmt.Errorf("write manifest: %w", err)
	}

	top := threads[:min(s.saveTop, len(threads))]
	for _, meta := range top {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		lgr.Printf("[DEBUG] #%d: %s | %d posts", meta.Num, meta.Subject, meta.PostsCount)
		thread, err := s.fetcher.Thread(ctx, s.board, meta.Num)
		if err != nil {
			lgr.Printf("[WARN] skip thread %d: %v", meta.Num, err)
			res.Failed++
			continue
		}
		if thread.Subject == "" {
			thread.Subject = meta.Subject
		}

		name := strconv.FormatInt(int64(meta.Num), 10) + ".json"
		if err := writeJSON(filepath.Join(res.Dir, name), thread); err != nil {
			lgr.Printf("[WARN] skip thread %d: %v", meta.Num, err)
			res.Failed++
			continue
		}
		res.Saved++
	}

	lgr.Printf("[INFO] done scraping %s/, saved %d of %d threads to %s", s.board, res.Saved, len(top), res.Dir)
	return res, nil
}

// writeJSON writes through a temp file and rename, readers never see a partial file
func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmpPath := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// ReadThread loads a thread snapshot written by Scraper
func ReadThread(path string) (*domain.Thread, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from content dir walk
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var thread domain.Thread
	if err := json.Unmarshal(data, &thread); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", filepath.Base(path), err)
	}
	return &thread, nil
}
