// Package scheduler runs the collecting pipeline: scrape threads, rebuild collection, idle, repeat
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/dirtypig/pig/pkg/collection"
	"github.com/dirtypig/pig/pkg/dvach"
)

// Scraper saves a fresh set of thread snapshots
type Scraper interface {
	Run(ctx context.Context) (dvach.RunResult, error)
}

// Builder rebuilds the collection from all snapshots
type Builder interface {
	Build(ctx context.Context) (collection.Result, error)
}

// Pipeline runs scraper and builder one after another with idle pause between runs
type Pipeline struct {
	scraper      Scraper
	builder      Builder
	idleInterval time.Duration
	wg           sync.WaitGroup
	cancel       context.CancelFunc
}

// NewPipeline makes a pipeline, idle interval defaults to 2h
func NewPipeline(scraper Scraper, builder Builder, idleInterval time.Duration) *Pipeline {
	if idleInterval == 0 {
		idleInterval = 2 * time.Hour
	}
	return &Pipeline{scraper: scraper, builder: builder, idleInterval: idleInterval}
}

// Start begins the pipeline loop in background
func (p *Pipeline) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.loop(ctx)
	lgr.Printf("[INFO] pipeline started with idle interval %v", p.idleInterval)
}

// Stop interrupts the pipeline and waits for the current run to unwind
func (p *Pipeline) Stop() {
	lgr.Printf("[INFO] stopping pipeline...")
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	lgr.Printf("[INFO] pipeline stopped")
}

func (p *Pipeline) loop(ctx context.Context) {
	defer p.wg.Done()
	for {
		if err := p.safeRun(ctx); err != nil {
			lgr.Printf("[WARN] %T: %v", rootCause(err), err)
		}
		if ctx.Err() != nil {
			return
		}

		lgr.Printf("[INFO] idle for %v", p.idleInterval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.idleInterval):
		}
	}
}

// safeRun converts panic of a run to error
func (p *Pipeline) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return p.RunOnce(ctx)
}

// RunOnce scrapes threads and rebuilds the collection. The collection is not touched
// if ctx is cancelled during scraping.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	started := time.Now()
	run, err := p.scraper.Run(ctx)
	if err != nil {
		return fmt.Errorf("scrape threads: %w", err)
	}
	lgr.Printf("[INFO] saved %d of %d threads to %s", run.Saved, run.Found, run.Dir)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	res, err := p.builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("build collection: %w", err)
	}
	lgr.Printf("[INFO] pipeline run completed in %v, %d records from %d snapshots",
		time.Since(started).Round(time.Millisecond), res.Records, res.Snapshots)
	return nil
}

// rootCause unwraps err down to the innermost error, following the first branch of joined errors
func rootCause(err error) error {
	for {
		switch e := err.(type) { //nolint:errorlint // walking the chain by hand
		case interface{ Unwrap() []error }:
			errs := e.Unwrap()
			if len(errs) == 0 {
				return err
			}
			err = errs[0]
		default:
			next := errors.Unwrap(err)
			if next == nil {
				return err
			}
			err = next
		}
	}
}
