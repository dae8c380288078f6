package bot

import (
	"context"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/dirtypig/pig/pkg/domain"
)

// Schedule starts a stream job for the chat, replacing the previous one.
// Repeating jobs send a card every interval, others send one card after a short delay.
func (b *Bot) Schedule(ctx context.Context, job domain.StreamJob) {
	jctx, cancel := context.WithCancel(ctx)
	sj := &streamJob{StreamJob: job, cancel: cancel}

	b.mu.Lock()
	if prev, ok := b.jobs[job.ChatID]; ok {
		prev.cancel()
	}
	b.jobs[job.ChatID] = sj
	b.mu.Unlock()

	lgr.Printf("[INFO] stream %s for chat %d, interval %v", job.ContentType, job.ChatID, job.Interval)
	b.wg.Add(1)
	go b.stream(jctx, sj)
}

// Stop cancels stream job of the chat, returns false if there was none
func (b *Bot) Stop(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	sj, ok := b.jobs[chatID]
	if !ok {
		return false
	}
	sj.cancel()
	delete(b.jobs, chatID)
	return true
}

// Streaming reports if the chat has an active stream job
func (b *Bot) Streaming(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.jobs[chatID]
	return ok
}

func (b *Bot) stream(ctx context.Context, sj *streamJob) {
	defer b.wg.Done()
	defer func() {
		b.mu.Lock()
		if b.jobs[sj.ChatID] == sj {
			delete(b.jobs, sj.ChatID)
		}
		b.mu.Unlock()
	}()

	if !sj.Repeating() {
		select {
		case <-ctx.Done():
		case <-time.After(b.cfg.OneShotDelay):
			b.emit(ctx, sj.StreamJob)
		}
		return
	}

	ticker := time.NewTicker(sj.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.emit(ctx, sj.StreamJob)
		}
	}
}

func (b *Bot) emit(ctx context.Context, job domain.StreamJob) {
	card, err := b.selector.ForContent(ctx, job.ContentType)
	if sendErr := b.sendCard(ctx, job.ChatID, card, err); sendErr != nil {
		lgr.Printf("[WARN] stream %s to chat %d failed: %v", job.ContentType, job.ChatID, sendErr)
	}
}

// stopAll cancels every stream job and waits for them to finish
func (b *Bot) stopAll() {
	b.mu.Lock()
	for chatID, sj := range b.jobs {
		sj.cancel()
		delete(b.jobs, chatID)
	}
	b.mu.Unlock()
	b.wg.Wait()
	lgr.Printf("[INFO] bot stopped")
}
