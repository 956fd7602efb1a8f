package vectorsync

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go"

	"github.com/starford/neuralos/internal/store"
)

const (
	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 5 * time.Minute
)

// RelayConfig tunes the outbox relay.
type RelayConfig struct {
	PollInterval  time.Duration
	BatchSize     int
	MaxAttempts   int
	RetryAttempts uint
	// Grace delays claiming fresh events so the inline sync can finish first.
	Grace time.Duration
}

func (c RelayConfig) withDefaults() RelayConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	return c
}

// Relay delivers outbox events that the inline sync did not complete.
type Relay struct {
	syncer *Syncer
	outbox store.OutboxStore
	cfg    RelayConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewRelay creates a relay.
func NewRelay(syncer *Syncer, outbox store.OutboxStore, cfg RelayConfig, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		syncer: syncer,
		outbox: outbox,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run polls the outbox until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("outbox relay started", "poll_interval", r.cfg.PollInterval)
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("outbox relay pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce delivers one batch of due events. It returns the number delivered.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	now := r.now()
	n, _, err := r.pass(ctx, now, now.Add(-r.cfg.Grace))
	return n, err
}

// Drain delivers every due event regardless of age, stopping once a pass
// makes no progress.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		now := r.now()
		n, claimed, err := r.pass(ctx, now, now)
		total += n
		if err != nil || claimed == 0 {
			return total, err
		}
	}
}

func (r *Relay) pass(ctx context.Context, now, createdBefore time.Time) (delivered, claimed int, err error) {
	events, err := r.outbox.ClaimOutbox(ctx, now, createdBefore, r.cfg.BatchSize)
	if err != nil {
		return 0, 0, err
	}
	claimed = len(events)

	for _, ev := range events {
		if ctx.Err() != nil {
			return delivered, claimed, ctx.Err()
		}
		err := retry.Do(
			func() error { return r.syncer.Process(ctx, ev) },
			retry.Context(ctx),
			retry.Attempts(r.cfg.RetryAttempts),
			retry.Delay(100*time.Millisecond),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			next := r.now().Add(Backoff(ev.Attempts))
			r.logger.Warn("outbox event failed",
				"event_id", ev.ID, "note_id", ev.NoteID, "op", ev.Op,
				"attempts", ev.Attempts+1, "next_attempt_at", next, "error", err)
			if ferr := r.outbox.FailOutbox(ctx, ev.ID, err, next, r.cfg.MaxAttempts); ferr != nil {
				return delivered, claimed, ferr
			}
			if ev.Attempts+1 >= r.cfg.MaxAttempts {
				r.logger.Error("outbox event dead", "event_id", ev.ID, "note_id", ev.NoteID, "op", ev.Op)
			}
			continue
		}
		if err := r.outbox.CompleteOutbox(ctx, ev.ID); err != nil {
			return delivered, claimed, err
		}
		delivered++
	}
	return delivered, claimed, nil
}

// Backoff returns the reschedule delay after the given number of prior failures.
func Backoff(attempts int) time.Duration {
	d := baseBackoff
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
