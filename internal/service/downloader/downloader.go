package downloader

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/oshokin/bricks-bootstrap/internal/access"
	"github.com/oshokin/bricks-bootstrap/internal/clock"
	"github.com/oshokin/bricks-bootstrap/internal/logger"
)

const (
	// DefaultRetries is the number of retries after the first failed attempt.
	DefaultRetries = 9

	// MinRetryDelay is the lower bound of the wait between attempts.
	MinRetryDelay = 3 * time.Second

	// MaxRetryDelay is the upper bound of the wait between attempts.
	MaxRetryDelay = 10 * time.Second
)

// ErrDownloadFailed is returned when every attempt failed and no fallback applied.
var ErrDownloadFailed = errors.New("download failed")

// Outcome describes how a successful Download call ended.
type Outcome int

const (
	// OutcomeDownloaded means fresh content was fetched and written.
	OutcomeDownloaded Outcome = iota + 1
	// OutcomeKeptExisting means the fetch failed and the existing file was kept.
	OutcomeKeptExisting
)

// String returns a readable name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeDownloaded:
		return "downloaded"
	case OutcomeKeptExisting:
		return "kept-existing"
	default:
		return "unknown"
	}
}

type (
	// Downloader fetches URLs into local files.
	Downloader struct {
		network  access.Network
		fs       access.Filesystem
		clock    clock.Clock
		intN     func(n int64) int64
		retries  int
		minDelay time.Duration
		maxDelay time.Duration
	}

	// Option configures a Downloader during construction.
	Option func(*Downloader)
)

// WithRetries sets how many times a failed fetch is retried.
func WithRetries(retries int) Option {
	return func(d *Downloader) {
		if retries >= 0 {
			d.retries = retries
		}
	}
}

// WithClock sets the clock used to wait between attempts.
func WithClock(c clock.Clock) Option {
	return func(d *Downloader) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithRand sets the random source of the retry jitter.
func WithRand(r *rand.Rand) Option {
	return func(d *Downloader) {
		if r != nil {
			d.intN = r.Int64N
		}
	}
}

// WithDelayRange overrides the bounds of the retry jitter.
func WithDelayRange(minDelay, maxDelay time.Duration) Option {
	return func(d *Downloader) {
		if minDelay >= 0 && maxDelay >= minDelay {
			d.minDelay = minDelay
			d.maxDelay = maxDelay
		}
	}
}

// New creates a Downloader. Nil collaborators default to the production
// HTTP network and disk filesystem.
func New(network access.Network, fs access.Filesystem, opts ...Option) *Downloader {
	if network == nil {
		network = access.NewHTTP()
	}

	if fs == nil {
		fs = access.NewDisk()
	}

	d := &Downloader{
		network:  network,
		fs:       fs,
		clock:    clock.Real{},
		intN:     rand.Int64N,
		retries:  DefaultRetries,
		minDelay: MinRetryDelay,
		maxDelay: MaxRetryDelay,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Retries returns the configured retry count.
func (d *Downloader) Retries() int {
	return d.retries
}

// Download fetches url and writes it to path, making at most Retries()+1
// attempts. With allowStaleFallback, a failed attempt while path exists ends
// the call with OutcomeKeptExisting and leaves the file untouched.
// Write failures are returned immediately.
func (d *Downloader) Download(ctx context.Context, url, path string, allowStaleFallback bool) (Outcome, error) {
	var lastErr error

	for attempt := 0; attempt <= d.retries; attempt++ {
		data, err := d.network.Read(ctx, url)
		if err == nil {
			if err = d.fs.Write(path, data); err != nil {
				return 0, fmt.Errorf("store %s: %w", path, err)
			}

			return OutcomeDownloaded, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}

		lastErr = err

		if allowStaleFallback && d.fs.Exists(path) {
			logger.WarnKV(ctx, "Unable to download, keeping the existing file",
				"url", url, "path", path, "error", err)

			return OutcomeKeptExisting, nil
		}

		remaining := d.retries - attempt
		if remaining == 0 {
			break
		}

		delay := d.nextDelay()

		logger.WarnKV(ctx, "Unable to download, retrying",
			"url", url, "delay", delay, "attempts_remaining", remaining, "error", err)

		if err = d.wait(ctx, delay); err != nil {
			return 0, err
		}
	}

	return 0, fmt.Errorf("%s after %d attempts: %w: %w", url, d.retries+1, ErrDownloadFailed, lastErr)
}

// nextDelay draws a whole number of seconds uniformly from [minDelay, maxDelay].
func (d *Downloader) nextDelay() time.Duration {
	span := int64((d.maxDelay - d.minDelay) / time.Second)
	if span <= 0 {
		return d.minDelay
	}

	return d.minDelay + time.Duration(d.intN(span+1))*time.Second
}

// wait blocks for delay or until ctx is done.
func (d *Downloader) wait(ctx context.Context, delay time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.clock.After(delay):
		return nil
	}
}
