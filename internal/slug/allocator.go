// internal/slug/allocator.go
//
// Bounded unique-slug search for new threads.
//
// Context
// -------
// Thread slugs are unique per deployment.  Allocate walks a fixed ladder of
// candidates and returns the first one the existence check rejects:
//
//	attempt 0      base
//	attempts 1-5   base-1 … base-5
//	attempt 6      2026-10-14-base
//	attempts 7..   2026-10-14-x7k2q-base
//
// Every candidate is truncated to MaxLength before it is checked.  The loop
// stops at MaxAttempts, or earlier when two consecutive candidates come out
// identical (for example when a long base truncates the suffix away), and
// fails with forum.ErrSlugExhausted.
//
// The check is racy against concurrent creations of the same title.  The
// store's unique index is the backstop and reports forum.ErrStorageConflict,
// which the thread service handles by allocating once more.
//
// Notes
// -----
//   - Clock and random source are injectable so tests are deterministic.
//   - Oxford commas, two spaces after periods.
package slug

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/yanizio/adept-forum/internal/forum"
	"github.com/yanizio/adept-forum/internal/metrics"
)

// Defaults used when Options leave a field zero.
const (
	DefaultMaxAttempts  = 250
	DefaultRandomLength = 5
	DefaultAlphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"

	numberedAttempts = 5
)

// ExistsFunc reports whether slug is already taken.
type ExistsFunc func(ctx context.Context, slug string) (bool, error)

// Source picks random indices.  *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

// globalSource uses the goroutine-safe top-level generator.
type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Options tune the allocator.  Zero values fall back to the defaults.
type Options struct {
	MaxLength    int    `koanf:"max_length"`
	MaxAttempts  int    `koanf:"max_attempts"`
	RandomLength int    `koanf:"random_length"`
	Alphabet     string `koanf:"alphabet"`
}

// Allocator generates unique thread slugs.
type Allocator struct {
	opts Options
	now  func() time.Time
	rnd  Source
}

// Option customises an Allocator.
type Option func(*Allocator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(a *Allocator) { a.now = now } }

// WithSource replaces the random source.
func WithSource(src Source) Option { return func(a *Allocator) { a.rnd = src } }

// NewAllocator returns an Allocator with defaults filled in.
func NewAllocator(opts Options, extra ...Option) *Allocator {
	if opts.MaxLength <= 0 {
		opts.MaxLength = forum.SlugMaxLength
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RandomLength <= 0 {
		opts.RandomLength = DefaultRandomLength
	}
	if opts.Alphabet == "" {
		opts.Alphabet = DefaultAlphabet
	}
	a := &Allocator{opts: opts, now: time.Now, rnd: globalSource{}}
	for _, o := range extra {
		o(a)
	}
	return a
}

// Base returns the attempt-0 slug for title.
func (a *Allocator) Base(title string) string { return Make(title, a.opts.MaxLength) }

// Allocate returns the first free candidate for title.
func (a *Allocator) Allocate(ctx context.Context, title string, exists ExistsFunc) (string, error) {
	base := a.Base(title)
	date := a.now().Format("2006-01-02")

	prev := ""
	for attempt := 0; attempt < a.opts.MaxAttempts; attempt++ {
		cand := a.candidate(attempt, base, date)
		if attempt > 0 && cand == prev {
			metrics.SlugAttempts.Observe(float64(attempt + 1))
			return "", fmt.Errorf("slug %q degenerated at attempt %d: %w", cand, attempt, forum.ErrSlugExhausted)
		}
		prev = cand

		taken, err := exists(ctx, cand)
		if err != nil {
			return "", fmt.Errorf("slug exists check: %w", err)
		}
		if !taken {
			metrics.SlugAttempts.Observe(float64(attempt + 1))
			return cand, nil
		}
	}
	metrics.SlugAttempts.Observe(float64(a.opts.MaxAttempts))
	return "", fmt.Errorf("slug %q after %d attempts: %w", base, a.opts.MaxAttempts, forum.ErrSlugExhausted)
}

func (a *Allocator) candidate(attempt int, base, date string) string {
	max := a.opts.MaxLength
	switch {
	case attempt == 0:
		return base
	case attempt <= numberedAttempts:
		suffix := "-" + strconv.Itoa(attempt)
		return Truncate(Truncate(base, max-len(suffix))+suffix, max)
	case attempt == numberedAttempts+1:
		return Truncate(date+"-"+base, max)
	default:
		return Truncate(date+"-"+a.random()+"-"+base, max)
	}
}

func (a *Allocator) random() string {
	b := make([]byte, a.opts.RandomLength)
	for i := range b {
		b[i] = a.opts.Alphabet[a.rnd.IntN(len(a.opts.Alphabet))]
	}
	return string(b)
}
