package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Batch collects independent release operations declared together by one hook.
// Release runs them concurrently and returns only after every branch finished.
type Batch struct {
	name     string
	logger   *zap.Logger
	releases []release
}

type release struct {
	name string
	fn   func(ctx context.Context) error
}

// NewBatch creates an empty batch. The name shows up in logs.
func NewBatch(name string, logger *zap.Logger) *Batch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batch{name: name, logger: logger}
}

// Add declares a release operation.
func (b *Batch) Add(name string, fn func(ctx context.Context) error) {
	b.releases = append(b.releases, release{name: name, fn: fn})
}

// AddCloser declares a release for a handle whose Close reports an error.
func (b *Batch) AddCloser(name string, c interface{ Close() error }) {
	b.Add(name, func(context.Context) error { return c.Close() })
}

// Len returns the number of pending releases.
func (b *Batch) Len() int { return len(b.releases) }

// Release runs every pending release concurrently and joins them. A failing or
// panicking release never stops its siblings. Each failure is logged and the
// joined error is returned. Pending releases are cleared, so a second call is a no-op.
func (b *Batch) Release(ctx context.Context) error {
	releases := b.releases
	b.releases = nil
	if len(releases) == 0 {
		return nil
	}

	p := pool.New().WithErrors()
	for _, rel := range releases {
		p.Go(func() (err error) {
			start := time.Now()
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("release %s panicked: %v", rel.name, r)
				}
				if err != nil {
					b.logger.Error("release failed",
						zap.String("batch", b.name),
						zap.String("resource", rel.name),
						zap.Error(err))
					return
				}
				b.logger.Debug("released",
					zap.String("batch", b.name),
					zap.String("resource", rel.name),
					zap.Duration("took", time.Since(start)))
			}()
			if err := rel.fn(ctx); err != nil {
				return fmt.Errorf("release %s: %w", rel.name, err)
			}
			return nil
		})
	}
	return p.Wait()
}
