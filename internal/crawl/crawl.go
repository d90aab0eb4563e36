// Package crawl drives a resumable sweep over the traversal sequence:
// fetch each thing's endpoints, normalize, persist.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rbeswick/thingsweep/internal/idspace"
	"github.com/rbeswick/thingsweep/internal/normalize"
	"github.com/rbeswick/thingsweep/internal/store"
	"github.com/rbeswick/thingsweep/pkg/thingiverse"
)

// ErrResumeIDNotFound means the store's last ingested id is not part of
// the traversal sequence. The sequence must be the same permutation of
// the id universe across sweeps, so this aborts the sweep.
var ErrResumeIDNotFound = errors.New("resume id not found in traversal sequence")

// Fetcher retrieves one endpoint for a thing.
type Fetcher interface {
	Fetch(ctx context.Context, thingID int64, suffix string) thingiverse.Result
}

// Driver runs sweeps. Items are processed strictly sequentially; the
// only suspension points are the fetcher's pacing delays.
type Driver struct {
	store         store.Store
	fetcher       Fetcher
	norm          *normalize.Normalizer
	log           *zap.Logger
	ids           []int64
	progressEvery int
}

// New creates a sweep driver over the given traversal sequence.
func New(s store.Store, f Fetcher, norm *normalize.Normalizer, ids []int64, progressEvery int, log *zap.Logger) *Driver {
	if progressEvery <= 0 {
		progressEvery = 100
	}
	return &Driver{
		store:         s,
		fetcher:       f,
		norm:          norm,
		log:           log,
		ids:           ids,
		progressEvery: progressEvery,
	}
}

// Run executes one sweep from the resume position to the end of the
// sequence. Cancellation is honored between items: an in-flight item's
// fetch group and ingestion always complete or fail as a unit.
func (d *Driver) Run(ctx context.Context) error {
	if len(d.ids) == 0 {
		return errors.New("traversal sequence is empty")
	}

	start, err := d.resumePosition(ctx)
	if err != nil {
		return err
	}

	total := len(d.ids)
	d.log.Info("sweep starting",
		zap.Int("position", start),
		zap.Int("total", total),
		zap.Int64("first_id", d.ids[start]),
	)

	var ingested, skipped int
	for i := start; i < total; i++ {
		if err := ctx.Err(); err != nil {
			d.log.Info("sweep interrupted",
				zap.Int("position", i),
				zap.Int("ingested", ingested),
				zap.Int("skipped", skipped),
			)
			return err
		}

		ok, err := d.processThing(ctx, d.ids[i])
		if err != nil {
			return fmt.Errorf("ingest thing %d: %w", d.ids[i], err)
		}
		TotalProcessed.Inc()
		if ok {
			ingested++
		} else {
			skipped++
		}

		if (i-start+1)%d.progressEvery == 0 {
			d.log.Info("sweep progress",
				zap.Int("position", i+1),
				zap.Int("total", total),
				zap.Int("remaining", total-i-1),
				zap.Int("ingested", ingested),
				zap.Int("skipped", skipped),
			)
		}
	}

	d.log.Info("sweep finished",
		zap.Int("processed", total-start),
		zap.Int("ingested", ingested),
		zap.Int("skipped", skipped),
	)
	return nil
}

// resumePosition finds where this sweep starts: the store's last
// ingested id when present, else the head of the sequence. The last
// ingested id is itself re-attempted; re-ingesting it is a no-op.
func (d *Driver) resumePosition(ctx context.Context) (int, error) {
	lastID, ok, err := d.store.LastIngestedID(ctx)
	if err != nil {
		return 0, fmt.Errorf("determine resume id: %w", err)
	}
	if !ok {
		return 0, nil
	}

	idx, found := idspace.IndexOf(d.ids, lastID)
	if !found {
		return 0, fmt.Errorf("resume id %d: %w", lastID, ErrResumeIDNotFound)
	}
	return idx, nil
}

// processThing fetches, normalizes and persists one thing. ok reports
// whether records were ingested. Only store failures are returned as
// errors; unfetchable or creator-less things are skipped silently and
// the sweep continues.
func (d *Driver) processThing(ctx context.Context, thingID int64) (bool, error) {
	primary := d.fetcher.Fetch(ctx, thingID, thingiverse.SuffixThing)
	if primary.Outcome != thingiverse.Success {
		TotalSkipped.WithLabelValues("no_primary").Inc()
		return false, nil
	}

	thing, err := normalize.DecodeThing(primary.Body)
	if err != nil {
		d.log.Warn("undecodable primary payload", zap.Int64("thing_id", thingID), zap.Error(err))
		TotalSkipped.WithLabelValues("decode_error").Inc()
		return false, nil
	}
	if thing == nil || thing.Creator == nil {
		// No creator means the thing is unfetchable: no auxiliary
		// fetches, no records.
		TotalSkipped.WithLabelValues("no_creator").Inc()
		return false, nil
	}

	payloads := &normalize.Payloads{Thing: thing}
	payloads.Images = fetchList[normalize.ImagePayload](ctx, d, thingID, thingiverse.SuffixImages)
	payloads.Files = fetchList[normalize.FilePayload](ctx, d, thingID, thingiverse.SuffixFiles)
	payloads.Likes = fetchList[normalize.LikePayload](ctx, d, thingID, thingiverse.SuffixLikes)
	payloads.Categories = fetchList[normalize.CategoryPayload](ctx, d, thingID, thingiverse.SuffixCategories)

	rec, err := d.norm.Normalize(payloads, time.Now())
	if err != nil {
		// Creator presence was checked above; anything else is a bug.
		return false, fmt.Errorf("normalize: %w", err)
	}

	if err := d.store.IngestThing(ctx, rec); err != nil {
		return false, err
	}
	TotalIngested.Inc()
	return true, nil
}

// fetchList fetches one auxiliary endpoint and decodes its array body.
// Failed fetches and undecodable bodies degrade to an absent payload;
// the item still ingests with what was retrieved.
func fetchList[T any](ctx context.Context, d *Driver, thingID int64, suffix string) []T {
	res := d.fetcher.Fetch(ctx, thingID, suffix)
	if res.Outcome != thingiverse.Success {
		return nil
	}
	list, err := normalize.DecodeList[T](res.Body)
	if err != nil {
		d.log.Warn("undecodable auxiliary payload",
			zap.Int64("thing_id", thingID),
			zap.String("endpoint", suffix),
			zap.Error(err),
		)
		return nil
	}
	return list
}
