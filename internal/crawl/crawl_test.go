package crawl

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rbeswick/thingsweep/internal/normalize"
	"github.com/rbeswick/thingsweep/internal/store"
	"github.com/rbeswick/thingsweep/pkg/thingiverse"
)

type fetchCall struct {
	ThingID int64
	Suffix  string
}

// fakeFetcher serves canned results keyed by thing id and suffix and
// records every call. Unknown endpoints answer NotFound.
type fakeFetcher struct {
	results map[int64]map[string]thingiverse.Result
	calls   []fetchCall
}

func (f *fakeFetcher) Fetch(ctx context.Context, thingID int64, suffix string) thingiverse.Result {
	f.calls = append(f.calls, fetchCall{ThingID: thingID, Suffix: suffix})
	if m, ok := f.results[thingID]; ok {
		if res, ok := m[suffix]; ok {
			return res
		}
	}
	return thingiverse.Result{Outcome: thingiverse.NotFound}
}

func success(body string) thingiverse.Result {
	return thingiverse.Result{Outcome: thingiverse.Success, Body: json.RawMessage(body)}
}

func openTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(t.TempDir(), "test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestDriver(s store.Store, f Fetcher, ids []int64) *Driver {
	log := zap.NewNop()
	return New(s, f, normalize.New(log), ids, 1000, log)
}

func thing42Results() map[string]thingiverse.Result {
	return map[string]thingiverse.Result{
		thingiverse.SuffixThing: success(`{
			"id": 42, "name": "widget",
			"creator": {"id": 7, "name": "maker"},
			"tags": [{"name": "A", "tag": "a"}, {"name": "B", "tag": "b"}]
		}`),
		thingiverse.SuffixImages:     success(`[{"id": 1}, {"id": 2}, {"id": 3}]`),
		thingiverse.SuffixFiles:      success(`[{"id": 9, "download_count": 10}]`),
		thingiverse.SuffixLikes:      success(`[]`),
		thingiverse.SuffixCategories: success(`[{"id": 1, "name": "Toys"}]`),
	}
}

func TestSweepIngestsFullThing(t *testing.T) {
	s := openTestStore(t)
	f := &fakeFetcher{results: map[int64]map[string]thingiverse.Result{42: thing42Results()}}
	d := newTestDriver(s, f, []int64{42})

	require.NoError(t, d.Run(context.Background()))

	ctx := context.Background()
	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, counts["things"])
	require.EqualValues(t, 1, counts["creators"])
	require.EqualValues(t, 2, counts["tags"])
	require.EqualValues(t, 1, counts["categories"])

	result, err := s.Query(ctx,
		"SELECT added_images_count, average_download_count, tags, likes_ids, creator_id FROM things WHERE id = 42")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	row := result.Rows[0]
	require.EqualValues(t, 2, row[0])
	require.EqualValues(t, 10, row[1])
	require.JSONEq(t, `["a","b"]`, asString(row[2]))
	require.Nil(t, row[3], "empty likes must store NULL")
	require.EqualValues(t, 7, row[4])
}

func TestSweepSkipsCreatorlessThing(t *testing.T) {
	s := openTestStore(t)
	f := &fakeFetcher{results: map[int64]map[string]thingiverse.Result{
		42: {thingiverse.SuffixThing: success(`{"id": 42, "creator": null}`)},
	}}
	d := newTestDriver(s, f, []int64{42})

	require.NoError(t, d.Run(context.Background()))

	counts, err := s.Counts(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 0, counts["things"])
	require.EqualValues(t, 0, counts["creators"])

	// Only the primary endpoint may have been touched.
	require.Equal(t, []fetchCall{{ThingID: 42, Suffix: thingiverse.SuffixThing}}, f.calls)
}

func TestSweepContinuesPastMissingThings(t *testing.T) {
	s := openTestStore(t)
	f := &fakeFetcher{results: map[int64]map[string]thingiverse.Result{42: thing42Results()}}
	d := newTestDriver(s, f, []int64{41, 42, 43})

	require.NoError(t, d.Run(context.Background()))

	counts, err := s.Counts(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, counts["things"])
}

func TestSweepDegradesOnAuxiliaryFailure(t *testing.T) {
	s := openTestStore(t)
	results := thing42Results()
	results[thingiverse.SuffixFiles] = thingiverse.Result{Outcome: thingiverse.Empty}
	f := &fakeFetcher{results: map[int64]map[string]thingiverse.Result{42: results}}
	d := newTestDriver(s, f, []int64{42})

	require.NoError(t, d.Run(context.Background()))

	result, err := s.Query(context.Background(),
		"SELECT added_images_count, average_download_count FROM things WHERE id = 42")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.EqualValues(t, 3, result.Rows[0][0], "missing files payload counts as empty")
	require.EqualValues(t, 0, result.Rows[0][1])
}

func TestSweepResumesFromLastIngestedID(t *testing.T) {
	s := openTestStore(t)

	// Simulate a prior sweep that stopped after ingesting thing 20.
	require.NoError(t, s.IngestThing(context.Background(), &store.Records{
		Creator: store.Creator{ID: 7},
		Thing:   store.Thing{ID: 20, CreatorID: 7, Accessed: "2026-08-29T00:00:00Z"},
	}))

	f := &fakeFetcher{}
	d := newTestDriver(s, f, []int64{10, 20, 30})

	require.NoError(t, d.Run(context.Background()))

	require.NotEmpty(t, f.calls)
	require.EqualValues(t, 20, f.calls[0].ThingID, "sweep must re-attempt the last ingested id, not restart")
	for _, c := range f.calls {
		require.NotEqualValues(t, 10, c.ThingID, "ids before the resume point must not be fetched")
	}
}

func TestSweepFailsWhenResumeIDMissing(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.IngestThing(context.Background(), &store.Records{
		Creator: store.Creator{ID: 7},
		Thing:   store.Thing{ID: 99, CreatorID: 7, Accessed: "2026-08-29T00:00:00Z"},
	}))

	d := newTestDriver(s, &fakeFetcher{}, []int64{10, 20, 30})

	err := d.Run(context.Background())
	require.ErrorIs(t, err, ErrResumeIDNotFound)
}

func TestSweepIsInterruptibleBetweenItems(t *testing.T) {
	s := openTestStore(t)
	d := newTestDriver(s, &fakeFetcher{}, []int64{10, 20, 30})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSweepIdempotentAcrossRuns(t *testing.T) {
	s := openTestStore(t)
	f := &fakeFetcher{results: map[int64]map[string]thingiverse.Result{42: thing42Results()}}
	d := newTestDriver(s, f, []int64{42})

	require.NoError(t, d.Run(context.Background()))
	require.NoError(t, d.Run(context.Background()))

	counts, err := s.Counts(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, counts["things"])
	require.EqualValues(t, 2, counts["tags"])
}

func asString(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	s, _ := v.(string)
	return s
}
