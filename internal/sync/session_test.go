package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"watchlog/internal/period"
	"watchlog/internal/record"
	"watchlog/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memCache struct {
	data    map[string][]byte
	writes  int
	removes int
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Read(key string) ([]byte, bool, error) {
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Write(key string, value []byte) error {
	c.writes++
	c.data[key] = value
	return nil
}

func (c *memCache) Remove(key string) error {
	c.removes++
	delete(c.data, key)
	return nil
}

func (c *memCache) put(t *testing.T, key string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	c.data[key] = b
}

type update struct {
	id     int64
	fields map[string]any
}

type fakeRemote struct {
	rows    []models.TitleRow
	loadErr error
	err     error

	inserts []models.TitleRow
	updates []update
	deletes []int64
}

func (r *fakeRemote) SelectAll(_ context.Context, ownerID string) ([]models.TitleRow, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	var out []models.TitleRow
	for _, row := range r.rows {
		if row.UserID == ownerID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeRemote) Insert(_ context.Context, row models.TitleRow) error {
	r.inserts = append(r.inserts, row)
	return r.err
}

func (r *fakeRemote) Update(_ context.Context, id int64, _ string, fields map[string]any) error {
	r.updates = append(r.updates, update{id: id, fields: fields})
	return r.err
}

func (r *fakeRemote) Delete(_ context.Context, id int64, _ string) error {
	r.deletes = append(r.deletes, id)
	return r.err
}

func newSession(cache *memCache, remote *fakeRemote) *Session {
	var rs RemoteStore
	if remote != nil {
		rs = remote
	}
	s := NewSession(cache, rs)
	s.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return s
}

func labels(periods []models.Period) []string {
	out := make([]string, len(periods))
	for i, p := range periods {
		out[i] = p.Label
	}
	return out
}

func local() AuthState { return AuthState{} }

func signedIn(owner string) AuthState {
	return AuthState{Authenticated: true, OwnerID: owner}
}

func TestEnterLocal_NoCache(t *testing.T) {
	cache := newMemCache()
	s := newSession(cache, nil)

	require.NoError(t, s.Enter(context.Background(), local()))
	assert.Equal(t, SourceLocal, s.Source())
	assert.Empty(t, s.Periods())
	assert.Zero(t, cache.writes)
}

func TestEnterLocal_SampleDataIsPurged(t *testing.T) {
	cache := newMemCache()
	cache.put(t, KeyTitles, []models.Period{
		{Label: "2024年春", Titles: []models.Title{{ID: 2, Name: "demo"}, {ID: 1_700_000_000_123, Name: "real"}}},
	})
	s := newSession(cache, nil)

	require.NoError(t, s.Enter(context.Background(), local()))

	assert.Empty(t, s.Periods())
	_, ok := cache.data[KeyTitles]
	assert.False(t, ok, "cache key must be cleared")
	assert.Equal(t, 1, cache.removes)
}

func TestEnterLocal_CleanCollectionLeavesStorageAlone(t *testing.T) {
	cache := newMemCache()
	cache.put(t, KeyTitles, []models.Period{
		{Label: "2023年冬", Titles: []models.Title{{ID: 1_600_000_000_000, Name: "a"}}},
		{Label: "2024年冬", Titles: []models.Title{{ID: 1_600_000_000_001, Name: "b"}}},
		{Label: "2023年秋", Titles: []models.Title{{ID: 1_600_000_000_002, Name: "c"}}},
	})
	before := string(cache.data[KeyTitles])
	s := newSession(cache, nil)

	require.NoError(t, s.Enter(context.Background(), local()))

	assert.Equal(t, []string{"2024年冬", "2023年秋", "2023年冬"}, labels(s.Periods()))
	assert.Zero(t, cache.writes)
	assert.Zero(t, cache.removes)
	assert.Equal(t, before, string(cache.data[KeyTitles]))
}

func TestEnterLocal_MalformedCacheStartsEmpty(t *testing.T) {
	cache := newMemCache()
	cache.data[KeyTitles] = []byte(`{"not":"a list"`)
	s := newSession(cache, nil)

	require.NoError(t, s.Enter(context.Background(), local()))
	assert.Empty(t, s.Periods())

	_, err := s.AddTitle(context.Background(), "2024年春", models.Title{Name: "葬送のフリーレン"})
	require.NoError(t, err)

	var stored []models.Period
	require.NoError(t, json.Unmarshal(cache.data[KeyTitles], &stored))
	assert.Equal(t, []string{"2024年春"}, labels(stored))
}

func TestLocal_WritesOnlyWhenSerializedFormChanges(t *testing.T) {
	cache := newMemCache()
	s := newSession(cache, nil)
	ctx := context.Background()
	require.NoError(t, s.Enter(ctx, local()))

	added, err := s.AddTitle(ctx, "2024年春", models.Title{Name: "x", Rating: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.writes)

	_, err = s.UpdateTitle(ctx, added.ID, func(t *models.Title) { t.Rating = 3 })
	require.NoError(t, err)
	assert.Equal(t, 1, cache.writes, "unchanged collection must not be rewritten")

	_, err = s.UpdateTitle(ctx, added.ID, func(t *models.Title) { t.Rating = 5 })
	require.NoError(t, err)
	assert.Equal(t, 2, cache.writes)

	reloaded := newSession(cache, nil)
	require.NoError(t, reloaded.Enter(ctx, local()))
	got, label, ok := reloaded.Find(added.ID)
	require.True(t, ok)
	assert.Equal(t, "2024年春", label)
	assert.Equal(t, 5, got.Rating)
}

func TestAddTitle_AssignsIDsOutsideReservedRange(t *testing.T) {
	s := newSession(newMemCache(), nil)
	ctx := context.Background()
	require.NoError(t, s.Enter(ctx, local()))

	a, err := s.AddTitle(ctx, "", models.Title{Name: "a"})
	require.NoError(t, err)
	b, err := s.AddTitle(ctx, "", models.Title{Name: "b"})
	require.NoError(t, err)

	assert.Equal(t, int64(1_700_000_000_000), a.ID)
	assert.Equal(t, int64(1_700_000_000_001), b.ID)
	assert.Equal(t, []string{period.Unclassified}, labels(s.Periods()))
	assert.NotNil(t, a.Tags)

	_, err = s.AddTitle(ctx, "", models.Title{ID: 3, Name: "c"})
	assert.ErrorIs(t, err, ErrReservedID)
	_, err = s.AddTitle(ctx, "", models.Title{ID: a.ID, Name: "dup"})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestAddTitle_NewPeriodIsSorted(t *testing.T) {
	s := newSession(newMemCache(), nil)
	ctx := context.Background()
	require.NoError(t, s.Enter(ctx, local()))

	for _, label := range []string{"2023年夏", "2024年冬", "bogus", "2023年秋"} {
		_, err := s.AddTitle(ctx, label, models.Title{Name: label})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"2024年冬", "2023年秋", "2023年夏", "bogus"}, labels(s.Periods()))
}

func TestMoveAndRemove_DropEmptyPeriods(t *testing.T) {
	cache := newMemCache()
	s := newSession(cache, nil)
	ctx := context.Background()
	require.NoError(t, s.Enter(ctx, local()))

	a, err := s.AddTitle(ctx, "2024年春", models.Title{Name: "a"})
	require.NoError(t, err)
	b, err := s.AddTitle(ctx, "2024年夏", models.Title{Name: "b"})
	require.NoError(t, err)

	require.NoError(t, s.MoveTitle(ctx, a.ID, "2024年夏"))
	assert.Equal(t, []string{"2024年夏"}, labels(s.Periods()))
	assert.Len(t, s.Periods()[0].Titles, 2)

	require.NoError(t, s.RemoveTitle(ctx, b.ID))
	require.NoError(t, s.RemoveTitle(ctx, a.ID))
	assert.Empty(t, s.Periods())

	assert.ErrorIs(t, s.RemoveTitle(ctx, a.ID), ErrTitleNotFound)
	assert.ErrorIs(t, s.MoveTitle(ctx, a.ID, "2024年秋"), ErrTitleNotFound)
	_, err = s.UpdateTitle(ctx, a.ID, func(*models.Title) {})
	assert.ErrorIs(t, err, ErrTitleNotFound)
}

func TestPeriods_ReturnsCopy(t *testing.T) {
	s := newSession(newMemCache(), nil)
	ctx := context.Background()
	require.NoError(t, s.Enter(ctx, local()))
	a, err := s.AddTitle(ctx, "2024年春", models.Title{Name: "a", Tags: []string{"x"}})
	require.NoError(t, err)

	ps := s.Periods()
	ps[0].Titles[0].Name = "mutated"
	ps[0].Titles[0].Tags[0] = "mutated"

	got, _, _ := s.Find(a.ID)
	assert.Equal(t, "a", got.Name)
	assert.Equal(t, []string{"x"}, got.Tags)
}

func remoteRows(owner string) []models.TitleRow {
	return []models.TitleRow{
		record.ToRow(models.Title{ID: 10, Name: "鬼滅の刃 第1期", Rating: 4}, "2019年春", owner),
		record.ToRow(models.Title{ID: 11, Name: "鬼滅の刃 第2期"}, "2021年秋", owner),
		record.ToRow(models.Title{ID: 2, Name: "low id but remote"}, "2021年秋", owner),
		record.ToRow(models.Title{ID: 12, Name: "someone else"}, "2020年冬", "other"),
	}
}

func TestEnterRemote_BucketsAndSorts(t *testing.T) {
	remote := &fakeRemote{rows: remoteRows("u1")}
	s := newSession(newMemCache(), remote)

	require.NoError(t, s.Enter(context.Background(), signedIn("u1")))

	assert.Equal(t, SourceRemote, s.Source())
	assert.Equal(t, "u1", s.OwnerID())
	assert.Equal(t, []string{"2021年秋", "2019年春"}, labels(s.Periods()))
	_, _, ok := s.Find(2)
	assert.True(t, ok, "remote data is never treated as sample data")
}

func TestEnterRemote_LoadFailureStartsEmpty(t *testing.T) {
	remote := &fakeRemote{loadErr: errors.New("connection refused")}
	s := newSession(newMemCache(), remote)

	require.NoError(t, s.Enter(context.Background(), signedIn("u1")))
	assert.Equal(t, SourceRemote, s.Source())
	assert.Empty(t, s.Periods())
}

func TestEnterRemote_WithoutStore(t *testing.T) {
	s := newSession(newMemCache(), nil)
	assert.ErrorIs(t, s.Enter(context.Background(), signedIn("u1")), ErrNoRemote)
	assert.Equal(t, SourceNone, s.Source())
}

func TestRemote_UpdateSendsChangedFieldsOnly(t *testing.T) {
	cache := newMemCache()
	remote := &fakeRemote{rows: remoteRows("u1")}
	s := newSession(cache, remote)
	ctx := context.Background()
	require.NoError(t, s.Enter(ctx, signedIn("u1")))

	_, err := s.UpdateTitle(ctx, 10, func(t *models.Title) {
		t.Rating = 5
		t.Watched = true
	})
	require.NoError(t, err)

	require.Len(t, remote.updates, 1)
	assert.Equal(t, int64(10), remote.updates[0].id)
	assert.Equal(t, map[string]any{record.ColRating: 5, record.ColWatched: true}, remote.updates[0].fields)
	assert.Zero(t, cache.writes, "remote sessions do not write the title cache")

	_, err = s.UpdateTitle(ctx, 10, func(*models.Title) {})
	require.NoError(t, err)
	assert.Len(t, remote.updates, 1, "no-op updates are not sent")
}

func TestRemote_FailedWriteKeepsLocalChange(t *testing.T) {
	remote := &fakeRemote{rows: remoteRows("u1"), err: errors.New("503")}
	s := newSession(newMemCache(), remote)
	ctx := context.Background()
	require.NoError(t, s.Enter(ctx, signedIn("u1")))

	_, err := s.UpdateTitle(ctx, 11, func(t *models.Title) { t.Rating = 2 })
	require.NoError(t, err)
	got, _, _ := s.Find(11)
	assert.Equal(t, 2, got.Rating)

	added, err := s.AddTitle(ctx, "2024年春", models.Title{Name: "new"})
	require.NoError(t, err)
	_, _, ok := s.Find(added.ID)
	assert.True(t, ok)
	require.Len(t, remote.inserts, 1)
	assert.Equal(t, "u1", remote.inserts[0].UserID)
	assert.Equal(t, "2024年春", remote.inserts[0].Season)

	require.NoError(t, s.RemoveTitle(ctx, 10))
	_, _, ok = s.Find(10)
	assert.False(t, ok)
	assert.Equal(t, []int64{10}, remote.deletes)
}

func TestRemote_MoveWritesSeasonOnly(t *testing.T) {
	remote := &fakeRemote{rows: remoteRows("u1")}
	s := newSession(newMemCache(), remote)
	ctx := context.Background()
	require.NoError(t, s.Enter(ctx, signedIn("u1")))

	require.NoError(t, s.MoveTitle(ctx, 10, "2021年秋"))

	assert.Equal(t, []string{"2021年秋"}, labels(s.Periods()))
	require.Len(t, remote.updates, 1)
	assert.Equal(t, map[string]any{record.ColSeason: "2021年秋"}, remote.updates[0].fields)

	require.NoError(t, s.MoveTitle(ctx, 10, "2021年秋"))
	assert.Len(t, remote.updates, 1, "moving to the same period is a no-op")
}

func TestSignInAbandonsLocalState(t *testing.T) {
	cache := newMemCache()
	remote := &fakeRemote{rows: remoteRows("u1")}
	s := newSession(cache, remote)
	ctx := context.Background()

	require.NoError(t, s.Enter(ctx, local()))
	localOnly, err := s.AddTitle(ctx, "2024年春", models.Title{Name: "offline"})
	require.NoError(t, err)
	stored := string(cache.data[KeyTitles])

	require.NoError(t, s.Enter(ctx, signedIn("u1")))

	_, _, ok := s.Find(localOnly.ID)
	assert.False(t, ok, "local titles are not merged into the remote collection")
	assert.Len(t, s.Titles(), 3)
	assert.Empty(t, remote.inserts)
	assert.Equal(t, stored, string(cache.data[KeyTitles]), "cached local collection is left in place")

	require.NoError(t, s.Enter(ctx, local()))
	_, _, ok = s.Find(localOnly.ID)
	assert.True(t, ok)
}

func TestCharacters(t *testing.T) {
	cache := newMemCache()
	cache.put(t, KeyCharacters, []models.Character{{ID: 1, Name: "demo"}})
	s := newSession(cache, nil)
	ctx := context.Background()

	require.NoError(t, s.Enter(ctx, local()))
	assert.Empty(t, s.Characters())
	_, ok := cache.data[KeyCharacters]
	assert.False(t, ok)

	c, err := s.AddCharacter(models.Character{Name: "フリーレン", Source: "葬送のフリーレン"})
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000_000), c.ID)

	reloaded := newSession(cache, nil)
	require.NoError(t, reloaded.Enter(ctx, local()))
	assert.Equal(t, []models.Character{c}, reloaded.Characters())

	require.NoError(t, reloaded.RemoveCharacter(c.ID))
	assert.Empty(t, reloaded.Characters())
	assert.ErrorIs(t, reloaded.RemoveCharacter(c.ID), ErrCharacterNotFound)
}

func TestBucketRows(t *testing.T) {
	rows := []models.TitleRow{
		{ID: 100, Season: "", Title: "no label"},
		{ID: 101, Season: "2022年夏", Title: "a"},
		{ID: 102, Season: "2024年冬", Title: "b"},
		{ID: 103, Season: "2022年夏", Title: "c"},
	}

	got := BucketRows(rows)

	assert.Equal(t, []string{"2024年冬", "2022年夏", period.Unclassified}, labels(got))
	require.Len(t, got[1].Titles, 2)
	assert.Equal(t, "a", got[1].Titles[0].Name)
	assert.Equal(t, "c", got[1].Titles[1].Name)
	assert.Empty(t, BucketRows(nil))
}
