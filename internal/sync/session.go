package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"watchlog/internal/logging"
	"watchlog/internal/metrics"
	"watchlog/internal/period"
	"watchlog/internal/record"
	"watchlog/internal/sample"
	"watchlog/pkg/models"
)

// Cache keys of the local store.
const (
	KeyTitles     = "watchlog.titles"
	KeyCharacters = "watchlog.favoriteCharacters"
)

var (
	ErrTitleNotFound     = errors.New("title not found")
	ErrCharacterNotFound = errors.New("character not found")
	ErrDuplicateID       = errors.New("id already in use")
	ErrReservedID        = errors.New("id is in the sample data range")
	ErrNoRemote          = errors.New("no remote store configured")
)

// Source is where the session's collection lives.
type Source int

const (
	SourceNone Source = iota
	SourceLocal
	SourceRemote
)

func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceRemote:
		return "remote"
	default:
		return "none"
	}
}

// LocalCache is a device-local key/value store.
type LocalCache interface {
	Read(key string) ([]byte, bool, error)
	Write(key string, value []byte) error
	Remove(key string) error
}

// RemoteStore is the row-oriented store of signed-in users. Every call is
// independent; the session never groups writes into a transaction.
type RemoteStore interface {
	SelectAll(ctx context.Context, ownerID string) ([]models.TitleRow, error)
	Insert(ctx context.Context, row models.TitleRow) error
	Update(ctx context.Context, id int64, ownerID string, fields map[string]any) error
	Delete(ctx context.Context, id int64, ownerID string) error
}

// AuthState is the signal that picks the session source.
type AuthState struct {
	Authenticated bool
	OwnerID       string
}

// Session owns the in-memory collection for one user session.
//
// While Local, every mutation rewrites the cached collection when its
// serialized form changed. While Remote, mutations apply in memory first and
// are then mirrored to the remote store; a failed remote write is logged and
// the in-memory change is kept.
type Session struct {
	mu sync.Mutex

	cache  LocalCache
	remote RemoteStore
	now    func() time.Time

	source  Source
	owner   string
	periods []models.Period
	chars   []models.Character

	// last bytes written to (or read from) the cache, per key
	written map[string][]byte
}

// NewSession builds a session over a local cache and an optional remote store.
func NewSession(cache LocalCache, remote RemoteStore) *Session {
	return &Session{
		cache:   cache,
		remote:  remote,
		now:     time.Now,
		written: make(map[string][]byte),
	}
}

// Enter (re)loads the collection for auth. It is called once at startup and
// again on every authentication change; the previous state is dropped
// without merging.
func (s *Session) Enter(ctx context.Context, auth AuthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.periods = nil
	s.owner = ""

	if auth.Authenticated {
		if s.remote == nil {
			s.source = SourceNone
			return ErrNoRemote
		}
		s.source = SourceRemote
		s.owner = auth.OwnerID
		s.periods = s.loadRemote(ctx)
	} else {
		s.source = SourceLocal
		s.periods = s.loadLocalTitles()
	}
	s.chars = s.loadLocalCharacters()

	logging.Info().
		Str("source", s.source.String()).
		Str("owner", s.owner).
		Int("periods", len(s.periods)).
		Msg("session loaded")
	return nil
}

func (s *Session) loadRemote(ctx context.Context) []models.Period {
	rows, err := s.remote.SelectAll(ctx, s.owner)
	if err != nil {
		metrics.LoadFailures.WithLabelValues("remote").Inc()
		logging.Warn().Err(err).Str("owner", s.owner).Msg("remote load failed, starting empty")
		return nil
	}
	return BucketRows(rows)
}

func (s *Session) loadLocalTitles() []models.Period {
	var periods []models.Period
	if !s.readLocal(KeyTitles, &periods) {
		return nil
	}
	if sample.IsSampleData(sample.TitleIDs(periods)) {
		s.purge(KeyTitles)
		return nil
	}
	return normalize(periods)
}

func (s *Session) loadLocalCharacters() []models.Character {
	var chars []models.Character
	if !s.readLocal(KeyCharacters, &chars) {
		return nil
	}
	if sample.IsSampleData(sample.CharacterIDs(chars)) {
		s.purge(KeyCharacters)
		return nil
	}
	return chars
}

// readLocal decodes key into v. It reports false when the key is absent or
// unreadable; malformed content is logged and treated as empty.
func (s *Session) readLocal(key string, v any) bool {
	if s.cache == nil {
		return false
	}
	raw, ok, err := s.cache.Read(key)
	if err != nil {
		metrics.LoadFailures.WithLabelValues("local").Inc()
		logging.Warn().Err(err).Str("key", key).Msg("cache read failed, starting empty")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		metrics.LoadFailures.WithLabelValues("local").Inc()
		logging.Warn().Err(err).Str("key", key).Msg("cached collection is malformed, starting empty")
		return false
	}
	s.written[key] = raw
	return true
}

func (s *Session) purge(key string) {
	metrics.SamplePurges.WithLabelValues(key).Inc()
	logging.Info().Str("key", key).Msg("discarding bundled sample data")
	delete(s.written, key)
	if err := s.cache.Remove(key); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("failed to clear sample data")
	}
}

// persist writes v under key unless its serialized form equals the last
// write.
func (s *Session) persist(key string, v any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		metrics.CacheWrites.WithLabelValues(key, "failed").Inc()
		logging.Error().Err(err).Str("key", key).Msg("encode collection")
		return
	}
	if prev, ok := s.written[key]; ok && bytes.Equal(prev, raw) {
		metrics.CacheWrites.WithLabelValues(key, "skipped").Inc()
		return
	}
	if err := s.cache.Write(key, raw); err != nil {
		metrics.CacheWrites.WithLabelValues(key, "failed").Inc()
		logging.Warn().Err(err).Str("key", key).Msg("cache write failed")
		return
	}
	s.written[key] = raw
	metrics.CacheWrites.WithLabelValues(key, "written").Inc()
}

// commit persists the title collection when the session is local.
func (s *Session) commit() {
	if s.source == SourceLocal {
		s.persist(KeyTitles, s.periods)
	}
}

func (s *Session) remoteFailed(op string, id int64, err error) {
	metrics.RemoteWriteFailures.WithLabelValues(op).Inc()
	logging.Warn().Err(err).
		Str("op", op).
		Str("owner", s.owner).
		Int64("title_id", id).
		Msg("remote write failed, keeping local change")
}

func (s *Session) Source() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *Session) OwnerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Periods returns a copy of the collection in display order.
func (s *Session) Periods() []models.Period {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.ClonePeriods(s.periods)
}

// Titles returns every title in display order.
func (s *Session) Titles() []models.Title {
	return models.Flatten(s.Periods())
}

// Find returns the title with id and the label of its period.
func (s *Session) Find(id int64) (models.Title, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pi, ti, ok := s.locate(id)
	if !ok {
		return models.Title{}, "", false
	}
	return s.periods[pi].Titles[ti].Clone(), s.periods[pi].Label, true
}

func (s *Session) locate(id int64) (int, int, bool) {
	for pi, p := range s.periods {
		for ti, t := range p.Titles {
			if t.ID == id {
				return pi, ti, true
			}
		}
	}
	return 0, 0, false
}

func (s *Session) nextID(taken func(int64) bool) int64 {
	id := s.now().UnixMilli()
	for taken(id) || sample.IsReserved(id) {
		id++
	}
	return id
}

func (s *Session) titleTaken(id int64) bool {
	_, _, ok := s.locate(id)
	return ok
}

func labelOrUnclassified(label string) string {
	if label = strings.TrimSpace(label); label == "" {
		return period.Unclassified
	}
	return label
}

// insert appends t to the period labelled label, creating it if needed.
func (s *Session) insert(label string, t models.Title) {
	for i := range s.periods {
		if s.periods[i].Label == label {
			s.periods[i].Titles = append(s.periods[i].Titles, t)
			return
		}
	}
	s.periods = append(s.periods, models.Period{Label: label, Titles: []models.Title{t}})
	period.Sort(s.periods)
}

// detach removes the title at (pi, ti) and drops its period once empty.
func (s *Session) detach(pi, ti int) {
	p := &s.periods[pi]
	p.Titles = slices.Delete(p.Titles, ti, ti+1)
	if len(p.Titles) == 0 {
		s.periods = slices.Delete(s.periods, pi, pi+1)
	}
}

// AddTitle records t under label. A zero id is replaced by a fresh one.
// The stored title is returned.
func (s *Session) AddTitle(ctx context.Context, label string, t models.Title) (models.Title, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	label = labelOrUnclassified(label)
	switch {
	case t.ID == 0:
		t.ID = s.nextID(s.titleTaken)
	case sample.IsReserved(t.ID):
		return models.Title{}, fmt.Errorf("add title %d: %w", t.ID, ErrReservedID)
	case s.titleTaken(t.ID):
		return models.Title{}, fmt.Errorf("add title %d: %w", t.ID, ErrDuplicateID)
	}
	row := record.ToRow(t, label, s.owner)
	t = record.ToEntity(row)

	s.insert(label, t)
	s.commit()

	if s.source == SourceRemote {
		if err := s.remote.Insert(ctx, row); err != nil {
			s.remoteFailed("insert", t.ID, err)
		}
	}
	return t.Clone(), nil
}

// UpdateTitle applies fn to a copy of the title and stores the result.
// Only the changed columns are sent to the remote store.
func (s *Session) UpdateTitle(ctx context.Context, id int64, fn func(*models.Title)) (models.Title, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pi, ti, ok := s.locate(id)
	if !ok {
		return models.Title{}, fmt.Errorf("update title %d: %w", id, ErrTitleNotFound)
	}
	label := s.periods[pi].Label
	current := s.periods[pi].Titles[ti]

	next := current.Clone()
	fn(&next)
	next.ID = id

	before := record.ToRow(current, label, s.owner)
	after := record.ToRow(next, label, s.owner)
	next = record.ToEntity(after)

	s.periods[pi].Titles[ti] = next
	s.commit()

	if s.source == SourceRemote {
		if fields := record.Diff(before, after); len(fields) > 0 {
			if err := s.remote.Update(ctx, id, s.owner, fields); err != nil {
				s.remoteFailed("update", id, err)
			}
		}
	}
	return next.Clone(), nil
}

// MoveTitle moves a title to another period.
func (s *Session) MoveTitle(ctx context.Context, id int64, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pi, ti, ok := s.locate(id)
	if !ok {
		return fmt.Errorf("move title %d: %w", id, ErrTitleNotFound)
	}
	label = labelOrUnclassified(label)
	if s.periods[pi].Label == label {
		return nil
	}
	t := s.periods[pi].Titles[ti]
	s.detach(pi, ti)
	s.insert(label, t)
	s.commit()

	if s.source == SourceRemote {
		fields := map[string]any{record.ColSeason: label}
		if err := s.remote.Update(ctx, id, s.owner, fields); err != nil {
			s.remoteFailed("update", id, err)
		}
	}
	return nil
}

// RemoveTitle deletes a title. An emptied period disappears.
func (s *Session) RemoveTitle(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pi, ti, ok := s.locate(id)
	if !ok {
		return fmt.Errorf("remove title %d: %w", id, ErrTitleNotFound)
	}
	s.detach(pi, ti)
	s.commit()

	if s.source == SourceRemote {
		if err := s.remote.Delete(ctx, id, s.owner); err != nil {
			s.remoteFailed("delete", id, err)
		}
	}
	return nil
}

// Characters returns the favorite-character list.
func (s *Session) Characters() []models.Character {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.chars)
}

// AddCharacter appends c to the favorite list, assigning an id when zero.
// The list always lives in the local cache.
func (s *Session) AddCharacter(c models.Character) (models.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := func(id int64) bool {
		return slices.ContainsFunc(s.chars, func(x models.Character) bool { return x.ID == id })
	}
	switch {
	case c.ID == 0:
		c.ID = s.nextID(taken)
	case sample.IsReserved(c.ID):
		return models.Character{}, fmt.Errorf("add character %d: %w", c.ID, ErrReservedID)
	case taken(c.ID):
		return models.Character{}, fmt.Errorf("add character %d: %w", c.ID, ErrDuplicateID)
	}
	s.chars = append(s.chars, c)
	s.persist(KeyCharacters, s.chars)
	return c, nil
}

func (s *Session) RemoveCharacter(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.chars, func(c models.Character) bool { return c.ID == id })
	if i < 0 {
		return fmt.Errorf("remove character %d: %w", id, ErrCharacterNotFound)
	}
	s.chars = slices.Delete(s.chars, i, i+1)
	s.persist(KeyCharacters, s.chars)
	return nil
}
