package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchlog/internal/auth"
	"watchlog/internal/catalog"
	"watchlog/internal/library"
	"watchlog/internal/record"
	wsync "watchlog/internal/sync"
	"watchlog/pkg/database"
	"watchlog/pkg/models"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "api.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	users := auth.NewRepo(db)
	tokens := auth.TokenService{Secret: []byte("test"), Issuer: "watchlog", Duration: time.Hour}

	r := gin.New()
	auth.NewHandler(users, tokens).RegisterRoutes(r.Group("/auth"))
	protected := r.Group("/users", auth.AuthMiddleware(tokens, users))
	library.NewHandler(library.NewRepo(db), catalog.NewRepo(db), nil).RegisterRoutes(protected)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func signUp(t *testing.T, c *Client, name string) (*Client, string) {
	t.Helper()
	res, err := c.Register(context.Background(), name, name+"@example.com", "correct-horse")
	require.NoError(t, err)
	return c.WithToken(res.Token), res.User.ID
}

func TestClient_RemoteStoreRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	anon := New(Config{BaseURL: srv.URL})
	c, owner := signUp(t, anon, "himmel")
	ctx := context.Background()

	title := models.Title{ID: 1_700_000_000_000, Name: "葬送のフリーレン", Rating: 5, Tags: []string{"fantasy"}}
	require.NoError(t, c.Insert(ctx, record.ToRow(title, "2023年秋", owner)))

	before := record.ToRow(title, "2023年秋", owner)
	next := title.Clone()
	next.Watched = true
	next.Tags = append(next.Tags, "journey")
	after := record.ToRow(next, "2023年秋", owner)
	require.NoError(t, c.Update(ctx, title.ID, owner, record.Diff(before, after)))

	rows, err := c.SelectAll(ctx, owner)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	got := record.ToEntity(rows[0])
	assert.True(t, got.Watched)
	assert.Equal(t, []string{"fantasy", "journey"}, got.Tags)
	assert.Equal(t, 5, got.Rating)

	require.NoError(t, c.Delete(ctx, title.ID, owner))
	require.NoError(t, c.Delete(ctx, title.ID, owner), "deleting twice is fine")

	rows, err = c.SelectAll(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestClient_Unauthorized(t *testing.T) {
	srv := newTestServer(t)
	c := New(Config{BaseURL: srv.URL, Token: "bogus"})

	_, err := c.SelectAll(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = New(Config{BaseURL: srv.URL}).Login(context.Background(), "nobody@example.com", "whatever-pass")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_LogoutRevokesToken(t *testing.T) {
	srv := newTestServer(t)
	c, owner := signUp(t, New(Config{BaseURL: srv.URL}), "eisen")
	ctx := context.Background()

	require.NoError(t, c.Logout(ctx))
	_, err := c.SelectAll(ctx, owner)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_ValidationErrorsDoNotTripBreaker(t *testing.T) {
	srv := newTestServer(t)
	c, owner := signUp(t, New(Config{BaseURL: srv.URL, FailureThreshold: 1}), "heiter")
	ctx := context.Background()

	err := c.Update(ctx, 42, owner, map[string]any{"rating": 9})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, "closed", c.BreakerState())
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := New(Config{BaseURL: srv.URL, FailureThreshold: 2, OpenTimeout: time.Minute})
	ctx := context.Background()

	for range 2 {
		_, err := c.SelectAll(ctx, "")
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusInternalServerError, se.Code)
	}

	_, err := c.SelectAll(ctx, "")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load(), "open breaker short-circuits")
	assert.Equal(t, "open", c.BreakerState())
}

func TestClient_DrivesRemoteSession(t *testing.T) {
	srv := newTestServer(t)
	c, owner := signUp(t, New(Config{BaseURL: srv.URL}), "fern")
	ctx := context.Background()

	s := wsync.NewSession(nil, c)
	require.NoError(t, s.Enter(ctx, wsync.AuthState{Authenticated: true, OwnerID: owner}))
	assert.Equal(t, wsync.SourceRemote, s.Source())

	added, err := s.AddTitle(ctx, "2024年冬", models.Title{Name: "薬屋のひとりごと"})
	require.NoError(t, err)
	_, err = s.UpdateTitle(ctx, added.ID, func(t *models.Title) { t.Rating = 4 })
	require.NoError(t, err)
	require.NoError(t, s.MoveTitle(ctx, added.ID, "2023年秋"))

	fresh := wsync.NewSession(nil, c)
	require.NoError(t, fresh.Enter(ctx, wsync.AuthState{Authenticated: true, OwnerID: owner}))
	got, label, ok := fresh.Find(added.ID)
	require.True(t, ok)
	assert.Equal(t, "2023年秋", label)
	assert.Equal(t, 4, got.Rating)
}

func TestTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "token")

	tok, err := LoadToken(path)
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, SaveToken(path, "abc"))
	tok, err = LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	require.NoError(t, RemoveToken(path))
	require.NoError(t, RemoveToken(path))
}
