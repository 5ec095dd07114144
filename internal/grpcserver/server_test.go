package grpcserver

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"watchlog/internal/library"
	"watchlog/internal/record"
	"watchlog/pkg/database"
	"watchlog/pkg/models"
)

func newTestClient(t *testing.T) (*LibraryClient, *library.Repo) {
	t.Helper()

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "grpc.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	repo := library.NewRepo(db)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor))
	RegisterLibraryServiceServer(srv, NewServer(repo))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewLibraryClient(conn), repo
}

func seed(t *testing.T, repo *library.Repo, owner string) {
	t.Helper()
	ctx := context.Background()
	for _, r := range []struct {
		season string
		title  models.Title
	}{
		{"2019年春", models.Title{ID: 1_700_000_000_001, Name: "鬼滅の刃 第1期", SeriesName: "鬼滅の刃", Rating: 4, Tags: []string{"action"}}},
		{"2021年秋", models.Title{ID: 1_700_000_000_002, Name: "鬼滅の刃 第2期", SeriesName: "鬼滅の刃", Rating: 5, Tags: []string{"action"}}},
		{"2022年秋", models.Title{ID: 1_700_000_000_003, Name: "ぼっち・ざ・ろっく！", Tags: []string{"music"}}},
	} {
		require.NoError(t, repo.Insert(ctx, record.ToRow(r.title, r.season, owner)))
	}
}

func TestLibraryService(t *testing.T) {
	client, repo := newTestClient(t)
	seed(t, repo, "u1")
	ctx := context.Background()

	periods, err := client.ListPeriods(ctx, &OwnerRequest{UserID: "u1"})
	require.NoError(t, err)
	var labels []string
	for _, p := range periods.Periods {
		labels = append(labels, p.Label)
	}
	assert.Equal(t, []string{"2022年秋", "2021年秋", "2019年春"}, labels)

	res, err := client.ListSeries(ctx, &OwnerRequest{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, res.Series, 1)
	assert.Equal(t, "鬼滅の刃", res.Series[0].Key)
	require.Len(t, res.Series[0].Members, 2)
	assert.Equal(t, "鬼滅の刃 第1期", res.Series[0].Members[0].Name)
	require.Len(t, res.Standalone, 1)

	sum, err := client.GetStats(ctx, &StatsRequest{UserID: "u1", Top: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	assert.InDelta(t, 4.5, sum.RatedAverage, 1e-9)
	require.Len(t, sum.TopTags, 1)
	assert.Equal(t, "action", sum.TopTags[0].Name)
	assert.Equal(t, 2, sum.TopTags[0].Count)
}

func TestLibraryService_Errors(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.ListPeriods(ctx, &OwnerRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.GetStats(ctx, &StatsRequest{UserID: "u1", Top: 500})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	empty, err := client.ListPeriods(ctx, &OwnerRequest{UserID: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, empty.Periods)
}
