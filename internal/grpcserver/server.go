package grpcserver

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"watchlog/internal/library"
	"watchlog/internal/logging"
	"watchlog/internal/series"
	"watchlog/internal/stats"
	"watchlog/internal/sync"
	"watchlog/internal/views"
	"watchlog/pkg/models"
)

const maxTopK = 50

type Server struct {
	Repo  *library.Repo
	Views *views.Registry
}

func NewServer(repo *library.Repo) *Server {
	return &Server{Repo: repo, Views: views.NewRegistry()}
}

func (s *Server) load(ctx context.Context, userID string) (string, []models.Period, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", nil, status.Error(codes.InvalidArgument, "user_id required")
	}
	rows, err := s.Repo.SelectAll(ctx, userID)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("owner", userID).Msg("select titles")
		return "", nil, status.Error(codes.Internal, "list failed")
	}
	periods := sync.BucketRows(rows)
	if periods == nil {
		periods = []models.Period{}
	}
	return userID, periods, nil
}

func (s *Server) ListPeriods(ctx context.Context, req *OwnerRequest) (*PeriodsResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	_, periods, err := s.load(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return &PeriodsResponse{Periods: periods}, nil
}

func (s *Server) ListSeries(ctx context.Context, req *OwnerRequest) (*series.Result, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	owner, periods, err := s.load(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	res := s.Views.For(owner).Series(periods)
	return &res, nil
}

func (s *Server) GetStats(ctx context.Context, req *StatsRequest) (*stats.Summary, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	if req.Top < 0 || req.Top > maxTopK {
		return nil, status.Errorf(codes.InvalidArgument, "top must be between 0 and %d", maxTopK)
	}
	owner, periods, err := s.load(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	sum := s.Views.For(owner).Summary(periods, int(req.Top))
	return &sum, nil
}

// LoggingInterceptor logs every unary call with its duration and status code.
func LoggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	id := logging.NewRequestID()
	ctx = logging.WithRequestID(ctx, id)
	start := time.Now()

	resp, err := handler(ctx, req)

	logging.Ctx(ctx).Info().
		Str("method", info.FullMethod).
		Str("code", status.Code(err).String()).
		Dur("took", time.Since(start)).
		Msg("grpc call")
	return resp, err
}
