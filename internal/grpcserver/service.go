package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"watchlog/internal/series"
	"watchlog/internal/stats"
	"watchlog/pkg/models"
)

const serviceName = "watchlog.LibraryService"

const (
	methodListPeriods = "/" + serviceName + "/ListPeriods"
	methodListSeries  = "/" + serviceName + "/ListSeries"
	methodGetStats    = "/" + serviceName + "/GetStats"
)

type OwnerRequest struct {
	UserID string `json:"user_id"`
}

type StatsRequest struct {
	UserID string `json:"user_id"`
	Top    int32  `json:"top"`
}

type PeriodsResponse struct {
	Periods []models.Period `json:"periods"`
}

// LibraryServiceServer is the read-only view service over a user's log.
type LibraryServiceServer interface {
	ListPeriods(context.Context, *OwnerRequest) (*PeriodsResponse, error)
	ListSeries(context.Context, *OwnerRequest) (*series.Result, error)
	GetStats(context.Context, *StatsRequest) (*stats.Summary, error)
}

func RegisterLibraryServiceServer(s grpc.ServiceRegistrar, srv LibraryServiceServer) {
	s.RegisterService(&libraryServiceDesc, srv)
}

var libraryServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LibraryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListPeriods", Handler: listPeriodsHandler},
		{MethodName: "ListSeries", Handler: listSeriesHandler},
		{MethodName: "GetStats", Handler: getStatsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "watchlog/library.json",
}

func listPeriodsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(OwnerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LibraryServiceServer).ListPeriods(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListPeriods}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(LibraryServiceServer).ListPeriods(ctx, req.(*OwnerRequest))
	})
}

func listSeriesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(OwnerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LibraryServiceServer).ListSeries(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListSeries}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(LibraryServiceServer).ListSeries(ctx, req.(*OwnerRequest))
	})
}

func getStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LibraryServiceServer).GetStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetStats}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(LibraryServiceServer).GetStats(ctx, req.(*StatsRequest))
	})
}

// LibraryClient calls LibraryService over a connection using the JSON codec.
type LibraryClient struct {
	cc grpc.ClientConnInterface
}

func NewLibraryClient(cc grpc.ClientConnInterface) *LibraryClient {
	return &LibraryClient{cc: cc}
}

func (c *LibraryClient) ListPeriods(ctx context.Context, in *OwnerRequest, opts ...grpc.CallOption) (*PeriodsResponse, error) {
	out := new(PeriodsResponse)
	if err := c.cc.Invoke(ctx, methodListPeriods, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LibraryClient) ListSeries(ctx context.Context, in *OwnerRequest, opts ...grpc.CallOption) (*series.Result, error) {
	out := new(series.Result)
	if err := c.cc.Invoke(ctx, methodListSeries, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LibraryClient) GetStats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (*stats.Summary, error) {
	out := new(stats.Summary)
	if err := c.cc.Invoke(ctx, methodGetStats, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
