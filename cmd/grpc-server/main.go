package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"watchlog/internal/grpcserver"
	"watchlog/internal/library"
	"watchlog/internal/logging"
	"watchlog/pkg/database"
	"watchlog/pkg/utils"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := utils.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	db := database.MustOpen(database.Config{Path: cfg.DB.Path})
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logging.Fatal().Err(err).Msg("db migrate failed")
	}

	listener, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		logging.Fatal().Err(err).Str("addr", cfg.GRPC.Addr).Msg("grpc listen failed")
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.LoggingInterceptor))
	grpcserver.RegisterLibraryServiceServer(grpcServer, grpcserver.NewServer(library.NewRepo(db)))

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("shutting down grpc server")
		grpcServer.GracefulStop()
	}()

	logging.Info().Str("addr", cfg.GRPC.Addr).Msg("gRPC server listening")
	if err := grpcServer.Serve(listener); err != nil {
		logging.Error().Err(err).Msg("grpc server stopped")
	}
}
