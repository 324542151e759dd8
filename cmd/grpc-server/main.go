package main

import (
	"context"
	"flag"
	"net"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"google.golang.org/grpc"

	"vrstore/internal/catalog"
	"vrstore/internal/grpcserver"
	"vrstore/pkg/utils"
)

func main() {
	configPath := flag.String("config", "vrstore.json5", "config file (json5)")
	flag.Parse()

	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("load config failed", "err", err)
	}
	logger := utils.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := catalog.Open(ctx, cfg.Store, nil)
	if err != nil {
		logger.Fatal("open catalog failed", "backend", cfg.Store.Backend, "err", err)
	}
	defer store.Close()

	listener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("grpc listen failed", "addr", cfg.GRPCAddr, "err", err)
	}

	svc := grpcserver.NewServer(store, logger)
	gs := grpc.NewServer()
	svc.Register(gs)
	go svc.Watch(ctx)

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		gs.GracefulStop()
	}()

	logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
	if err := gs.Serve(listener); err != nil {
		logger.Fatal("grpc server stopped", "err", err)
	}
}
