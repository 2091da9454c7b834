package tracker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	api "github.com/oshokin/uwb-tracker/internal/api/grpc/tracking"
	"github.com/oshokin/uwb-tracker/internal/api/rest"
	"github.com/oshokin/uwb-tracker/internal/config"
	"github.com/oshokin/uwb-tracker/internal/engine"
	"github.com/oshokin/uwb-tracker/internal/logger"
	"github.com/oshokin/uwb-tracker/internal/metrics"
	pb "github.com/oshokin/uwb-tracker/internal/pb/v1"
	"github.com/oshokin/uwb-tracker/internal/repository/roster"
	"github.com/oshokin/uwb-tracker/internal/transport/mqtt"
	"github.com/oshokin/uwb-tracker/internal/version"
)

// Options controls the uwb-tracker process.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// GRPCListen overrides the gRPC listen address.
	GRPCListen string
	// HTTPListen overrides the HTTP listen address.
	HTTPListen string
	// LogLevel overrides the configured log level.
	LogLevel string
	// MQTTClientFactory replaces the paho client, nil uses the real one.
	MQTTClientFactory mqtt.ClientFactory
}

// Run starts every tracker component and blocks until ctx is canceled or one
// component fails.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "uwb-tracker")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	applyLogLevel(ctx, cfg.LogLevel, opts.LogLevel)

	grpcListen, err := resolveListenAddress(cfg.GRPCAddress, opts.GRPCListen)
	if err != nil {
		return fmt.Errorf("resolve grpc listen address: %w", err)
	}

	httpListen := opts.HTTPListen
	if httpListen == "" && cfg.HTTPAddress != "" {
		if httpListen, err = resolveListenAddress(cfg.HTTPAddress, ""); err != nil {
			return fmt.Errorf("resolve http listen address: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	collector, err := metrics.NewCollector(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	repo, err := roster.Open(ctx, cfg.Roster)
	if err != nil {
		return fmt.Errorf("open roster: %w", err)
	}

	defer func() {
		_ = repo.Close()
	}()

	eng := engine.New(engine.Options{
		Bounds:       cfg.Bounds(),
		QueueSize:    cfg.Engine.QueueSize,
		DebugLogSize: cfg.Engine.DebugLogSize,
		AnchorTTL:    cfg.Engine.AnchorTTL,
		Recorder:     collector,
	})

	rosterReloader := newReloader(repo, eng, collector, cfg.Roster.ReloadInterval)

	lc := net.ListenConfig{}

	grpcListener, err := lc.Listen(ctx, "tcp", grpcListen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", grpcListen, err)
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(collector.UnaryServerInterceptor()))
	pb.RegisterTrackingServiceServer(grpcServer, api.NewServer(eng.Store()))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eng.Run(gctx)
	})

	// The first roster is applied before observations start flowing.
	if err = rosterReloader.reload(gctx); err != nil {
		logger.ErrorKV(ctx, "Initial roster load failed, starting empty", "error", err)
	}

	g.Go(func() error {
		return rosterReloader.Run(gctx)
	})

	g.Go(func() error {
		subscriber := mqtt.NewSubscriber(cfg.MQTT, cfg.Timeout, eng, opts.MQTTClientFactory)
		return subscriber.Run(gctx)
	})

	g.Go(func() error {
		return serveGRPC(gctx, grpcServer, grpcListener)
	})

	if httpListen != "" {
		gin.SetMode(gin.ReleaseMode)

		router := rest.NewRouter(ctx, rest.Dependencies{
			Reader:   eng.Store(),
			Debug:    eng.DebugLog(),
			Roster:   repo,
			Reloader: rosterReloader,
			Auth:     cfg.Auth,
			Metrics:  collector.Handler(),
		})

		g.Go(func() error {
			return serveHTTP(gctx, httpListen, router, cfg.Timeout)
		})
	}

	logger.InfoKV(ctx, "Tracker started",
		"version", version.Short(),
		"grpc_address", grpcListen,
		"http_address", httpListen,
		"broker", cfg.MQTT.Broker,
		"topic", cfg.MQTT.Topic,
		"roster_backend", cfg.Roster.Backend)

	if err = g.Wait(); err != nil {
		return err
	}

	logger.Info(ctx, "Tracker stopped")

	return nil
}

// applyLogLevel sets the global level, the flag wins over the file.
func applyLogLevel(ctx context.Context, configured, override string) {
	raw := configured
	if override != "" {
		raw = override
	}

	if raw == "" {
		return
	}

	level, ok := logger.ParseLogLevel(raw)
	if !ok {
		logger.WarnKV(ctx, "Unknown log level, keeping current", "level", raw)
		return
	}

	logger.SetLevel(level)
}

// serveGRPC serves until ctx ends, then stops gracefully.
func serveGRPC(ctx context.Context, server *grpc.Server, lis net.Listener) error {
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		server.GracefulStop()
		close(done)
	}()

	if err := server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// serveHTTP serves the gin router until ctx ends.
func serveHTTP(ctx context.Context, addr string, router *gin.Engine, timeout time.Duration) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: timeout,
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done
	logger.Info(ctx, "HTTP server stopped")

	return nil
}
