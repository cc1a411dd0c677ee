package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LeJamon/goOfferd/internal/config"
	"github.com/LeJamon/goOfferd/internal/di"
	offerdlog "github.com/LeJamon/goOfferd/internal/log"
	"github.com/LeJamon/goOfferd/internal/rpc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds the graceful HTTP shutdown
const shutdownTimeout = 10 * time.Second

var (
	// Server flags
	port     int
	bindAddr string
)

// serverCmd represents the server command (default action)
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the offerd server",
	Long: `Start the offerd server which provides:
- HTTP JSON-RPC API endpoint
- WebSocket endpoint streaming market events
- Health check and Prometheus metrics endpoints

This is the default command when no subcommand is specified.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Set server as the default command
	rootCmd.RunE = runServer

	// Server-specific flags
	serverCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides rpc.port)")
	serverCmd.Flags().StringVar(&bindAddr, "bind", "", "address to bind to (overrides rpc.bind)")
}

// loadServerConfig reads the configuration and applies the command line
// overrides
func loadServerConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	if f := cmd.Flags().Lookup("port"); f != nil && f.Changed {
		cfg.RPC.Port = port
	}
	if f := cmd.Flags().Lookup("bind"); f != nil && f.Changed {
		cfg.RPC.Bind = bindAddr
	}
	return cfg, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadServerConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := offerdlog.New(offerdlog.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.ResolvePath(cfg.Log.File),
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	container := di.New()
	container.Register(di.ServiceLogger, logger)
	if err := di.NewProvider(container, cfg, Version).RegisterAll(); err != nil {
		return err
	}
	defer func() {
		if err := container.Close(); err != nil {
			logger.Error("failed to close services", zap.Error(err))
		}
	}()

	rpcServer, err := di.GetRPCServer(container)
	if err != nil {
		return err
	}
	wsServer, err := di.GetWebSocketServer(container)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.RPC.Address(),
		Handler:           rpc.NewHandler(rpcServer, wsServer),
		ReadHeaderTimeout: cfg.RPC.Timeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting offerd",
			zap.String("version", Version),
			zap.String("address", httpServer.Addr),
			zap.String("storage", cfg.Storage.Backend),
			zap.String("audit", cfg.Audit.Driver),
			zap.Int("methods", len(rpcServer.Methods())))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Shutdown does not wait for hijacked websocket connections
		if err := wsServer.Close(); err != nil {
			logger.Warn("websocket shutdown", zap.Error(err))
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
