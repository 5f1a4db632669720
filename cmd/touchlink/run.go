// Package main starts the touchlink bridge.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/frudas24/touchlink/internal/app"
	"github.com/frudas24/touchlink/internal/config"
	"github.com/frudas24/touchlink/internal/session"
	"github.com/spf13/cobra"
)

// runCmd starts the bridge between the touch surface and the PC.
func runCmd() *cobra.Command {
	var (
		configPath string
		staticDir  string
		host       string
		port       int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Serve the touch surface and forward input to the PC",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return run(cfg, staticDir)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file (default: $TOUCHLINK_CONFIG)")
	cmd.Flags().StringVar(&staticDir, "static", "", "serve the touch page from this directory instead of the embedded copy")
	cmd.Flags().StringVar(&host, "host", "", "PC host to connect to")
	cmd.Flags().IntVar(&port, "port", session.DefaultPort, "PC port to connect to")
	return cmd
}

// run wires the application and blocks until shutdown.
func run(cfg config.Config, staticDir string) error {
	logStartup(cfg)

	appInstance, err := app.New(cfg, session.WSDialer{HandshakeTimeout: cfg.DialTimeout()}, slog.Default())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := appInstance.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := appInstance.Stop(); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	mux := http.NewServeMux()
	appInstance.RegisterRoutes(mux, staticDir)
	return serve(ctx, &http.Server{Addr: cfg.ListenAddr, Handler: mux})
}

// serve runs server until ctx is done, then shuts it down.
func serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// logStartup prints startup checks and connection info.
func logStartup(cfg config.Config) {
	log.Printf("touchlink starting")
	logEnvStatus(cfg)
	logTargetStatus(cfg)
	log.Printf("sensitivity: %.2f scroll: %.2f gestures: %t", cfg.Sensitivity, cfg.ScrollSensitivity, cfg.Gestures)
	logListenStatus(cfg.ListenAddr)
}

// logEnvStatus reports whether a .env file was found.
func logEnvStatus(cfg config.Config) {
	envPath := filepath.Join(cfg.DataDir, ".env")
	if fileExists(envPath) {
		log.Printf("env check: ok (%s)", envPath)
	} else {
		log.Printf("env check: missing (%s)", envPath)
	}
}

// logTargetStatus reports the PC the bridge will connect to.
func logTargetStatus(cfg config.Config) {
	if cfg.Host == "" {
		log.Printf("pc target: not set (connect via /api/connect)")
		return
	}
	port := cfg.Port
	if port == 0 {
		port = session.DefaultPort
	}
	log.Printf("pc target: ws://%s (auto connect: %t)", net.JoinHostPort(cfg.Host, strconv.Itoa(port)), cfg.AutoConnect)
}

// logListenStatus reports the listen address and a local URL helper.
func logListenStatus(addr string) {
	log.Printf("listen addr: %s", addr)
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	log.Printf("local url: http://%s", net.JoinHostPort(host, port))
}

// fileExists reports whether a path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
