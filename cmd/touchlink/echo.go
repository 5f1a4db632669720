// Package main starts the touchlink bridge.
package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"

	"github.com/frudas24/touchlink/internal/echo"
	"github.com/frudas24/touchlink/internal/session"
	"github.com/spf13/cobra"
)

// echoCmd runs the acknowledging PC-side peer.
func echoCmd() *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Run a PC-side peer that acknowledges every message",
		RunE: func(*cobra.Command, []string) error {
			addr := net.JoinHostPort(host, strconv.Itoa(port))
			log.Printf("echo peer listening on ws://%s", addr)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return serve(ctx, &http.Server{Addr: addr, Handler: echo.NewServer(slog.Default())})
		},
	}
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "listen host")
	cmd.Flags().IntVar(&port, "port", session.DefaultPort, "listen port")
	return cmd
}
