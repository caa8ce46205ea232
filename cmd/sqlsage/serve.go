package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sqlsage/sqlsage/internal/server"
	"github.com/sqlsage/sqlsage/internal/session"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web front end",
	Long: `Serve the browser chat UI and the JSON API.

The server keeps per-session conversation history in memory and exposes
Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
}

func runServe() error {
	agentInstance, pipeline, err := buildAgent()
	if err != nil {
		return err
	}
	defer pipeline.Close()

	exec, err := buildExecutor()
	if err != nil {
		return err
	}
	if exec != nil {
		defer exec.Close()
	}

	store := session.NewStore(time.Duration(cfg.Session.TTLMinutes) * time.Minute)
	turnTimeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second

	var srv *server.Server
	if exec != nil {
		srv = server.New(agentInstance, exec, store, turnTimeout, logger)
	} else {
		srv = server.New(agentInstance, nil, store, turnTimeout, logger)
	}

	addr := cfg.HTTP.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
