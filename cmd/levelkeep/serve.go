package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/datallboy/levelkeep/internal/api"
	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the level API over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "port to listen on (default: config port)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := loadApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	port := a.Config.Port
	if servePort != "" {
		port = servePort
	}

	e := echo.New()
	api.RegisterRoutes(e, a)

	srv := &http.Server{
		Addr:    net.JoinHostPort("", port),
		Handler: e,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("Listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
