package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/roach88/flowtree/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Host string
	Port int
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Start the HTTP API over the configured store.

Routes live under /api (messages, flows, verify); /health and /metrics are
served at the root. The server drains in-flight requests on SIGINT or
SIGTERM for at most shutdown_timeout.

Example:
  flowtree serve --db ./flowtree.db --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "", "listen host (overrides http.host)")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "listen port (overrides http.port)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	return withApp(cmd, opts.RootOptions, func(ctx context.Context, app *App) error {
		httpCfg := app.Config.HTTP
		if opts.Host != "" {
			httpCfg.Host = opts.Host
		}
		if opts.Port != 0 {
			httpCfg.Port = opts.Port
		}
		if app.Config.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(app.Engine, app.Registry, app.Logger)
		app.Logger.Info("serving",
			slog.String("addr", httpCfg.Addr()),
			slog.String("backend", app.Config.Backend))
		fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", httpCfg.Addr())

		if err := srv.ListenAndServe(ctx, httpCfg.Addr(), app.Config.ShutdownTimeout); err != nil {
			return WrapExitError(ExitCommandError, "server error", err)
		}
		app.Logger.Info("server stopped gracefully")
		return nil
	})
}
