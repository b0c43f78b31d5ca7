package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/service/mcp"
	"github.com/m-mizutani/lectern/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var (
		cfg  config
		addr string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Serve streamable HTTP on this address instead of stdio",
			Sources:     cli.EnvVars("LECTERN_MCP_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Expose saved conversations and notes as MCP tools",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			uc, err := cfg.newHistory(ctx)
			if err != nil {
				return err
			}
			srv := mcp.NewServer(uc, cfg.userID)

			if addr == "" {
				return srv.RunStdio(ctx)
			}

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					logging.From(ctx).Warn("failed to shutdown MCP server", "error", err)
				}
			}()

			logging.From(ctx).Info("serving MCP over HTTP", "addr", addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return goerr.Wrap(err, "failed to serve MCP", goerr.V("addr", addr))
			}
			return nil
		},
	}
}
