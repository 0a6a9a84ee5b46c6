package main

import (
	"fmt"

	"github.com/aretw0/weft/internal/app"
	weftHTTP "github.com/aretw0/weft/pkg/adapters/http"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the inspection HTTP server",
		Long: `Serves /healthz, /state, /events, /tasks and /metrics for the configured
container. Transient data is restored on start and persisted on every change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(cmd, app.WithAutoPersist())
			if err != nil {
				return err
			}
			defer c.Dispose()

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = c.Config.HTTP.Addr
			}

			srv := c.Server()
			fmt.Fprintf(cmd.OutOrStdout(), "Starting weft inspection server on %s\n", addr)
			c.Logger.Info("Serving", "addr", addr, "backend", c.Config.Transient.Backend)

			// Close SSE streams first so shutdown does not wait on them.
			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				srv.Close()
			}()

			if err := weftHTTP.ListenAndServe(ctx, addr, srv.Handler()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "weft server stopped gracefully")
			return nil
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default from http.addr)")
	return cmd
}
