package main

import (
	"context"
	"fmt"

	"github.com/aretw0/weft/internal/app"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the Model Context Protocol (MCP) server",
		Long: `Exposes the container to MCP clients as tools: list_state, get_state,
list_tasks, cancel_tasks and transient_list|get|set|remove, plus the
weft://state resource.

Supported transports:
- stdio (default): JSON-RPC on standard input and output; logs go to stderr.
- sse: Server-Sent Events over HTTP at /sse and /message.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			transport, _ := cmd.Flags().GetString("transport")
			if transport != "stdio" && transport != "sse" {
				return fmt.Errorf("unknown transport %q (supported: stdio, sse)", transport)
			}

			c, err := openContainer(cmd, app.WithAutoPersist())
			if err != nil {
				return err
			}
			defer c.Dispose()

			srv := c.MCPServer()
			ctx := cmd.Context()

			switch transport {
			case "sse":
				addr, _ := cmd.Flags().GetString("addr")
				if addr == "" {
					addr = c.Config.HTTP.Addr
				}
				baseURL, _ := cmd.Flags().GetString("base-url")
				c.Logger.Info("Starting MCP server (SSE)", "addr", addr)
				err = srv.ServeSSE(ctx, addr, baseURL)
			default:
				c.Logger.Info("Starting MCP server (stdio)")
				err = srv.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			if err != nil {
				return fmt.Errorf("mcp server failed: %w", err)
			}

			// Auto-persist tasks are canceled by Dispose; write the final state here.
			return c.Transient.Persist(context.WithoutCancel(ctx))
		},
	}
	cmd.Flags().String("transport", "stdio", "Transport protocol: stdio or sse")
	cmd.Flags().String("addr", "", "Listen address for sse (default from http.addr)")
	cmd.Flags().String("base-url", "", "Public base URL advertised to sse clients")
	return cmd
}
