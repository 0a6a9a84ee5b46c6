package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/logging"
	weftHTTP "github.com/aretw0/weft/pkg/adapters/http"
	"github.com/aretw0/weft/pkg/store"
	"github.com/aretw0/weft/pkg/transient"
	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// StateURI is the resource holding every registered observable.
const StateURI = "weft://state"

// Server exposes observables, task controls and transient data as MCP tools.
type Server struct {
	observables map[string]store.Observable
	names       []string
	tasks       weftHTTP.Tasks
	transient   *transient.Service
	logger      *slog.Logger
	mcpServer   *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithObservable exposes o to get_state and list_state under name.
func WithObservable(name string, o store.Observable) Option {
	return func(s *Server) {
		if _, ok := s.observables[name]; !ok {
			s.names = append(s.names, name)
		}
		s.observables[name] = o
	}
}

// WithTasks enables list_tasks and cancel_tasks.
func WithTasks(t weftHTTP.Tasks) Option {
	return func(s *Server) {
		s.tasks = t
	}
}

// WithTransient enables the transient_* tools.
func WithTransient(svc *transient.Service) Option {
	return func(s *Server) {
		s.transient = svc
	}
}

// WithLogger sets the logger for tool calls and transport errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates an MCP server. Tools are registered only for the parts
// that were configured.
func NewServer(opts ...Option) *Server {
	s := &Server{
		observables: map[string]store.Observable{},
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	slices.Sort(s.names)

	s.mcpServer = server.NewMCPServer("weft-mcp", weft.Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
	)
	s.registerStateTools()
	if s.tasks != nil {
		s.registerTaskTools()
	}
	if s.transient != nil {
		s.registerTransientTools()
	}
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves JSON-RPC over in and out until ctx is done or in closes.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

// SSEHandler mounts the SSE transport at /sse and /message. baseURL is
// advertised to clients in the endpoint event and may be empty.
func (s *Server) SSEHandler(baseURL string) http.Handler {
	var opts []server.SSEOption
	if baseURL != "" {
		opts = append(opts, server.WithBaseURL(baseURL))
	}
	sse := server.NewSSEServer(s.mcpServer, opts...)

	r := chi.NewRouter()
	r.Handle("/sse", sse.SSEHandler())
	r.Handle("/message", sse.MessageHandler())
	return r
}

// ServeSSE serves the SSE transport on addr until ctx is done. Open streams
// end with ctx so shutdown does not wait on them.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	s.logger.Info("MCP server listening (SSE)", "addr", addr)
	return weftHTTP.ListenAndServe(ctx, addr, endWith(ctx, s.SSEHandler(baseURL)))
}

func endWith(ctx context.Context, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqCtx, cancel := context.WithCancel(r.Context())
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
		next.ServeHTTP(w, r.WithContext(reqCtx))
	})
}

func (s *Server) registerStateTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_state",
		mcp.WithDescription("Return the current state of every registered observable, keyed by name."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(s.snapshot())
	})

	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Return the current state of one registered observable."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Observable name, as listed by list_state")),
	), s.handleGetState)
}

func (s *Server) registerTaskTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("Report how many background tasks are in flight."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(map[string]int{"inflight": s.tasks.Len()})
	})

	s.mcpServer.AddTool(mcp.NewTool("cancel_tasks",
		mcp.WithDescription("Cancel every in-flight background task. Running work finishes; its result is discarded."),
		mcp.WithDestructiveHintAnnotation(true),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		n := s.tasks.Len()
		s.tasks.CancelAll()
		s.logger.Info("Canceled tasks via MCP", "count", n)
		return jsonResult(map[string]int{"canceled": n})
	})
}

func (s *Server) registerTransientTools() {
	s.mcpServer.AddTool(mcp.NewTool("transient_list",
		mcp.WithDescription("List transient message ids."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(s.transient.IDs())
	})

	s.mcpServer.AddTool(mcp.NewTool("transient_get",
		mcp.WithDescription("Return one transient message."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Message id")),
	), s.handleTransientGet)

	s.mcpServer.AddTool(mcp.NewTool("transient_set",
		mcp.WithDescription("Store a transient message. A new id is generated when id is omitted."),
		mcp.WithString("id", mcp.Description("Message id (optional)")),
		mcp.WithString("data", mcp.Required(), mcp.Description("Message payload as a JSON document")),
	), s.handleTransientSet)

	s.mcpServer.AddTool(mcp.NewTool("transient_remove",
		mcp.WithDescription("Delete a transient message."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Message id")),
		mcp.WithDestructiveHintAnnotation(true),
	), s.handleTransientRemove)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(StateURI, "Registered state",
		mcp.WithResourceDescription("Current state of every registered observable"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.snapshot())
		if err != nil {
			return nil, fmt.Errorf("failed to encode state: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      StateURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func (s *Server) snapshot() map[string]any {
	out := make(map[string]any, len(s.names))
	for _, name := range s.names {
		out[name] = s.observables[name].Snapshot()
	}
	return out
}

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	o, ok := s.observables[name]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown observable %q", name)), nil
	}
	return jsonResult(o.Snapshot())
}

func (s *Server) handleTransientGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, ok := s.transient.Message(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", id, transient.ErrMessageNotFound)), nil
	}
	return jsonResult(v)
}

func (s *Server) handleTransientSet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("data is not valid JSON: %v", err)), nil
	}

	id := request.GetString("id", "")
	if id == "" {
		id = s.transient.CreateMessage(data)
		if _, ok := s.transient.Message(id); !ok {
			return mcp.NewToolResultError("write rejected"), nil
		}
	} else if !s.transient.SetMessage(id, data) {
		return mcp.NewToolResultError("write rejected"), nil
	}
	s.logger.Debug("Transient message set via MCP", "key", id)
	return jsonResult(map[string]string{"id": id})
}

func (s *Server) handleTransientRemove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, ok := s.transient.Message(id); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", id, transient.ErrMessageNotFound)), nil
	}
	s.transient.Remove(id)
	return jsonResult(map[string]string{"removed": id})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
