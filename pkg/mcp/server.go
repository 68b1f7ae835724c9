// Package mcp implements a Model Context Protocol server exposing the
// cross-section computation as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/segmenter/pkg/observability"
	"github.com/Sumatoshi-tech/segmenter/pkg/table"
	"github.com/Sumatoshi-tech/segmenter/pkg/version"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "segmenter"

	// toolCount is the expected number of registered tools.
	toolCount = 2
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil discards sweep logs.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// SweepMetrics records per-group sweep statistics. Nil disables them.
	SweepMetrics *observability.SweepMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer

	// Layout is the default column layout. A layout without group columns
	// falls back to table.DefaultLayout.
	Layout table.Layout

	// Names are the output column names. A zero value uses table.DefaultNames.
	Names table.Names
}

// Server wraps the MCP SDK server with segmenter tool registrations.
type Server struct {
	inner        *mcpsdk.Server
	mu           sync.RWMutex
	tools        []string
	logger       *slog.Logger
	metrics      *observability.REDMetrics
	sweepMetrics *observability.SweepMetrics
	tracer       trace.Tracer
	layout       table.Layout
	names        table.Names
}

// NewServer creates a new MCP server with all segmenter tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		opts,
	)

	srv := &Server{
		inner:        inner,
		tools:        make([]string, 0, toolCount),
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		sweepMetrics: deps.SweepMetrics,
		tracer:       deps.Tracer,
		layout:       deps.Layout,
		names:        deps.Names,
	}

	if len(srv.layout.Group) == 0 {
		srv.layout = table.DefaultLayout()
	}

	if srv.names == (table.Names{}) {
		srv.names = table.DefaultNames()
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameCrossSections,
		Description: crossSectionsToolDescription,
	}, withMetrics(s.metrics, ToolNameCrossSections,
		withTracing(s.tracer, ToolNameCrossSections, s.handleCrossSections)))

	s.trackTool(ToolNameCrossSections)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameSchema,
		Description: schemaToolDescription,
	}, withMetrics(s.metrics, ToolNameSchema,
		withTracing(s.tracer, ToolNameSchema, s.handleSchema)))

	s.trackTool(ToolNameSchema)
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

// withTracing wraps an MCP tool handler to create an OTel span per invocation
// and include trace_id in the response content when sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

// withMetrics wraps an MCP tool handler to record RED metrics per invocation.
func withMetrics[Input any](
	metrics *observability.REDMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, mcpSpanPrefix+toolName)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := observability.StatusOK
		if err != nil || (result != nil && result.IsError) {
			status = observability.StatusError
		}

		metrics.RecordRequest(ctx, mcpSpanPrefix+toolName, status, time.Since(start))

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// Tool description constants.
const (
	crossSectionsToolDescription = "Split overlapping linear-referenced segments into cross-sections: " +
		"maximal runs along the measure where the set of overlapping segments does not change. " +
		"Accepts an inline CSV, JSON or YAML table and optional column names."

	schemaToolDescription = "Return the JSON schema that JSON or YAML rows must satisfy " +
		"for the configured (or given) column names."
)
