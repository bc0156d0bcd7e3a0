package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/stepflow/internal/engine"
	"github.com/rendis/stepflow/internal/executors"
	"github.com/rendis/stepflow/internal/scheduler"
	"github.com/rendis/stepflow/internal/store"
)

// StepflowServerDeps holds the dependencies for creating a StepflowServer.
type StepflowServerDeps struct {
	Orchestrator *engine.Orchestrator
	Store        store.Store
	Registry     *executors.Registry
	Scheduler    *scheduler.Scheduler
	Logger       *slog.Logger
}

// StepflowServer wraps an MCP server with stepflow-specific tool handlers.
type StepflowServer struct {
	orchestrator *engine.Orchestrator
	store        store.Store
	registry     *executors.Registry
	scheduler    *scheduler.Scheduler
	logger       *slog.Logger
	mcpServer    *server.MCPServer
}

// NewStepflowServer creates a new StepflowServer with all tools registered.
func NewStepflowServer(deps StepflowServerDeps) *StepflowServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &StepflowServer{
		orchestrator: deps.Orchestrator,
		store:        deps.Store,
		registry:     deps.Registry,
		scheduler:    deps.Scheduler,
		logger:       logger,
	}

	mcpSrv := server.NewMCPServer(
		"stepflow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Stepflow is a dependency-graph workflow orchestration engine. Use stepflow.create to register a workflow, stepflow.execute to run it, stepflow.monitor to check progress, stepflow.cancel/stepflow.pause to control a run, stepflow.optimize for performance analysis, stepflow.schedule for cron re-runs, and stepflow.query to list workflows/events/records."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *StepflowServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *StepflowServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *StepflowServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: createTool(), Handler: s.handleCreate},
		{Tool: executeTool(), Handler: s.handleExecute},
		{Tool: cancelTool(), Handler: s.handleCancel},
		{Tool: pauseTool(), Handler: s.handlePause},
		{Tool: monitorTool(), Handler: s.handleMonitor},
		{Tool: optimizeTool(), Handler: s.handleOptimize},
		{Tool: scheduleTool(), Handler: s.handleSchedule},
		{Tool: queryTool(), Handler: s.handleQuery},
		{Tool: executorsTool(), Handler: s.handleExecutors},
	}
}

// --- Tool definitions ---

func createTool() mcp.Tool {
	return mcp.NewTool("stepflow.create",
		mcp.WithDescription("Register a workflow from a definition. Returns the generated workflow ID. The definition is validated structurally; dependency cycles are allowed here and surface at runtime as a deadlock"),
		mcp.WithObject("definition", mcp.Required(), mcp.Description("Workflow definition object: name, description, steps (id, executor_type, parameters, depends_on, condition, timeout), timeout, metadata")),
	)
}

func executeTool() mcp.Tool {
	return mcp.NewTool("stepflow.execute",
		mcp.WithDescription("Execute a pending workflow, or resume a paused one, to completion. Blocks until the run reaches a terminal or paused state and returns the run summary"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to execute")),
	)
}

func cancelTool() mcp.Tool {
	return mcp.NewTool("stepflow.cancel",
		mcp.WithDescription("Request cooperative cancellation. In-flight steps finish and their results are recorded; nothing new is dispatched"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to cancel")),
	)
}

func pauseTool() mcp.Tool {
	return mcp.NewTool("stepflow.pause",
		mcp.WithDescription("Pause a running workflow after its current round. Resume it later with stepflow.execute"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to pause")),
	)
}

func monitorTool() mcp.Tool {
	return mcp.NewTool("stepflow.monitor",
		mcp.WithDescription("Get a progress snapshot of a workflow: completion percentage, per-step status, and steps stuck past the configured threshold"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to monitor")),
	)
}

func optimizeTool() mcp.Tool {
	return mcp.NewTool("stepflow.optimize",
		mcp.WithDescription("Analyze a workflow's execution history and report bottleneck steps and missed parallelization opportunities. Advisory only, never mutates the workflow"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to analyze")),
	)
}

func scheduleTool() mcp.Tool {
	return mcp.NewTool("stepflow.schedule",
		mcp.WithDescription("Create a cron schedule that re-runs a stored workflow definition as a fresh workflow on each trigger"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow whose definition is re-run")),
		mcp.WithString("cron", mcp.Required(), mcp.Description("Standard 5-field cron expression (minute hour dom month dow)")),
		mcp.WithString("enabled", mcp.Description("Whether the schedule starts enabled (default: true)")),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("stepflow.query",
		mcp.WithDescription("Query workflows, events, or execution records"),
		mcp.WithString("resource", mcp.Required(),
			mcp.Enum("workflows", "events", "records"),
			mcp.Description("Type of resource to query"),
		),
		mcp.WithObject("filter", mcp.Description("Filter criteria (status, since, limit, workflow_id, since_sequence)")),
	)
}

func executorsTool() mcp.Tool {
	return mcp.NewTool("stepflow.executors",
		mcp.WithDescription("List the executor types currently registered, with descriptions"),
	)
}
