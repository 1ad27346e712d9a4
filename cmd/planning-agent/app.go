package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/metjm/planning-agent/agent"
	"github.com/metjm/planning-agent/config"
	"github.com/metjm/planning-agent/daemon"
	"github.com/metjm/planning-agent/domain"
	"github.com/metjm/planning-agent/eventstore"
	"github.com/metjm/planning-agent/mcp"
	"github.com/metjm/planning-agent/paths"
	"github.com/metjm/planning-agent/verification"
	"github.com/metjm/planning-agent/workflow"
)

const snapshotEvery = 20

// App wires the loaded configuration into the workflow actor, phase
// controller and optional daemon client for one CLI invocation.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *workflow.Metrics
}

// NewApp constructs an App ready to run any of the CLI's modes.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:     cfg,
		logger:  logger,
		metrics: workflow.NewMetrics(prometheus.DefaultRegisterer),
	}
}

// RunPlan drives a planning workflow to completion: creates a fresh
// session unless resumeSessionID is set, runs the planning/review loop,
// and then the implementation and verification loops if configured.
func (a *App) RunPlan(ctx context.Context, featureName, objective, workingDir string, maxIterations uint32, resumeSessionID string) error {
	sessionID := resumeSessionID
	fresh := sessionID == ""
	if fresh {
		sessionID = newSessionID()
	}

	session, err := paths.ForSession(sessionID)
	if err != nil {
		return fmt.Errorf("resolve session directory: %w", err)
	}
	if _, err := session.LogsDir(); err != nil {
		return fmt.Errorf("create session logs directory: %w", err)
	}

	store := eventstore.NewFileEventStore(session.EventsLog(), session.Snapshot(), snapshotEvery)
	actorInst, err := workflow.NewActor(sessionID, store)
	if err != nil {
		return fmt.Errorf("load workflow actor: %w", err)
	}

	actorCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go actorInst.Run(actorCtx)

	if fresh {
		absWorkingDir, err := filepath.Abs(workingDir)
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		if _, err := actorInst.SubmitCommand(ctx, domain.Command{
			Type: domain.CommandCreateWorkflow,
			CreateWorkflow: &domain.CreateWorkflowCmd{
				FeatureName:   domain.FeatureName(featureName),
				Objective:     domain.Objective(objective),
				WorkingDir:    domain.WorkingDir(absWorkingDir),
				MaxIterations: domain.MaxIterations(maxIterations),
				PlanPath:      domain.PlanPath(session.Plan()),
				FeedbackPath:  domain.FeedbackPath(filepath.Join(session.Dir, "feedback")),
			},
		}); err != nil {
			return fmt.Errorf("create workflow: %w", err)
		}
	}

	controllerConfig, err := a.buildControllerConfig()
	if err != nil {
		return err
	}

	streamLog, err := openAgentStreamLog(session)
	if err != nil {
		return err
	}
	defer streamLog.Close()

	runtime := agent.NewRuntime()
	controller := workflow.NewController(actorInst, runtime, controllerConfig, streamEmitter(streamLog)).WithMetrics(a.metrics)

	a.logger.Info("starting planning loop", "session_id", sessionID, "feature", featureName)
	if err := controller.RunPlanningLoop(ctx); err != nil {
		return fmt.Errorf("planning loop: %w", err)
	}

	view, err := actorInst.GetView(ctx)
	if err != nil {
		return err
	}

	if view.PlanningPhase != domain.PlanningPhaseComplete {
		a.logger.Info("planning loop ended awaiting decision", "session_id", sessionID, "phase", view.PlanningPhase)
		return nil
	}

	if a.cfg.Implementation.Enabled {
		if _, err := actorInst.SubmitCommand(ctx, domain.Command{Type: domain.CommandRequestImplementation}); err != nil {
			return fmt.Errorf("request implementation: %w", err)
		}
		if err := controller.RunImplementationLoop(ctx); err != nil {
			return fmt.Errorf("implementation loop: %w", err)
		}
	}

	if a.cfg.Verification.Enabled {
		if err := a.runVerification(ctx, session, string(view.WorkingDir), runtime, streamLog); err != nil {
			return fmt.Errorf("verification loop: %w", err)
		}
	}

	a.logger.Info("workflow finished", "session_id", sessionID)
	return nil
}

func (a *App) runVerification(ctx context.Context, session paths.Session, workingDir string, runtime *agent.Runtime, streamLog *os.File) error {
	planPath := filepath.Dir(session.Plan())

	state, err := verification.Load(planPath)
	if err != nil {
		return err
	}
	if state == nil {
		state = verification.New(planPath, workingDir, uint32(a.cfg.Verification.MaxIterations), "")
	}

	verifier, err := a.bindingFor(a.cfg.Verification.Verifying.Agent)
	if err != nil {
		return fmt.Errorf("verifying agent: %w", err)
	}
	fixingAgent := a.cfg.Verification.Verifying.Agent
	if a.cfg.Verification.Fixing != nil {
		fixingAgent = a.cfg.Verification.Fixing.Agent
	}
	fixer, err := a.bindingFor(fixingAgent)
	if err != nil {
		return fmt.Errorf("fixing agent: %w", err)
	}

	loop := verification.NewLoop(runtime, verifier, fixer, streamEmitter(streamLog))
	return loop.Run(ctx, state)
}

// RunInternalMCPServer decodes the plan/prompt arguments and serves the
// review tools over stdin/stdout until a verdict is submitted.
func (a *App) RunInternalMCPServer(planContentB64, reviewPromptB64 string) error {
	planContent, err := mcp.DecodePlanContent(planContentB64)
	if err != nil {
		return err
	}
	reviewPrompt, err := mcp.DecodeReviewPrompt(reviewPromptB64)
	if err != nil {
		return err
	}

	server, _ := mcp.NewStdioServer(planContent, reviewPrompt, a.logger)
	return server.Serve(os.Stdin, os.Stdout)
}

// RunDaemon starts the session registry daemon and blocks until ctx is
// cancelled.
func (a *App) RunDaemon(ctx context.Context) error {
	portFilePath, err := paths.SessiondPortFilePath()
	if err != nil {
		return err
	}

	if appeared, err := daemon.WaitForConcurrentStartup(ctx, portFilePath, 200*time.Millisecond); err != nil {
		a.logger.Warn("port file watch failed, continuing", "error", err)
	} else if appeared {
		return fmt.Errorf("another daemon instance is already starting at %s", portFilePath)
	}
	if _, err := os.Stat(portFilePath); err == nil {
		return fmt.Errorf("daemon port file already present at %s", portFilePath)
	}

	token := newSessionID()
	mainLn, err := listenLoopback()
	if err != nil {
		return fmt.Errorf("listen on main RPC port: %w", err)
	}
	subLn, err := listenLoopback()
	if err != nil {
		return fmt.Errorf("listen on subscriber port: %w", err)
	}
	metricsLn, err := listenLoopback()
	if err != nil {
		return fmt.Errorf("listen on metrics port: %w", err)
	}

	server := daemon.NewServer(token, daemon.DefaultLivenessThresholds(), a.logger)

	registry := prometheus.NewRegistry()
	metrics := daemon.NewMetrics(registry)
	server.Registry().SetSessionsGauge(metrics.SessionsGauge)

	content := daemon.PortFileContent{Port: portPort(mainLn), SubscriberPort: portPort(subLn), Token: token}
	if err := writePortFile(portFilePath, content); err != nil {
		return err
	}
	defer os.Remove(portFilePath)

	errs := make(chan error, 3)
	go func() { errs <- server.Serve(ctx, mainLn) }()
	go func() { errs <- server.ServeSubscribers(ctx, subLn) }()
	go func() { errs <- daemon.ServeMetrics(ctx, metricsLn, registry) }()

	a.logger.Info("daemon started", "port", content.Port, "subscriber_port", content.SubscriberPort, "metrics_port", portPort(metricsLn))

	select {
	case <-ctx.Done():
		return nil
	case err := <-errs:
		return err
	}
}

func (a *App) buildControllerConfig() (workflow.Config, error) {
	cfg := a.cfg
	controllerConfig := workflow.Config{
		Agents:            make(map[domain.AgentId]workflow.AgentBinding),
		Planner:           domain.AgentId(cfg.Workflow.Planning.Agent),
		AggregationPolicy: domain.ReviewAggregationPolicy(cfg.Workflow.Reviewing.Aggregation),
		FailurePolicy:     domain.DefaultFailurePolicy(),
	}
	if controllerConfig.AggregationPolicy == "" {
		controllerConfig.AggregationPolicy = domain.AggregationAnyRejects
	}
	controllerConfig.ReviewMode = domain.ReviewModeParallel
	if cfg.Workflow.Reviewing.Sequential {
		controllerConfig.ReviewMode = domain.ReviewModeSequential
	}

	planner, err := a.bindingFor(cfg.Workflow.Planning.Agent)
	if err != nil {
		return workflow.Config{}, fmt.Errorf("planning agent: %w", err)
	}
	controllerConfig.Agents[controllerConfig.Planner] = planner

	for _, reviewer := range cfg.Workflow.Reviewing.Agents {
		reviewerID := reviewer.Id
		if reviewerID == "" {
			reviewerID = reviewer.Agent
		}
		binding, err := a.bindingFor(reviewer.Agent)
		if err != nil {
			return workflow.Config{}, fmt.Errorf("reviewer %q: %w", reviewerID, err)
		}
		controllerConfig.Agents[domain.AgentId(reviewerID)] = binding
		controllerConfig.Reviewers = append(controllerConfig.Reviewers, domain.AgentId(reviewerID))
	}
	// The reviser defaults to the planning agent: the same agent that
	// drafted the plan is best placed to revise it.
	controllerConfig.Reviser = controllerConfig.Planner

	if cfg.Implementation.Enabled {
		implementing, err := a.bindingFor(cfg.Implementation.Implementing.Agent)
		if err != nil {
			return workflow.Config{}, fmt.Errorf("implementing agent: %w", err)
		}
		controllerConfig.Implementer = domain.AgentId(cfg.Implementation.Implementing.Agent)
		controllerConfig.Agents[controllerConfig.Implementer] = implementing

		reviewingAgent := cfg.Implementation.Implementing.Agent
		if cfg.Implementation.Reviewing != nil {
			reviewingAgent = cfg.Implementation.Reviewing.Agent
		}
		implReviewer, err := a.bindingFor(reviewingAgent)
		if err != nil {
			return workflow.Config{}, fmt.Errorf("implementation reviewer: %w", err)
		}
		controllerConfig.ImplementationReviewer = domain.AgentId(reviewingAgent)
		controllerConfig.Agents[controllerConfig.ImplementationReviewer] = implReviewer
	}

	return controllerConfig, nil
}

func (a *App) bindingFor(agentName string) (workflow.AgentBinding, error) {
	agentCfg, ok := a.cfg.Agents[agentName]
	if !ok {
		return workflow.AgentBinding{}, fmt.Errorf("agent %q is not defined", agentName)
	}

	family, parser := detectFamily(agentCfg.Command)
	return workflow.AgentBinding{
		Descriptor: agent.Descriptor{
			Name:               agentName,
			Command:            agentCfg.Command,
			Args:               agentCfg.Args,
			AllowedTools:       agentCfg.AllowedTools,
			SessionPersistence: agentCfg.SessionPersistence.Enabled,
			Family:             family,
		},
		Parser:   parser,
		Timeouts: agent.DefaultTimeouts(),
	}, nil
}

func detectFamily(command string) (agent.Family, agent.StreamParser) {
	base := strings.ToLower(filepath.Base(command))
	switch {
	case strings.Contains(base, "codex"):
		return agent.FamilyCodex, agent.NewCodexParser()
	case strings.Contains(base, "gemini"):
		return agent.FamilyGemini, agent.NewGeminiParser()
	case strings.Contains(base, "claude"):
		return agent.FamilyClaude, agent.NewClaudeParser()
	default:
		return agent.FamilyClaude, agent.NewTextParser()
	}
}

func streamEmitter(streamLog *os.File) agent.EventEmitter {
	return func(ev agent.AgentEvent) {
		if ev.TextContent != nil {
			fmt.Fprintln(streamLog, *ev.TextContent)
		}
	}
}

func openAgentStreamLog(session paths.Session) (*os.File, error) {
	if _, err := session.LogsDir(); err != nil {
		return nil, err
	}
	path, err := session.AgentStreamLog()
	if err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func newSessionID() string {
	return uuid.NewString()
}

func listenLoopback() (net.Listener, error) {
	return net.Listen("tcp", "127.0.0.1:0")
}

func portPort(ln net.Listener) int {
	return ln.Addr().(*net.TCPAddr).Port
}

func writePortFile(path string, content daemon.PortFileContent) error {
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
