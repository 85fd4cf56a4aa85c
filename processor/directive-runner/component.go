// Package directiverunner consumes workflow creation triggers from
// JetStream and drives the orchestration engine. A trigger either names an
// approved brief or carries a raw directive with clarifier responses; the
// runner resolves the brief, creates the workflow, and publishes the
// outcome.
package directiverunner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/BradleyMatera/ShellCompany-sub002/directive"
	"github.com/BradleyMatera/ShellCompany-sub002/orchestrator"
)

// Component implements the directive-runner processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	// engine resolves the orchestration engine at message-handling time.
	engine func() *orchestrator.Engine

	// JetStream consumer
	consumer jetstream.Consumer
	stream   jetstream.Stream

	// Lifecycle
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc

	// Metrics
	triggersProcessed atomic.Int64
	workflowsCreated  atomic.Int64
	triggersFailed    atomic.Int64
	lastActivityMu    sync.RWMutex
	lastActivity      time.Time
}

// NewComponent creates a new directive-runner processor.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply defaults
	defaults := DefaultConfig()
	if config.StreamName == "" {
		config.StreamName = defaults.StreamName
	}
	if config.ConsumerName == "" {
		config.ConsumerName = defaults.ConsumerName
	}
	if config.TriggerSubject == "" {
		config.TriggerSubject = defaults.TriggerSubject
	}
	if config.OutputSubject == "" {
		config.OutputSubject = defaults.OutputSubject
	}
	if config.ProcessTimeout == "" {
		config.ProcessTimeout = defaults.ProcessTimeout
	}
	if config.Ports == nil {
		config.Ports = defaults.Ports
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Component{
		name:       "directive-runner",
		config:     config,
		natsClient: deps.NATSClient,
		logger:     deps.GetLogger(),
		engine:     orchestrator.Global,
	}, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized directive-runner",
		"stream", c.config.StreamName,
		"consumer", c.config.ConsumerName,
		"trigger_subject", c.config.TriggerSubject)
	return nil
}

// Start begins consuming workflow triggers.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}
	if c.natsClient == nil {
		c.mu.Unlock()
		return fmt.Errorf("NATS client required")
	}

	c.running = true
	c.startTime = time.Now()

	subCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	js, err := c.natsClient.JetStream()
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("get jetstream: %w", err)
	}

	stream, err := js.Stream(subCtx, c.config.StreamName)
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("get stream %s: %w", c.config.StreamName, err)
	}
	c.stream = stream

	consumerConfig := jetstream.ConsumerConfig{
		Durable:       c.config.ConsumerName,
		FilterSubject: c.config.TriggerSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.config.GetProcessTimeout() + time.Minute,
		MaxDeliver:    3,
	}

	consumer, err := stream.CreateOrUpdateConsumer(subCtx, consumerConfig)
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("create consumer: %w", err)
	}
	c.consumer = consumer

	go c.consumeLoop(subCtx)

	c.logger.Info("directive-runner started",
		"stream", c.config.StreamName,
		"consumer", c.config.ConsumerName,
		"subject", c.config.TriggerSubject)

	return nil
}

func (c *Component) rollbackStart(cancel context.CancelFunc) {
	c.mu.Lock()
	c.running = false
	c.cancel = nil
	c.mu.Unlock()
	cancel()
}

// consumeLoop continuously consumes messages from the JetStream consumer.
func (c *Component) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug("Fetch timeout or error", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleTrigger(ctx, msg)
		}

		if msgs.Error() != nil && !errors.Is(msgs.Error(), context.DeadlineExceeded) {
			c.logger.Warn("Message fetch error", "error", msgs.Error())
		}
	}
}

// handleTrigger processes a single workflow creation trigger.
func (c *Component) handleTrigger(ctx context.Context, msg jetstream.Msg) {
	c.triggersProcessed.Add(1)
	c.updateLastActivity()

	trigger, err := ParseTriggerPayload[WorkflowTriggerPayload](msg.Data())
	if err != nil {
		c.logger.Error("Failed to parse trigger", "error", err)
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK message", "error", err)
		}
		return
	}
	if err := trigger.Validate(); err != nil {
		c.logger.Error("Invalid trigger", "error", err)
		// Malformed forever; redelivery cannot fix it.
		if err := msg.Ack(); err != nil {
			c.logger.Warn("Failed to ACK message", "error", err)
		}
		return
	}

	engine := c.engine()
	if engine == nil {
		c.logger.Error("Orchestration engine not available")
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK message", "error", err)
		}
		return
	}

	c.logger.Info("Processing workflow trigger",
		"request_id", trigger.RequestID,
		"brief_id", trigger.BriefID)

	handleCtx, cancel := context.WithTimeout(ctx, c.config.GetProcessTimeout())
	defer cancel()

	result := c.runTrigger(handleCtx, engine, trigger)
	if result.Status == "failed" {
		c.triggersFailed.Add(1)
	} else if result.WorkflowID != "" {
		c.workflowsCreated.Add(1)
	}

	if err := c.publishResult(handleCtx, result); err != nil {
		c.logger.Warn("Failed to publish trigger result",
			"request_id", trigger.RequestID,
			"error", err)
	}

	if err := msg.Ack(); err != nil {
		c.logger.Warn("Failed to ACK message", "error", err)
	}
}

// runTrigger resolves the brief and creates the workflow.
func (c *Component) runTrigger(ctx context.Context, engine *orchestrator.Engine, trigger *WorkflowTriggerPayload) *WorkflowResultPayload {
	result := &WorkflowResultPayload{
		RequestID: trigger.RequestID,
		TraceID:   trigger.TraceID,
	}

	submitter := trigger.Submitter
	if submitter == "" {
		submitter = "directive-runner"
	}

	rawDirective := false
	briefID := trigger.BriefID
	if briefID == "" {
		b, err := engine.Briefs().Analyze(trigger.Directive, submitter)
		if err != nil {
			result.Status = "failed"
			result.Error = err.Error()
			return result
		}
		briefID = b.ID
		rawDirective = true
	}
	result.BriefID = briefID

	// Apply any clarifier responses carried on the trigger.
	for questionID, answer := range trigger.Responses {
		if _, err := engine.Briefs().RecordResponse(briefID, questionID, answer); err != nil {
			c.logger.Warn("Failed to record brief response",
				"brief_id", briefID,
				"question_id", questionID,
				"error", err)
		}
	}

	// A raw directive proceeds with default answers for whatever the
	// trigger's responses left open; only brief references wait for
	// clarification.
	if rawDirective {
		if _, err := engine.Briefs().ApplyDefaults(briefID); err != nil {
			result.Status = "failed"
			result.Error = err.Error()
			return result
		}
	}

	wf, err := engine.CreateWorkflow(ctx, briefID, submitter)
	if err != nil {
		if directive.IsKind(err, directive.KindUnresolved) {
			// The brief still has open questions; the caller continues
			// the clarification over the API.
			result.Status = "awaiting_clarification"
			result.Error = err.Error()
			return result
		}
		result.Status = "failed"
		result.Error = err.Error()
		return result
	}

	result.WorkflowID = wf.ID
	result.Status = "created"
	return result
}

// publishResult publishes the trigger outcome to the output subject.
func (c *Component) publishResult(ctx context.Context, result *WorkflowResultPayload) error {
	baseMsg := message.NewBaseMessage(result.Schema(), result, c.name)
	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	js, err := c.natsClient.JetStream()
	if err != nil {
		return fmt.Errorf("get jetstream: %w", err)
	}
	if _, err := js.Publish(ctx, c.config.OutputSubject, data); err != nil {
		return fmt.Errorf("publish result to %s: %w", c.config.OutputSubject, err)
	}
	return nil
}

// Stop gracefully stops the component.
func (c *Component) Stop(_ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	c.running = false
	c.logger.Info("directive-runner stopped",
		"triggers_processed", c.triggersProcessed.Load(),
		"workflows_created", c.workflowsCreated.Load(),
		"triggers_failed", c.triggersFailed.Load())

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "directive-runner",
		Type:        "processor",
		Description: "Consumes workflow triggers and drives the orchestration engine",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Inputs))
	for i, portDef := range c.config.Ports.Inputs {
		ports[i] = component.Port{
			Name:        portDef.Name,
			Direction:   component.DirectionInput,
			Required:    portDef.Required,
			Description: portDef.Description,
			Config: component.NATSPort{
				Subject: portDef.Subject,
			},
		}
	}
	return ports
}

// OutputPorts returns configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Outputs))
	for i, portDef := range c.config.Ports.Outputs {
		ports[i] = component.Port{
			Name:        portDef.Name,
			Direction:   component.DirectionOutput,
			Required:    portDef.Required,
			Description: portDef.Description,
			Config: component.NATSPort{
				Subject: portDef.Subject,
			},
		}
	}
	return ports
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return directiveRunnerSchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	status := "stopped"
	if running {
		status = "running"
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(c.triggersFailed.Load()),
		Uptime:     time.Since(startTime),
		Status:     status,
	}
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		LastActivity: c.getLastActivity(),
	}
}

// IsRunning returns whether the component is running.
func (c *Component) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func (c *Component) updateLastActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

func (c *Component) getLastActivity() time.Time {
	c.lastActivityMu.RLock()
	defer c.lastActivityMu.RUnlock()
	return c.lastActivity
}
