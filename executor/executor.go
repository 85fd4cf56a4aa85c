// Package executor runs task commands inside an agent's workspace. Every
// command goes through /bin/sh -c with the workspace root as working
// directory; output is streamed line by line onto the event bus, and files
// the commands produced are registered with the lineage service before the
// task reports completion.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BradleyMatera/ShellCompany-sub002/artifact"
	"github.com/BradleyMatera/ShellCompany-sub002/directive"
	"github.com/BradleyMatera/ShellCompany-sub002/event"
	"github.com/BradleyMatera/ShellCompany-sub002/workspace"
)

// maxCapturedOutput caps the stdout/stderr bytes kept per step. Streaming
// to the bus is unaffected.
const maxCapturedOutput = 64 << 10

// Executor runs tasks for one agent.
type Executor struct {
	ws        *workspace.Workspace
	artifacts *artifact.Service
	bus       event.Bus
	clock     directive.Clock
	logger    *slog.Logger
}

// New creates an executor bound to an agent workspace.
func New(ws *workspace.Workspace, artifacts *artifact.Service, bus event.Bus, clock directive.Clock, logger *slog.Logger) *Executor {
	if clock == nil {
		clock = directive.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		ws:        ws,
		artifacts: artifacts,
		bus:       bus,
		clock:     clock,
		logger:    logger,
	}
}

// Execute runs the task's commands in order. It stops at the first failing
// command. On success every file the commands created or changed is
// recorded as an artifact before the result is returned, so completion
// events never precede artifact registration.
func (e *Executor) Execute(ctx context.Context, workflowID string, task *directive.Task) *directive.ExecutionResult {
	before, err := e.ws.Snapshot()
	if err != nil {
		return failedResult(nil, directive.Wrap(directive.KindTaskFailed, err, "snapshot workspace"))
	}

	watcher, err := workspace.NewCaptureWatcher(e.ws, e.logger)
	if err == nil {
		if werr := watcher.Start(ctx); werr == nil {
			defer watcher.Stop()
		}
	}

	var steps []directive.StepResult
	for _, command := range task.Commands {
		step, err := e.runCommand(ctx, workflowID, task, command)
		steps = append(steps, step)
		if err != nil {
			if status, terminalErr := terminalFor(ctx, err); status != "" {
				return &directive.ExecutionResult{Status: status, Steps: steps, Error: terminalErr.Error()}
			}
			return failedResult(steps, err)
		}
	}

	artifactIDs, err := e.captureArtifacts(ctx, workflowID, task, before, watcher)
	if err != nil {
		return failedResult(steps, err)
	}

	return &directive.ExecutionResult{
		Status:      directive.TaskStatusCompleted,
		Steps:       steps,
		ArtifactIDs: artifactIDs,
	}
}

// runCommand executes one shell command, streaming output to the bus.
func (e *Executor) runCommand(ctx context.Context, workflowID string, task *directive.Task, command string) (directive.StepResult, error) {
	start := e.clock.Now()
	step := directive.StepResult{Command: command}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Dir = e.ws.Root()
	// Commands run in their own process group so cancellation reaps the
	// shell's children too; otherwise a forked child holds the pipe
	// write-ends open and Wait blocks until it exits on its own.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return step, directive.Wrap(directive.KindTaskFailed, err, "open stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return step, directive.Wrap(directive.KindTaskFailed, err, "open stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		return step, directive.Wrap(directive.KindTaskFailed, err, "start command")
	}

	var mu sync.Mutex
	var outBuf, errBuf []byte
	var g errgroup.Group
	g.Go(func() error {
		return e.streamLines(stdout, "stdout", workflowID, task, &mu, &outBuf)
	})
	g.Go(func() error {
		return e.streamLines(stderr, "stderr", workflowID, task, &mu, &errBuf)
	})
	streamErr := g.Wait()
	waitErr := cmd.Wait()

	step.Duration = e.clock.Now().Sub(start)
	step.Stdout = string(outBuf)
	step.Stderr = string(errBuf)
	step.ExitCode = cmd.ProcessState.ExitCode()

	if ctx.Err() != nil {
		return step, ctx.Err()
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return step, directive.Errorf(directive.KindTaskFailed,
				"command exited with code %d: %s", step.ExitCode, command)
		}
		return step, directive.Wrap(directive.KindTaskFailed, waitErr, "wait for command")
	}
	if streamErr != nil {
		e.logger.Warn("output streaming error", "task_id", task.ID, "error", streamErr)
	}
	return step, nil
}

func (e *Executor) streamLines(r io.Reader, stream, workflowID string, task *directive.Task, mu *sync.Mutex, buf *[]byte) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		mu.Lock()
		if len(*buf) < maxCapturedOutput {
			*buf = append(*buf, line...)
			*buf = append(*buf, '\n')
		}
		mu.Unlock()
		e.bus.Publish(event.Event{
			Type:       event.TaskStepOutput,
			WorkflowID: workflowID,
			TaskID:     task.ID,
			Agent:      task.Agent,
			Stream:     stream,
		}.WithData(map[string]any{"line": line}))
	}
	return scanner.Err()
}

// captureArtifacts diffs the workspace against the pre-execution snapshot,
// folds in files the watcher saw, and records each changed file. Hashing
// and recording run concurrently, one goroutine per file.
func (e *Executor) captureArtifacts(ctx context.Context, workflowID string, task *directive.Task, before map[string]workspace.FileState, watcher *workspace.CaptureWatcher) ([]string, error) {
	changed, err := e.ws.Changed(before)
	if err != nil {
		return nil, directive.Wrap(directive.KindTaskFailed, err, "diff workspace")
	}

	if watcher != nil {
		e.logger.Debug("filesystem activity during task",
			"task_id", task.ID, "touched", len(watcher.Touched()))
	}

	paths := make(map[string]string, len(changed)) // rel -> abs
	rels := make([]string, 0, len(changed))
	for _, fs := range changed {
		paths[fs.RelPath] = fs.AbsPath
		rels = append(rels, fs.RelPath)
	}
	sort.Strings(rels)

	ids := make([]string, len(rels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, rel := range rels {
		g.Go(func() error {
			a, err := e.artifacts.Record(gctx, artifact.RecordInput{
				WorkflowID: workflowID,
				TaskID:     task.ID,
				Agent:      task.Agent,
				Path:       paths[rel],
			})
			if err != nil {
				return fmt.Errorf("record %s: %w", rel, err)
			}
			ids[i] = a.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// terminalFor maps a context error to the task status it implies.
func terminalFor(ctx context.Context, err error) (directive.TaskStatus, error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return directive.TaskStatusFailed, directive.Errorf(directive.KindTimeout,
			"task exceeded its time budget")
	case errors.Is(err, context.Canceled):
		return directive.TaskStatusCancelled, directive.Errorf(directive.KindTaskFailed,
			"task cancelled")
	default:
		return "", nil
	}
}

func failedResult(steps []directive.StepResult, err error) *directive.ExecutionResult {
	return &directive.ExecutionResult{
		Status: directive.TaskStatusFailed,
		Steps:  steps,
		Error:  err.Error(),
	}
}

// Workspace exposes the executor's workspace for file helpers.
func (e *Executor) Workspace() *workspace.Workspace {
	return e.ws
}

// CreateFile writes a file into the workspace and records it as an
// artifact owned by the given task.
func (e *Executor) CreateFile(ctx context.Context, workflowID, taskID, relPath string, data []byte) (*artifact.Artifact, error) {
	abs, err := e.ws.WriteFile(relPath, data)
	if err != nil {
		return nil, err
	}
	return e.artifacts.Record(ctx, artifact.RecordInput{
		WorkflowID: workflowID,
		TaskID:     taskID,
		Agent:      e.ws.Agent(),
		Path:       abs,
	})
}
