// Package supervisor spawns, monitors and terminates worker subprocesses and
// tracks the table of running instances.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"aetherd/internal/config"
	"aetherd/internal/reporting"
	"aetherd/pkg/logging"
)

// Environment variables of the worker subprocess contract.
const (
	EnvPortVar = "AETHER_PORT"
	EnvToolVar = "AETHER_TOOL"
)

// DefaultStopTimeout bounds the wait for a terminated worker to exit before
// its bookkeeping is force-cleared.
const DefaultStopTimeout = 3 * time.Second

// DefaultSettleDelay is the short pause after a successful spawn before the
// call returns, giving the worker a head start on binding its port.
const DefaultSettleDelay = 500 * time.Millisecond

// SpawnError means the worker process could not be started.
type SpawnError struct {
	Tool string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s: %v", e.Tool, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// SpawnResult reports a spawn outcome.
type SpawnResult struct {
	// Skipped is true when the tool's entry point or environment interpreter
	// does not exist; that is not an error.
	Skipped bool
	Reason  string
	PID     int
	Port    int
}

// StopOutcome distinguishes a confirmed exit from a timed-out wait.
type StopOutcome string

const (
	// StopNotRunning means no instance existed for the tool.
	StopNotRunning StopOutcome = "not-running"
	// StopConfirmed means the process exit was observed within the timeout.
	StopConfirmed StopOutcome = "stopped"
	// StopUnconfirmed means the timeout elapsed without a confirmed exit;
	// the instance entry was cleared anyway and the process may be orphaned.
	StopUnconfirmed StopOutcome = "stopped-unconfirmed"
)

// InstanceInfo is the externally visible view of a running worker.
type InstanceInfo struct {
	Tool      string
	PID       int
	Port      int
	StartedAt time.Time
}

// instance is a live process bound to one tool.
type instance struct {
	info          InstanceInfo
	cmd           *exec.Cmd
	stopRequested bool
	readyOnce     sync.Once
	// done is closed once the process exit was observed.
	done chan struct{}
	mu   sync.Mutex
}

func (i *instance) markStopRequested() {
	i.mu.Lock()
	i.stopRequested = true
	i.mu.Unlock()
}

func (i *instance) wasStopRequested() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stopRequested
}

// Supervisor owns the running-instance table. A tool id has at most one
// instance at any moment; spawning over a live instance stops it first.
type Supervisor struct {
	mu        sync.Mutex
	paths     config.Paths
	bus       reporting.EventBus
	instances map[string]*instance

	// StopTimeout and SettleDelay are exposed for tests.
	StopTimeout time.Duration
	SettleDelay time.Duration
}

// NewSupervisor creates a supervisor. bus may be nil (tests).
func NewSupervisor(paths config.Paths, bus reporting.EventBus) *Supervisor {
	return &Supervisor{
		paths:       paths,
		bus:         bus,
		instances:   make(map[string]*instance),
		StopTimeout: DefaultStopTimeout,
		SettleDelay: DefaultSettleDelay,
	}
}

// Spawn launches the tool's entry point with its assigned port and id in the
// process environment. Missing entry point or interpreter yields a skipped
// result. An already-running instance is stopped first.
func (s *Supervisor) Spawn(ctx context.Context, tool config.ToolConfig, interpreter string) (SpawnResult, error) {
	srcDir := s.paths.ToolSourceDir(tool)
	entryPoint := filepath.Join(srcDir, config.EntryPointName)

	if _, err := os.Stat(entryPoint); os.IsNotExist(err) {
		return SpawnResult{Skipped: true, Reason: fmt.Sprintf("entry point %s does not exist", entryPoint)}, nil
	}
	if _, err := os.Stat(interpreter); os.IsNotExist(err) {
		return SpawnResult{Skipped: true, Reason: fmt.Sprintf("environment interpreter %s does not exist", interpreter)}, nil
	}

	// Restart semantics: spawn implies at-most-one
	if _, running := s.Instance(tool.ID); running {
		logging.Info("Supervisor", "Tool %s already running; restarting", tool.ID)
		if _, err := s.Stop(tool.ID); err != nil {
			logging.Warn("Supervisor", "Stop before respawn of %s failed: %v", tool.ID, err)
		}
	}

	cmd := exec.Command(interpreter, config.EntryPointName)
	cmd.Dir = srcDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%d", EnvPortVar, tool.Port),
		fmt.Sprintf("%s=%s", EnvToolVar, tool.ID),
	)
	setSysProcAttr(cmd)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return SpawnResult{}, &SpawnError{Tool: tool.ID, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		stdoutPipe.Close()
		return SpawnResult{}, &SpawnError{Tool: tool.ID, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		stdoutPipe.Close()
		stderrPipe.Close()
		return SpawnResult{}, &SpawnError{Tool: tool.ID, Err: err}
	}

	inst := &instance{
		info: InstanceInfo{
			Tool:      tool.ID,
			PID:       cmd.Process.Pid,
			Port:      tool.Port,
			StartedAt: time.Now(),
		},
		cmd:  cmd,
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.instances[tool.ID] = inst
	s.mu.Unlock()

	logging.Info("Supervisor", "Spawned %s (PID %d, port %d)", tool.ID, inst.info.PID, tool.Port)

	go s.scanOutput(inst, stdoutPipe, reporting.StreamStdout)
	go s.scanOutput(inst, stderrPipe, reporting.StreamStderr)
	go s.waitForExit(inst)
	go s.confirmReadiness(ctx, inst)

	if s.SettleDelay > 0 {
		select {
		case <-time.After(s.SettleDelay):
		case <-ctx.Done():
		}
	}

	return SpawnResult{PID: inst.info.PID, Port: tool.Port}, nil
}

// scanOutput forwards each output line as a tool.output event, and treats the
// legacy readiness substrings as an unconfirmed ready signal.
func (s *Supervisor) scanOutput(inst *instance, pipe io.ReadCloser, stream reporting.OutputStream) {
	defer pipe.Close()

	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		s.publish(reporting.NewToolOutputEvent(inst.info.Tool, stream, line))

		if lineSignalsReadiness(line) {
			inst.readyOnce.Do(func() {
				s.publish(reporting.NewToolReadyEvent(inst.info.Tool, inst.info.Port, false))
			})
		}
	}
}

// confirmReadiness runs the HTTP handshake against the worker's /info
// endpoint. First confirmation wins over the log sniff: if the probe lands
// before any readiness line, the ready event is emitted as confirmed.
func (s *Supervisor) confirmReadiness(ctx context.Context, inst *instance) {
	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-inst.done
		cancel()
	}()

	if err := probeReadiness(probeCtx, inst.info.Port); err != nil {
		logging.Debug("Supervisor", "Readiness probe for %s did not confirm: %v", inst.info.Tool, err)
		return
	}

	inst.readyOnce.Do(func() {
		s.publish(reporting.NewToolReadyEvent(inst.info.Tool, inst.info.Port, true))
	})
}

// waitForExit observes process termination for any reason, clears the
// instance entry and emits tool.stopped. Crashes are reported, never retried.
func (s *Supervisor) waitForExit(inst *instance) {
	err := inst.cmd.Wait()

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	s.mu.Lock()
	if current, ok := s.instances[inst.info.Tool]; ok && current == inst {
		delete(s.instances, inst.info.Tool)
	}
	s.mu.Unlock()

	close(inst.done)

	unexpected := !inst.wasStopRequested()
	if unexpected {
		logging.Warn("Supervisor", "Tool %s exited unexpectedly with code %d", inst.info.Tool, exitCode)
	} else {
		logging.Debug("Supervisor", "Tool %s exited with code %d", inst.info.Tool, exitCode)
	}
	s.publish(reporting.NewToolStoppedEvent(inst.info.Tool, exitCode, unexpected))
}

// Stop sends a platform-appropriate terminate request to the tool's process
// tree, waits up to StopTimeout for the exit, then clears the instance entry
// unconditionally. A timed-out wait returns StopUnconfirmed rather than
// pretending the process exited.
func (s *Supervisor) Stop(toolID string) (StopOutcome, error) {
	s.mu.Lock()
	inst, ok := s.instances[toolID]
	if !ok {
		s.mu.Unlock()
		return StopNotRunning, nil
	}
	s.mu.Unlock()

	inst.markStopRequested()

	if err := terminateProcess(inst.info.PID); err != nil {
		logging.Warn("Supervisor", "Terminate request for %s (PID %d) failed: %v", toolID, inst.info.PID, err)
	}

	outcome := StopConfirmed
	select {
	case <-inst.done:
	case <-time.After(s.StopTimeout):
		outcome = StopUnconfirmed
		logging.Warn("Supervisor", "Tool %s did not confirm exit within %s; clearing instance entry", toolID, s.StopTimeout)
	}

	// Best-effort cleanup: the entry goes away even when the exit was never
	// confirmed, so the table reflects intent rather than reality.
	s.mu.Lock()
	if current, ok := s.instances[toolID]; ok && current == inst {
		delete(s.instances, toolID)
	}
	s.mu.Unlock()

	return outcome, nil
}

// StopAll stops every running instance. Used on shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.instances))
	for id := range s.instances {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if _, err := s.Stop(id); err != nil {
			logging.Warn("Supervisor", "Stop of %s during shutdown failed: %v", id, err)
		}
	}
}

// Instance returns the running instance info for a tool id, if any.
func (s *Supervisor) Instance(toolID string) (InstanceInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[toolID]
	if !ok {
		return InstanceInfo{}, false
	}
	return inst.info, true
}

// Instances returns a snapshot of all running instances.
func (s *Supervisor) Instances() []InstanceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]InstanceInfo, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, inst.info)
	}
	return out
}

func (s *Supervisor) publish(event reporting.Event) {
	if s.bus != nil {
		s.bus.Publish(event)
	}
}
