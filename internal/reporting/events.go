package reporting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of event
type EventType string

const (
	// Boot sequence events
	EventTypeBootProgress EventType = "boot.progress"

	// Tool lifecycle events
	EventTypeToolReady   EventType = "tool.ready"
	EventTypeToolStopped EventType = "tool.stopped"
	EventTypeToolOutput  EventType = "tool.output"

	// Provisioning events
	EventTypeEnvCreated     EventType = "env.created"
	EventTypeEnvDepsReady   EventType = "env.deps-installed"
	EventTypeEnvProvisioned EventType = "env.provisioned"

	// Plugin events
	EventTypePluginLoaded   EventType = "plugin.loaded"
	EventTypePluginUnloaded EventType = "plugin.unloaded"

	// Error events
	EventTypeError EventType = "orchestrator.error"
)

// EventSeverity indicates the importance/severity of an event
type EventSeverity string

const (
	SeverityDebug EventSeverity = "debug"
	SeverityInfo  EventSeverity = "info"
	SeverityWarn  EventSeverity = "warn"
	SeverityError EventSeverity = "error"
	SeverityFatal EventSeverity = "fatal"
)

// Event is the base interface for all events in the system
type Event interface {
	// Type returns the event type
	Type() EventType

	// Source returns the component or tool that generated this event
	Source() string

	// Timestamp returns when the event occurred
	Timestamp() time.Time

	// Severity returns the event severity
	Severity() EventSeverity

	// CorrelationID returns the correlation ID for tracing related events
	CorrelationID() string

	// String returns a human-readable description of the event
	String() string
}

// GenerateCorrelationID returns a fresh ID for correlating related events.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// BaseEvent provides common event functionality
type BaseEvent struct {
	EventType     EventType     `json:"type"`
	SourceLabel   string        `json:"source"`
	EventTime     time.Time     `json:"timestamp"`
	EventSeverity EventSeverity `json:"severity"`
	CorrelationId string        `json:"correlation_id"`
}

func newBaseEvent(eventType EventType, source string, severity EventSeverity) BaseEvent {
	return BaseEvent{
		EventType:     eventType,
		SourceLabel:   source,
		EventTime:     time.Now(),
		EventSeverity: severity,
		CorrelationId: GenerateCorrelationID(),
	}
}

// Type implements Event interface
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Source implements Event interface
func (e BaseEvent) Source() string {
	return e.SourceLabel
}

// Timestamp implements Event interface
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// Severity implements Event interface
func (e BaseEvent) Severity() EventSeverity {
	return e.EventSeverity
}

// CorrelationID implements Event interface
func (e BaseEvent) CorrelationID() string {
	return e.CorrelationId
}

// String implements Event interface
func (e BaseEvent) String() string {
	return string(e.EventType) + " from " + e.SourceLabel
}

// WithCorrelation sets an explicit correlation ID, linking this event to an
// earlier one (e.g. all events of one boot run share the boot's ID).
func (e *BaseEvent) WithCorrelation(correlationID string) {
	if correlationID != "" {
		e.CorrelationId = correlationID
	}
}

// BootProgressEvent reports a boot sequence milestone.
type BootProgressEvent struct {
	BaseEvent
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Percent int    `json:"percent"`
	Tool    string `json:"tool,omitempty"`
}

// NewBootProgressEvent creates a boot progress event.
func NewBootProgressEvent(stage, message string, percent int, tool string) BootProgressEvent {
	return BootProgressEvent{
		BaseEvent: newBaseEvent(EventTypeBootProgress, "boot", SeverityInfo),
		Stage:     stage,
		Message:   message,
		Percent:   percent,
		Tool:      tool,
	}
}

// String returns a human-readable description
func (e BootProgressEvent) String() string {
	if e.Tool != "" {
		return fmt.Sprintf("[%3d%%] %s: %s (%s)", e.Percent, e.Stage, e.Message, e.Tool)
	}
	return fmt.Sprintf("[%3d%%] %s: %s", e.Percent, e.Stage, e.Message)
}

// ToolReadyEvent reports that a tool signaled readiness on its port.
type ToolReadyEvent struct {
	BaseEvent
	Tool string `json:"tool"`
	Port int    `json:"port"`
	// Confirmed is true when readiness was verified via the HTTP handshake,
	// false when it was inferred from a log line.
	Confirmed bool `json:"confirmed"`
}

// NewToolReadyEvent creates a tool ready event.
func NewToolReadyEvent(tool string, port int, confirmed bool) ToolReadyEvent {
	return ToolReadyEvent{
		BaseEvent: newBaseEvent(EventTypeToolReady, tool, SeverityInfo),
		Tool:      tool,
		Port:      port,
		Confirmed: confirmed,
	}
}

// String returns a human-readable description
func (e ToolReadyEvent) String() string {
	suffix := ""
	if !e.Confirmed {
		suffix = " (unconfirmed)"
	}
	return fmt.Sprintf("%s ready on port %d%s", e.Tool, e.Port, suffix)
}

// ToolStoppedEvent reports that a tool's process exited, expectedly or not.
type ToolStoppedEvent struct {
	BaseEvent
	Tool     string `json:"tool"`
	ExitCode int    `json:"exit_code"`
	// Unexpected is true when the process exited without a stop request.
	Unexpected bool `json:"unexpected"`
}

// NewToolStoppedEvent creates a tool stopped event.
func NewToolStoppedEvent(tool string, exitCode int, unexpected bool) ToolStoppedEvent {
	severity := SeverityInfo
	if unexpected && exitCode != 0 {
		severity = SeverityError
	}
	return ToolStoppedEvent{
		BaseEvent:  newBaseEvent(EventTypeToolStopped, tool, severity),
		Tool:       tool,
		ExitCode:   exitCode,
		Unexpected: unexpected,
	}
}

// String returns a human-readable description
func (e ToolStoppedEvent) String() string {
	if e.Unexpected {
		return fmt.Sprintf("%s exited unexpectedly (code %d)", e.Tool, e.ExitCode)
	}
	return fmt.Sprintf("%s stopped (code %d)", e.Tool, e.ExitCode)
}

// OutputStream identifies which stream a tool output line came from.
type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

// ToolOutputEvent forwards one line of a tool's output.
type ToolOutputEvent struct {
	BaseEvent
	Tool   string       `json:"tool"`
	Stream OutputStream `json:"stream"`
	Line   string       `json:"line"`
}

// NewToolOutputEvent creates a tool output event.
func NewToolOutputEvent(tool string, stream OutputStream, line string) ToolOutputEvent {
	severity := SeverityDebug
	if stream == StreamStderr {
		severity = SeverityInfo
	}
	return ToolOutputEvent{
		BaseEvent: newBaseEvent(EventTypeToolOutput, tool, severity),
		Tool:      tool,
		Stream:    stream,
		Line:      line,
	}
}

// String returns a human-readable description
func (e ToolOutputEvent) String() string {
	return fmt.Sprintf("[%s %s] %s", e.Tool, e.Stream, e.Line)
}

// ProvisionEvent reports a provisioning milestone for a tool.
type ProvisionEvent struct {
	BaseEvent
	Tool        string `json:"tool"`
	RuntimePath string `json:"runtime_path,omitempty"`
}

// NewProvisionEvent creates a provisioning milestone event of the given type
// (env.created, env.deps-installed or env.provisioned).
func NewProvisionEvent(eventType EventType, tool, runtimePath string) ProvisionEvent {
	return ProvisionEvent{
		BaseEvent:   newBaseEvent(eventType, tool, SeverityInfo),
		Tool:        tool,
		RuntimePath: runtimePath,
	}
}

// String returns a human-readable description
func (e ProvisionEvent) String() string {
	return fmt.Sprintf("%s: %s", e.EventType, e.Tool)
}

// PluginEvent reports plugin registration changes.
type PluginEvent struct {
	BaseEvent
	Plugin string `json:"plugin"`
	Port   int    `json:"port,omitempty"`
}

// NewPluginEvent creates a plugin loaded/unloaded event.
func NewPluginEvent(eventType EventType, plugin string, port int) PluginEvent {
	return PluginEvent{
		BaseEvent: newBaseEvent(eventType, plugin, SeverityInfo),
		Plugin:    plugin,
		Port:      port,
	}
}

// String returns a human-readable description
func (e PluginEvent) String() string {
	return fmt.Sprintf("%s: %s", e.EventType, e.Plugin)
}

// ErrorEvent reports a non-fatal orchestrator error to the observer.
type ErrorEvent struct {
	BaseEvent
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// NewErrorEvent creates an error event. source identifies the failing
// component or tool; err may be nil.
func NewErrorEvent(source, message string, err error) ErrorEvent {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return ErrorEvent{
		BaseEvent: newBaseEvent(EventTypeError, source, SeverityError),
		Message:   message,
		Details:   details,
		Err:       err,
	}
}

// String returns a human-readable description
func (e ErrorEvent) String() string {
	if e.Details != "" {
		return fmt.Sprintf("error from %s: %s (%s)", e.SourceLabel, e.Message, e.Details)
	}
	return fmt.Sprintf("error from %s: %s", e.SourceLabel, e.Message)
}
