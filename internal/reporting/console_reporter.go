package reporting

import (
	"aetherd/pkg/logging"
)

// ConsoleReporter subscribes to an event bus and mirrors events into the
// logging package, which is how the CLI commands observe the orchestrator.
// The desktop host consumes the bus directly instead.
type ConsoleReporter struct {
	bus          EventBus
	subscription *EventSubscription
}

// NewConsoleReporter creates a reporter attached to the given bus. Events at
// or above minSeverity are logged; tool output lines are always forwarded at
// debug level.
func NewConsoleReporter(bus EventBus, minSeverity EventSeverity) *ConsoleReporter {
	r := &ConsoleReporter{bus: bus}
	filter := func(event Event) bool {
		if event.Type() == EventTypeToolOutput {
			return true
		}
		return FilterBySeverity(minSeverity)(event)
	}
	r.subscription = bus.Subscribe(filter, r.report)
	return r
}

func (r *ConsoleReporter) report(event Event) {
	subsystem := "Event"
	if event.Source() != "" {
		subsystem = "Event-" + event.Source()
	}

	switch e := event.(type) {
	case ToolOutputEvent:
		logging.Debug(subsystem, "%s", e.String())
	case ErrorEvent:
		logging.Error(subsystem, e.Err, "%s", e.Message)
	case ToolStoppedEvent:
		if e.Unexpected && e.ExitCode != 0 {
			logging.Error(subsystem, nil, "%s", e.String())
		} else {
			logging.Info(subsystem, "%s", e.String())
		}
	default:
		switch event.Severity() {
		case SeverityWarn:
			logging.Warn(subsystem, "%s", event.String())
		case SeverityError, SeverityFatal:
			logging.Error(subsystem, nil, "%s", event.String())
		case SeverityDebug:
			logging.Debug(subsystem, "%s", event.String())
		default:
			logging.Info(subsystem, "%s", event.String())
		}
	}
}

// Close detaches the reporter from the bus.
func (r *ConsoleReporter) Close() {
	if r.subscription != nil {
		r.bus.Unsubscribe(r.subscription)
	}
}
