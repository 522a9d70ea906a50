package orchestrator

import (
	"context"

	"aetherd/internal/config"
	"aetherd/internal/provision"
	"aetherd/internal/reporting"
	"aetherd/internal/runtime"
)

// stubDetector returns a canned detection outcome.
type stubDetector struct {
	rt  runtime.Runtime
	err error
}

func (d stubDetector) Detect(ctx context.Context) (runtime.Runtime, error) {
	return d.rt, d.err
}

// stubProvisioner records Ensure calls in order and succeeds with a fixed
// interpreter path unless the tool id is listed in failures.
type stubProvisioner struct {
	failures map[string]error
	calls    []string
}

func (p *stubProvisioner) Ensure(ctx context.Context, tool config.ToolConfig) (provision.Result, error) {
	p.calls = append(p.calls, tool.ID)
	if err, ok := p.failures[tool.ID]; ok {
		return provision.Result{}, err
	}
	return provision.Result{RuntimePath: "/stub/env/bin/python"}, nil
}

// stubBoot wires a succeeding detector and the given provisioner into an
// orchestrator so Boot can run past detection without touching the host.
func stubBoot(o *Orchestrator, p *stubProvisioner) {
	o.detector = stubDetector{rt: runtime.Runtime{
		Command: []string{"python3"},
		Path:    "/usr/bin/python3",
		Version: "3.11.0",
	}}
	o.provisionerFactory = func(rt runtime.Runtime, paths config.Paths, bus reporting.EventBus) toolProvisioner {
		return p
	}
}
