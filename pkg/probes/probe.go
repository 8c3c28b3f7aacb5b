package probes

import "context"

// Probe answers one narrow health question about a daemon or the host.
// Run never panics and never blocks past the context deadline; a probe
// that cannot complete in time reports failure, not a crash.
type Probe interface {
	Name() string
	Run(ctx context.Context) (ok bool, message string)
}

// FuncProbe adapts a plain function to the Probe interface.
type FuncProbe struct {
	ProbeName string
	Func      func(ctx context.Context) (bool, string)
}

func (p FuncProbe) Name() string {
	return p.ProbeName
}

func (p FuncProbe) Run(ctx context.Context) (bool, string) {
	return p.Func(ctx)
}
