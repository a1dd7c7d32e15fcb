package provision

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fulmenhq/stigmergylite/internal/catalog"
	"github.com/fulmenhq/stigmergylite/pkg/config"
	"github.com/fulmenhq/stigmergylite/pkg/logger"
	"github.com/fulmenhq/stigmergylite/pkg/platform"
	"github.com/fulmenhq/stigmergylite/pkg/tools"
)

// Preparer runs a catalog prepare action before a tool is installed.
type Preparer interface {
	Prepare(ctx context.Context, action string, spec catalog.ToolSpec) error
}

// Hook runs after a tool's result is final.
type Hook func(ctx context.Context, res *ToolInstallResult)

// Options wires an Orchestrator.
type Options struct {
	Config    *config.Config
	Catalog   *catalog.Catalog
	Env       platform.Environment
	Render    catalog.Context
	Path      *tools.SearchPath
	Resolver  *Resolver
	Installer *Installer
	Preparer  Preparer
	AfterTool map[string]Hook
}

// Orchestrator provisions the enabled tools one at a time in a fixed order.
type Orchestrator struct {
	cfg       *config.Config
	cat       *catalog.Catalog
	env       platform.Environment
	render    catalog.Context
	path      *tools.SearchPath
	resolver  *Resolver
	installer *Installer
	preparer  Preparer
	after     map[string]Hook
}

// New validates the configuration against the catalog once.
func New(o Options) (*Orchestrator, error) {
	if o.Config == nil || o.Catalog == nil || o.Resolver == nil || o.Installer == nil {
		return nil, fmt.Errorf("orchestrator: config, catalog, resolver and installer are required")
	}
	if err := o.Config.Validate(o.Catalog.Names()); err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:       o.Config,
		cat:       o.Catalog,
		env:       o.Env,
		render:    o.Render,
		path:      o.Path,
		resolver:  o.Resolver,
		installer: o.Installer,
		preparer:  o.Preparer,
		after:     o.AfterTool,
	}, nil
}

// Environment is the snapshot taken when the run started.
func (o *Orchestrator) Environment() platform.Environment { return o.env }

// Order returns the enabled tools: required ones first, then the rest in the
// order they were enabled.
func (o *Orchestrator) Order() []catalog.ToolSpec {
	specs := make([]catalog.ToolSpec, 0, len(o.cfg.Tools))
	for _, name := range o.cfg.Tools {
		if spec, ok := o.cat.Tool(name); ok {
			specs = append(specs, spec)
		}
	}
	sort.SliceStable(specs, func(i, j int) bool {
		return specs[i].Required && !specs[j].Required
	})
	return specs
}

// InstallAll provisions every enabled tool. The returned error is non-nil only
// when a required tool could not be installed; the summary is always complete
// up to that tool.
func (o *Orchestrator) InstallAll(ctx context.Context) (*Summary, error) {
	start := time.Now()
	sum := &Summary{Environment: o.env}

	if o.path != nil {
		tools.RefreshSearchPath(o.path, o.render.Dirs.List())
	}

	for _, spec := range o.Order() {
		res := o.InstallTool(ctx, spec)
		sum.Results = append(sum.Results, res)
		if IsFatal(res.Err, res.Required) {
			sum.Elapsed = time.Since(start)
			return sum, res.Err
		}
	}
	sum.Elapsed = time.Since(start)
	logger.Info("Provisioning finished",
		logger.Int("installed", sum.Count(StatusInstalled)),
		logger.Int("present", sum.Count(StatusAlreadyPresent)),
		logger.Int("failed", sum.Count(StatusFailed)),
		logger.Int("unsupported", sum.Count(StatusSkippedUnsupportedPlatform)),
		logger.Duration("elapsed", sum.Elapsed))
	return sum, nil
}

// InstallChain provisions names in the given order and stops at the first
// tool that is not usable afterwards. Each tool may rely on the ones before it.
func (o *Orchestrator) InstallChain(ctx context.Context, names ...string) (*Summary, error) {
	start := time.Now()
	sum := &Summary{Environment: o.env}

	if o.path != nil {
		tools.RefreshSearchPath(o.path, o.render.Dirs.List())
	}

	for _, name := range names {
		raw, ok := o.cat.Tool(name)
		if !ok {
			return sum, fmt.Errorf("unknown tool %q", name)
		}
		res := o.InstallTool(ctx, raw)
		sum.Results = append(sum.Results, res)
		if !res.OK() {
			sum.Elapsed = time.Since(start)
			return sum, fmt.Errorf("%s is unavailable: %w", raw.Title(), res.Err)
		}
	}
	sum.Elapsed = time.Since(start)
	return sum, nil
}

// InstallTool provisions one tool. It never runs a strategy for a tool that is
// already present.
func (o *Orchestrator) InstallTool(ctx context.Context, raw catalog.ToolSpec) ToolInstallResult {
	res := ToolInstallResult{Tool: raw.Name, Required: raw.Required}
	spec, err := o.render.Render(raw)
	if err != nil {
		res.Status = StatusFailed
		res.Err = &ToolError{Tool: raw.Name, Kind: ErrStrategyExhausted, Detail: err.Error()}
		return o.finish(ctx, res)
	}
	res.Manual = spec.Manual

	if path, ok := o.installer.Present(spec); ok {
		logger.Info(spec.Title()+" already present", logger.String("path", path))
		res.Status = StatusAlreadyPresent
		res.Path = path
		return o.finish(ctx, res)
	}

	o.warnIfMissing(spec, &res)

	if !o.cfg.AutoInstall {
		res.Status = StatusFailed
		res.Err = o.exhausted(spec, "automatic installation is disabled")
		return o.finish(ctx, res)
	}

	plan := o.resolver.Resolve(spec, o.env)
	if !plan.Attemptable() {
		reason := plan.Reason
		if reason == "" {
			reason = "no strategy precondition is satisfied"
		}
		logger.Warn(spec.Title()+" cannot be installed here", logger.String("reason", reason))
		res.Status = StatusSkippedUnsupportedPlatform
		res.Err = &ToolError{Tool: spec.Name, Kind: ErrPlatformUnsupported, Detail: reason}
		return o.finish(ctx, res)
	}

	o.prepare(ctx, spec, &res)

	for _, c := range plan.Candidates {
		if !c.Viable {
			res.record(InstallAttempt{Strategy: c.Strategy.Label, Outcome: OutcomeSkippedPrecondition, Reason: c.Reason})
			continue
		}
		if o.installer.Run(ctx, spec, c, &res) {
			res.Status = StatusInstalled
			return o.finish(ctx, res)
		}
		if ctx.Err() != nil {
			break
		}
	}

	res.Status = StatusFailed
	res.Err = o.exhausted(spec, fmt.Sprintf("%d attempt(s) failed", len(res.Attempts)))
	return o.finish(ctx, res)
}

func (o *Orchestrator) exhausted(spec catalog.ToolSpec, detail string) *ToolError {
	e := &ToolError{Tool: spec.Name, Kind: ErrStrategyExhausted, Detail: detail}
	if spec.Required && o.env.IsContainer {
		e.Hint = spec.ContainerHint
	}
	return e
}

func (o *Orchestrator) warnIfMissing(spec catalog.ToolSpec, res *ToolInstallResult) {
	for _, dep := range spec.WarnIfMissing {
		depSpec, ok := o.cat.Tool(dep)
		if !ok {
			continue
		}
		rendered, err := o.render.Render(depSpec)
		if err != nil {
			continue
		}
		if _, present := o.installer.Present(rendered); !present {
			msg := fmt.Sprintf("%s is not installed; %s depends on it", rendered.Title(), spec.Title())
			logger.Warn(msg)
			res.warn(msg)
		}
	}
}

func (o *Orchestrator) prepare(ctx context.Context, spec catalog.ToolSpec, res *ToolInstallResult) {
	if o.preparer == nil {
		return
	}
	for _, action := range spec.Prepare {
		if err := o.preparer.Prepare(ctx, action, spec); err != nil {
			logger.Warn("Prepare step failed", logger.String("action", action), logger.Err(err))
			res.warn(fmt.Sprintf("%s: %v", action, err))
		}
	}
}

func (o *Orchestrator) finish(ctx context.Context, res ToolInstallResult) ToolInstallResult {
	if res.Err != nil && res.Status != StatusSkippedUnsupportedPlatform {
		if IsFatal(res.Err, res.Required) {
			logger.Error("Required tool unavailable", logger.Err(res.Err))
		} else {
			logger.Warn("Tool not installed", logger.Err(res.Err))
		}
	}
	if h := o.after[res.Tool]; h != nil {
		h(ctx, &res)
	}
	return res
}

// ToolPlan is what a dry run reports for one tool.
type ToolPlan struct {
	Tool    string `json:"tool" yaml:"tool"`
	Present bool   `json:"present" yaml:"present"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
	Plan    Plan   `json:"plan" yaml:"plan"`
}

// PlanAll resolves every enabled tool without executing anything.
func (o *Orchestrator) PlanAll() ([]ToolPlan, error) {
	var out []ToolPlan
	for _, raw := range o.Order() {
		spec, err := o.render.Render(raw)
		if err != nil {
			return nil, err
		}
		tp := ToolPlan{Tool: spec.Name}
		if tp.Path, tp.Present = o.installer.Present(spec); !tp.Present {
			tp.Plan = o.resolver.Resolve(spec, o.env)
		}
		out = append(out, tp)
	}
	return out, nil
}
