package provision

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/fulmenhq/stigmergylite/internal/catalog"
	"github.com/fulmenhq/stigmergylite/pkg/platform"
	"github.com/fulmenhq/stigmergylite/pkg/safeio"
	"github.com/fulmenhq/stigmergylite/pkg/tools"
)

const (
	costLookup   = 1
	costWritable = 2
)

// Candidate is one strategy in resolver order with its precondition verdict.
type Candidate struct {
	Strategy catalog.Strategy `json:"strategy" yaml:"strategy"`
	Index    int              `json:"index" yaml:"index"`
	Cost     int              `json:"cost" yaml:"cost"`
	Viable   bool             `json:"viable" yaml:"viable"`
	Reason   string           `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Plan is the resolver's answer for one tool.
type Plan struct {
	Tool       string      `json:"tool" yaml:"tool"`
	Supported  bool        `json:"supported" yaml:"supported"`
	Reason     string      `json:"reason,omitempty" yaml:"reason,omitempty"`
	Candidates []Candidate `json:"candidates" yaml:"candidates"`
}

// Viable counts candidates whose precondition holds.
func (p Plan) Viable() int {
	n := 0
	for _, c := range p.Candidates {
		if c.Viable {
			n++
		}
	}
	return n
}

// Attemptable reports whether any strategy may run at all.
func (p Plan) Attemptable() bool {
	return p.Supported && p.Viable() > 0
}

// Resolver orders a tool's strategies for an environment.
type Resolver struct {
	Checker tools.Checker
	// Writable returns nil when dir accepts new files.
	Writable func(dir string) error
	// Interactive is false when nobody can answer an elevation prompt.
	Interactive bool
}

// NewResolver returns a resolver that checks writability on the real filesystem.
func NewResolver(checker tools.Checker, interactive bool) *Resolver {
	return &Resolver{Checker: checker, Writable: WritableDir, Interactive: interactive}
}

// WritableDir probes dir with a throwaway file.
func WritableDir(dir string) error {
	return safeio.DirWritable(osfs.New(dir), ".")
}

// Resolve filters strategies by OS family and platform, evaluates every
// precondition, and sorts by (elevation penalty, cost, declared index).
// Equal inputs always give the same order.
func (r *Resolver) Resolve(spec catalog.ToolSpec, env platform.Environment) Plan {
	plan := Plan{Tool: spec.Name, Supported: true}
	pf := env.Platform()

	if len(spec.Platforms) > 0 && !slices.Contains(spec.Platforms, pf) {
		plan.Supported = false
		plan.Reason = fmt.Sprintf("%s is not supported on %s", spec.Title(), pf)
		return plan
	}
	if slices.Contains(spec.Unsupported, pf) {
		plan.Supported = false
		plan.Reason = fmt.Sprintf("%s is declared unsupported on %s", spec.Title(), pf)
		return plan
	}

	for i, s := range spec.Strategies {
		if s.OS != catalog.OSAny && s.OS != string(env.OSFamily) {
			continue
		}
		if len(s.Platforms) > 0 && !slices.Contains(s.Platforms, pf) {
			continue
		}
		c := Candidate{Strategy: s, Index: i, Cost: cost(s)}
		c.Reason = r.precondition(s, env)
		c.Viable = c.Reason == ""
		plan.Candidates = append(plan.Candidates, c)
	}
	if len(plan.Candidates) == 0 {
		plan.Supported = false
		plan.Reason = fmt.Sprintf("no install strategy for %s on %s", spec.Title(), pf)
		return plan
	}

	sort.SliceStable(plan.Candidates, func(i, j int) bool {
		a, b := plan.Candidates[i], plan.Candidates[j]
		if pa, pb := r.penalty(a.Strategy, env), r.penalty(b.Strategy, env); pa != pb {
			return pa < pb
		}
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		return a.Index < b.Index
	})
	return plan
}

func cost(s catalog.Strategy) int {
	c := costLookup * (len(s.Requires) + len(s.RequiresAny))
	if s.Writable != "" {
		c += costWritable
	}
	return c
}

func (r *Resolver) penalty(s catalog.Strategy, env platform.Environment) int {
	if s.NeedsElevation() && !env.HasElevatedPrivilege {
		return 1
	}
	return 0
}

// precondition returns "" when s may run, otherwise why it may not.
func (r *Resolver) precondition(s catalog.Strategy, env platform.Environment) string {
	if s.NeedsElevation() && !env.HasElevatedPrivilege && !r.Interactive {
		return "requires elevated privilege"
	}
	var missing []string
	for _, name := range s.Requires {
		if !r.Checker.Exists(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Sprintf("not found on PATH: %s", strings.Join(missing, ", "))
	}
	if len(s.RequiresAny) > 0 {
		found := false
		for _, name := range s.RequiresAny {
			if r.Checker.Exists(name) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Sprintf("none found on PATH: %s", strings.Join(s.RequiresAny, ", "))
		}
	}
	if s.Writable != "" && r.Writable != nil {
		if err := r.Writable(s.Writable); err != nil {
			return fmt.Sprintf("%s is not writable", s.Writable)
		}
	}
	return ""
}
