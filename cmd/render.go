package cmd

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/fulmenhq/stigmergylite/internal/doctor"
	"github.com/fulmenhq/stigmergylite/internal/persist"
	"github.com/fulmenhq/stigmergylite/internal/provision"
	"github.com/fulmenhq/stigmergylite/pkg/ascii"
	"github.com/fulmenhq/stigmergylite/pkg/notify"
	"github.com/fulmenhq/stigmergylite/pkg/platform"
)

// wrapWidth keeps hints readable on an 80-column terminal.
const wrapWidth = 78

type planOutput struct {
	Environment platform.Environment `json:"environment" yaml:"environment" toml:"environment"`
	Plans       []provision.ToolPlan `json:"plans" yaml:"plans" toml:"plans"`
}

var statusLabels = map[provision.Status]string{
	provision.StatusAlreadyPresent:             "present",
	provision.StatusInstalled:                  "installed",
	provision.StatusFailed:                     "failed",
	provision.StatusSkippedUnsupportedPlatform: "unsupported",
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "- " + strings.TrimPrefix(ascii.Wrap(it, wrapWidth, "  "), "  ")
	}
	return strings.Join(lines, "\n")
}

func renderPlans(n *notify.Notifier, env platform.Environment, plans []provision.ToolPlan) {
	n.Titlef("Install plan for %s (dry run, nothing is executed)", env.Platform())
	t := ascii.NewTable("TOOL", "STATE", "STRATEGY", "COST", "NOTE")
	t.MaxWidth = 48
	for _, p := range plans {
		if p.Present {
			t.Add(p.Tool, "present", "", "", p.Path)
			continue
		}
		if !p.Plan.Supported {
			t.Add(p.Tool, "unsupported", "", "", p.Plan.Reason)
			continue
		}
		for i, c := range p.Plan.Candidates {
			tool, state := "", ""
			if i == 0 {
				tool, state = p.Tool, "missing"
			}
			note := "viable"
			if !c.Viable {
				note = c.Reason
			}
			t.Add(tool, state, c.Strategy.Label, fmt.Sprint(c.Cost), note)
		}
	}
	n.Plain(t.String())
}

func renderSummary(n *notify.Notifier, sum *provision.Summary) {
	if sum == nil {
		return
	}
	t := ascii.NewTable("TOOL", "STATUS", "VERSION", "PATH")
	for _, r := range sum.Results {
		t.Add(r.Tool, statusLabels[r.Status], r.Version, r.Path)
	}
	n.Plain(t.String())

	for _, r := range sum.Results {
		for _, w := range r.Warnings {
			n.Warnf("%s: %s", r.Tool, w)
		}
		if r.OK() {
			continue
		}
		if r.Status == provision.StatusSkippedUnsupportedPlatform {
			n.Warnf("%v", r.Err)
		} else if r.Err != nil {
			n.Errorf("%v", r.Err)
		}
		if len(r.Manual) > 0 {
			n.Infof("Install %s manually:\n%s", r.Tool, bulletList(r.Manual))
		}
	}

	ok := sum.Count(provision.StatusInstalled) + sum.Count(provision.StatusAlreadyPresent)
	if ok == len(sum.Results) {
		n.Successf("%d of %d tool(s) ready in %s", ok, len(sum.Results), sum.Elapsed.Round(100*time.Millisecond))
	} else {
		n.Warnf("%d of %d tool(s) ready in %s", ok, len(sum.Results), sum.Elapsed.Round(100*time.Millisecond))
	}
	if sum.Count(provision.StatusInstalled) > 0 {
		n.Infof("Open a new terminal so the updated PATH takes effect, then run 'stigmergylite doctor'.")
	}
}

var sectionTitles = map[doctor.Severity]string{
	doctor.SeverityIssue:   "Issues",
	doctor.SeverityWarning: "Warnings",
	doctor.SeverityInfo:    "Notes",
}

func renderReport(n *notify.Notifier, r *doctor.Report) {
	n.Titlef("Diagnostics for %s", r.Environment.Platform())
	t := ascii.NewTable("TOOL", "PRESENT", "VERSION", "PATH")
	for _, name := range slices.Sorted(maps.Keys(r.Tools)) {
		st := r.Tools[name]
		t.Add(name, yesNo(st.Present), st.Version, st.Path)
	}
	n.Plain(t.String())

	for _, sev := range []doctor.Severity{doctor.SeverityIssue, doctor.SeverityWarning, doctor.SeverityInfo} {
		findings := r.Findings(sev)
		if len(findings) == 0 {
			continue
		}
		n.Titlef("%s (%d)", sectionTitles[sev], len(findings))
		for _, f := range findings {
			msg := f.Message
			if f.Hint != "" {
				msg += "\n" + ascii.Wrap(f.Hint, wrapWidth, "→ ")
			}
			switch sev {
			case doctor.SeverityIssue:
				n.Errorf("%s", msg)
			case doctor.SeverityWarning:
				n.Warnf("%s", msg)
			default:
				n.Infof("%s", msg)
			}
		}
	}

	if r.Healthy {
		n.Successf("Healthy: %d warning(s)", len(r.Warnings))
	} else {
		n.Errorf("Unhealthy: %d issue(s); run 'stigmergylite fix' to repair what can be repaired", len(r.Issues))
	}
}

func renderFixes(n *notify.Notifier, fixes []doctor.Fix) {
	n.Titlef("Repairs")
	if len(fixes) == 0 {
		n.Infof("Nothing to repair")
		return
	}
	for _, f := range fixes {
		label := f.Action
		if f.Target != "" {
			label += " " + f.Target
		}
		if f.Applied {
			n.Successf("%s: %s", label, f.Detail)
		} else {
			n.Infof("%s: %s", label, f.Detail)
		}
	}
}

func renderPersist(n *notify.Notifier, rep persist.Report) {
	for _, t := range rep.Targets {
		if t.Action == persist.ActionPresent {
			n.Infof("%s already contains %s", t.Store, rep.Dir)
		} else {
			n.Successf("%s %s (%s)", ascii.Title(string(t.Action)), t.Store, rep.Dir)
		}
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
