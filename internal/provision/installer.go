package provision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fulmenhq/stigmergylite/internal/catalog"
	"github.com/fulmenhq/stigmergylite/pkg/logger"
	"github.com/fulmenhq/stigmergylite/pkg/tools"
)

// Persister makes a directory durable on the user's PATH. The bool is true
// when a store was actually written.
type Persister interface {
	Persist(ctx context.Context, dir string) (bool, error)
}

// GitConfigurer applies key/value pairs to the user's global git config.
type GitConfigurer interface {
	ApplyGitConfig(values map[string]string) error
}

// Timeouts bound each external step.
type Timeouts struct {
	Install  time.Duration
	Download time.Duration
	Probe    time.Duration
}

// Installer runs one strategy, then verifies the tool independently of the
// installer's own exit code.
type Installer struct {
	Runner   tools.Executor
	Checker  tools.Checker
	Path     *tools.SearchPath
	HTTP     *http.Client
	Retry    *RetryController
	Persist  Persister
	Git      GitConfigurer
	Timeouts Timeouts
	CacheDir string
	// Stream inherits the console; false captures silently.
	Stream bool
	// Stat defaults to os.Stat.
	Stat func(string) (os.FileInfo, error)
	Now  func() time.Time
}

func (in *Installer) stat(p string) (os.FileInfo, error) {
	if in.Stat != nil {
		return in.Stat(p)
	}
	return os.Stat(p)
}

func (in *Installer) now() time.Time {
	if in.Now != nil {
		return in.Now()
	}
	return time.Now()
}

// Present reports whether the tool is already usable and where it lives.
// It never runs the tool.
func (in *Installer) Present(spec catalog.ToolSpec) (string, bool) {
	if spec.Marker != "" {
		if _, err := in.stat(spec.Marker); err == nil {
			return spec.Marker, true
		}
		return "", false
	}
	return in.Checker.Resolve(spec.Executable)
}

// Verify confirms the tool after an install: the executable resolves and its
// version probe exits zero, or the marker exists.
func (in *Installer) Verify(ctx context.Context, spec catalog.ToolSpec) (path, version string, err error) {
	if spec.Marker != "" {
		if _, err := in.stat(spec.Marker); err != nil {
			return "", "", fmt.Errorf("%w: %s was not created", ErrVerificationFailed, spec.Marker)
		}
		return spec.Marker, "", nil
	}
	path, ok := in.Checker.Resolve(spec.Executable)
	if !ok {
		return "", "", fmt.Errorf("%w: %s not found on PATH", ErrVerificationFailed, spec.Executable)
	}
	if spec.VersionProbe == "" {
		return path, "", nil
	}
	res, err := in.Runner.Execute(ctx, tools.ExecuteOptions{Command: spec.VersionProbe, Timeout: in.Timeouts.Probe})
	if err != nil {
		return path, "", fmt.Errorf("%w: %s: %v", ErrVerificationFailed, spec.VersionProbe, err)
	}
	if !res.Succeeded() {
		return path, "", fmt.Errorf("%w: %s: %s", ErrVerificationFailed, spec.VersionProbe, DescribeFailure(res))
	}
	return path, catalog.FirstLine(string(res.Stdout)), nil
}

// Run executes one candidate under the retry budget, appending one
// InstallAttempt per execution to res. It returns true once the tool verified.
func (in *Installer) Run(ctx context.Context, spec catalog.ToolSpec, c Candidate, res *ToolInstallResult) bool {
	s := c.Strategy
	log := []logger.Field{logger.String("tool", spec.Name), logger.String("strategy", s.Label)}

	op := func(retry int) error {
		start := in.now()
		attempt := InstallAttempt{Strategy: s.Label, RetryIndex: retry}
		logger.Info("Installing "+spec.Title(), append(log, logger.Int("attempt", retry+1))...)

		err := in.execute(ctx, s, &attempt)
		if err == nil {
			in.applyPathEntry(s)
			var path, version string
			if path, version, err = in.Verify(ctx, spec); err == nil {
				res.Path, res.Version = path, version
				attempt.Outcome = OutcomeSucceeded
			} else {
				attempt.Failure = FailureVerification
				attempt.Reason = err.Error()
			}
		}
		if err != nil {
			attempt.Outcome = OutcomeFailed
			logger.Warn("Install attempt failed", append(log, logger.String("failure", string(attempt.Failure)), logger.Err(err))...)
		}
		attempt.Elapsed = in.now().Sub(start)
		res.record(attempt)
		return err
	}
	onWait := func(retry int, wait time.Duration, _ error) {
		logger.Info("Retrying after network failure", append(log, logger.Duration("wait", wait), logger.Int("next_attempt", retry+1))...)
	}

	retry := in.Retry
	if retry == nil {
		retry = NewRetryController(DefaultRetryPolicy)
	}
	if err := retry.Run(ctx, s.Network, op, onWait); err != nil {
		return false
	}

	logger.Info(spec.Title()+" installed", append(log, logger.String("path", res.Path))...)
	in.afterSuccess(ctx, s, res)
	return true
}

// execute runs the strategy body and fills attempt's failure fields.
// Errors that cannot improve on retry are wrapped with backoff.Permanent.
func (in *Installer) execute(ctx context.Context, s catalog.Strategy, attempt *InstallAttempt) error {
	if s.KindOrDefault() == catalog.KindArtifact {
		return in.fetch(ctx, s, attempt)
	}

	timeout := time.Duration(s.Timeout)
	if timeout == 0 {
		timeout = in.Timeouts.Install
	}
	out, err := in.Runner.Execute(ctx, tools.ExecuteOptions{Command: s.Command, Timeout: timeout, Stream: in.Stream})
	if err != nil {
		attempt.Failure = FailureStart
		attempt.Reason = err.Error()
		return backoff.Permanent(err)
	}
	attempt.ExitCode = out.ExitCode
	attempt.StderrTail = tail(out.Stderr, stderrTailBytes)
	if out.Succeeded() {
		return nil
	}
	switch {
	case out.TimedOut:
		attempt.Failure = FailureTimeout
	case out.Signal != "":
		attempt.Failure = FailureSignal
	default:
		attempt.Failure = FailureExit
	}
	attempt.Reason = DescribeFailure(out)
	return errors.New(attempt.Reason)
}

func (in *Installer) fetch(ctx context.Context, s catalog.Strategy, attempt *InstallAttempt) error {
	if s.Artifact == nil {
		attempt.Failure = FailureDownload
		attempt.Reason = "strategy has no artifact"
		return backoff.Permanent(errors.New(attempt.Reason))
	}
	timeout := time.Duration(s.Timeout)
	if timeout == 0 {
		timeout = in.Timeouts.Download
	}
	client := in.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	_, err := tools.FetchArtifact(ctx, client, tools.ArtifactRequest{
		URL:             s.Artifact.URL,
		Format:          s.Artifact.Format,
		Dest:            s.Artifact.Dest,
		StripComponents: s.Artifact.StripComponents,
		SHA256:          s.Artifact.SHA256,
		CacheDir:        in.CacheDir,
		Timeout:         timeout,
	})
	if err == nil {
		return nil
	}
	attempt.Failure = FailureDownload
	attempt.Reason = err.Error()
	if errors.Is(err, tools.ErrDownload) {
		return err
	}
	return backoff.Permanent(err)
}

func (in *Installer) applyPathEntry(s catalog.Strategy) {
	if s.PathEntry == "" || in.Path == nil {
		return
	}
	if info, err := in.stat(s.PathEntry); err != nil || !info.IsDir() {
		return
	}
	if in.Path.Prepend(s.PathEntry) {
		logger.Debug("Added install directory to session PATH", logger.String("dir", s.PathEntry))
	}
}

func (in *Installer) afterSuccess(ctx context.Context, s catalog.Strategy, res *ToolInstallResult) {
	if s.MutatesPath && s.PathEntry != "" && in.Persist != nil {
		if _, err := in.Persist.Persist(ctx, s.PathEntry); err != nil {
			perr := &ToolError{Tool: res.Tool, Kind: ErrPersistenceFailed, Detail: err.Error()}
			logger.Warn("Could not persist PATH entry", logger.String("dir", s.PathEntry), logger.Err(perr))
			res.warn(perr.Error())
		}
	}
	if len(s.PostGitConfig) > 0 && in.Git != nil {
		if err := in.Git.ApplyGitConfig(s.PostGitConfig); err != nil {
			logger.Warn("Could not apply git config", logger.Err(err))
			res.warn(fmt.Sprintf("git config not applied: %v", err))
		}
	}
}

// DescribeFailure renders why a command did not succeed.
func DescribeFailure(r *tools.ExecuteResult) string {
	switch {
	case r == nil:
		return "no result"
	case r.TimedOut:
		return fmt.Sprintf("timed out after %s", r.Duration.Round(time.Millisecond))
	case r.Signal != "":
		return "terminated by signal " + r.Signal
	default:
		return fmt.Sprintf("exit status %d", r.ExitCode)
	}
}
