package tools

import (
	"github.com/fulmenhq/stigmergylite/pkg/logger"
)

// Checker answers whether an executable is resolvable without running it.
// Any resolution failure (missing, not executable, unreadable directory) is
// reported as absent rather than as an error.
type Checker interface {
	Exists(name string) bool
	Resolve(name string) (string, bool)
}

// PathChecker resolves executables against a run's SearchPath.
type PathChecker struct {
	path *SearchPath
}

// NewPathChecker returns a Checker bound to path.
func NewPathChecker(path *SearchPath) *PathChecker {
	return &PathChecker{path: path}
}

// Exists reports whether name resolves on the session PATH.
func (c *PathChecker) Exists(name string) bool {
	_, ok := c.Resolve(name)
	return ok
}

// Resolve returns the resolved location of name.
func (c *PathChecker) Resolve(name string) (string, bool) {
	found, ok := c.path.Lookup(name)
	if ok {
		logger.Trace("resolved executable", logger.String("name", name), logger.String("path", found))
	} else {
		logger.Trace("executable not on PATH", logger.String("name", name))
	}
	return found, ok
}

// StaticChecker is a fixed set of resolvable names, keyed by name with the
// resolved path as value. Useful wherever live PATH state is not wanted.
type StaticChecker map[string]string

func (s StaticChecker) Exists(name string) bool {
	_, ok := s[name]
	return ok
}

func (s StaticChecker) Resolve(name string) (string, bool) {
	p, ok := s[name]
	return p, ok
}
