package buildinfo

import "runtime/debug"

// Set at build time via -ldflags "-X github.com/fulmenhq/stigmergylite/pkg/buildinfo.BinaryVersion=...".
var (
	BinaryVersion = "dev"
	Commit        = ""
	BuildDate     = ""
)

// ModuleVersion returns the module version embedded by the Go toolchain (when available).
func ModuleVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return ""
}

// Version returns the ldflags version, falling back to the module version for
// `go install` builds where BinaryVersion is left at its default.
func Version() string {
	if BinaryVersion != "dev" {
		return BinaryVersion
	}
	if mv := ModuleVersion(); mv != "" && mv != "(devel)" {
		return mv
	}
	return BinaryVersion
}

// VCSRevision reports the commit recorded by the toolchain when Commit was not stamped.
func VCSRevision() string {
	if Commit != "" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return ""
}
