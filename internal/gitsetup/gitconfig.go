// Package gitsetup applies first-run git defaults and locates Git Bash.
// ~/.gitconfig is edited directly, so git itself does not have to be on PATH yet.
package gitsetup

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/user"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	format "github.com/go-git/go-git/v5/plumbing/format/config"

	"github.com/fulmenhq/stigmergylite/pkg/config"
	"github.com/fulmenhq/stigmergylite/pkg/logger"
	"github.com/fulmenhq/stigmergylite/pkg/safeio"
)

// GlobalConfigFile is the user's git config, relative to home.
const GlobalConfigFile = ".gitconfig"

// Store reads and writes one git config file.
type Store struct {
	// FS is rooted at the user's home directory.
	FS   billy.Filesystem
	Name string
	Now  func() time.Time
}

// NewStore opens ~/.gitconfig under home.
func NewStore(home string) *Store {
	return &Store{FS: osfs.New(home), Name: GlobalConfigFile, Now: time.Now}
}

func (s *Store) read() ([]byte, *format.Config, error) {
	cfg := format.New()
	raw, err := util.ReadFile(s.FS, s.Name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, cfg, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if err := format.NewDecoder(bytes.NewReader(raw)).Decode(cfg); err != nil {
		return raw, nil, fmt.Errorf("failed to parse %s: %w", s.Name, err)
	}
	return raw, cfg, nil
}

// splitKey turns "section.key" or "section.sub.section.key" into parts.
func splitKey(key string) (section, subsection, name string, err error) {
	first := strings.Index(key, ".")
	last := strings.LastIndex(key, ".")
	if first <= 0 || last == len(key)-1 {
		return "", "", "", fmt.Errorf("invalid git config key %q", key)
	}
	section, name = key[:first], key[last+1:]
	if first != last {
		subsection = key[first+1 : last]
	}
	return section, subsection, name, nil
}

func lookup(cfg *format.Config, key string) string {
	section, sub, name, err := splitKey(key)
	if err != nil || !cfg.HasSection(section) {
		return ""
	}
	s := cfg.Section(section)
	if sub == "" {
		return s.Option(name)
	}
	if !s.HasSubsection(sub) {
		return ""
	}
	return s.Subsection(sub).Option(name)
}

// Get returns a value, or "" when unset or unreadable.
func (s *Store) Get(key string) string {
	_, cfg, err := s.read()
	if err != nil {
		return ""
	}
	return lookup(cfg, key)
}

// Set writes values and returns the keys whose value actually changed. The
// file is only rewritten when something changed; a file carrying comments is
// backed up first because re-encoding drops them.
func (s *Store) Set(values map[string]string) ([]string, error) {
	raw, cfg, err := s.read()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var changed []string
	for _, k := range keys {
		section, sub, name, err := splitKey(k)
		if err != nil {
			return nil, err
		}
		if lookup(cfg, k) == values[k] {
			continue
		}
		cfg.SetOption(section, sub, name, values[k])
		changed = append(changed, k)
	}
	if len(changed) == 0 {
		return nil, nil
	}

	if hasComments(raw) {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		backup, err := safeio.BackupFile(s.FS, s.Name, now())
		if err != nil {
			return nil, err
		}
		logger.Info("Backed up git config before rewriting", logger.String("backup", backup))
	}

	var buf bytes.Buffer
	if err := format.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	if err := safeio.WriteFileAtomic(s.FS, s.Name, buf.Bytes(), 0o644); err != nil {
		return nil, err
	}
	return changed, nil
}

// ApplyGitConfig lets provisioning strategies set global git options.
func (s *Store) ApplyGitConfig(values map[string]string) error {
	changed, err := s.Set(values)
	if err != nil {
		return err
	}
	for _, k := range changed {
		logger.Info("Set git config", logger.String("key", k), logger.String("value", values[k]))
	}
	return nil
}

func hasComments(raw []byte) bool {
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			return true
		}
	}
	return false
}

// Host supplies the identity defaults.
type Host struct {
	Username func() string
	Hostname func() (string, error)
}

// LocalHost reads the current OS user and hostname.
func LocalHost() Host {
	return Host{
		Username: func() string {
			u, err := user.Current()
			if err != nil {
				return ""
			}
			name := u.Username
			if i := strings.LastIndex(name, `\`); i >= 0 {
				name = name[i+1:]
			}
			return name
		},
		Hostname: os.Hostname,
	}
}

// DefaultEmail builds user@host, refusing placeholder host names.
func DefaultEmail(username, hostname string) (string, bool) {
	if username == "" || hostname == "" {
		return "", false
	}
	switch strings.ToLower(hostname) {
	case "localhost", "localdomain", "localhost.localdomain":
		return "", false
	}
	return username + "@" + hostname, true
}

// IdentityResult lists what ConfigureIdentity did.
type IdentityResult struct {
	Changed []string `json:"changed" yaml:"changed"`
	Hints   []string `json:"hints,omitempty" yaml:"hints,omitempty"`
}

// ConfigureIdentity fills in user.name and user.email, sets the default
// branch and, on windows, the line-ending and long-path options. Explicit
// config values replace existing ones; defaults only fill gaps.
func (s *Store) ConfigureIdentity(cfg config.GitConfig, goos string, host Host) (IdentityResult, error) {
	var res IdentityResult
	values := map[string]string{}

	switch {
	case cfg.UserName != "":
		values["user.name"] = cfg.UserName
	case s.Get("user.name") == "":
		if name := host.Username(); name != "" {
			values["user.name"] = name
		} else {
			res.Hints = append(res.Hints, `git config --global user.name "Your Name"`)
		}
	}

	switch {
	case cfg.UserEmail != "":
		values["user.email"] = cfg.UserEmail
	case s.Get("user.email") == "":
		hostname, _ := host.Hostname()
		if email, ok := DefaultEmail(host.Username(), hostname); ok {
			values["user.email"] = email
		} else {
			res.Hints = append(res.Hints, `git config --global user.email "you@example.com"`)
		}
	}

	branch := cfg.DefaultBranch
	if branch == "" {
		branch = "main"
	}
	values["init.defaultBranch"] = branch

	if goos == "windows" {
		values["core.autocrlf"] = "true"
		values["core.longpaths"] = "true"
		values["core.quotepath"] = "off"
	}

	changed, err := s.Set(values)
	if err != nil {
		return res, err
	}
	res.Changed = changed
	return res, nil
}

// Identity returns the configured name and email.
func (s *Store) Identity() (name, email string) {
	_, cfg, err := s.read()
	if err != nil {
		return "", ""
	}
	return lookup(cfg, "user.name"), lookup(cfg, "user.email")
}
