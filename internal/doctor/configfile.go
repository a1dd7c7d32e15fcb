package doctor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/fulmenhq/stigmergylite/internal/catalog"
	"github.com/fulmenhq/stigmergylite/internal/provision"
	"github.com/fulmenhq/stigmergylite/pkg/safeio"
)

// parseConfig returns the top-level keys of data, or an error wrapping
// provision.ErrConfigCorrupted when it does not parse as format.
func parseConfig(format string, data []byte) ([]string, error) {
	var keys []string
	switch format {
	case catalog.FormatTOML:
		var doc map[string]any
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", provision.ErrConfigCorrupted, err)
		}
		for k := range doc {
			keys = append(keys, k)
		}
	default:
		if !gjson.ValidBytes(data) {
			return nil, fmt.Errorf("%w: invalid JSON", provision.ErrConfigCorrupted)
		}
		root := gjson.ParseBytes(data)
		if !root.IsObject() {
			return nil, fmt.Errorf("%w: top level is %s, not an object", provision.ErrConfigCorrupted, root.Type)
		}
		root.ForEach(func(key, _ gjson.Result) bool {
			keys = append(keys, key.String())
			return true
		})
	}
	sort.Strings(keys)
	return keys, nil
}

// freshConfig is the minimal valid document a corrupt file is replaced with.
func freshConfig(cf catalog.ConfigFile) ([]byte, error) {
	if cf.Format == catalog.FormatTOML {
		return []byte{}, nil
	}
	doc := []byte("{}")
	if cf.Schema != "" {
		var err error
		if doc, err = sjson.SetBytes(doc, "$schema", cf.Schema); err != nil {
			return nil, err
		}
	}
	return append(doc, '\n'), nil
}

// openDir returns a filesystem rooted at the parent of path plus the base name.
func (d *Doctor) openDir(path string) (billy.Filesystem, string) {
	return d.fs(filepath.Dir(path)), filepath.Base(path)
}

// inspectConfig reads and parses one tracked file. A missing file is not an
// error: tools create their config on first run.
func (d *Doctor) inspectConfig(tool string, cf catalog.ConfigFile) ConfigStatus {
	st := ConfigStatus{Tool: tool, Path: cf.Path, Format: cf.Format}
	fs, name := d.openDir(cf.Path)

	if err := safeio.DirWritable(fs, "."); err == nil {
		st.Writable = true
	}

	data, err := util.ReadFile(fs, name)
	if errors.Is(err, os.ErrNotExist) {
		return st
	}
	st.Exists = true
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Size = len(data)
	keys, err := parseConfig(cf.Format, data)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Valid = true
	st.Keys = keys
	return st
}

// resetConfig backs up a corrupt file and replaces it with a fresh document.
// It reports false without touching anything when the file is absent or valid.
func (d *Doctor) resetConfig(cf catalog.ConfigFile) (backup string, changed bool, err error) {
	fs, name := d.openDir(cf.Path)
	data, err := util.ReadFile(fs, name)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if _, perr := parseConfig(cf.Format, data); perr == nil {
		return "", false, nil
	}

	fresh, err := freshConfig(cf)
	if err != nil {
		return "", false, err
	}
	backup, err = safeio.BackupFile(fs, name, d.now())
	if err != nil {
		return "", false, fmt.Errorf("backing up %s: %w", cf.Path, err)
	}
	if err := safeio.WriteFileAtomic(fs, name, fresh, 0o644); err != nil {
		return "", false, fmt.Errorf("rewriting %s: %w", cf.Path, err)
	}
	return filepath.Join(filepath.Dir(cf.Path), backup), true, nil
}
