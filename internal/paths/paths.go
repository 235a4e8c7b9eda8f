// Package paths resolves zepo's on-disk application directory layout,
// generalized from the teacher's internal/config/config.go ($TSUKU_HOME
// env var, EnsureDirectories, per-kind subdirectory helpers) to zepo's
// downloads/packages/builds/generators/targets layout.
package paths

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// EnvHome is the environment variable that overrides the default home
// directory, mirroring the teacher's $TSUKU_HOME.
const EnvHome = "ZEPO_HOME"

// Paths is the resolved, read-only application directory layout. It is
// built once in cmd/zepo and threaded explicitly as a parameter rather
// than kept as a package-level global, per the design note's preference
// for explicit context objects over ambient state (logging is the one
// carved-out exception).
type Paths struct {
	Home       string
	Downloads  string
	Packages   string
	Builds     string
	Generators string
	Targets    string
}

// DefaultHomeOverride can be set via -ldflags at build time to bake in
// a non-standard home directory, mirroring the teacher's equivalent hook.
var DefaultHomeOverride string

// New resolves Paths from $ZEPO_HOME (or the OS user config directory
// if unset), without creating any directories.
func New() (*Paths, error) {
	home := os.Getenv(EnvHome)
	if home == "" {
		home = DefaultHomeOverride
	}
	if home == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("paths: resolving default home: %w", err)
		}
		home = filepath.Join(configDir, "zepo")
	}
	return &Paths{
		Home:       home,
		Downloads:  filepath.Join(home, "downloads"),
		Packages:   filepath.Join(home, "packages"),
		Builds:     filepath.Join(home, "builds"),
		Generators: filepath.Join(home, "generators"),
		Targets:    filepath.Join(home, "targets"),
	}, nil
}

// EnsureDirectories creates every directory in the layout that doesn't
// already exist.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.Home, p.Downloads, p.Packages, p.Builds, p.Generators, p.Targets} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("paths: creating %s: %w", dir, err)
		}
	}
	return nil
}

// PackageDir returns the install directory for one resolved version of
// a package: packages/<name>/<version>.
func (p *Paths) PackageDir(name, version string) string {
	return filepath.Join(p.Packages, name, version)
}

// PackageGlob returns the glob pattern matching every installed version
// directory for a package name.
func (p *Paths) PackageGlob(name string) string {
	return filepath.Join(p.Packages, name, "*")
}

// LockFile is the sentinel file that marks a package directory as fully
// extracted, matching the original's "zepo-installation.lock".
const LockFile = "zepo-installation.lock"

// DownloadsUsage reports the total size of files under Downloads in a
// human-readable form, e.g. for `zepo cache` style diagnostics.
func (p *Paths) DownloadsUsage() (string, error) {
	var total int64
	entries, err := os.ReadDir(p.Downloads)
	if err != nil {
		if os.IsNotExist(err) {
			return humanize.Bytes(0), nil
		}
		return "", err
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return humanize.Bytes(uint64(total)), nil
}
