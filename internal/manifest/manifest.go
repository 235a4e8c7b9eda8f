// Package manifest defines the record types read from and written to
// package.json, config.json, and the npm-protocol registry responses,
// grounded on the original system's Manifest.hpp/Configuration.hpp/
// NpmProtocol.hpp and bound via internal/reflectbind instead of the
// original's reflection macros.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zepo-dev/zepo/internal/errtypes"
	"github.com/zepo-dev/zepo/internal/reflectbind"
	"github.com/zepo-dev/zepo/internal/token"
)

// ZepoOptions is the package.json "zepo" extension block: per-dependency
// export-name overrides and the build-script entry point override.
type ZepoOptions struct {
	PackageNames map[string]string `reflectbind:"packageNames,omitempty"`
	Entry        string            `reflectbind:"entry,omitempty"`
}

// PackageManifest is a parsed package.json.
type PackageManifest struct {
	Name            string            `reflectbind:"name"`
	Version         string            `reflectbind:"version"`
	Dependencies    map[string]string `reflectbind:"dependencies,omitempty"`
	DevDependencies map[string]string `reflectbind:"devDependencies,omitempty"`
	Zepo            *ZepoOptions      `reflectbind:"zepo,omitempty"`
	Extra           map[string]token.Token `reflectbind:"extra,extension"`
}

// LoadPackageManifest reads and binds package.json at path.
func LoadPackageManifest(path string) (*PackageManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errtypes.ManifestError{Path: path, Err: err}
	}
	tok, err := token.Parse(data)
	if err != nil {
		return nil, &errtypes.ManifestError{Path: path, Err: err}
	}
	var m PackageManifest
	if err := reflectbind.Parse(tok, &m); err != nil {
		return nil, &errtypes.ManifestError{Path: path, Err: err}
	}
	return &m, nil
}

// Configuration is the parsed config.json (or $ZEPO_HOME/config.json):
// registry base URL and optional basic-auth credentials.
type Configuration struct {
	Registry     string  `reflectbind:"registry"`
	AuthUsername *string `reflectbind:"authUsername,omitempty"`
	AuthPassword *string `reflectbind:"authPassword,omitempty"`
}

// DefaultRegistry is used when no config.json is found anywhere in the
// search path.
const DefaultRegistry = "https://registry.npmjs.org"

// LoadConfiguration searches, in order, for config.json next to the
// running executable and then $ZEPO_HOME/config.json, returning a
// default configuration (public npm registry, no auth) if neither
// exists — config.json is optional, not required.
func LoadConfiguration(execDir, zepoHome string) (*Configuration, error) {
	candidates := []string{
		filepath.Join(execDir, "config.json"),
		filepath.Join(zepoHome, "config.json"),
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, &errtypes.ConfigError{Path: path, Err: err}
		}
		tok, err := token.Parse(data)
		if err != nil {
			return nil, &errtypes.ConfigError{Path: path, Err: err}
		}
		var cfg Configuration
		if err := reflectbind.Parse(tok, &cfg); err != nil {
			return nil, &errtypes.ConfigError{Path: path, Err: err}
		}
		if cfg.Registry == "" {
			cfg.Registry = DefaultRegistry
		}
		return &cfg, nil
	}
	return &Configuration{Registry: DefaultRegistry}, nil
}

// SaveConfiguration writes cfg as indented JSON to path, creating the
// parent directory if necessary. Used by `zepo config set-auth` to
// persist registry credentials to $ZEPO_HOME/config.json.
func SaveConfiguration(path string, cfg *Configuration) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &errtypes.ConfigError{Path: path, Err: err}
	}
	tok, err := reflectbind.Tokenify(*cfg)
	if err != nil {
		return &errtypes.ConfigError{Path: path, Err: err}
	}
	data, err := token.MarshalIndent(tok)
	if err != nil {
		return &errtypes.ConfigError{Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return &errtypes.ConfigError{Path: path, Err: err}
	}
	return nil
}

// PackageInfo is npm registry metadata for one package name.
type PackageInfo struct {
	Name     string                    `reflectbind:"name"`
	Versions map[string]PackageVersion `reflectbind:"versions"`
}

// PackageVersion is metadata for one published version.
type PackageVersion struct {
	Version      string            `reflectbind:"version"`
	Dist         PackageDist       `reflectbind:"dist"`
	Dependencies map[string]string `reflectbind:"dependencies,omitempty"`
}

// PackageDist locates the downloadable tarball for a version.
type PackageDist struct {
	Shasum    string `reflectbind:"shasum"`
	Tarball   string `reflectbind:"tarball"`
	Integrity string `reflectbind:"integrity,omitempty"`
}

// PackageSelect is one resolved dependency-graph edge: a package name
// pinned to a specific version that satisfied some requirement.
type PackageSelect struct {
	Source      string
	Name        string
	Required    string
	Selected    string
	TarballURL  string
}

// BuildOptions is passed into a package's build script.
type BuildOptions struct {
	TargetSystem *string `reflectbind:"targetSystem,omitempty"`
	TargetArch   *string `reflectbind:"targetArch,omitempty"`
}

// BuildReport is what a package's build script returns: a type tag and
// a map of named output-path collections (e.g. "include", "lib").
type BuildReport struct {
	Type  string                        `reflectbind:"type"`
	Paths map[string]OutputPathCollection `reflectbind:"paths"`
}

// OutputPathCollection unmarshals from any of three JSON shapes — an
// array of strings, a single string, or null — mirroring the original's
// OutputPathCollection::parse. It implements reflectbind.TokenParser and
// reflectbind.TokenWriter to preempt the mechanical field-by-field bind.
type OutputPathCollection struct {
	Paths []string
}

// ParseToken implements reflectbind.TokenParser.
func (c *OutputPathCollection) ParseToken(t token.Token) error {
	switch t.Kind {
	case token.Null:
		c.Paths = nil
		return nil
	case token.String:
		c.Paths = []string{t.Str}
		return nil
	case token.Array:
		paths := make([]string, 0, len(t.Items))
		for i, item := range t.Items {
			if item.Kind != token.String {
				return fmt.Errorf("output path collection: element %d is not a string", i)
			}
			paths = append(paths, item.Str)
		}
		c.Paths = paths
		return nil
	default:
		return fmt.Errorf("output path collection: expected string, array, or null, got %v", t.Kind)
	}
}

// WriteToken implements reflectbind.TokenWriter.
func (c OutputPathCollection) WriteToken() (token.Token, error) {
	if len(c.Paths) == 0 {
		return token.Token{Kind: token.Null}, nil
	}
	if len(c.Paths) == 1 {
		return token.Token{Kind: token.String, Str: c.Paths[0]}, nil
	}
	items := make([]token.Token, len(c.Paths))
	for i, p := range c.Paths {
		items[i] = token.Token{Kind: token.String, Str: p}
	}
	return token.Token{Kind: token.Array, Items: items}, nil
}
