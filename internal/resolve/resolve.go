// Package resolve walks a package.json's dependency graph against an
// npm-protocol registry, selecting one version per package name,
// grounded on the original system's
// commands/InstallCommand.cpp (PackageInstallingContext::addRequirement).
//
// Unlike the original, which recurses unconditionally and re-walks
// every edge into an already-visited package, this resolver dedups on
// (name, selected version): once a package has been selected at a
// version that satisfies an edge, the edge is a no-op rather than a
// redundant re-download/re-extract. Diamond-shaped dependency graphs
// are common enough in a registry-backed ecosystem that this is a
// correctness fix, not an optional optimization — without it, two
// goroutines can race to extract the same package directory.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zepo-dev/zepo/internal/errtypes"
	"github.com/zepo-dev/zepo/internal/manifest"
	"github.com/zepo-dev/zepo/internal/registryclient"
	"github.com/zepo-dev/zepo/internal/semver"
	"github.com/zepo-dev/zepo/internal/task"
	"github.com/zepo-dev/zepo/internal/telemetry"
)

// Resolver walks dependency edges into a flat, deduplicated selection set.
type Resolver struct {
	client     *registryclient.Client
	rangeCache *semver.RangeCache

	mu         sync.Mutex
	selections []manifest.PackageSelect
	seen       map[string]bool // key: name + "@" + selected version
}

// New creates a Resolver against client.
func New(client *registryclient.Client) *Resolver {
	return &Resolver{
		client:     client,
		rangeCache: semver.NewRangeCache(),
		seen:       make(map[string]bool),
	}
}

// Selections returns the flat, deduplicated set of resolved packages
// accumulated so far.
func (r *Resolver) Selections() []manifest.PackageSelect {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]manifest.PackageSelect, len(r.selections))
	copy(out, r.selections)
	return out
}

// reservedSourcePrefixes are dependency specifiers the resolver treats
// as already-satisfied foreign sources rather than registry lookups,
// mirroring addRequirement's prefix-check no-ops in the original (it
// silently skips these rather than raising an unsupported-source error).
var reservedSourcePrefixes = []string{"file:", "git+", "git:", "http:", "https:"}

func isReservedSource(expr string) bool {
	for _, prefix := range reservedSourcePrefixes {
		if strings.HasPrefix(expr, prefix) {
			return true
		}
	}
	return false
}

// AddRequirement resolves one dependency edge (name at range expr,
// declared by source — typically the manifest's own package name, or
// "" for the root) and recursively resolves the transitive dependencies
// of whichever version gets selected. Concurrent calls are safe; sibling
// dependencies of a resolved version are fanned out concurrently via
// internal/task.WhenAll.
func (r *Resolver) AddRequirement(ctx context.Context, source, name, expr string) error {
	defer telemetry.Default().Span("resolve")()

	if isReservedSource(expr) {
		return nil
	}

	rng, err := r.rangeCache.Get(expr)
	if err != nil {
		return err
	}

	info, err := r.client.FetchMetadata(ctx, name)
	if err != nil {
		return err
	}

	selected, version, ok := selectVersion(info, rng)
	if !ok {
		return &errtypes.NoMatchingVersion{Name: name, Expression: expr}
	}

	key := name + "@" + selected
	r.mu.Lock()
	if r.seen[key] {
		r.mu.Unlock()
		return nil
	}
	r.seen[key] = true
	r.selections = append(r.selections, manifest.PackageSelect{
		Source:     source,
		Name:       name,
		Required:   expr,
		Selected:   selected,
		TarballURL: version.Dist.Tarball,
	})
	r.mu.Unlock()

	if len(version.Dependencies) == 0 {
		return nil
	}

	fns := make([]func(context.Context) error, 0, len(version.Dependencies))
	for depName, depExpr := range version.Dependencies {
		depName, depExpr := depName, depExpr
		fns = append(fns, func(ctx context.Context) error {
			return r.AddRequirement(ctx, name, depName, depExpr)
		})
	}
	return task.WhenAll(ctx, 0, fns...)
}

// selectVersion returns the highest published version satisfying rng.
// PackageInfo.Versions is a Go map with no defined iteration order, so
// this sorts the parsed versions ascending first (the open-question
// resolution recorded in DESIGN.md) and walks from the end backwards,
// mirroring the original's reverse iteration over its ordered std::map.
func selectVersion(info *manifest.PackageInfo, rng *semver.Range) (string, manifest.PackageVersion, bool) {
	type parsed struct {
		raw string
		v   semver.Version
	}
	versions := make([]parsed, 0, len(info.Versions))
	for raw := range info.Versions {
		v, err := semver.ParseVersion(raw)
		if err != nil {
			continue
		}
		versions = append(versions, parsed{raw: raw, v: v})
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].v.LessThan(versions[j].v)
	})

	for i := len(versions) - 1; i >= 0; i-- {
		if rng.Satisfies(versions[i].v) {
			raw := versions[i].raw
			return raw, info.Versions[raw], true
		}
	}
	return "", manifest.PackageVersion{}, false
}

// ResolveManifest resolves every dependency and (if includeDev)
// devDependency declared in m, fanning each root edge out concurrently.
func (r *Resolver) ResolveManifest(ctx context.Context, m *manifest.PackageManifest, includeDev bool) error {
	edges := make(map[string]string, len(m.Dependencies)+len(m.DevDependencies))
	for name, expr := range m.Dependencies {
		edges[name] = expr
	}
	if includeDev {
		for name, expr := range m.DevDependencies {
			edges[name] = expr
		}
	}

	fns := make([]func(context.Context) error, 0, len(edges))
	for name, expr := range edges {
		name, expr := name, expr
		fns = append(fns, func(ctx context.Context) error {
			return r.AddRequirement(ctx, m.Name, name, expr)
		})
	}
	if len(fns) == 0 {
		return nil
	}
	if err := task.WhenAll(ctx, 0, fns...); err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	return nil
}
