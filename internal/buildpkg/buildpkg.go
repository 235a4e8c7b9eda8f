// Package buildpkg orchestrates running an installed package's build
// script and, separately, a build-system generator script, grounded
// line-for-line on the original system's
// pkg_manager/{Build,BuildReport}.cpp and commands/GenerateCommand.cpp.
package buildpkg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dop251/goja"

	"github.com/zepo-dev/zepo/internal/errtypes"
	"github.com/zepo-dev/zepo/internal/jsbridge"
	"github.com/zepo-dev/zepo/internal/manifest"
	"github.com/zepo-dev/zepo/internal/paths"
	"github.com/zepo-dev/zepo/internal/semver"
	"github.com/zepo-dev/zepo/internal/telemetry"
)

const defaultEntry = "zepofile.js"

// ResolvePackageRoot scans paths.Packages/name/* for the first
// directory whose name parses as a version satisfying r, mirroring the
// original's buildPackage(..., const semver::Range&, ...) overload.
func ResolvePackageRoot(p *paths.Paths, name string, r *semver.Range) (string, error) {
	matches, err := filepath.Glob(p.PackageGlob(name))
	if err != nil {
		return "", fmt.Errorf("buildpkg: scanning installed versions of %s: %w", name, err)
	}
	for _, dir := range matches {
		v, err := semver.ParseVersion(filepath.Base(dir))
		if err != nil {
			continue
		}
		if r.Satisfies(v) {
			return dir, nil
		}
	}
	return "", &errtypes.NotInstalled{Name: name, Range: r.String()}
}

// BuildPackage runs packageRoot's build script (if it has one) with
// opts, returning the parsed BuildReport with every relative output
// path rewritten to an absolute path rooted at packageRoot.
//
// A package with no entry script file, or whose module has no `build`
// export, is not an error: (nil, nil) is returned, mirroring step 3/4
// of the original's buildPackage.
func BuildPackage(ctx context.Context, jsCtx *jsbridge.Context, packageRoot string, opts manifest.BuildOptions) (*manifest.BuildReport, error) {
	defer telemetry.Default().Span("build")()

	manifestPath := filepath.Join(packageRoot, "package.json")
	pm, err := manifest.LoadPackageManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	entry := defaultEntry
	if pm.Zepo != nil && pm.Zepo.Entry != "" {
		entry = pm.Zepo.Entry
	}
	entryPath := filepath.Join(packageRoot, entry)

	if _, err := os.Stat(entryPath); os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("buildpkg: stat %s: %w", entryPath, err)
	}

	mod, err := jsCtx.LoadModule(entryPath)
	if err != nil {
		return nil, err
	}

	buildFn := jsCtx.GetProperty(mod, "build")
	if goja.IsUndefined(buildFn) {
		return nil, nil
	}

	optsVal, err := jsbridge.PushRecord(jsCtx, opts)
	if err != nil {
		return nil, &errtypes.SandboxError{ScriptPath: entryPath, Err: err}
	}

	result, err := jsCtx.Call(buildFn, goja.Undefined(), optsVal)
	if err != nil {
		return nil, err
	}

	settled, err := jsCtx.TryAwaitPromise(result)
	if err != nil {
		return nil, err
	}

	report, err := jsbridge.ToRecord[manifest.BuildReport](jsCtx, settled)
	if err != nil {
		return nil, &errtypes.SandboxError{ScriptPath: entryPath, Err: err}
	}

	reportToAbsolutePaths(&report, packageRoot)
	return &report, nil
}

// reportToAbsolutePaths rewrites every relative output path in report
// to be rooted at packageRoot, mirroring the original's
// reportToAbsolutePaths helper.
func reportToAbsolutePaths(report *manifest.BuildReport, packageRoot string) {
	for key, coll := range report.Paths {
		rewritten := make([]string, len(coll.Paths))
		for i, p := range coll.Paths {
			if filepath.IsAbs(p) {
				rewritten[i] = p
			} else {
				rewritten[i] = filepath.Join(packageRoot, p)
			}
		}
		coll.Paths = rewritten
		report.Paths[key] = coll
	}
}

// findDefaultExportName derives a CMake export name from a bare or
// scoped package name, splitting on the last '/' the way scoped names
// (@scope/name) are treated, mirroring findDefaultExportName.
func findDefaultExportName(name string) string {
	return filepath.Base(name)
}

// findExportName resolves the export name for name, honoring an
// override in zepoOptions.packageNames if present, mirroring
// findExportName.
func findExportName(zepo *manifest.ZepoOptions, name string) string {
	if zepo != nil {
		if override, ok := zepo.PackageNames[name]; ok {
			return override
		}
	}
	return findDefaultExportName(name)
}

// findExportNames builds the name -> export-name map for every
// dependency (and, if includeDev, devDependency) declared by m,
// mirroring findExportNames.
func findExportNames(m *manifest.PackageManifest, includeDev bool) map[string]string {
	out := make(map[string]string, len(m.Dependencies)+len(m.DevDependencies))
	for name := range m.Dependencies {
		out[name] = findExportName(m.Zepo, name)
	}
	if includeDev {
		for name := range m.DevDependencies {
			out[name] = findExportName(m.Zepo, name)
		}
	}
	return out
}

// FindExportNames is the exported form of findExportNames, used by cmd/zepo.
func FindExportNames(m *manifest.PackageManifest, includeDev bool) map[string]string {
	return findExportNames(m, includeDev)
}

// FindBuildOptions loads paths.Targets/<name>.js (if targetName is
// non-empty) and reads its "system"/"arch" string exports into opts.
//
// The original's equivalent (findBuildOptions in GenerateCommand.cpp)
// has a copy-paste bug: the branch reading the target's "arch" export
// assigns it into targetSystem instead of targetArch. That bug is not
// reproduced here — targetArch is assigned from "arch" and targetSystem
// from "system", as the names plainly intend. See DESIGN.md.
func FindBuildOptions(jsCtx *jsbridge.Context, p *paths.Paths, targetName string) (manifest.BuildOptions, error) {
	var opts manifest.BuildOptions
	if targetName == "" {
		return opts, nil
	}

	targetPath := filepath.Join(p.Targets, targetName+".js")
	mod, err := jsCtx.LoadModule(targetPath)
	if err != nil {
		return opts, err
	}

	if systemVal := jsCtx.GetProperty(mod, "system"); !goja.IsUndefined(systemVal) {
		s := systemVal.String()
		opts.TargetSystem = &s
	}
	if archVal := jsCtx.GetProperty(mod, "arch"); !goja.IsUndefined(archVal) {
		a := archVal.String()
		opts.TargetArch = &a
	}
	return opts, nil
}

// GenerateCMakePackage builds dep's package and, if it produced a
// report, invokes paths.Generators/cmake.js's `generate` export to
// render a CMake package config, writing it to
// <outputDir>/<exportName>-config.cmake (replacing any existing file),
// mirroring generateCMakePackage.
func GenerateCMakePackage(ctx context.Context, jsCtx *jsbridge.Context, p *paths.Paths, packageRoot, depName string, exportNames map[string]string, opts manifest.BuildOptions, outputDir string) error {
	report, err := BuildPackage(ctx, jsCtx, packageRoot, opts)
	if err != nil {
		return err
	}
	if report == nil {
		return nil
	}

	generatorPath := filepath.Join(p.Generators, "cmake.js")
	generatorMod, err := jsCtx.LoadModule(generatorPath)
	if err != nil {
		return err
	}
	generateFn := jsCtx.GetProperty(generatorMod, "generate")
	if goja.IsUndefined(generateFn) {
		return &errtypes.SandboxError{ScriptPath: generatorPath, Err: fmt.Errorf("buildpkg: cmake.js has no generate export")}
	}

	reportVal, err := jsbridge.PushRecord(jsCtx, report)
	if err != nil {
		return err
	}
	namesVal, err := jsbridge.PushRecord(jsCtx, exportNames)
	if err != nil {
		return err
	}

	depNameVal, err := jsbridge.PushRecord(jsCtx, depName)
	if err != nil {
		return err
	}
	result, err := jsCtx.Call(generateFn, goja.Undefined(), reportVal, namesVal, depNameVal)
	if err != nil {
		return err
	}

	settled, err := jsCtx.AwaitPromise(result)
	if err != nil {
		return err
	}

	rendered := settled.String()

	exportName := exportNames[depName]
	outPath := filepath.Join(outputDir, exportName+"-config.cmake")
	if _, err := os.Stat(outPath); err == nil {
		if err := os.Remove(outPath); err != nil {
			return fmt.Errorf("buildpkg: removing existing %s: %w", outPath, err)
		}
	}
	if err := os.WriteFile(outPath, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("buildpkg: writing %s: %w", outPath, err)
	}
	return nil
}

// sortedNames returns the keys of m in ascending order, used where
// cmd/zepo needs deterministic iteration over a name->string map.
func sortedNames(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortedNames is the exported form of sortedNames.
func SortedNames(m map[string]string) []string { return sortedNames(m) }
