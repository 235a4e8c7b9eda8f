package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zepo-dev/zepo/internal/buildpkg"
	"github.com/zepo-dev/zepo/internal/jsbridge"
	"github.com/zepo-dev/zepo/internal/log"
	"github.com/zepo-dev/zepo/internal/manifest"
	"github.com/zepo-dev/zepo/internal/paths"
	"github.com/zepo-dev/zepo/internal/platform"
	"github.com/zepo-dev/zepo/internal/semver"
)

var (
	generateOutput string
	generateDev    bool
	generateArch   string
	generateSystem string
	generateTarget string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate build-system package descriptions from installed dependencies",
}

var generateCMakeCmd = &cobra.Command{
	Use:   "cmake",
	Short: "Build every installed dependency and write a CMake package config for each",
	Long: `cmake builds package.json's dependencies (and, with --dev, its
devDependencies) via each package's own zepofile.js build script, then
renders the result through generators/cmake.js into
<output>/<exportName>-config.cmake.`,
	Run: func(cmd *cobra.Command, args []string) {
		runGenerateCMake()
	},
}

func init() {
	generateCmd.AddCommand(generateCMakeCmd)

	generateCMakeCmd.Flags().StringVarP(&generateOutput, "output", "o", ".", "Directory to write *-config.cmake files into")
	generateCMakeCmd.Flags().BoolVarP(&generateDev, "dev", "D", false, "Also generate devDependencies")
	generateCMakeCmd.Flags().StringVarP(&generateArch, "arch", "A", "", "Override target architecture")
	generateCMakeCmd.Flags().StringVarP(&generateSystem, "system", "S", "", "Override target operating system")
	generateCMakeCmd.Flags().StringVarP(&generateTarget, "target", "T", "", "Load targets/<name>.js for system/arch overrides")
}

func runGenerateCMake() {
	pm, err := manifest.LoadPackageManifest("package.json")
	if err != nil {
		printError(err)
		exitWithCode(ExitGeneral)
	}

	p, err := paths.New()
	if err != nil {
		printError(err)
		exitWithCode(ExitGeneral)
	}
	if err := p.EnsureDirectories(); err != nil {
		printError(err)
		exitWithCode(ExitGeneral)
	}

	if err := os.MkdirAll(generateOutput, 0o755); err != nil {
		printError(err)
		exitWithCode(ExitGeneral)
	}

	jsCtx := jsbridge.NewContext()
	defer jsCtx.Close()

	opts, err := buildpkg.FindBuildOptions(jsCtx, p, generateTarget)
	if err != nil {
		printError(err)
		exitWithCode(ExitGeneral)
	}
	if opts.TargetSystem == nil && opts.TargetArch == nil {
		if host, err := platform.DetectTarget(); err == nil && host.OS() != "" {
			os, arch := host.OS(), host.Arch()
			opts.TargetSystem, opts.TargetArch = &os, &arch
		}
	}
	if generateSystem != "" {
		opts.TargetSystem = &generateSystem
	}
	if generateArch != "" {
		opts.TargetArch = &generateArch
	}

	exportNames := buildpkg.FindExportNames(pm, generateDev)

	for _, name := range buildpkg.SortedNames(exportNames) {
		expr := pm.Dependencies[name]
		if expr == "" {
			expr = pm.DevDependencies[name]
		}
		rng, err := semver.ParseRange(expr)
		if err != nil {
			printError(err)
			exitWithCode(ExitGeneral)
		}

		packageRoot, err := buildpkg.ResolvePackageRoot(p, name, rng)
		if err != nil {
			printError(err)
			exitWithCode(ExitGeneral)
		}

		log.Default().Info("generating cmake package", "name", name, "root", packageRoot)
		if err := buildpkg.GenerateCMakePackage(globalCtx, jsCtx, p, packageRoot, name, exportNames, opts, generateOutput); err != nil {
			printError(err)
			exitWithCode(ExitGeneral)
		}

		exportName := exportNames[name]
		printInfo("  " + filepath.Join(generateOutput, exportName+"-config.cmake"))
	}
}
