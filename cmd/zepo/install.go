package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zepo-dev/zepo/internal/acquire"
	"github.com/zepo-dev/zepo/internal/log"
	"github.com/zepo-dev/zepo/internal/manifest"
	"github.com/zepo-dev/zepo/internal/paths"
	"github.com/zepo-dev/zepo/internal/registryclient"
	"github.com/zepo-dev/zepo/internal/resolve"
)

var installDev bool

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Resolve and install the dependencies declared in package.json",
	Long: `install reads package.json in the current directory, resolves every
dependency and devDependency (--dev=false skips devDependencies)
against the configured registry, downloads each selected version's tarball, and extracts it
under $ZEPO_HOME/packages.`,
	Run: func(cmd *cobra.Command, args []string) {
		runInstall(installDev)
	},
}

func init() {
	installCmd.Flags().BoolVar(&installDev, "dev", true, "Resolve and install devDependencies too (--dev=false skips them)")
}

func runInstall(includeDev bool) {
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

	execPath, err := os.Executable()
	if err != nil {
		execPath = ""
	}
	cfg, err := manifest.LoadConfiguration(filepath.Dir(execPath), p.Home)
	if err != nil {
		printError(err)
		exitWithCode(ExitGeneral)
	}

	var clientOpts []registryclient.Option
	if cfg.AuthUsername != nil || cfg.AuthPassword != nil {
		var username, password string
		if cfg.AuthUsername != nil {
			username = *cfg.AuthUsername
		}
		if cfg.AuthPassword != nil {
			password = *cfg.AuthPassword
		}
		clientOpts = append(clientOpts, registryclient.WithBasicAuth(username, password))
	}
	client := registryclient.NewClient(cfg.Registry, clientOpts...)

	resolver := resolve.New(client)
	log.Default().Info("resolving dependencies", "package", pm.Name, "registry", cfg.Registry)
	if err := resolver.ResolveManifest(globalCtx, pm, includeDev); err != nil {
		printError(err)
		exitWithCode(ExitGeneral)
	}

	selections := resolver.Selections()
	printInfof("Resolved %d package(s)\n", len(selections))

	acquirer := acquire.New(client, p)
	if err := acquirer.Install(globalCtx, selections); err != nil {
		printError(err)
		exitWithCode(ExitGeneral)
	}

	for _, sel := range selections {
		printInfo(fmt.Sprintf("  %s@%s", sel.Name, sel.Selected))
	}
}
