package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zepo-dev/zepo/internal/manifest"
	"github.com/zepo-dev/zepo/internal/paths"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage zepo's persisted configuration",
}

var configSetAuthCmd = &cobra.Command{
	Use:   "set-auth <username>",
	Short: "Store basic-auth credentials for the configured registry in $ZEPO_HOME/config.json",
	Long: `set-auth prompts for a password (without echoing it to the terminal,
when run interactively) and writes it alongside the given username into
$ZEPO_HOME/config.json, so future install/generate runs authenticate
against a private registry.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runConfigSetAuth(args[0])
	},
}

func init() {
	configCmd.AddCommand(configSetAuthCmd)
	rootCmd.AddCommand(configCmd)
}

// stdinIsTerminal reports whether stdin is a terminal, replaceable in
// tests so password entry doesn't block on a real tty.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readPassword reads a password from stdin, masking keystrokes when
// stdin is a terminal and falling back to a plain line read otherwise
// (e.g. when piped: `echo "hunter2" | zepo config set-auth alice`).
func readPassword() (string, error) {
	if stdinIsTerminal() {
		fmt.Fprint(os.Stderr, "Password: ")
		data, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(data), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runConfigSetAuth(username string) {
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

	password, err := readPassword()
	if err != nil {
		printError(err)
		exitWithCode(ExitGeneral)
	}

	cfg.AuthUsername = &username
	cfg.AuthPassword = &password

	configPath := filepath.Join(p.Home, "config.json")
	if err := manifest.SaveConfiguration(configPath, cfg); err != nil {
		printError(err)
		exitWithCode(ExitGeneral)
	}
	printInfof("Saved registry credentials for %s to %s\n", username, configPath)
}
