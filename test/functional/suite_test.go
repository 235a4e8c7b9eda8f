package functional

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cucumber/godog"
)

type stateKeyType struct{}

var stateKey = stateKeyType{}

type testState struct {
	homeDir        string
	workDir        string // directory the binary runs from; holds package.json/config.json
	binPath        string
	stdout         string
	stderr         string
	exitCode       int
	hiddenBinaries []string // binaries to hide from PATH (e.g. "cmake")
	registry       *httptest.Server
}

func getState(ctx context.Context) *testState {
	if s, ok := ctx.Value(stateKey).(*testState); ok {
		return s
	}
	return nil
}

func setState(ctx context.Context, s *testState) context.Context {
	return context.WithValue(ctx, stateKey, s)
}

func TestFeatures(t *testing.T) {
	binPath := os.Getenv("ZEPO_TEST_BINARY")
	if binPath == "" {
		t.Skip("ZEPO_TEST_BINARY not set; run via 'make test-functional'")
	}

	// Resolve to absolute path since go test changes the working directory.
	absBin, err := filepath.Abs(binPath)
	if err != nil {
		t.Fatalf("resolving binary path: %v", err)
	}
	binPath = absBin

	opts := &godog.Options{
		Format:   "pretty",
		Paths:    []string{"features"},
		TestingT: t,
	}
	if tags := os.Getenv("ZEPO_TEST_TAGS"); tags != "" {
		opts.Tags = tags
	}

	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			initializeScenario(ctx, binPath)
		},
		Options: opts,
	}
	if suite.Run() != 0 {
		t.Fatal("functional tests failed")
	}
}

// registryFixtureServer serves the npm-protocol metadata and tarball
// fixtures under fixtures/registry, substituting the "{{REGISTRY}}"
// placeholder in each metadata document with the server's own base URL
// (unknown until the listener is bound), so dist.tarball always points
// back at this same server.
func registryFixtureServer(fixtureDir string) *httptest.Server {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(r.URL.Path, "/")
		if strings.Contains(rel, "/-/") {
			// Tarball download: "<name>/-/<file>.tgz" maps to "<file>.tgz"
			// on disk, since fixtures are keyed by filename, not package.
			parts := strings.SplitN(rel, "/-/", 2)
			http.ServeFile(w, r, filepath.Join(fixtureDir, parts[1]))
			return
		}

		data, err := os.ReadFile(filepath.Join(fixtureDir, rel+".json"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		data = []byte(strings.ReplaceAll(string(data), "{{REGISTRY}}", srv.URL))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	})
	srv = httptest.NewServer(mux)
	return srv
}

// fixturesDir is resolved relative to the package's own source directory
// (go test's working directory for this package), not the test binary
// under exercise, since the fixtures ship with the test suite.
const fixturesDir = "fixtures"

func initializeScenario(ctx *godog.ScenarioContext, binPath string) {
	repoRoot := filepath.Dir(binPath)

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		homeDir := filepath.Join(repoRoot, ".zepo-test")
		os.RemoveAll(homeDir)
		if err := os.MkdirAll(homeDir, 0o755); err != nil {
			return ctx, err
		}

		workDir := filepath.Join(repoRoot, ".zepo-test-work")
		os.RemoveAll(workDir)
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			return ctx, err
		}

		registry := registryFixtureServer(filepath.Join(fixturesDir, "registry"))

		// config.json in workDir is the first place
		// manifest.LoadConfiguration looks (relative to the binary's exec
		// dir, which iRun sets to workDir), so `zepo install`/`generate`
		// never make a real network call in these scenarios.
		configPath := filepath.Join(workDir, "config.json")
		configBody := `{"registry":"` + registry.URL + `"}`
		if err := os.WriteFile(configPath, []byte(configBody), 0o644); err != nil {
			registry.Close()
			return ctx, err
		}

		var hidden []string
		for _, tag := range sc.Tags {
			if strings.HasPrefix(tag.Name, "@requires-no-") {
				hidden = append(hidden, strings.TrimPrefix(tag.Name, "@requires-no-"))
			}
		}

		state := &testState{
			homeDir:        homeDir,
			workDir:        workDir,
			binPath:        binPath,
			hiddenBinaries: hidden,
			registry:       registry,
		}
		return setState(ctx, state), nil
	})

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if state := getState(ctx); state != nil && state.registry != nil {
			state.registry.Close()
		}
		return ctx, err
	})

	// Environment steps
	ctx.Step(`^a clean zepo environment$`, aCleanZepoEnvironment)
	ctx.Step(`^a package\.json requiring "([^"]*)" at "([^"]*)"$`, aPackageJSONRequiring)
	ctx.Step(`^the cmake generator fixture is installed$`, theCMakeGeneratorFixtureIsInstalled)

	// Command steps
	ctx.Step(`^I run "([^"]*)"$`, iRun)
	ctx.Step(`^I run "([^"]*)" with stdin "([^"]*)"$`, iRunWithStdin)

	// Assertion steps
	ctx.Step(`^the exit code is (\d+)$`, theExitCodeIs)
	ctx.Step(`^the exit code is not (\d+)$`, theExitCodeIsNot)
	ctx.Step(`^the output contains "([^"]*)"$`, theOutputContains)
	ctx.Step(`^the output does not contain "([^"]*)"$`, theOutputDoesNotContain)
	ctx.Step(`^the error output contains "([^"]*)"$`, theErrorOutputContains)
	ctx.Step(`^the error output does not contain "([^"]*)"$`, theErrorOutputDoesNotContain)
	ctx.Step(`^the file "([^"]*)" exists$`, theFileExists)
	ctx.Step(`^the file "([^"]*)" does not exist$`, theFileDoesNotExist)
	ctx.Step(`^the zepo home contains "([^"]*)"$`, theZepoHomeContains)
}

// filteredPATH returns a PATH string with directories containing any of the
// hidden binaries removed. This lets @requires-no-<binary> scenarios simulate
// environments where a toolchain isn't installed.
func filteredPATH(hidden []string) string {
	if len(hidden) == 0 {
		return os.Getenv("PATH")
	}

	var kept []string
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		exclude := false
		for _, bin := range hidden {
			candidate := filepath.Join(dir, bin)
			if _, err := exec.LookPath(candidate); err == nil {
				exclude = true
				break
			}
			if _, err := os.Stat(candidate); err == nil {
				exclude = true
				break
			}
		}
		if !exclude {
			kept = append(kept, dir)
		}
	}
	return strings.Join(kept, string(os.PathListSeparator))
}
