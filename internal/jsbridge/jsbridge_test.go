package jsbridge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dop251/goja"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadModule_SyncExport(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()

	path := writeScript(t, t.TempDir(), "script.js", `
module.exports.greet = function(name) { return "hello " + name; };
`)
	mod, err := ctx.LoadModule(path)
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}

	fn := ctx.GetProperty(mod, "greet")
	if goja.IsUndefined(fn) {
		t.Fatal("expected greet export to be defined")
	}

	nameVal, err := PushRecord(ctx, "world")
	if err != nil {
		t.Fatalf("PushRecord: %v", err)
	}
	result, err := ctx.Call(fn, goja.Undefined(), nameVal)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.String() != "hello world" {
		t.Errorf("Call result = %q, want %q", result.String(), "hello world")
	}
}

func TestGetProperty_MissingExportIsUndefined(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()

	path := writeScript(t, t.TempDir(), "script.js", `module.exports.build = function() {};`)
	mod, err := ctx.LoadModule(path)
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	missing := ctx.GetProperty(mod, "generate")
	if !goja.IsUndefined(missing) {
		t.Error("expected a missing export to read back as undefined")
	}
}

func TestAwaitPromise_Fulfilled(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()

	path := writeScript(t, t.TempDir(), "script.js", `
module.exports.build = async function(opts) {
	return { type: "library", paths: { include: ["include"] } };
};
`)
	mod, err := ctx.LoadModule(path)
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	buildFn := ctx.GetProperty(mod, "build")

	optsVal, err := PushRecord(ctx, map[string]string{})
	if err != nil {
		t.Fatalf("PushRecord: %v", err)
	}
	result, err := ctx.Call(buildFn, goja.Undefined(), optsVal)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	settled, err := ctx.AwaitPromise(result)
	if err != nil {
		t.Fatalf("AwaitPromise: %v", err)
	}

	type buildReport struct {
		Type  string              `json:"type"`
		Paths map[string][]string `json:"paths"`
	}
	report, err := ToRecord[buildReport](ctx, settled)
	if err != nil {
		t.Fatalf("ToRecord: %v", err)
	}
	if report.Type != "library" {
		t.Errorf("Type = %q", report.Type)
	}
	if len(report.Paths["include"]) != 1 || report.Paths["include"][0] != "include" {
		t.Errorf("Paths[include] = %v", report.Paths["include"])
	}
}

func TestAwaitPromise_Rejected(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()

	path := writeScript(t, t.TempDir(), "script.js", `
module.exports.build = async function() {
	throw new Error("build failed");
};
`)
	mod, err := ctx.LoadModule(path)
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	buildFn := ctx.GetProperty(mod, "build")

	result, err := ctx.Call(buildFn, goja.Undefined())
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if _, err := ctx.AwaitPromise(result); err == nil {
		t.Fatal("expected an error from a rejected promise")
	}
}

func TestTryAwaitPromise_PlainValuePassesThrough(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()

	path := writeScript(t, t.TempDir(), "script.js", `
module.exports.build = function() {
	return { type: "header-only", paths: {} };
};
`)
	mod, err := ctx.LoadModule(path)
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	buildFn := ctx.GetProperty(mod, "build")

	result, err := ctx.Call(buildFn, goja.Undefined())
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	settled, err := ctx.TryAwaitPromise(result)
	if err != nil {
		t.Fatalf("TryAwaitPromise: %v", err)
	}
	type buildReport struct {
		Type string `json:"type"`
	}
	report, err := ToRecord[buildReport](ctx, settled)
	if err != nil {
		t.Fatalf("ToRecord: %v", err)
	}
	if report.Type != "header-only" {
		t.Errorf("Type = %q", report.Type)
	}
}

func TestPushRecordAndToRecord_RoundTrip(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()

	type opts struct {
		TargetArch *string `json:"targetArch,omitempty"`
	}
	arch := "x86_64"
	in := opts{TargetArch: &arch}

	val, err := PushRecord(ctx, in)
	if err != nil {
		t.Fatalf("PushRecord: %v", err)
	}
	out, err := ToRecord[opts](ctx, val)
	if err != nil {
		t.Fatalf("ToRecord: %v", err)
	}
	if out.TargetArch == nil || *out.TargetArch != "x86_64" {
		t.Errorf("round trip = %+v", out)
	}
}

func TestLoadModule_MissingFile(t *testing.T) {
	ctx := NewContext()
	defer ctx.Close()

	_, err := ctx.LoadModule(filepath.Join(t.TempDir(), "missing.js"))
	if err == nil {
		t.Fatal("expected error loading a nonexistent script")
	}
}
