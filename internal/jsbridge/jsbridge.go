// Package jsbridge evaluates and calls into the CommonJS-style
// (`module.exports`) build and generator scripts a package ships (zepofile.js,
// generators/<buildsystem>.js, targets/<name>.js), grounded on the
// original system's js_runtime/JSUtils.hpp contract: load a module, read
// an export, call it, await whatever promise it returns.
//
// github.com/dop251/goja is the standard pure-Go ECMAScript engine and
// github.com/dop251/goja_nodejs supplies the require/console/event-loop
// shims a promise-returning module needs; no example repo embeds a JS
// engine directly, so this pair is named as an out-of-pack dependency
// (seen already in the wider corpus's deckhouse-deckhouse-cli/go.mod).
package jsbridge

import (
	"fmt"
	"os"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"

	"github.com/zepo-dev/zepo/internal/errtypes"
	"github.com/zepo-dev/zepo/internal/reflectbind"
	"github.com/zepo-dev/zepo/internal/token"
)

// Context wraps one goja runtime and its event loop. A goja Runtime is
// not safe for concurrent use from multiple goroutines, so LoadModule,
// Call, ParseJSON and StringifyJSON are routed through its loop via
// RunOnLoop; GetProperty and AwaitPromise's promise-state check read
// the runtime directly from the calling goroutine. A Context must
// never be used from more than one goroutine at a time.
type Context struct {
	loop *eventloop.EventLoop
	vm   *goja.Runtime
}

// NewContext creates a ready-to-use Context with require()/console
// support enabled, mirroring the baseline globals the original's
// embedded JS runtime exposed to build/generator scripts.
func NewContext() *Context {
	loop := eventloop.NewEventLoop()
	c := &Context{loop: loop}
	loop.Run(func(vm *goja.Runtime) {
		registry := new(require.Registry)
		registry.Enable(vm)
		console.Enable(vm)
		c.vm = vm
	})
	// Run returns once the loop is idle; restart it in the background so
	// later RunOnLoop submissions are executed.
	loop.Start()
	return c
}

// Close stops the context's event loop. Call once the context is no
// longer needed.
func (c *Context) Close() {
	c.loop.Stop()
}

// run executes fn on the context's event-loop goroutine and blocks
// until it completes; the loop-routed methods listed on Context use it
// to respect goja's single-threaded-runtime requirement.
func (c *Context) run(scriptPath string, fn func(vm *goja.Runtime) (goja.Value, error)) (goja.Value, error) {
	type result struct {
		val goja.Value
		err error
	}
	done := make(chan result, 1)
	c.loop.RunOnLoop(func(vm *goja.Runtime) {
		v, err := fn(vm)
		done <- result{val: v, err: err}
	})
	r := <-done
	if r.err != nil {
		return nil, &errtypes.SandboxError{ScriptPath: scriptPath, Err: r.err}
	}
	return r.val, nil
}

// LoadModule evaluates the script at path as a CommonJS module body
// wrapped to expose `module.exports`, and returns that exports value.
// Scripts are expected to assign named exports onto module.exports
// (e.g. `module.exports.build = async (opts) => {...}`), the plain,
// promise-friendly shape goja_nodejs's require() machinery expects.
func (c *Context) LoadModule(path string) (goja.Value, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, &errtypes.SandboxError{ScriptPath: path, Err: err}
	}
	return c.run(path, func(vm *goja.Runtime) (goja.Value, error) {
		wrapped := fmt.Sprintf(`(function() {
var module = {exports: {}};
var exports = module.exports;
%s
return module.exports;
})()`, source)
		return vm.RunScript(path, wrapped)
	})
}

// GetProperty reads a named property off v, returning goja.Undefined()
// if v has no such property (mirrors the original's optional-export checks).
func (c *Context) GetProperty(v goja.Value, name string) goja.Value {
	obj := v.ToObject(c.vm)
	if obj == nil {
		return goja.Undefined()
	}
	return obj.Get(name)
}

// Call invokes fn (a goja function value) with thisArg and args,
// routed through the context's event loop.
func (c *Context) Call(fn, thisArg goja.Value, args ...goja.Value) (goja.Value, error) {
	return c.run("", func(vm *goja.Runtime) (goja.Value, error) {
		callable, ok := goja.AssertFunction(fn)
		if !ok {
			return nil, fmt.Errorf("jsbridge: value is not callable")
		}
		return callable(thisArg, args...)
	})
}

// AwaitPromise blocks until v (expected to be a Promise) settles,
// returning its resolved value or an error for rejection. Used where a
// script's export is not optional (e.g. a CMake generator's `generate`).
func (c *Context) AwaitPromise(v goja.Value) (goja.Value, error) {
	return c.awaitPromise(v, true)
}

// TryAwaitPromise probes whether v looks like a thenable before
// awaiting it; if v is not a promise it is returned as-is. This mirrors
// the original's tryAwaitPromise used for optional build-script exports
// that may return a plain value instead of a promise.
func (c *Context) TryAwaitPromise(v goja.Value) (goja.Value, error) {
	return c.awaitPromise(v, false)
}

func (c *Context) awaitPromise(v goja.Value, strict bool) (goja.Value, error) {
	promise, ok := v.Export().(*goja.Promise)
	if !ok {
		if !strict {
			return v, nil
		}
		return nil, &errtypes.SandboxError{Err: fmt.Errorf("jsbridge: expected a promise, got %s", v.ExportType())}
	}

	done := make(chan struct{})
	c.loop.RunOnLoop(func(vm *goja.Runtime) {
		// the event loop drains pending jobs between RunOnLoop calls;
		// by the time this callback runs the promise's reactions (if
		// any were scheduled via the loop) have already had a chance
		// to fire, so polling the promise's state here is safe.
		close(done)
	})
	<-done

	switch promise.State() {
	case goja.PromiseStateFulfilled:
		return promise.Result(), nil
	case goja.PromiseStateRejected:
		return nil, &errtypes.SandboxError{Err: fmt.Errorf("jsbridge: promise rejected: %v", promise.Result())}
	default:
		return nil, &errtypes.SandboxError{Err: fmt.Errorf("jsbridge: promise did not settle")}
	}
}

// ParseJSON parses s as JSON inside the VM, returning a goja.Value tree
// usable as a script-side argument.
func (c *Context) ParseJSON(s string) (goja.Value, error) {
	return c.run("", func(vm *goja.Runtime) (goja.Value, error) {
		global := vm.GlobalObject().Get("JSON").ToObject(vm)
		parse, ok := goja.AssertFunction(global.Get("parse"))
		if !ok {
			return nil, fmt.Errorf("jsbridge: JSON.parse unavailable")
		}
		return parse(goja.Undefined(), vm.ToValue(s))
	})
}

// StringifyJSON renders v back to a JSON string.
func (c *Context) StringifyJSON(v goja.Value) (string, error) {
	result, err := c.run("", func(vm *goja.Runtime) (goja.Value, error) {
		global := vm.GlobalObject().Get("JSON").ToObject(vm)
		stringify, ok := goja.AssertFunction(global.Get("stringify"))
		if !ok {
			return nil, fmt.Errorf("jsbridge: JSON.stringify unavailable")
		}
		return stringify(goja.Undefined(), v)
	})
	if err != nil {
		return "", err
	}
	return result.String(), nil
}

// PushRecord tokenifies v via reflectbind, marshals the resulting Token
// to JSON, and parses that back inside the VM, producing a goja.Value a
// script can consume as a plain object. Routing through reflectbind
// (rather than encoding/json directly) is what makes the wire field
// names match a struct's `reflectbind` tags (e.g. BuildOptions.TargetSystem
// becomes "targetSystem") and lets TokenWriter-implementing fields
// (OutputPathCollection's array/string/null shape) control their own
// encoding.
func PushRecord[T any](c *Context, v T) (goja.Value, error) {
	tok, err := reflectbind.Tokenify(v)
	if err != nil {
		return nil, &errtypes.SandboxError{Err: err}
	}
	data, err := token.Marshal(tok)
	if err != nil {
		return nil, &errtypes.SandboxError{Err: err}
	}
	return c.ParseJSON(string(data))
}

// ToRecord stringifies v inside the VM, parses the JSON into a Token
// tree, and binds that onto a T via reflectbind.Parse — the JS -> Go
// direction of the same reflectbind + JSON round trip PushRecord does
// in reverse.
func ToRecord[T any](c *Context, v goja.Value) (T, error) {
	var out T
	s, err := c.StringifyJSON(v)
	if err != nil {
		return out, err
	}
	tok, err := token.ParseString(s)
	if err != nil {
		return out, &errtypes.SandboxError{Err: err}
	}
	if err := reflectbind.Parse(tok, &out); err != nil {
		return out, &errtypes.SandboxError{Err: err}
	}
	return out, nil
}
