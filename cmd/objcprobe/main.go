// Command objcprobe runs a TOML-scripted sequence of bridge operations
// against the live Objective-C runtime and prints each step's result,
// for manual smoke-testing outside a JS host.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	bridge "github.com/iamEvanYT/objc-js"
)

// Step is one scripted operation. Only the fields relevant to Op are
// read; unused fields are left at their zero value in the TOML source.
type Step struct {
	Op       string   `toml:"op"`
	Class    string   `toml:"class"`
	Receiver string   `toml:"receiver"`
	Selector string   `toml:"selector"`
	Args     []string `toml:"args"`
	Function string   `toml:"function"`
	Return   string   `toml:"return"`
	ArgTypes []string `toml:"arg_types"`
	Fixed    int      `toml:"fixed"`
	Var      string   `toml:"var"`
}

// Script is the top-level TOML document shape: a config for library
// search paths and a flat list of steps to run in order.
type Script struct {
	LibraryPaths []string `toml:"library_paths"`
	Steps        []Step   `toml:"step"`
}

func main() {
	path := flag.String("script", "", "path to a TOML objcprobe script")
	flag.Parse()
	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: objcprobe -script=<file.toml>")
		os.Exit(2)
	}

	var script Script
	if _, err := toml.DecodeFile(*path, &script); err != nil {
		log.Fatalf("objcprobe: parsing %s: %v", *path, err)
	}

	bridge.SetConfig(bridge.Config{DlopenSearchPaths: script.LibraryPaths})

	b := bridge.New(&cliHost{})
	vars := map[string]bridge.Value{}

	for i, step := range script.Steps {
		if err := runStep(b, vars, step); err != nil {
			log.Fatalf("objcprobe: step %d (%s): %v", i, step.Op, err)
		}
	}
}

func runStep(b *bridge.Bridge, vars map[string]bridge.Value, step Step) error {
	switch step.Op {
	case "getClass":
		cls, err := b.GetClass(step.Class)
		if err != nil {
			return err
		}
		v := bridge.ClassValue(cls)
		if step.Var != "" {
			vars[step.Var] = v
		}
		fmt.Printf("getClass %s -> %s\n", step.Class, v)
		return nil

	case "send":
		recv, ok := vars[step.Receiver]
		if !ok {
			return fmt.Errorf("unknown variable %q", step.Receiver)
		}
		receiver := recv.Handle()
		if recv.Kind == bridge.KindClass {
			receiver = recv.Class().AsReceiver()
		}
		args := make([]bridge.Value, len(step.Args))
		for i, a := range step.Args {
			args[i] = parseLiteral(a, vars)
		}
		result, err := b.Send(receiver, step.Selector, args)
		if err != nil {
			return err
		}
		if step.Var != "" {
			vars[step.Var] = result.Value
		}
		fmt.Printf("send %s -> %s\n", step.Selector, result.Value)
		for i, out := range result.OutParams {
			fmt.Printf("send %s -> out-param %d: %s\n", step.Selector, i, out)
		}
		return nil

	case "callFunction":
		args := make([]bridge.Value, len(step.Args))
		for i, a := range step.Args {
			args[i] = parseLiteral(a, vars)
		}
		fixed := step.Fixed
		if fixed == 0 {
			fixed = -1
		}
		result, err := b.CallFunction(step.Function, step.Return, step.ArgTypes, fixed, args)
		if err != nil {
			return err
		}
		if step.Var != "" {
			vars[step.Var] = result.Value
		}
		fmt.Printf("callFunction %s -> %s\n", step.Function, result.Value)
		for i, out := range result.OutParams {
			fmt.Printf("callFunction %s -> out-param %d: %s\n", step.Function, i, out)
		}
		return nil

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

// parseLiteral turns a script-source literal into a Value: "$name"
// dereferences an earlier step's stored result, everything else is
// parsed as a bool, int, float, or falls back to a bare string.
func parseLiteral(s string, vars map[string]bridge.Value) bridge.Value {
	if strings.HasPrefix(s, "$") {
		return vars[strings.TrimPrefix(s, "$")]
	}
	if s == "null" {
		return bridge.Null
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return bridge.Bool(b)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return bridge.Int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return bridge.Float(f)
	}
	return bridge.Str(strings.Trim(s, `"`))
}

// cliHost is objcprobe's minimal bridge.Host: it never has an actual JS
// function to call back into, since a smoke-test script only exercises
// send and callFunction. Protocol/subclass/block operations are outside
// this CLI's scope.
type cliHost struct{}

func (cliHost) CurrentThreadIsJSThread() bool { return true }

func (cliHost) Call(fn bridge.JSFuncRef, args []bridge.Value) (bridge.Value, error) {
	return bridge.Null, fmt.Errorf("objcprobe: no JS host bound, cannot invoke callbacks")
}

func (cliHost) Root(fn bridge.JSFuncRef) bridge.JSFuncRef { return fn }
func (cliHost) Unroot(bridge.JSFuncRef)                   {}

func (cliHost) NewThreadsafeCallback(fn bridge.JSFuncRef) bridge.ThreadsafeCallback {
	return noopCallback{}
}

func (cliHost) ResolveSymbol(name string) (uintptr, bool) { return 0, false }

type noopCallback struct{}

func (noopCallback) Invoke(fn bridge.JSFuncRef, args []bridge.Value, done func(bridge.Value, error)) {
	done(bridge.Null, fmt.Errorf("objcprobe: no JS host bound"))
}

func (noopCallback) Release() {}
