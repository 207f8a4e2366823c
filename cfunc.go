//go:build darwin

package bridge

/*
#include <stdlib.h>
*/
import "C"

import (
	"sync"
	"unsafe"
)

var (
	openLibsMu sync.Mutex
	openLibs   = map[string]unsafe.Pointer{}
)

// CallFunction implements C5 (spec.md §4.5): a direct, non-ObjC C
// function call resolved through the dynamic loader.
func CallFunction(name string, retEnc string, argEncs []string, fixedArgCount int, args []Value, host Host) (CallResult, error) {
	if len(args) != len(argEncs) {
		return CallResult{Value: Null}, &ArityError{Selector: name, Expected: len(argEncs), Got: len(args)}
	}

	fn, err := resolveSymbol(host, name)
	if err != nil {
		return CallResult{Value: Null}, err
	}

	guard := &ffiTypeGuard{}
	defer guard.free()

	retT, err := buildFFIType(retEnc, guard)
	if err != nil {
		return CallResult{Value: Null}, err
	}
	argTypes := make([]*C.ffi_type, len(argEncs))
	for i, enc := range argEncs {
		t, err := buildFFIType(enc, guard)
		if err != nil {
			return CallResult{Value: Null}, err
		}
		argTypes[i] = t
	}

	cif, err := prepCIF(fixedArgCount, retT, argTypes)
	if err != nil {
		return CallResult{Value: Null}, err
	}

	ctx := marshalCtx{Selector: name, Host: host, MakeBlock: makeBlockFor(host)}
	argBufs := make([]unsafe.Pointer, len(argEncs))
	cStrings := make([]unsafe.Pointer, 0, len(argEncs))
	outParamSlots := make([]unsafe.Pointer, 0)
	for i, enc := range argEncs {
		ctx.Index = i
		buf := C.malloc(C.size_t(argSlotSize(enc)))
		if err := writeValue(enc, buf, args[i], ctx); err != nil {
			return CallResult{Value: Null}, err
		}
		argBufs[i] = buf
		if simplify(enc)[0] == '*' {
			cStrings = append(cStrings, *(*unsafe.Pointer)(buf))
		}
		if isOutParamEncoding(enc) && args[i].IsNil() {
			outParamSlots = append(outParamSlots, *(*unsafe.Pointer)(buf))
		}
	}
	defer func() {
		for _, b := range argBufs {
			C.free(b)
		}
		for _, s := range cStrings {
			C.free(s)
		}
		for _, s := range outParamSlots {
			C.free(s)
		}
	}()

	retBuf := C.malloc(C.size_t(argSlotSize(retEnc)))
	defer C.free(retBuf)

	cif.call(fn, retBuf, argBufs)

	retVal, err := readValue(retEnc, retBuf, host)
	if err != nil {
		return CallResult{Value: Null}, err
	}
	outVals, err := readOutParams(argEncs, args, argBufs, host)
	if err != nil {
		return CallResult{Value: Null}, err
	}
	return CallResult{Value: retVal, OutParams: outVals}, nil
}

// resolveSymbol asks the host first (an embedder may keep its own symbol
// table, e.g. statically-linked functions unreachable via dlsym), then
// tries the process-wide symbol table, then each configured search path
// in order, per spec.md §4.5 step 1.
func resolveSymbol(host Host, name string) (unsafe.Pointer, error) {
	if host != nil {
		if addr, ok := host.ResolveSymbol(name); ok && addr != 0 {
			return unsafe.Pointer(addr), nil
		}
	}
	if p, err := dlSym(dlOpenDefault(), name); err == nil {
		return p, nil
	}
	for _, path := range dlopenSearchPaths() {
		h := openLibrary(path)
		if h == nil {
			continue
		}
		if p, err := dlSym(h, name); err == nil {
			return p, nil
		}
	}
	return nil, &SymbolNotFoundError{Name: name}
}

// openLibrary dlopens path at most once per process, caching the handle
// so Bridge.Close can dlclose everything CallFunction ever opened.
func openLibrary(path string) unsafe.Pointer {
	openLibsMu.Lock()
	defer openLibsMu.Unlock()
	if h, ok := openLibs[path]; ok {
		return h
	}
	h, err := dlOpen(path)
	if err != nil {
		return nil
	}
	openLibs[path] = h
	return h
}

// closeAllLibraries dlcloses every library CallFunction opened via
// DlopenSearchPaths. It does not touch RTLD_DEFAULT.
func closeAllLibraries() {
	openLibsMu.Lock()
	defer openLibsMu.Unlock()
	for path, h := range openLibs {
		dlClose(h)
		delete(openLibs, path)
	}
}
