//go:build darwin

package bridge

/*
#include <stdlib.h>
#include <ffi.h>

typedef struct {
	unsigned long reserved;
	unsigned long size;
} bridge_block_descriptor;

typedef struct {
	void *isa;
	int flags;
	int reserved;
	void *invoke;
	bridge_block_descriptor *descriptor;
} bridge_block_literal;

extern void *_NSConcreteStackBlock;
extern void *_Block_copy(const void *);

static void* bridge_make_block(void* invoke, unsigned long size) {
	bridge_block_descriptor* desc = (bridge_block_descriptor*)malloc(sizeof(bridge_block_descriptor));
	desc->reserved = 0;
	desc->size = size;

	bridge_block_literal lit;
	lit.isa = &_NSConcreteStackBlock;
	lit.flags = 0;
	lit.reserved = 0;
	lit.invoke = invoke;
	lit.descriptor = desc;

	return _Block_copy(&lit);
}
*/
import "C"

import (
	"sync"
	"unsafe"
)

// blockLiteralSize is sizeof(bridge_block_literal) on every 64-bit Apple
// platform this bridge targets: isa(8) + flags(4) + reserved(4) +
// invoke(8) + descriptor(8).
const blockLiteralSize = 32

// BlockInfo is C9's registration for one JS-backed block. Per spec.md §9,
// v1 deliberately never frees these: there is no block-dispose callback
// wired (the block literal declares no dispose helper), so nothing ever
// signals it is safe to release the closure and the rooted JS function.
type BlockInfo struct {
	closure      *closure
	fn           JSFuncRef
	host         Host
	tsfn         ThreadsafeCallback
	crossContext bool
	ret          string
	params       []string
}

var (
	blocksMu sync.Mutex
	blocks   []*BlockInfo
)

type blockThunk struct{ info *BlockInfo }

func (t blockThunk) invoke(ret unsafe.Pointer, args []unsafe.Pointer) {
	info := t.info
	jsArgs := make([]Value, len(info.params))
	for i, p := range info.params {
		v, err := readValue(p, args[i+1], info.host)
		if err != nil {
			logf("objc: block: argument %d: %v", i, err)
			return
		}
		jsArgs[i] = v
	}

	result, err := callJSSync(info.host, info.fn, jsArgs, info.crossContext, info.tsfn)
	if err != nil {
		logf("objc: block: JS callback error: %v", err)
		return
	}
	if ret == nil || simplify(info.ret)[0] == 'v' {
		return
	}
	ctx := marshalCtx{Selector: "<block>", Host: info.host, MakeBlock: makeBlockFor(info.host)}
	if err := writeValue(info.ret, ret, result, ctx); err != nil {
		logf("objc: block: return value: %v", err)
	}
}

// createBlockFromJSInternal implements spec.md §4.9 steps 1-5, returning
// the heap block as a raw id-sized pointer.
func createBlockFromJSInternal(fn JSFuncRef, declaredEncoding string, host Host, crossContext bool, tsfn ThreadsafeCallback) (unsafe.Pointer, error) {
	retTok := "v"
	var params []string
	if sig, err := parseBlockSignature(declaredEncoding); err == nil {
		retTok = sig.Return
		params = sig.Params
	}
	// A bare "@?" with no extended signature carries no type information.
	// The safety-checked heuristic detector spec.md §9 describes (tagged
	// pointer bit, heap-zone probe, class-pointer validation) has no
	// idiomatic Go equivalent that stays memory-safe without cgo
	// unsafe-pointer probing of arbitrary bit patterns; this bridge
	// requires the extended encoding and treats an absent one as a
	// zero-argument, void-returning block. See DESIGN.md.

	info := &BlockInfo{host: host, fn: fn, tsfn: tsfn, crossContext: crossContext, ret: retTok, params: params}

	guard := &ffiTypeGuard{}
	blockSelfT, err := buildFFIType("^v", guard)
	if err != nil {
		guard.free()
		return nil, err
	}
	retT, err := buildFFIType(retTok, guard)
	if err != nil {
		guard.free()
		return nil, err
	}
	argTypes := []*C.ffi_type{blockSelfT}
	for _, p := range params {
		t, err := buildFFIType(p, guard)
		if err != nil {
			guard.free()
			return nil, err
		}
		argTypes = append(argTypes, t)
	}

	cif, err := prepCIF(-1, retT, argTypes)
	if err != nil {
		guard.free()
		return nil, err
	}
	// The ffi_type tree must outlive the closure; leaking it alongside the
	// never-freed BlockInfo is consistent with spec.md §9's documented
	// block-lifetime policy.

	cl, err := newClosure(cif, blockThunk{info: info})
	if err != nil {
		return nil, err
	}
	info.closure = cl

	heapBlock := C.bridge_make_block(cl.Executable, C.ulong(blockLiteralSize))

	blocksMu.Lock()
	blocks = append(blocks, info)
	blocksMu.Unlock()

	return heapBlock, nil
}

// makeBlockFor returns the callback marshal.go's writeValue uses when a
// JS function value is being written into a "@?" argument slot -- the
// outbound direction of block support (a JS function passed *into* ObjC).
func makeBlockFor(host Host) func(fn JSFuncRef, declaredEncoding string) (unsafe.Pointer, func(), error) {
	return func(fn JSFuncRef, declaredEncoding string) (unsafe.Pointer, func(), error) {
		var tsfn ThreadsafeCallback
		crossContext := true
		if host != nil {
			tsfn = host.NewThreadsafeCallback(fn)
		}
		p, err := createBlockFromJSInternal(fn, declaredEncoding, host, crossContext, tsfn)
		return p, func() {}, err
	}
}

// CreateBlockFromJS implements the JS-facing createBlock operation
// (spec.md §6): a JS function becomes an ObjC block wrapped in an
// ObjectHandle.
func CreateBlockFromJS(fn JSFuncRef, declaredEncoding string, host Host) (*ObjectHandle, error) {
	var tsfn ThreadsafeCallback
	if host != nil {
		tsfn = host.NewThreadsafeCallback(fn)
	}
	p, err := createBlockFromJSInternal(fn, declaredEncoding, host, true, tsfn)
	if err != nil {
		return nil, err
	}
	return wrapOwned(p), nil
}
