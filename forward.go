//go:build darwin

package bridge

/*
#include <stdlib.h>
#import <objc/runtime.h>
#import <objc/message.h>
#include "_cgo_export.h"

static void* bridge_responds_imp(void)          { return (void*)bridgeRespondsToSelector; }
static void* bridge_method_sig_imp(void)        { return (void*)bridgeMethodSignatureForSelector; }
static void* bridge_forward_invocation_imp(void){ return (void*)bridgeForwardInvocation; }
static void* bridge_dealloc_imp(void)           { return (void*)bridgeDealloc; }

static BOOL bridge_class_add_method(Class cls, SEL name, void* imp, const char* types) {
	return class_addMethod(cls, name, (IMP)imp, types);
}
*/
import "C"

import (
	"sync"
	"unsafe"
)

// forwardCache memoizes the (receiver, selector) -> callback
// lookup across the respondsToSelector:/methodSignatureForSelector:/
// forwardInvocation: triad ObjC's forwarding machinery issues for a single
// dispatch (spec.md §4.8), so the second and third of those three calls
// don't repeat the registry lock/map lookup the first one already paid
// for. Go has no real thread-local storage, so this is keyed by the
// (self, selector) pair rather than by OS thread; forwardInvocation:
// always consumes (and clears) its entry, since it is the guaranteed
// last step of a real forwarded call.
type forwardCacheKey struct {
	self unsafe.Pointer
	sel  string
}

var (
	forwardCacheMu sync.Mutex
	forwardCache   = map[forwardCacheKey]callbackEntry{}
)

func cacheForwardLookup(self unsafe.Pointer, selName string, entry callbackEntry) {
	forwardCacheMu.Lock()
	forwardCache[forwardCacheKey{self, selName}] = entry
	forwardCacheMu.Unlock()
}

func peekCachedForwardLookup(self unsafe.Pointer, selName string) (callbackEntry, bool) {
	forwardCacheMu.Lock()
	defer forwardCacheMu.Unlock()
	entry, ok := forwardCache[forwardCacheKey{self, selName}]
	return entry, ok
}

func takeCachedForwardLookup(self unsafe.Pointer, selName string) (callbackEntry, bool) {
	key := forwardCacheKey{self, selName}
	forwardCacheMu.Lock()
	defer forwardCacheMu.Unlock()
	entry, ok := forwardCache[key]
	if ok {
		delete(forwardCache, key)
	}
	return entry, ok
}

// addShimMethod adds one forwarding-shim IMP to cls under selector.
func addShimMethod(cls C.Class, selector string, imp unsafe.Pointer, types string) {
	ctypes := C.CString(types)
	defer C.free(unsafe.Pointer(ctypes))
	C.bridge_class_add_method(cls, C.SEL(registerSelector(selector)), imp, ctypes)
}

// installForwardingShim installs the three methods C8 needs on a class
// synthesized by C6 or C7, per spec.md §4.6 step 3 / §4.7 step 2, plus
// the dealloc override when installDealloc is set. C6 sets it; C7 passes
// false, so a defined subclass keeps its superclass's dealloc chain.
func installForwardingShim(cls unsafe.Pointer, installDealloc bool) {
	c := C.Class(cls)
	addShimMethod(c, "respondsToSelector:", C.bridge_responds_imp(), "B@::")
	addShimMethod(c, "methodSignatureForSelector:", C.bridge_method_sig_imp(), "@@::")
	addShimMethod(c, "forwardInvocation:", C.bridge_forward_invocation_imp(), "v@:@")
	if installDealloc {
		addShimMethod(c, "dealloc", C.bridge_dealloc_imp(), "v@:")
	}
}

func objectGetClass(p unsafe.Pointer) unsafe.Pointer {
	return unsafe.Pointer(C.object_getClass(C.id(p)))
}

func superclassOf(cls unsafe.Pointer) unsafe.Pointer {
	return unsafe.Pointer(C.class_getSuperclass(C.Class(cls)))
}

//export bridgeRespondsToSelector
func bridgeRespondsToSelector(self, _cmd, sel unsafe.Pointer) bool {
	name := selectorName(sel)
	classPtr := objectGetClass(self)
	if entry, ok := lookupCallback(self, classPtr, name); ok {
		cacheForwardLookup(self, name, entry)
		return true
	}
	super := superclassOf(classPtr)
	if super == nil {
		return false
	}
	var ret int8
	argBuf := ptrArg(sel)
	defer freeArg(argBuf)
	rawMsgSendSuper(self, super, registerSelector("respondsToSelector:"), "B", []string{":"}, []unsafe.Pointer{argBuf}, unsafe.Pointer(&ret))
	return ret != 0
}

//export bridgeMethodSignatureForSelector
func bridgeMethodSignatureForSelector(self, _cmd, sel unsafe.Pointer) unsafe.Pointer {
	name := selectorName(sel)
	classPtr := objectGetClass(self)
	entry, ok := peekCachedForwardLookup(self, name)
	if !ok {
		entry, ok = lookupCallback(self, classPtr, name)
		if ok {
			cacheForwardLookup(self, name, entry)
		}
	}
	if ok {
		return methodSignatureFromEncoding(entry.encoding)
	}
	super := superclassOf(classPtr)
	if super == nil {
		return nil
	}
	var ret unsafe.Pointer
	argBuf := ptrArg(sel)
	defer freeArg(argBuf)
	rawMsgSendSuper(self, super, registerSelector("methodSignatureForSelector:"), "@", []string{":"}, []unsafe.Pointer{argBuf}, unsafe.Pointer(&ret))
	return ret
}

//export bridgeForwardInvocation
func bridgeForwardInvocation(self, _cmd, inv unsafe.Pointer) {
	selPtr := invSelector(inv)
	name := selectorName(selPtr)
	entry, ok := takeCachedForwardLookup(self, name)
	if !ok {
		classPtr := objectGetClass(self)
		entry, ok = lookupCallback(self, classPtr, name)
	}
	if !ok {
		logf("objc: unrecognized selector %s reached forwardInvocation, dropping", name)
		return
	}
	dispatchForwardedInvocation(self, inv, name, entry)
}

//export bridgeDealloc
func bridgeDealloc(self, _cmd unsafe.Pointer) {
	if p := lookupProtocolImpl(self); p != nil {
		p.mu.Lock()
		for _, e := range p.callbacks {
			if e.tsfn != nil {
				e.tsfn.Release()
			}
			if p.host != nil && e.jsRef != nil {
				p.host.Unroot(e.jsRef)
			}
		}
		p.mu.Unlock()
		unregisterProtocolImpl(self)
	}
	super := superclassOf(objectGetClass(self))
	if super != nil {
		rawMsgSendSuper(self, super, registerSelector("dealloc"), "v", nil, nil, nil)
	}
}

func methodSignatureFromEncoding(enc string) unsafe.Pointer {
	cname := C.CString("NSMethodSignature")
	defer C.free(unsafe.Pointer(cname))
	cls := C.objc_getClass(cname)
	if cls == nil {
		return nil
	}
	cEnc := C.CString(enc)
	defer C.free(unsafe.Pointer(cEnc))
	argBuf := ptrArg(unsafe.Pointer(cEnc))
	defer freeArg(argBuf)
	var ret unsafe.Pointer
	rawMsgSend(unsafe.Pointer(cls), "signatureWithObjCTypes:", "@", []string{"*"}, []unsafe.Pointer{argBuf}, unsafe.Pointer(&ret))
	return ret
}

func invSelector(inv unsafe.Pointer) unsafe.Pointer {
	var ret unsafe.Pointer
	rawMsgSend(inv, "selector", ":", nil, nil, unsafe.Pointer(&ret))
	return ret
}

func invGetArgument(inv unsafe.Pointer, idx int, buf unsafe.Pointer) {
	qbuf := C.malloc(8)
	defer C.free(qbuf)
	*(*int64)(qbuf) = int64(idx)
	bufArg := ptrArg(buf)
	defer freeArg(bufArg)
	rawMsgSend(inv, "getArgument:atIndex:", "v", []string{"^v", "q"}, []unsafe.Pointer{bufArg, qbuf}, nil)
}

func invSetReturnValue(inv unsafe.Pointer, buf unsafe.Pointer) {
	bufArg := ptrArg(buf)
	defer freeArg(bufArg)
	rawMsgSend(inv, "setReturnValue:", "v", []string{"^v"}, []unsafe.Pointer{bufArg}, nil)
}

// dispatchForwardedInvocation implements spec.md §4.8 steps 1-4: read the
// invocation's arguments, run the JS callback either in-place or via a
// cross-thread run-loop pump, and write the result back.
func dispatchForwardedInvocation(self, inv unsafe.Pointer, selName string, entry callbackEntry) {
	n, err := countMethodArgs(entry.encoding)
	if err != nil {
		logf("objc: %s: %v", selName, err)
		return
	}
	retTok, argToks, err := splitMethodEncoding(entry.encoding, n)
	if err != nil {
		logf("objc: %s: %v", selName, err)
		return
	}

	var jsArgs []Value
	if entry.includeSelf {
		jsArgs = append(jsArgs, HandleValue(wrapRetained(self)))
	}
	for i, tok := range argToks {
		size := argSlotSize(tok)
		buf := C.malloc(C.size_t(size))
		invGetArgument(inv, i+2, buf)
		v, err := readValue(tok, buf, entry.host)
		C.free(buf)
		if err != nil {
			logf("objc: %s: argument %d: %v", selName, i, err)
			return
		}
		jsArgs = append(jsArgs, v)
	}

	result, callErr := callJSSync(entry.host, entry.jsRef, jsArgs, entry.crossContext, entry.tsfn)
	if callErr != nil {
		logf("objc: %s: JS callback error: %v", selName, callErr)
		return
	}

	if simplify(retTok)[0] == 'v' {
		return
	}
	ctx := marshalCtx{Selector: selName, Host: entry.host, MakeBlock: makeBlockFor(entry.host)}
	retBuf := C.malloc(C.size_t(argSlotSize(retTok)))
	defer C.free(retBuf)
	if err := writeValue(retTok, retBuf, result, ctx); err != nil {
		logf("objc: %s: return value: %v", selName, err)
		return
	}
	invSetReturnValue(inv, retBuf)
}

// callJSSync runs fn either directly (same JS thread, not flagged
// cross-context) or by enqueuing on tsfn and pumping the run loop in
// short ticks until the completion callback fires, per spec.md §4.8
// step 4 and §5.
func callJSSync(host Host, fn JSFuncRef, args []Value, crossContext bool, tsfn ThreadsafeCallback) (Value, error) {
	if host == nil {
		return Null, &FatalError{Detail: "no host bound to this callback"}
	}
	if !crossContext && host.CurrentThreadIsJSThread() {
		return host.Call(fn, args)
	}
	if tsfn == nil {
		return Null, &FatalError{Detail: "cross-thread dispatch requires a thread-safe callback"}
	}
	done := make(chan struct{})
	var result Value
	var callErr error
	tsfn.Invoke(fn, args, func(r Value, err error) {
		result, callErr = r, err
		close(done)
	})
	for {
		select {
		case <-done:
			return result, callErr
		default:
			pumpRunLoopOnce(runLoopTick())
		}
	}
}
