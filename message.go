//go:build darwin

package bridge

/*
#include <stdlib.h>
#import <objc/runtime.h>
#import <objc/message.h>
*/
import "C"

import (
	"runtime"
	"sync"
	"unsafe"
)

// dispatchMode records whether a prepared call qualifies for the scalar-only
// direct mode or needs the general mode, per spec.md §4.4. SendPrepared
// issues the same libffi call in both modes.
type dispatchMode uint8

const (
	modeDirect dispatchMode = iota
	modeInvocation
)

// directCodes is the set of return/argument codes eligible for the fast
// path (spec.md §4.4 step 3).
var directCodes = map[byte]bool{
	'v': true, 'c': true, 'C': true, 'i': true, 'I': true,
	's': true, 'S': true, 'l': true, 'L': true, 'q': true, 'Q': true,
	'f': true, 'd': true, 'B': true, '@': true, '#': true, ':': true,
}

// CallResult is what Send, SendPrepared, CallFunction, and CallSuper all
// return: the call's own return value plus, per spec.md §4.2/§6, any ^@
// out-parameters it captured, in argument order. OutParams is nil when
// the call had none.
type CallResult struct {
	Value     Value
	OutParams []Value
}

// PreparedCall is the process-lifetime-cached result of resolving a
// (class, selector) pair's method signature, per spec.md §4.4's "prepared
// call cache". Safe to reuse across every instance of the same class.
type PreparedCall struct {
	sel      unsafe.Pointer
	selName  string
	retEnc   string
	argEncs  []string // one per user-visible argument, after self/_cmd
	mode     dispatchMode
	useStret bool
}

type preparedKey struct {
	class unsafe.Pointer
	sel   string
}

var (
	preparedMu    sync.Mutex
	preparedCache = map[preparedKey]*PreparedCall{}
)

// classNameOf returns a class's name for error messages; ptr must be a
// live Class pointer.
func classNameOf(ptr unsafe.Pointer) string {
	if ptr == nil {
		return "<nil class>"
	}
	return C.GoString(C.class_getName(C.Class(ptr)))
}

// methodEncoding looks up a statically-added instance method's full type
// encoding via the runtime's own method table.
func methodEncoding(classPtr, sel unsafe.Pointer) (string, bool) {
	m := C.class_getInstanceMethod(C.Class(classPtr), C.SEL(sel))
	if m == nil {
		return "", false
	}
	return C.GoString(C.method_getTypeEncoding(m)), true
}

// Prepare resolves and caches the method signature for (classPtr,
// selector), building the encoding table either from the runtime's
// static method table or, for selectors that C6/C7-synthesized classes
// handle only via forwarding, from the encodings recorded when those
// classes were defined. methodSignatureForSelector: is not queried, so a
// selector that some other object answers only through its own forwarding
// yields DoesNotRespondError.
func Prepare(classPtr unsafe.Pointer, selector string) (*PreparedCall, error) {
	sel := registerSelector(selector)
	key := preparedKey{class: classPtr, sel: selector}

	preparedMu.Lock()
	if pc, ok := preparedCache[key]; ok {
		preparedMu.Unlock()
		return pc, nil
	}
	preparedMu.Unlock()

	methodEnc, ok := methodEncoding(classPtr, sel)
	if !ok {
		dynEnc, derr := dynamicMethodEncoding(classPtr, sel)
		if derr != nil {
			return nil, &DoesNotRespondError{ClassName: classNameOf(classPtr), Selector: selector}
		}
		methodEnc = dynEnc
	}

	n, err := countMethodArgs(methodEnc)
	if err != nil {
		return nil, err
	}
	retTok, argToks, err := splitMethodEncoding(methodEnc, n)
	if err != nil {
		return nil, err
	}

	pc := &PreparedCall{sel: sel, selName: selector, retEnc: retTok, argEncs: argToks, mode: modeInvocation}
	if isDirectEligible(retTok, argToks) && !directDispatchDisabled() {
		pc.mode = modeDirect
	} else if simplify(retTok)[0] == '{' {
		if ps, err := parseStruct(retTok); err == nil {
			pc.useStret = runtime.GOARCH == "amd64" && ps.TotalSize > 16
		}
	}

	preparedMu.Lock()
	preparedCache[key] = pc
	preparedMu.Unlock()
	return pc, nil
}

func isDirectEligible(retTok string, argToks []string) bool {
	rs := simplify(retTok)
	if len(rs) == 0 || !directCodes[rs[0]] {
		return false
	}
	for _, a := range argToks {
		s := simplify(a)
		if len(s) == 0 || !directCodes[s[0]] {
			return false
		}
	}
	return true
}

// splitMethodEncoding pulls the return token and the user-argument tokens
// (skipping self at index 0 and _cmd at index 1) out of a full method
// encoding. totalArgs is the argument count including self and _cmd, as
// countMethodArgs returns it.
func splitMethodEncoding(methodEnc string, totalArgs int) (retTok string, argToks []string, err error) {
	s := methodEnc
	retTok, err = skipOne(&s)
	if err != nil {
		return "", nil, err
	}
	s = skipDigits(s)
	for i := 0; i < totalArgs; i++ {
		tok, terr := skipOne(&s)
		if terr != nil {
			return "", nil, terr
		}
		s = skipDigits(s)
		if i >= 2 {
			argToks = append(argToks, tok)
		}
	}
	return retTok, argToks, nil
}

// dynamicMethodEncoding resolves a method encoding for selectors that
// only exist via forwardInvocation: on a class synthesized by C6/C7 --
// those never appear in the runtime's static method table, so the
// encoding is looked up from the registration C6/C7 recorded at
// definition time instead of queried from the runtime.
func dynamicMethodEncoding(classPtr, sel unsafe.Pointer) (string, error) {
	name := selectorName(sel)
	if enc, ok := lookupForwardEncodingByClass(classPtr, name); ok {
		return enc, nil
	}
	return "", &UnknownSelectorError{Selector: name}
}

// respondsTo issues a direct BOOL-returning respondsToSelector: send, used
// by RespondsToSelector when the class's static method table has no entry
// for the selector.
func respondsTo(receiver unsafe.Pointer, selector string) (bool, error) {
	sel := registerSelector(selector)
	argBuf := ptrArg(sel)
	defer freeArg(argBuf)
	var ret int8
	if err := rawMsgSend(receiver, "respondsToSelector:", "B", []string{":"}, []unsafe.Pointer{argBuf}, unsafe.Pointer(&ret)); err != nil {
		return false, err
	}
	return ret != 0, nil
}

// RespondsToSelector implements the JS-facing operation of the same name
// (spec.md §6).
func RespondsToSelector(h *ObjectHandle, selector string) (bool, error) {
	if h.isNil() {
		return false, nil
	}
	if _, ok := methodEncoding(h.classPointer(), registerSelector(selector)); ok {
		return true, nil
	}
	return respondsTo(h.ptr, selector)
}

// Send implements the JS-facing send operation (spec.md §4.4, §6).
func Send(h *ObjectHandle, selector string, args []Value, host Host) (CallResult, error) {
	if h.isNil() {
		return CallResult{Value: Null}, &DoesNotRespondError{ClassName: "nil", Selector: selector}
	}
	pc, err := Prepare(h.classPointer(), selector)
	if err != nil {
		return CallResult{Value: Null}, err
	}
	return SendPrepared(h, pc, args, host)
}

// SendPrepared implements the JS-facing sendPrepared operation.
func SendPrepared(h *ObjectHandle, pc *PreparedCall, args []Value, host Host) (CallResult, error) {
	if h.isNil() {
		return CallResult{Value: Null}, &DoesNotRespondError{ClassName: "nil", Selector: pc.selName}
	}
	if len(args) != len(pc.argEncs) {
		return CallResult{Value: Null}, &ArityError{Selector: pc.selName, Expected: len(pc.argEncs), Got: len(args)}
	}

	ctx := marshalCtx{Selector: pc.selName, Host: host, MakeBlock: makeBlockFor(host)}

	guard := &ffiTypeGuard{}
	defer guard.free()

	retT, err := buildFFIType(pc.retEnc, guard)
	if err != nil {
		return CallResult{Value: Null}, err
	}
	selfT, _ := buildFFIType("@", guard)
	cmdT, _ := buildFFIType(":", guard)
	argTypes := []*C.ffi_type{selfT, cmdT}
	for _, enc := range pc.argEncs {
		t, err := buildFFIType(enc, guard)
		if err != nil {
			return CallResult{Value: Null}, err
		}
		argTypes = append(argTypes, t)
	}

	cif, err := prepCIF(-1, retT, argTypes)
	if err != nil {
		return CallResult{Value: Null}, err
	}

	// Argument storage buffers must outlive the ffi_call.
	argBufs := make([]unsafe.Pointer, len(argTypes))
	selfVal := h.ptr
	argBufs[0] = unsafe.Pointer(&selfVal)
	cmdVal := pc.sel
	argBufs[1] = unsafe.Pointer(&cmdVal)

	cStrings := make([]unsafe.Pointer, 0, len(args))
	outParamSlots := make([]unsafe.Pointer, 0)
	for i, enc := range pc.argEncs {
		ctx.Index = i + 2
		buf := C.malloc(C.size_t(argSlotSize(enc)))
		if err := writeValue(enc, buf, args[i], ctx); err != nil {
			return CallResult{Value: Null}, err
		}
		argBufs[i+2] = buf
		if simplify(enc)[0] == '*' {
			cStrings = append(cStrings, *(*unsafe.Pointer)(buf))
		}
		if isOutParamEncoding(enc) && args[i].IsNil() {
			outParamSlots = append(outParamSlots, *(*unsafe.Pointer)(buf))
		}
	}
	defer func() {
		for i := 2; i < len(argBufs); i++ {
			C.free(argBufs[i])
		}
		for _, s := range cStrings {
			C.free(s)
		}
		for _, s := range outParamSlots {
			C.free(s)
		}
	}()

	fn := C.bridge_msgSend_ptr()
	if pc.useStret {
		fn = C.bridge_msgSend_stret_ptr()
	}

	retSize := argSlotSize(pc.retEnc)
	retBuf := C.malloc(C.size_t(retSize))
	defer C.free(retBuf)

	cif.call(fn, retBuf, argBufs)

	retVal, err := readValue(pc.retEnc, retBuf, host)
	if err != nil {
		return CallResult{Value: Null}, err
	}
	outVals, err := readOutParams(pc.argEncs, args, argBufs[2:], host)
	if err != nil {
		return CallResult{Value: Null}, err
	}
	return CallResult{Value: retVal, OutParams: outVals}, nil
}

// argSlotSize returns a buffer size large enough to hold any value of enc,
// used for both argument marshalling scratch space and the return buffer.
func argSlotSize(enc string) uintptr {
	s := simplify(enc)
	if len(s) == 0 {
		return 8
	}
	switch s[0] {
	case 'v':
		return 8
	case '{', '(':
		if ps, err := parseStruct(s); err == nil && ps.TotalSize > 0 {
			if ps.TotalSize < 8 {
				return 8
			}
			return ps.TotalSize
		}
		return 64
	default:
		return 8
	}
}
