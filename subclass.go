//go:build darwin

package bridge

/*
#include <stdlib.h>
#import <objc/runtime.h>
#import <objc/message.h>
*/
import "C"

import (
	"unsafe"

	"github.com/google/uuid"
)

// MethodSpec is one entry of DefineClassSpec.Methods (spec.md §4.7).
type MethodSpec struct {
	Fn            JSFuncRef
	Types         string // full method encoding, self+_cmd included
	IsClassMethod bool
}

// DefineClassSpec is the JS-facing defineClass operation's input shape.
type DefineClassSpec struct {
	Name       string // optional; a name is minted via uuid when empty
	Superclass string
	Protocols  []string
	Methods    map[string]MethodSpec
}

// DefineClass implements C7 (spec.md §4.7).
func DefineClass(spec DefineClassSpec, host Host, crossContext bool) (*ClassHandle, error) {
	super, err := lookupClass(spec.Superclass)
	if err != nil {
		return nil, err
	}

	// Unlike C6's protocol impls, a caller-given name here is a lookup
	// contract: the class must later resolve via that exact name. Only
	// mint one when the caller left it unqualified.
	className := spec.Name
	if className == "" {
		className = "JSSubclass_" + uuid.NewString()
	}

	cClassName := C.CString(className)
	defer C.free(unsafe.Pointer(cClassName))
	newClass := C.objc_allocateClassPair(C.Class(super.ptr), cClassName, 0)
	if newClass == nil {
		return nil, &FatalError{Detail: "objc_allocateClassPair failed for " + className}
	}

	for _, protoName := range spec.Protocols {
		cProto := C.CString(protoName)
		proto := C.objc_getProtocol(cProto)
		C.free(unsafe.Pointer(cProto))
		if proto == nil {
			return nil, &UnknownProtocolError{Name: protoName}
		}
		C.class_addProtocol(newClass, proto)
	}

	installForwardingShim(unsafe.Pointer(newClass), false)
	C.objc_registerClassPair(newClass)

	metaclass := unsafe.Pointer(C.objc_getMetaClass(cClassName))

	impl := &SubclassImpl{
		class:      unsafe.Pointer(newClass),
		superclass: super.ptr,
		methods:    map[string]*callbackEntry{},
		host:       host,
	}

	hasClassMethod := false
	for selector, m := range spec.Methods {
		entry := &callbackEntry{
			jsRef:         rootFunc(host, m.Fn),
			encoding:      m.Types,
			isClassMethod: m.IsClassMethod,
			includeSelf:   true,
			crossContext:  crossContext,
			host:          host,
		}
		if host != nil {
			entry.tsfn = host.NewThreadsafeCallback(m.Fn)
		}
		impl.methods[selector] = entry
		if m.IsClassMethod {
			hasClassMethod = true
			registerForwardEncoding(metaclass, selector, m.Types)
		} else {
			registerForwardEncoding(unsafe.Pointer(newClass), selector, m.Types)
		}
	}

	registerSubclassImpl(impl)
	if hasClassMethod {
		registerSubclassAlias(metaclass, impl)
		installForwardingShim(metaclass, false)
	}

	return &ClassHandle{ptr: unsafe.Pointer(newClass), name: className}, nil
}

// CallSuper implements the optional callSuper operation (spec.md §4.7):
// the only path by which JS reaches the superclass implementation of a
// method it has overridden.
func CallSuper(self *ObjectHandle, selector string, args []Value, host Host) (CallResult, error) {
	if self.isNil() {
		return CallResult{Value: Null}, &DoesNotRespondError{ClassName: "nil", Selector: selector}
	}
	classPtr := objectGetClass(self.ptr)
	impl := lookupSubclassImpl(classPtr)
	if impl == nil {
		return CallResult{Value: Null}, &DoesNotRespondError{ClassName: classNameOf(classPtr), Selector: selector}
	}

	sel := registerSelector(selector)
	methodEnc, ok := methodEncoding(impl.superclass, sel)
	if !ok {
		var derr error
		methodEnc, derr = dynamicMethodEncoding(impl.superclass, sel)
		if derr != nil {
			return CallResult{Value: Null}, &UnknownSelectorError{Selector: selector}
		}
	}

	n, err := countMethodArgs(methodEnc)
	if err != nil {
		return CallResult{Value: Null}, err
	}
	retTok, argToks, err := splitMethodEncoding(methodEnc, n)
	if err != nil {
		return CallResult{Value: Null}, err
	}
	if len(args) != len(argToks) {
		return CallResult{Value: Null}, &ArityError{Selector: selector, Expected: len(argToks), Got: len(args)}
	}

	ctx := marshalCtx{Selector: selector, Host: host, MakeBlock: makeBlockFor(host)}

	guard := &ffiTypeGuard{}
	defer guard.free()
	retT, err := buildFFIType(retTok, guard)
	if err != nil {
		return CallResult{Value: Null}, err
	}
	selfT, _ := buildFFIType("@", guard)
	cmdT, _ := buildFFIType(":", guard)
	types := []*C.ffi_type{selfT, cmdT}
	for _, tok := range argToks {
		t, err := buildFFIType(tok, guard)
		if err != nil {
			return CallResult{Value: Null}, err
		}
		types = append(types, t)
	}

	cif, err := prepCIF(-1, retT, types)
	if err != nil {
		return CallResult{Value: Null}, err
	}

	var super C.struct_objc_super
	super.receiver = C.id(self.ptr)
	super.super_class = C.Class(impl.superclass)
	superArg := unsafe.Pointer(&super)
	cmdArg := sel

	argBufs := make([]unsafe.Pointer, 2+len(argToks))
	argBufs[0] = unsafe.Pointer(&superArg)
	argBufs[1] = unsafe.Pointer(&cmdArg)

	cStrings := make([]unsafe.Pointer, 0, len(argToks))
	outParamSlots := make([]unsafe.Pointer, 0)
	for i, tok := range argToks {
		ctx.Index = i + 2
		buf := C.malloc(C.size_t(argSlotSize(tok)))
		if err := writeValue(tok, buf, args[i], ctx); err != nil {
			return CallResult{Value: Null}, err
		}
		argBufs[i+2] = buf
		if simplify(tok)[0] == '*' {
			cStrings = append(cStrings, *(*unsafe.Pointer)(buf))
		}
		if isOutParamEncoding(tok) && args[i].IsNil() {
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

	// Large struct returns through objc_msgSendSuper would need a
	// msgSendSuper_stret entry point on amd64; this bridge does not wire
	// one (see DESIGN.md), so callSuper on a large-struct-returning method
	// is only correct on arm64.
	fn := C.bridge_msgSendSuper_ptr()

	retBuf := C.malloc(C.size_t(argSlotSize(retTok)))
	defer C.free(retBuf)
	cif.call(fn, retBuf, argBufs)

	retVal, err := readValue(retTok, retBuf, host)
	if err != nil {
		return CallResult{Value: Null}, err
	}
	outVals, err := readOutParams(argToks, args, argBufs[2:], host)
	if err != nil {
		return CallResult{Value: Null}, err
	}
	return CallResult{Value: retVal, OutParams: outVals}, nil
}
