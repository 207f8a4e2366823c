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

// CreateProtocolImplementation implements C6 (spec.md §4.6): a fresh
// class conforming to protocolName, with the given selector -> JS
// callback map installed via the shared forwarding shim (C8).
func CreateProtocolImplementation(protocolName string, callbacks map[string]JSFuncRef, host Host, crossContext bool) (*ObjectHandle, error) {
	cname := C.CString(protocolName)
	defer C.free(unsafe.Pointer(cname))
	proto := C.objc_getProtocol(cname)
	if proto == nil {
		return nil, &UnknownProtocolError{Name: protocolName}
	}

	// Unique class name per instantiation, since a protocol may be
	// implemented many times over a process's lifetime (spec.md §4.6
	// step 2: "name = protocolName + unique suffix").
	className := protocolName + "_Impl_" + uuid.NewString()
	cClassName := C.CString(className)
	defer C.free(unsafe.Pointer(cClassName))

	rootName := C.CString("NSObject")
	defer C.free(unsafe.Pointer(rootName))
	root := C.objc_getClass(rootName)
	if root == nil {
		return nil, &UnknownClassError{Name: "NSObject"}
	}

	newClass := C.objc_allocateClassPair(root, cClassName, 0)
	if newClass == nil {
		return nil, &FatalError{Detail: "objc_allocateClassPair failed for " + className}
	}
	C.class_addProtocol(newClass, proto)
	installForwardingShim(unsafe.Pointer(newClass), true)
	C.objc_registerClassPair(newClass)

	instance := C.class_createInstance(newClass, 0)
	if instance == nil {
		return nil, &FatalError{Detail: "class_createInstance failed for " + className}
	}

	impl := &ProtocolImpl{
		instance:  unsafe.Pointer(instance),
		class:     unsafe.Pointer(newClass),
		protocol:  protocolName,
		callbacks: map[string]*callbackEntry{},
		host:      host,
	}

	for selector, fn := range callbacks {
		enc, err := resolveProtocolMethodEncoding(proto, selector)
		if err != nil {
			return nil, err
		}
		entry := &callbackEntry{
			jsRef:        rootFunc(host, fn),
			encoding:     enc,
			isClassMethod: false,
			includeSelf:  false,
			crossContext: crossContext,
			host:         host,
		}
		if host != nil {
			entry.tsfn = host.NewThreadsafeCallback(fn)
		}
		impl.callbacks[selector] = entry
		registerForwardEncoding(unsafe.Pointer(newClass), selector, enc)
	}

	registerProtocolImpl(impl)
	return wrapOwned(unsafe.Pointer(instance)), nil
}

func rootFunc(host Host, fn JSFuncRef) JSFuncRef {
	if host == nil {
		return fn
	}
	return host.Root(fn)
}

// resolveProtocolMethodEncoding queries protocol for selector's type
// encoding, preferring required over optional and instance over class
// methods, per spec.md §4.6 step 5.
func resolveProtocolMethodEncoding(proto *C.Protocol, selector string) (string, error) {
	sel := C.SEL(registerSelector(selector))
	combos := []struct{ required, instance C.BOOL }{
		{1, 1}, {0, 1}, {1, 0}, {0, 0},
	}
	for _, c := range combos {
		desc := C.protocol_getMethodDescription(proto, sel, c.required, c.instance)
		if desc.name != nil && desc.types != nil {
			return C.GoString(desc.types), nil
		}
	}
	return "", &UnsupportedEncodingError{Encoding: selector, Reason: "selector not declared by protocol"}
}
