//go:build darwin

package bridge

/*
#include <stdlib.h>
#import <objc/runtime.h>
#import <objc/message.h>

typedef struct objc_super bridge_objc_super;
*/
import "C"

import "unsafe"

// rawMsgSend issues a message send using explicitly given raw type codes
// rather than going through a PreparedCall, for the small set of
// bookkeeping sends the bridge itself needs to make (respondsToSelector:,
// methodSignatureForSelector:, NSInvocation accessors, super calls). argPtrs
// must each point at a buffer already holding the value to pass, sized per
// argSlotSize(argEncs[i]); ret must point at a buffer sized per
// argSlotSize(retEnc).
func rawMsgSend(receiver unsafe.Pointer, selector string, retEnc string, argEncs []string, argPtrs []unsafe.Pointer, ret unsafe.Pointer) error {
	return rawMsgSendImpl(receiver, registerSelector(selector), retEnc, argEncs, argPtrs, ret, false, nil)
}

// rawMsgSendSuper is the same, but dispatches through objc_msgSendSuper
// against superClass instead of receiver's own class, per spec.md §4.7's
// callSuper.
func rawMsgSendSuper(receiver unsafe.Pointer, superClass unsafe.Pointer, sel unsafe.Pointer, retEnc string, argEncs []string, argPtrs []unsafe.Pointer, ret unsafe.Pointer) error {
	return rawMsgSendImpl(receiver, sel, retEnc, argEncs, argPtrs, ret, true, superClass)
}

func rawMsgSendImpl(receiver unsafe.Pointer, sel unsafe.Pointer, retEnc string, argEncs []string, argPtrs []unsafe.Pointer, ret unsafe.Pointer, useSuper bool, superClass unsafe.Pointer) error {
	guard := &ffiTypeGuard{}
	defer guard.free()

	retT, err := buildFFIType(retEnc, guard)
	if err != nil {
		return err
	}
	selfT, _ := buildFFIType("@", guard)
	cmdT, _ := buildFFIType(":", guard)
	types := []*C.ffi_type{selfT, cmdT}
	for _, e := range argEncs {
		t, err := buildFFIType(e, guard)
		if err != nil {
			return err
		}
		types = append(types, t)
	}

	cif, err := prepCIF(-1, retT, types)
	if err != nil {
		return err
	}

	argv := make([]unsafe.Pointer, 2+len(argPtrs))
	var super C.bridge_objc_super
	var fn unsafe.Pointer
	if useSuper {
		super.receiver = C.id(receiver)
		super.super_class = C.Class(superClass)
		selfArg := unsafe.Pointer(&super)
		argv[0] = unsafe.Pointer(&selfArg)
		fn = C.bridge_msgSendSuper_ptr()
	} else {
		selfArg := receiver
		argv[0] = unsafe.Pointer(&selfArg)
		fn = C.bridge_msgSend_ptr()
	}
	cmdArg := sel
	argv[1] = unsafe.Pointer(&cmdArg)
	copy(argv[2:], argPtrs)

	cif.call(fn, ret, argv)
	return nil
}

// ptrArg heap-allocates a one-pointer-sized argument buffer holding p, for
// use with rawMsgSend's argPtrs slice.
func ptrArg(p unsafe.Pointer) unsafe.Pointer {
	buf := C.malloc(C.size_t(unsafe.Sizeof(uintptr(0))))
	*(*unsafe.Pointer)(buf) = p
	return buf
}

func freeArg(p unsafe.Pointer) { C.free(p) }
