//go:build darwin

package bridge

/*
#include <stdlib.h>
#import <objc/runtime.h>
#import <objc/message.h>
*/
import "C"

import "unsafe"

// registerSelector interns name with the runtime. sel_registerName is
// itself idempotent and thread-safe (spec.md §5, "Selector registration
// is thread-safe at the ObjC runtime level"), so no cache is needed here
// beyond what the runtime already provides -- this satisfies the
// "Selector registration idempotence" testable property in spec.md §8
// for free.
func registerSelector(name string) unsafe.Pointer {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return unsafe.Pointer(C.sel_registerName(cname))
}

func selectorName(sel unsafe.Pointer) string {
	if sel == nil {
		return ""
	}
	return C.GoString(C.sel_getName(C.SEL(sel)))
}
