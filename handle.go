//go:build darwin

package bridge

/*
#cgo LDFLAGS: -lobjc
#include <stdlib.h>
#import <objc/runtime.h>
#import <objc/message.h>

static inline id bridge_retain(id obj) { return objc_retain(obj); }
static inline void bridge_release(id obj) { objc_release(obj); }
static inline Class bridge_object_getClass(id obj) { return object_getClass(obj); }
*/
import "C"

import (
	"runtime"
	"sync"
	"unsafe"
)

// ObjectHandle owns exactly one strong reference to an ObjC id, per
// spec.md §3. It is created by wrapRetained (which performs the extra
// retain) and releases that reference exactly once, driven by
// runtime.SetFinalizer plus a sync.Once-guarded release so a handle can be
// dropped from any goroutine without double-freeing.
type ObjectHandle struct {
	ptr      unsafe.Pointer
	once     sync.Once
	released bool
	mu       sync.Mutex
}

// wrapRetained wraps a non-nil id, retaining it. Passing nil returns nil:
// per spec.md §3, "a nil id never becomes a handle."
func wrapRetained(p unsafe.Pointer) *ObjectHandle {
	if p == nil {
		return nil
	}
	C.bridge_retain(C.id(p))
	h := &ObjectHandle{ptr: p}
	runtime.SetFinalizer(h, (*ObjectHandle).release)
	return h
}

// wrapOwned wraps an id the caller already owns a +1 reference to (e.g.
// the freshly allocated instance in C6/C7), without an additional retain.
func wrapOwned(p unsafe.Pointer) *ObjectHandle {
	if p == nil {
		return nil
	}
	h := &ObjectHandle{ptr: p}
	runtime.SetFinalizer(h, (*ObjectHandle).release)
	return h
}

// release drops the handle's one owned reference. Safe to call multiple
// times (from an explicit Close and later from the finalizer); only the
// first call has any effect.
func (h *ObjectHandle) release() {
	h.once.Do(func() {
		h.mu.Lock()
		p := h.ptr
		h.released = true
		h.mu.Unlock()
		if p != nil {
			C.bridge_release(C.id(p))
		}
	})
}

// Close releases the handle deterministically instead of waiting on the
// finalizer. Safe to call redundantly.
func (h *ObjectHandle) Close() {
	if h == nil {
		return
	}
	runtime.SetFinalizer(h, nil)
	h.release()
}

// Pointer exposes the raw id value for diagnostics only, per spec.md §3
// ("expose a read-only numeric pointer accessor for diagnostics only").
// It must never be used to construct another owning reference.
func (h *ObjectHandle) Pointer() uintptr {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return uintptr(h.ptr)
}

func (h *ObjectHandle) isNil() bool {
	return h == nil || h.ptr == nil
}

// IsNil reports whether the handle wraps a nil id.
func (h *ObjectHandle) IsNil() bool { return h.isNil() }

func (h *ObjectHandle) classPointer() unsafe.Pointer {
	if h.isNil() {
		return nil
	}
	return unsafe.Pointer(C.bridge_object_getClass(C.id(h.ptr)))
}

// ClassHandle wraps an ObjC Class pointer, per spec.md §4.7. Classes are
// not reference-counted objects in the same sense as instances (a class
// pair, once registered, lives for the process's remaining lifetime), so
// ClassHandle carries no retain/release of its own.
type ClassHandle struct {
	ptr  unsafe.Pointer
	name string
}

func (c *ClassHandle) Pointer() uintptr {
	if c == nil {
		return 0
	}
	return uintptr(c.ptr)
}

func (c *ClassHandle) Name() string {
	if c == nil {
		return ""
	}
	if c.name != "" {
		return c.name
	}
	return C.GoString(C.class_getName(C.Class(c.ptr)))
}

// AsReceiver wraps the class's own pointer as a message receiver, since a
// Class is a valid id for class-method dispatch. The returned handle owns
// no reference (a registered class pair outlives the process) and carries
// no finalizer.
func (c *ClassHandle) AsReceiver() *ObjectHandle {
	if c == nil {
		return nil
	}
	return &ObjectHandle{ptr: c.ptr}
}

// lookupClass resolves an ObjC class by name, per spec.md's UnknownClass
// error condition.
func lookupClass(name string) (*ClassHandle, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	cls := C.objc_getClass(cname)
	if cls == nil {
		return nil, &UnknownClassError{Name: name}
	}
	return &ClassHandle{ptr: unsafe.Pointer(cls), name: name}, nil
}
