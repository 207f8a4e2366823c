//go:build darwin

package bridge

/*
#cgo LDFLAGS: -lobjc -lffi -framework CoreFoundation -framework Foundation
#include <objc/runtime.h>
#include <objc/message.h>
#include <dlfcn.h>
#include <ffi.h>
#include <stdlib.h>
#include <string.h>
#include <CoreFoundation/CoreFoundation.h>

// Thin wrappers so cgo reliably sees the symbols and so we can pass a
// generic void* function pointer without fighting cgo's function-pointer
// typing rules.
static void bridge_ffi_call(ffi_cif* cif, void* fn, void* rvalue, void** avalue) {
	ffi_call(cif, (void (*)(void))fn, rvalue, avalue);
}

static ffi_cif* bridge_alloc_cif(void) {
	return (ffi_cif*)malloc(sizeof(ffi_cif));
}

static int bridge_prep_cif(ffi_cif* cif, unsigned int nargs, ffi_type* rtype, ffi_type** atypes) {
	return ffi_prep_cif(cif, FFI_DEFAULT_ABI, nargs, rtype, atypes);
}

static int bridge_prep_cif_var(ffi_cif* cif, unsigned int nfixed, unsigned int ntotal,
    ffi_type* rtype, ffi_type** atypes) {
	return ffi_prep_cif_var(cif, FFI_DEFAULT_ABI, nfixed, ntotal, rtype, atypes);
}

static void* bridge_closure_alloc(void** executable) {
	return ffi_closure_alloc(sizeof(ffi_closure), executable);
}

extern void bridgeClosureThunk(ffi_cif*, void*, void**, uintptr_t);
static void bridge_closure_thunk_c(ffi_cif* cif, void* ret, void** args, void* user) {
	bridgeClosureThunk(cif, ret, args, (uintptr_t)user);
}

static int bridge_prep_closure(void* closure, ffi_cif* cif, void* userdata, void* executable) {
	return ffi_prep_closure_loc((ffi_closure*)closure, cif, bridge_closure_thunk_c, userdata, executable);
}

static void bridge_closure_free(void* closure) {
	ffi_closure_free((ffi_closure*)closure);
}

// dlopen/dlsym helpers, mirroring ms_dlopen/ms_dlsym_clear.
static void* bridge_dlopen_default(void) {
	return RTLD_DEFAULT;
}
static void* bridge_dlopen(const char* path) {
	return dlopen(path, RTLD_LAZY | RTLD_GLOBAL);
}
static void bridge_dlclose(void* h) {
	dlclose(h);
}
static void* bridge_dlsym_clear(void* h, const char* name, char** err) {
	dlerror();
	void* p = dlsym(h, name);
	char* e = dlerror();
	if (e) { if (err) *err = e; return NULL; }
	if (err) *err = NULL;
	return p;
}

// objc_msgSend and objc_msgSendSuper are variadic in their declared
// signature; we never call the C symbol directly with a fixed prototype
// (the argument shapes are only known at run time). Instead we resolve
// their addresses once and always invoke them through a libffi cif built
// per callsite, exactly like any other dynamically-typed C function.
static void* bridge_msgSend_ptr(void) { return (void*)objc_msgSend; }
static void* bridge_msgSendSuper_ptr(void) { return (void*)objc_msgSendSuper; }
static void* bridge_msgSend_stret_ptr(void) {
#if defined(__i386__) || defined(__x86_64__)
	return (void*)objc_msgSend_stret;
#else
	return (void*)objc_msgSend;
#endif
}

// NSGetSizeAndAlignment wrapper: returns size via return value,
// alignment (in bytes) via out-param, matching the runtime's own primitive so
// the layout engine never has to hand-roll per-platform ABI size/alignment
// tables.
static size_t bridge_size_and_align(const char* enc, size_t* out_align) {
	NSUInteger size = 0, align = 0;
	NSGetSizeAndAlignment(enc, &size, &align);
	if (out_align) *out_align = align;
	return size;
}

static void bridge_runloop_pump(double seconds) {
	CFRunLoopRunInMode(kCFRunLoopDefaultMode, seconds, true);
}
*/
import "C"

import (
	"fmt"
	"runtime/cgo"
	"sync"
	"unsafe"
)

// ---- dlopen/dlsym --------------------------------------------------------

func dlOpenDefault() unsafe.Pointer { return C.bridge_dlopen_default() }

func dlOpen(path string) (unsafe.Pointer, error) {
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))
	h := C.bridge_dlopen(cs)
	if h == nil {
		return nil, fmt.Errorf("dlopen(%q) failed", path)
	}
	return unsafe.Pointer(h), nil
}

func dlClose(handle unsafe.Pointer) { C.bridge_dlclose(handle) }

func dlSym(handle unsafe.Pointer, name string) (unsafe.Pointer, error) {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	var cerr *C.char
	p := C.bridge_dlsym_clear(handle, cs, &cerr)
	if cerr != nil {
		return nil, &SymbolNotFoundError{Name: name}
	}
	return p, nil
}

// ---- libffi type table ----------------------------------------------------

func ffiTypeVoid() *C.ffi_type    { return &C.ffi_type_void }
func ffiTypeSint8() *C.ffi_type   { return &C.ffi_type_sint8 }
func ffiTypeUint8() *C.ffi_type   { return &C.ffi_type_uint8 }
func ffiTypeSint16() *C.ffi_type  { return &C.ffi_type_sint16 }
func ffiTypeUint16() *C.ffi_type  { return &C.ffi_type_uint16 }
func ffiTypeSint32() *C.ffi_type  { return &C.ffi_type_sint32 }
func ffiTypeUint32() *C.ffi_type  { return &C.ffi_type_uint32 }
func ffiTypeSint64() *C.ffi_type  { return &C.ffi_type_sint64 }
func ffiTypeUint64() *C.ffi_type  { return &C.ffi_type_uint64 }
func ffiTypeFloat() *C.ffi_type   { return &C.ffi_type_float }
func ffiTypeDouble() *C.ffi_type  { return &C.ffi_type_double }
func ffiTypePointer() *C.ffi_type { return &C.ffi_type_pointer }

// ffiTypeForScalarCode maps a simplified type code to the libffi scalar
// type used to describe it in a cif. Aggregates are handled by the caller:
// buildFFIType in ffitypes.go synthesizes a struct ffi_type with
// `elements` for every struct-by-value argument or return.
func ffiTypeForScalarCode(code byte) (*C.ffi_type, error) {
	switch code {
	case 'v':
		return ffiTypeVoid(), nil
	case 'c', 'B':
		return ffiTypeSint8(), nil
	case 'C':
		return ffiTypeUint8(), nil
	case 's':
		return ffiTypeSint16(), nil
	case 'S':
		return ffiTypeUint16(), nil
	case 'i':
		return ffiTypeSint32(), nil
	case 'I':
		return ffiTypeUint32(), nil
	case 'l', 'q':
		return ffiTypeSint64(), nil
	case 'L', 'Q':
		return ffiTypeUint64(), nil
	case 'f':
		return ffiTypeFloat(), nil
	case 'd':
		return ffiTypeDouble(), nil
	case '@', '#', ':', '^', '*':
		return ffiTypePointer(), nil
	default:
		return nil, &UnsupportedEncodingError{Encoding: string(code), Reason: "no scalar libffi type"}
	}
}

// ---- cif plumbing ----------------------------------------------------------

type cifHandle struct {
	cif      *C.ffi_cif
	argTypes unsafe.Pointer // C-heap ffi_type** vector; kept alive alongside cif
	nargs    int
}

func allocFFITypeVector(n int) unsafe.Pointer {
	if n == 0 {
		return nil
	}
	return C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(uintptr(0))))
}

func ffiTypeVectorSlice(mem unsafe.Pointer, n int) []*C.ffi_type {
	return (*[1 << 28]*C.ffi_type)(mem)[:n:n]
}

func prepCIF(nfixed int, ret *C.ffi_type, args []*C.ffi_type) (*cifHandle, error) {
	n := len(args)
	vec := allocFFITypeVector(n)
	if n > 0 {
		copy(ffiTypeVectorSlice(vec, n), args)
	}
	cif := C.bridge_alloc_cif()
	if cif == nil {
		return nil, fmt.Errorf("objc: OOM allocating cif")
	}
	var status C.int
	if nfixed >= 0 && nfixed < n {
		status = C.bridge_prep_cif_var(cif, C.uint(nfixed), C.uint(n), ret, (**C.ffi_type)(vec))
	} else {
		status = C.bridge_prep_cif(cif, C.uint(n), ret, (**C.ffi_type)(vec))
	}
	if status != C.FFI_OK {
		C.free(unsafe.Pointer(cif))
		if vec != nil {
			C.free(vec)
		}
		return nil, &FFIFailureError{Stage: "ffi_prep_cif", Status: int(status)}
	}
	return &cifHandle{cif: cif, argTypes: vec, nargs: n}, nil
}

func (c *cifHandle) call(fn unsafe.Pointer, ret unsafe.Pointer, argv []unsafe.Pointer) {
	var argvPtr *unsafe.Pointer
	if len(argv) > 0 {
		argvPtr = &argv[0]
	}
	C.bridge_ffi_call(c.cif, fn, ret, argvPtr)
}

// ---- closures (callbacks) --------------------------------------------------

// closureThunk is implemented by whichever component owns the callback
// (C9 blocks; the C6/C7 forwarding shim uses exported functions instead
// of closures); registered per closure handle so the
// single //export trampoline below can fan out to the right owner.
type closureThunk interface {
	invoke(ret unsafe.Pointer, args []unsafe.Pointer)
}

var (
	closuresMu sync.Mutex
	closures   = map[cgo.Handle]*closure{}
)

// closure is a live libffi closure: a C-heap trampoline whose executable
// address can be handed to the ObjC runtime as an IMP, or to any C API
// expecting a function pointer of the matching signature.
type closure struct {
	mem        unsafe.Pointer // ffi_closure*
	Executable unsafe.Pointer // callable entry point
	handle     cgo.Handle
	cif        *cifHandle // kept alive for the closure's lifetime
	thunk      closureThunk
}

func newClosure(cif *cifHandle, thunk closureThunk) (*closure, error) {
	var exec unsafe.Pointer
	mem := C.bridge_closure_alloc((*unsafe.Pointer)(unsafe.Pointer(&exec)))
	if mem == nil {
		return nil, fmt.Errorf("objc: ffi_closure_alloc OOM")
	}
	c := &closure{mem: mem, Executable: exec, cif: cif, thunk: thunk}
	h := cgo.NewHandle(c)
	c.handle = h
	closuresMu.Lock()
	closures[h] = c
	closuresMu.Unlock()

	status := C.bridge_prep_closure(mem, cif.cif, unsafe.Pointer(uintptr(h)), exec)
	if status != C.FFI_OK {
		C.bridge_closure_free(mem)
		closuresMu.Lock()
		delete(closures, h)
		closuresMu.Unlock()
		h.Delete()
		return nil, &FFIFailureError{Stage: "ffi_prep_closure_loc", Status: int(status)}
	}
	return c, nil
}

func (c *closure) free() {
	closuresMu.Lock()
	delete(closures, c.handle)
	closuresMu.Unlock()
	C.bridge_closure_free(c.mem)
	c.handle.Delete()
}

//export bridgeClosureThunk
func bridgeClosureThunk(_ *C.ffi_cif, ret unsafe.Pointer, args *unsafe.Pointer, user C.uintptr_t) {
	h := cgo.Handle(user)
	closuresMu.Lock()
	c, ok := closures[h]
	closuresMu.Unlock()
	if !ok || c == nil {
		return
	}
	n := c.cif.nargs
	argv := (*[1 << 28]unsafe.Pointer)(unsafe.Pointer(args))
	c.thunk.invoke(ret, argv[:n:n])
}

// ---- runtime type-encoding queries ------------------------------------------

// runtimeSizeAndAlignment asks the ObjC runtime for the authoritative
// size/alignment of a type encoding via NSGetSizeAndAlignment, rather than
// hand-computing per-code tables the way a from-scratch layout engine
// would have to (see DESIGN.md, C1).
func runtimeSizeAndAlignment(enc string) (size, align uintptr) {
	cs := C.CString(enc)
	defer C.free(unsafe.Pointer(cs))
	var calign C.size_t
	sz := C.bridge_size_and_align(cs, &calign)
	return uintptr(sz), uintptr(calign)
}

// ---- run loop pump ----------------------------------------------------------

// pumpRunLoopOnce advances the calling thread's CFRunLoop for at most
// seconds, servicing timers/ports/sources while a cross-thread dispatch
// (C8, C9) waits for the JS side to signal completion. See spec.md §5.
func pumpRunLoopOnce(seconds float64) {
	C.bridge_runloop_pump(C.double(seconds))
}
