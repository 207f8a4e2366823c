//go:build darwin

package bridge

/*
#include <ffi.h>
#include <stdlib.h>

static ffi_type* bridge_alloc_struct_type(void) {
	return (ffi_type*)calloc(1, sizeof(ffi_type));
}
*/
import "C"

import "unsafe"

// ffiTypeGuard collects the C-heap allocations a synthesized aggregate
// ffi_type tree needs (the struct's own ffi_type plus its `elements`
// vector, recursively for nested structs), freed together once the call
// that used them returns.
type ffiTypeGuard struct {
	mem []unsafe.Pointer
}

func (g *ffiTypeGuard) track(p unsafe.Pointer) unsafe.Pointer {
	g.mem = append(g.mem, p)
	return p
}

func (g *ffiTypeGuard) free() {
	for _, p := range g.mem {
		C.free(p)
	}
	g.mem = nil
}

// buildFFIType synthesizes the libffi type describing enc, recursing into
// struct/union fields and registering every allocation with guard so the
// caller can free the whole tree in one shot after the call completes
// (spec.md §4.5 step 2).
func buildFFIType(enc string, guard *ffiTypeGuard) (*C.ffi_type, error) {
	s := simplify(enc)
	if s == "" {
		return nil, &UnsupportedEncodingError{Encoding: enc, Reason: "empty encoding"}
	}
	if s[0] == '{' || s[0] == '(' {
		ps, err := parseStruct(s)
		if err != nil {
			return nil, err
		}
		return buildAggregateFFIType(ps, guard)
	}
	return ffiTypeForScalarCode(s[0])
}

func buildAggregateFFIType(ps *ParsedStruct, guard *ffiTypeGuard) (*C.ffi_type, error) {
	elemVec := C.malloc(C.size_t(len(ps.Fields)+1) * C.size_t(unsafe.Sizeof(uintptr(0))))
	guard.track(elemVec)
	elems := (*[1 << 20]*C.ffi_type)(elemVec)[: len(ps.Fields)+1 : len(ps.Fields)+1]
	for i, f := range ps.Fields {
		var ft *C.ffi_type
		var err error
		if f.IsStruct {
			nested, err2 := parseStruct(f.Encoding)
			if err2 != nil {
				return nil, err2
			}
			ft, err = buildAggregateFFIType(nested, guard)
		} else {
			ft, err = buildFFIType(f.Encoding, guard)
		}
		if err != nil {
			return nil, err
		}
		elems[i] = ft
	}
	elems[len(ps.Fields)] = nil

	typ := C.bridge_alloc_struct_type()
	guard.track(unsafe.Pointer(typ))
	typ._type = C.FFI_TYPE_STRUCT
	typ.elements = (**C.ffi_type)(elemVec)
	return typ, nil
}
