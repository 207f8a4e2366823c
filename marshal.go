//go:build darwin

package bridge

/*
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"math"
	"unsafe"
)

// marshalCtx carries the small amount of context a single argument
// conversion needs: which selector/index it belongs to (for error
// messages) and the block builder (block.go's makeBlockFor), passed in as
// a function value. Out-param (^@) slots need no such injection: writeValue
// allocates them inline, and the call-site marshallers (message.go,
// cfunc.go, subclass.go) read them back with readOutParams.
type marshalCtx struct {
	Selector    string
	Index       int
	MakeBlock   func(fn JSFuncRef, declaredEncoding string) (unsafe.Pointer, func(), error)
	Host        Host
}

func invalidArg(ctx marshalCtx, expected string, actual Kind) error {
	return &InvalidArgumentError{Selector: ctx.Selector, Index: ctx.Index, Expected: expected, Actual: actual}
}

// isOutParamEncoding reports whether enc is the ^@ out-parameter encoding
// spec.md §4.2 special-cases: a pointer-to-object slot such as
// NSError**.
func isOutParamEncoding(enc string) bool {
	s := simplify(enc)
	return len(s) == 2 && s[0] == '^' && s[1] == '@'
}

// readOutParams reads back every ^@ argument the caller marked as an
// out-param (by passing null for it) after a call has completed, per
// spec.md §4.2's "read back from storage slot" step and §6's "returned to
// JS alongside ... the main return". argEncs and args are the call's
// user-visible argument encodings/values in order; bufs[i] must be the
// buffer writeValue wrote argEncs[i] into.
func readOutParams(argEncs []string, args []Value, bufs []unsafe.Pointer, host Host) ([]Value, error) {
	var out []Value
	for i, enc := range argEncs {
		if !isOutParamEncoding(enc) || !args[i].IsNil() {
			continue
		}
		v, err := readValue(enc, bufs[i], host)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// writeScalar writes v into dst according to the simplified scalar type
// code, per spec.md §4.2's "JS -> raw buffer" table.
func writeScalar(code byte, dst unsafe.Pointer, v Value, ctx marshalCtx) error {
	switch code {
	case 'c', 'C', 'B':
		n, err := coerceInt(v, ctx)
		if err != nil {
			return err
		}
		*(*int8)(dst) = int8(n)
	case 's':
		n, err := coerceInt(v, ctx)
		if err != nil {
			return err
		}
		*(*int16)(dst) = int16(n)
	case 'S':
		n, err := coerceInt(v, ctx)
		if err != nil {
			return err
		}
		*(*uint16)(dst) = uint16(n)
	case 'i':
		n, err := coerceInt(v, ctx)
		if err != nil {
			return err
		}
		*(*int32)(dst) = int32(n)
	case 'I':
		n, err := coerceInt(v, ctx)
		if err != nil {
			return err
		}
		*(*uint32)(dst) = uint32(n)
	case 'l', 'q':
		n, err := coerceInt(v, ctx)
		if err != nil {
			return err
		}
		*(*int64)(dst) = n
	case 'L', 'Q':
		n, err := coerceInt(v, ctx)
		if err != nil {
			return err
		}
		*(*uint64)(dst) = uint64(n)
	case 'f':
		f, err := coerceFloat(v, ctx)
		if err != nil {
			return err
		}
		*(*float32)(dst) = float32(f)
	case 'd':
		f, err := coerceFloat(v, ctx)
		if err != nil {
			return err
		}
		*(*float64)(dst) = f
	default:
		return &UnsupportedEncodingError{Encoding: string(code), Reason: "not a scalar code"}
	}
	return nil
}

func coerceInt(v Value, ctx marshalCtx) (int64, error) {
	switch v.Kind {
	case KindBool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	case KindInt:
		return v.Int(), nil
	case KindFloat:
		return int64(v.Float()), nil
	default:
		return 0, invalidArg(ctx, "integer", v.Kind)
	}
}

func coerceFloat(v Value, ctx marshalCtx) (float64, error) {
	switch v.Kind {
	case KindFloat:
		return v.Float(), nil
	case KindInt:
		return float64(v.Int()), nil
	case KindBool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, invalidArg(ctx, "number", v.Kind)
	}
}

func coerceBool(v Value, ctx marshalCtx) (bool, error) {
	switch v.Kind {
	case KindBool:
		return v.Bool(), nil
	case KindInt:
		return v.Int() != 0, nil
	case KindFloat:
		return v.Float() != 0, nil
	default:
		return false, invalidArg(ctx, "bool", v.Kind)
	}
}

// writeValue writes v into dst according to a full (possibly qualified,
// possibly aggregate) type encoding.
func writeValue(enc string, dst unsafe.Pointer, v Value, ctx marshalCtx) error {
	s := simplify(enc)
	if s == "" {
		return &UnsupportedEncodingError{Encoding: enc, Reason: "empty encoding"}
	}
	code := s[0]
	if isBlock(s) {
		code = 0 // "@?" goes to the block branch under default, not to '@'
	}
	switch code {
	case 'v', 'c', 'C', 'i', 'I', 's', 'S', 'l', 'L', 'q', 'Q', 'f', 'd':
		if s[0] == 'v' {
			return nil
		}
		return writeScalar(s[0], dst, v, ctx)
	case 'B':
		b, err := coerceBool(v, ctx)
		if err != nil {
			return err
		}
		if b {
			*(*int8)(dst) = 1
		} else {
			*(*int8)(dst) = 0
		}
		return nil
	case '@':
		if v.IsNil() {
			*(*unsafe.Pointer)(dst) = nil
			return nil
		}
		if v.Kind != KindHandle {
			return invalidArg(ctx, "@", v.Kind)
		}
		*(*unsafe.Pointer)(dst) = v.Handle().ptr
		return nil
	case '#':
		if v.IsNil() {
			*(*unsafe.Pointer)(dst) = nil
			return nil
		}
		if v.Kind == KindClass {
			*(*unsafe.Pointer)(dst) = v.Class().ptr
			return nil
		}
		if v.Kind == KindHandle {
			*(*unsafe.Pointer)(dst) = v.Handle().ptr
			return nil
		}
		return invalidArg(ctx, "#", v.Kind)
	case ':':
		if v.Kind != KindSelector && v.Kind != KindString {
			return invalidArg(ctx, ":", v.Kind)
		}
		*(*unsafe.Pointer)(dst) = registerSelector(v.s)
		return nil
	case '*':
		if v.IsNil() {
			*(*unsafe.Pointer)(dst) = nil
			return nil
		}
		if v.Kind != KindString {
			return invalidArg(ctx, "*", v.Kind)
		}
		// Not retained beyond the call frame: caller-owned cleanup is the
		// responsibility of the call-site marshaller (message.go/cfunc.go),
		// which frees this after the call returns per spec.md §4.2.
		*(*unsafe.Pointer)(dst) = unsafe.Pointer(C.CString(v.Str()))
		return nil
	case '^':
		if isOutParamEncoding(s) && v.IsNil() {
			// The caller marks a ^@ argument as out by passing null for it
			// (JS has no way to hand us a real address), per spec.md §4.2:
			// allocate a storage id initialized nil, and pass its address
			// as the argument value. readOutParams reads the storage back
			// after invoke.
			inner := C.malloc(C.size_t(unsafe.Sizeof(uintptr(0))))
			*(*unsafe.Pointer)(inner) = nil
			*(*unsafe.Pointer)(dst) = inner
			return nil
		}
		// A bare pointer argument: an existing handle/buffer address
		// passed through as-is, not an out-param slot for us to allocate.
		if v.IsNil() {
			*(*unsafe.Pointer)(dst) = nil
			return nil
		}
		if v.Kind == KindBuffer {
			buf := v.BufferBytes()
			if len(buf) == 0 {
				*(*unsafe.Pointer)(dst) = nil
			} else {
				*(*unsafe.Pointer)(dst) = unsafe.Pointer(&buf[0])
			}
			return nil
		}
		if v.Kind == KindHandle {
			*(*unsafe.Pointer)(dst) = v.Handle().ptr
			return nil
		}
		return invalidArg(ctx, s, v.Kind)
	case '{', '(':
		ps, err := parseStruct(s)
		if err != nil {
			return err
		}
		return packStruct(ps, dst, v, ctx)
	default:
		if isBlock(s) {
			if v.Kind == KindFunction {
				if ctx.MakeBlock == nil {
					return &UnsupportedEncodingError{Encoding: enc, Reason: "block construction unavailable in this context"}
				}
				blk, cleanup, err := ctx.MakeBlock(v.Func(), enc)
				if err != nil {
					return err
				}
				_ = cleanup // block lifetime is process-global per spec.md §9; nothing to run here
				*(*unsafe.Pointer)(dst) = blk
				return nil
			}
			if v.IsNil() {
				*(*unsafe.Pointer)(dst) = nil
				return nil
			}
			if v.Kind == KindHandle {
				*(*unsafe.Pointer)(dst) = v.Handle().ptr
				return nil
			}
			return invalidArg(ctx, enc, v.Kind)
		}
		return &UnsupportedEncodingError{Encoding: enc, Reason: "unrecognized leading code"}
	}
}

// readValue reads a raw buffer into a JS Value according to enc, the
// symmetric direction of writeValue.
func readValue(enc string, src unsafe.Pointer, host Host) (Value, error) {
	s := simplify(enc)
	if s == "" {
		return Null, &UnsupportedEncodingError{Encoding: enc, Reason: "empty encoding"}
	}
	switch s[0] {
	case 'v':
		return Null, nil
	case 'c', 'B':
		return Int(int64(*(*int8)(src))), nil
	case 'C':
		return Int(int64(*(*uint8)(src))), nil
	case 's':
		return Int(int64(*(*int16)(src))), nil
	case 'S':
		return Int(int64(*(*uint16)(src))), nil
	case 'i':
		return Int(int64(*(*int32)(src))), nil
	case 'I':
		return Int(int64(*(*uint32)(src))), nil
	case 'l', 'q':
		return Int(*(*int64)(src)), nil
	case 'L', 'Q':
		u := *(*uint64)(src)
		if u > math.MaxInt64 {
			// spec.md §8: round-trip holds "modulo documented truncation"
			// beyond 2^53; a value above math.MaxInt64 comes back as an
			// approximate Float rather than wrapping into a negative Int.
			return Float(float64(u)), nil
		}
		return Int(int64(u)), nil
	case 'f':
		return Float(float64(*(*float32)(src))), nil
	case 'd':
		return Float(*(*float64)(src)), nil
	case '@':
		p := *(*unsafe.Pointer)(src)
		if p == nil {
			return Null, nil
		}
		return HandleValue(wrapRetained(p)), nil
	case '#':
		p := *(*unsafe.Pointer)(src)
		if p == nil {
			return Null, nil
		}
		return ClassValue(&ClassHandle{ptr: p}), nil
	case ':':
		p := *(*unsafe.Pointer)(src)
		if p == nil {
			return Null, nil
		}
		return SelectorValue(selectorName(p)), nil
	case '*':
		p := *(*unsafe.Pointer)(src)
		if p == nil {
			return Null, nil
		}
		return Str(C.GoString((*C.char)(p))), nil
	case '^':
		p := *(*unsafe.Pointer)(src)
		if p == nil {
			return Null, nil
		}
		if len(s) >= 2 && (s[1] == '@' || s[1] == '#') {
			// src holds the address of the inner id/Class storage slot
			// (either the one writeValue allocated for an outbound
			// out-param, or the one an ObjC caller passed into a forwarded
			// invocation); read through it the same way the bare @/#
			// cases read a direct value.
			return readValue(s[1:], p, host)
		}
		return Buffer(nil), fmt.Errorf("objc: reading arbitrary pointer %q requires an explicit length; use out-param handling", enc)
	case '{', '(':
		ps, err := parseStruct(s)
		if err != nil {
			return Null, err
		}
		return unpackStruct(ps, src)
	default:
		if isBlock(s) {
			p := *(*unsafe.Pointer)(src)
			if p == nil {
				return Null, nil
			}
			return HandleValue(wrapRetained(p)), nil
		}
		return Null, &UnsupportedEncodingError{Encoding: enc, Reason: "unrecognized leading code"}
	}
}

// packStruct writes a JS struct literal into dst using the fast path for
// well-known Apple structs, falling back to the generic recursive walker.
func packStruct(ps *ParsedStruct, dst unsafe.Pointer, v Value, ctx marshalCtx) error {
	if fastPathStructs[ps.Name] {
		return packFastPath(ps, dst, v, ctx)
	}
	return packStructGeneric(ps, dst, v, ctx)
}

func unpackStruct(ps *ParsedStruct, src unsafe.Pointer) (Value, error) {
	if fastPathStructs[ps.Name] {
		return unpackFastPath(ps, src)
	}
	return unpackStructGeneric(ps, src)
}

// packFastPath handles CGRect/CGPoint/CGSize/NSRange by direct field-by-
// offset writes, bypassing the generic walker (spec.md §4.2).
func packFastPath(ps *ParsedStruct, dst unsafe.Pointer, v Value, ctx marshalCtx) error {
	m := v.Map()
	if m == nil {
		return invalidArg(ctx, ps.Name, v.Kind)
	}
	for _, f := range ps.Fields {
		fv, ok := m.Get(f.Name)
		if !ok {
			continue
		}
		fdst := unsafe.Pointer(uintptr(dst) + f.Offset)
		if f.IsStruct {
			nested, err := parseStruct(f.Encoding)
			if err != nil {
				return err
			}
			if err := packFastPath(nested, fdst, fv, ctx); err != nil {
				return err
			}
			continue
		}
		if err := writeValue(f.Encoding, fdst, fv, ctx); err != nil {
			return err
		}
	}
	return nil
}

func unpackFastPath(ps *ParsedStruct, src unsafe.Pointer) (Value, error) {
	m := NewMapValue()
	for _, f := range ps.Fields {
		fsrc := unsafe.Pointer(uintptr(src) + f.Offset)
		if f.IsStruct {
			nested, err := parseStruct(f.Encoding)
			if err != nil {
				return Null, err
			}
			fv, err := unpackFastPath(nested, fsrc)
			if err != nil {
				return Null, err
			}
			m.Set(f.Name, fv)
			continue
		}
		fv, err := readValue(f.Encoding, fsrc, nil)
		if err != nil {
			return Null, err
		}
		m.Set(f.Name, fv)
	}
	return MapVal(m), nil
}

// packStructGeneric recursively walks ParsedStruct.Fields, reading a JS
// object by named keys, then by declaration-order own-keys, then by array
// index, per spec.md §4.2.
func packStructGeneric(ps *ParsedStruct, dst unsafe.Pointer, v Value, ctx marshalCtx) error {
	switch v.Kind {
	case KindMap:
		m := v.Map()
		for i, f := range ps.Fields {
			var fv Value
			var ok bool
			if fv, ok = m.Get(f.Name); !ok {
				if i < len(m.Keys) {
					fv, ok = m.Get(m.Keys[i])
				}
			}
			if !ok {
				continue
			}
			if err := writeAggField(f, unsafe.Pointer(uintptr(dst)+f.Offset), fv, ctx); err != nil {
				return err
			}
		}
		return nil
	case KindArray:
		arr := v.Array()
		for i, f := range ps.Fields {
			if i >= len(arr.Elems) {
				break
			}
			if err := writeAggField(f, unsafe.Pointer(uintptr(dst)+f.Offset), arr.Elems[i], ctx); err != nil {
				return err
			}
		}
		return nil
	default:
		return invalidArg(ctx, ps.Name, v.Kind)
	}
}

func writeAggField(f StructField, dst unsafe.Pointer, v Value, ctx marshalCtx) error {
	if f.IsStruct {
		nested, err := parseStruct(f.Encoding)
		if err != nil {
			return err
		}
		return packStructGeneric(nested, dst, v, ctx)
	}
	return writeValue(f.Encoding, dst, v, ctx)
}

func unpackStructGeneric(ps *ParsedStruct, src unsafe.Pointer) (Value, error) {
	m := NewMapValue()
	for _, f := range ps.Fields {
		fsrc := unsafe.Pointer(uintptr(src) + f.Offset)
		var fv Value
		var err error
		if f.IsStruct {
			nested, nerr := parseStruct(f.Encoding)
			if nerr != nil {
				return Null, nerr
			}
			fv, err = unpackStructGeneric(nested, fsrc)
		} else {
			fv, err = readValue(f.Encoding, fsrc, nil)
		}
		if err != nil {
			return Null, err
		}
		m.Set(f.Name, fv)
	}
	return MapVal(m), nil
}
