//go:build darwin

package bridge

import "fmt"

// Kind tags the payload carried by a Value. This is the wire format for
// every value that crosses the JS/ObjC boundary in either direction.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindHandle   // *ObjectHandle
	KindClass    // *ClassHandle
	KindBuffer   // []byte, backs ^T pointer arguments
	KindArray    // *ArrayValue
	KindMap      // *MapValue, used for struct literals and returns
	KindSelector // string, already-registered selector name
	KindFunction // JSFuncRef, a callable rooted on the JS side
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindHandle:
		return "handle"
	case KindClass:
		return "class"
	case KindBuffer:
		return "buffer"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindSelector:
		return "selector"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Value is the single JS-visible value type. Only one of the payload
// fields is meaningful, selected by Kind; callers must not read a field
// that Kind does not select.
type Value struct {
	Kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	data any
}

var Null = Value{Kind: KindNull}

func Bool(v bool) Value           { return Value{Kind: KindBool, b: v} }
func Int(v int64) Value           { return Value{Kind: KindInt, i: v} }
func Float(v float64) Value       { return Value{Kind: KindFloat, f: v} }
func Str(v string) Value          { return Value{Kind: KindString, s: v} }
func SelectorValue(v string) Value { return Value{Kind: KindSelector, s: v} }
func Buffer(v []byte) Value       { return Value{Kind: KindBuffer, data: v} }
func HandleValue(h *ObjectHandle) Value {
	if h == nil {
		return Null
	}
	return Value{Kind: KindHandle, data: h}
}
func ClassValue(c *ClassHandle) Value {
	if c == nil {
		return Null
	}
	return Value{Kind: KindClass, data: c}
}
func FuncValue(fn JSFuncRef) Value { return Value{Kind: KindFunction, data: fn} }
func ArrayVal(elems []Value) Value { return Value{Kind: KindArray, data: &ArrayValue{Elems: elems}} }
func MapVal(m *MapValue) Value     { return Value{Kind: KindMap, data: m} }

func (v Value) Bool() bool     { return v.b }
func (v Value) Int() int64     { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Str() string    { return v.s }
func (v Value) Selector() string {
	return v.s
}
func (v Value) BufferBytes() []byte {
	b, _ := v.data.([]byte)
	return b
}
func (v Value) Handle() *ObjectHandle {
	h, _ := v.data.(*ObjectHandle)
	return h
}
func (v Value) Class() *ClassHandle {
	c, _ := v.data.(*ClassHandle)
	return c
}
func (v Value) Func() JSFuncRef {
	fn, _ := v.data.(JSFuncRef)
	return fn
}
func (v Value) Array() *ArrayValue {
	a, _ := v.data.(*ArrayValue)
	return a
}
func (v Value) Map() *MapValue {
	m, _ := v.data.(*MapValue)
	return m
}

// IsNil reports whether v represents ObjC nil: JS null/undefined, or a
// handle wrapping a nil id.
func (v Value) IsNil() bool {
	if v.Kind == KindNull {
		return true
	}
	if v.Kind == KindHandle {
		h := v.Handle()
		return h == nil || h.isNil()
	}
	return false
}

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%v", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString, KindSelector:
		return v.s
	default:
		return fmt.Sprintf("<%s>", v.Kind)
	}
}

// ArrayValue is a JS array: an ordered list of Values.
type ArrayValue struct {
	Elems []Value
}

// MapValue is a JS object: an ordered set of key/value pairs. Order is
// preserved so the struct marshaller can fall back to declaration-order
// iteration when a struct's field names don't match the map's keys.
type MapValue struct {
	Keys    []string
	Entries map[string]Value
}

func NewMapValue() *MapValue {
	return &MapValue{Entries: make(map[string]Value)}
}

func (m *MapValue) Set(key string, v Value) {
	if _, exists := m.Entries[key]; !exists {
		m.Keys = append(m.Keys, key)
	}
	m.Entries[key] = v
}

func (m *MapValue) Get(key string) (Value, bool) {
	v, ok := m.Entries[key]
	return v, ok
}
