// errors.go: typed error kinds for the boundary between JS and the ObjC
// runtime.
//
// Every error the call path can produce is one of the concrete types below,
// so callers can use errors.As to branch on the failure kind the way
// spec.md §7 enumerates them: a small struct per failure kind, each with
// an Error() method, dispatched with a type switch. There is no
// caret-snippet source rendering here since there is no source text, only
// a selector, a class, and an argument index.
//go:build darwin

package bridge

import "fmt"

// UnknownSelectorError: the selector was never registered and the receiver
// does not implement it.
type UnknownSelectorError struct {
	Selector string
}

func (e *UnknownSelectorError) Error() string {
	return fmt.Sprintf("objc: unknown selector %q", e.Selector)
}

// DoesNotRespondError: the receiver's class does not implement the selector,
// and a direct-dispatch call would trap rather than raise a catchable error.
type DoesNotRespondError struct {
	ClassName string
	Selector  string
}

func (e *DoesNotRespondError) Error() string {
	return fmt.Sprintf("objc: %s does not respond to %s", e.ClassName, e.Selector)
}

// ArityError: the number of JS arguments did not match the encoded arity.
type ArityError struct {
	Selector string
	Expected int
	Got      int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("objc: %s expects %d argument(s), got %d", e.Selector, e.Expected, e.Got)
}

// InvalidArgumentError: a JS value could not be converted to the encoded C
// type at the given argument index. For message sends (SendPrepared,
// CallSuper) the index counts 0 = self, 1 = _cmd, user args from 2,
// matching spec.md §4.1's extractArgFromMethodType indexing; for
// CallFunction it is the 0-based position in argEncs.
type InvalidArgumentError struct {
	Selector string
	Index    int
	Expected string // the ObjC type code we needed
	Actual   Kind   // the JS kind we were given
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("objc: %s: argument %d: expected %s, got %s", e.Selector, e.Index, e.Expected, e.Actual)
}

// UnknownProtocolError: CreateProtocolImplementation was asked for a
// protocol name the runtime has never seen registered.
type UnknownProtocolError struct {
	Name string
}

func (e *UnknownProtocolError) Error() string { return fmt.Sprintf("objc: unknown protocol %q", e.Name) }

// UnknownClassError: GetClass or DefineClass referenced a class name that
// objc_getClass could not resolve.
type UnknownClassError struct {
	Name string
}

func (e *UnknownClassError) Error() string { return fmt.Sprintf("objc: unknown class %q", e.Name) }

// SymbolNotFoundError: CallFunction's dynamic-loader lookup came back empty.
type SymbolNotFoundError struct {
	Name string
}

func (e *SymbolNotFoundError) Error() string { return fmt.Sprintf("objc: symbol not found: %q", e.Name) }

// UnsupportedEncodingError: a type code the marshaller does not implement
// (bit-fields, an unrecognized qualifier combination, ...).
type UnsupportedEncodingError struct {
	Encoding string
	Reason   string
}

func (e *UnsupportedEncodingError) Error() string {
	return fmt.Sprintf("objc: unsupported encoding %q: %s", e.Encoding, e.Reason)
}

// FFIFailureError: libffi's own preparation step (ffi_prep_cif,
// ffi_prep_cif_var, ffi_prep_closure_loc) rejected the call shape.
type FFIFailureError struct {
	Stage  string
	Status int
}

func (e *FFIFailureError) Error() string {
	return fmt.Sprintf("objc: libffi failure at %s (status %d)", e.Stage, e.Status)
}

// FatalError reports a failure the bridge cannot work around: the runtime
// refusing to allocate or instantiate a synthesized class, or a JS
// callback with no Host or no ThreadsafeCallback to reach the JS thread
// through. It is returned as an ordinary error. ObjC exceptions are not
// caught by the bridge and are never converted into a FatalError.
type FatalError struct {
	Detail string
}

func (e *FatalError) Error() string { return fmt.Sprintf("objc: fatal: %s", e.Detail) }
