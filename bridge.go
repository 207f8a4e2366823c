//go:build darwin

package bridge

// Bridge is the single entry point an embedder drives. It carries no
// state of its own beyond the Host it was built with -- every registry,
// cache, and closure table behind it is process-wide (spec.md §6,
// "persisted state: none"), so multiple Bridge values backed by the same
// Host are interchangeable.
type Bridge struct {
	host Host
}

// New wires a Bridge to host. host must remain valid for as long as any
// value produced by the Bridge (handles, prepared calls, blocks) might
// still be exercised, since forwarded calls and block invocations call
// back into it for the lifetime of the process.
func New(host Host) *Bridge {
	return &Bridge{host: host}
}

// Send implements the JS-facing send operation. The returned CallResult
// carries the method's own return value plus any ^@ out-parameters the
// call captured (spec.md §4.2, §6).
func (b *Bridge) Send(h *ObjectHandle, selector string, args []Value) (CallResult, error) {
	return Send(h, selector, args, b.host)
}

// RespondsToSelector implements the JS-facing respondsToSelector operation.
func (b *Bridge) RespondsToSelector(h *ObjectHandle, selector string) (bool, error) {
	return RespondsToSelector(h, selector)
}

// PrepareSend implements the JS-facing prepareSend operation.
func (b *Bridge) PrepareSend(h *ObjectHandle, selector string) (*PreparedCall, error) {
	if h.isNil() {
		return nil, &DoesNotRespondError{ClassName: "nil", Selector: selector}
	}
	return Prepare(h.classPointer(), selector)
}

// SendPrepared implements the JS-facing sendPrepared operation.
func (b *Bridge) SendPrepared(h *ObjectHandle, pc *PreparedCall, args []Value) (CallResult, error) {
	return SendPrepared(h, pc, args, b.host)
}

// CallFunction implements the JS-facing callFunction operation.
func (b *Bridge) CallFunction(name, retEnc string, argEncs []string, fixedArgCount int, args []Value) (CallResult, error) {
	return CallFunction(name, retEnc, argEncs, fixedArgCount, args, b.host)
}

// CreateProtocolImpl implements the JS-facing createProtocolImpl
// operation. crossContext forces every forwarded call through the
// thread-safe callback / run-loop pump path even when it originates on
// the JS thread, per spec.md §9's open-question resolution (see
// DESIGN.md); pass false to allow the direct fast path.
func (b *Bridge) CreateProtocolImpl(protocolName string, callbacks map[string]JSFuncRef, crossContext bool) (*ObjectHandle, error) {
	return CreateProtocolImplementation(protocolName, callbacks, b.host, crossContext)
}

// DefineClass implements the JS-facing defineClass operation.
func (b *Bridge) DefineClass(spec DefineClassSpec, crossContext bool) (*ClassHandle, error) {
	return DefineClass(spec, b.host, crossContext)
}

// CallSuper implements the JS-facing callSuper operation.
func (b *Bridge) CallSuper(self *ObjectHandle, selector string, args []Value) (CallResult, error) {
	return CallSuper(self, selector, args, b.host)
}

// CreateBlock implements the JS-facing createBlock operation.
func (b *Bridge) CreateBlock(fn JSFuncRef, declaredEncoding string) (*ObjectHandle, error) {
	return CreateBlockFromJS(fn, declaredEncoding, b.host)
}

// GetClass resolves a class by name, the entry point for constructing the
// first ObjectHandle in a session (e.g. wrapping [NSString class]).
func (b *Bridge) GetClass(name string) (*ClassHandle, error) {
	return lookupClass(name)
}

// Close dlcloses every library CallFunction opened via
// Config.DlopenSearchPaths. It does not tear down any registered
// protocol/subclass/block, since those may still be reachable from live
// ObjC objects; per spec.md §9, blocks in particular are never torn down.
func (b *Bridge) Close() {
	closeAllLibraries()
}
