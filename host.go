//go:build darwin

package bridge

// JSFuncRef is an opaque, host-owned reference to a rooted JS function.
// The bridge never inspects it; it is only ever handed back to Host.Call.
type JSFuncRef any

// ThreadsafeCallback is a host-supplied primitive that lets code running on
// any OS thread enqueue a call to run on the JS thread. This is the "thread
// -safe JS callback primitive" collaborator from spec.md §1: the bridge
// consumes it, it does not implement it.
//
// Invoke must be safe to call from any thread, including threads the host
// runtime has never seen. It must not block the calling thread waiting for
// the JS side to actually run the function; enqueueing is fire-and-forget.
// The forwarding shim (C8) and the block trampoline (C9) are responsible
// for blocking the ObjC thread themselves, by pumping the run loop until
// fn's callback signals completion.
type ThreadsafeCallback interface {
	// Invoke enqueues fn to run on the JS thread with args, and arranges
	// for done to be called (from the JS thread, after fn returns or
	// panics) with fn's result or the panic recovered into err.
	Invoke(fn JSFuncRef, args []Value, done func(result Value, err error))

	// Release drops the host's reference to the underlying callback
	// primitive. Called once, when the owning ProtocolImpl is torn down
	// by its dealloc; never for SubclassImpl (per spec.md's documented
	// non-goal) or BlockInfo (blocks are never freed).
	Release()
}

// Host is everything the bridge consumes from the embedding JS runtime.
// It intentionally says nothing about how JS values are represented on the
// host side beyond the Value wire format defined in value.go; the JS-side
// proxy layer that synthesizes method names, and framework loading, are the
// host's job (spec.md §1's "explicitly out of scope" collaborators).
type Host interface {
	// CurrentThreadIsJSThread reports whether the calling goroutine is
	// running on the host's single JS thread. Hosts that cannot answer
	// this (e.g. some embeddings enforce context boundaries that make
	// "same OS thread" insufficient) should always return false; the
	// forwarding shim treats that as "always cross-thread", the safer
	// default spec.md §9 calls out.
	CurrentThreadIsJSThread() bool

	// Call invokes a rooted JS function synchronously, from the JS
	// thread. It must not be called from any other thread; C8/C9 use
	// ThreadsafeCallback to get onto the JS thread first when needed.
	Call(fn JSFuncRef, args []Value) (Value, error)

	// Root returns a reference that keeps fn alive for as long as the
	// bridge holds it, and Unroot releases that reference. These bracket
	// the lifetime of every callback stored in the protocol/subclass/
	// block registries.
	Root(fn JSFuncRef) JSFuncRef
	Unroot(fn JSFuncRef)

	// NewThreadsafeCallback creates a ThreadsafeCallback bound to fn.
	NewThreadsafeCallback(fn JSFuncRef) ThreadsafeCallback

	// ResolveSymbol resolves name through the process-wide dynamic
	// loader (RTLD_DEFAULT-equivalent lookup across every image already
	// loaded into the process, including frameworks the host's own
	// loader dlopen'd). Framework loading itself is out of scope (spec.md
	// §1); this is purely "given a name, find the pointer".
	ResolveSymbol(name string) (uintptr, bool)
}
