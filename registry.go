//go:build darwin

package bridge

import (
	"sync"
	"unsafe"
)

// callbackEntry is the per-selector state a forwarded call needs, copied
// out from under its registry's lock before JS is ever invoked (spec.md
// §5, "no locks are held across JS calls").
type callbackEntry struct {
	jsRef         JSFuncRef
	tsfn          ThreadsafeCallback
	encoding      string // full method type encoding, self+_cmd included
	isClassMethod bool
	includeSelf   bool // subclass overrides surface self as the first JS arg
	crossContext  bool
	host          Host
}

// ProtocolImpl is C6's per-instance registration: the callbacks backing a
// synthesized protocol-conforming object.
type ProtocolImpl struct {
	mu        sync.Mutex
	instance  unsafe.Pointer
	class     unsafe.Pointer
	protocol  string
	callbacks map[string]*callbackEntry
	host      Host
}

// SubclassImpl is C7's per-class registration: one entry shared by every
// instance of the defined class, since overridden methods are a property
// of the class (spec.md §4.7).
type SubclassImpl struct {
	mu         sync.Mutex
	class      unsafe.Pointer
	superclass unsafe.Pointer
	methods    map[string]*callbackEntry
	host       Host
}

var (
	instanceRegistryMu sync.Mutex
	instanceRegistry   = map[unsafe.Pointer]*ProtocolImpl{}

	classRegistryMu sync.Mutex
	classRegistry   = map[unsafe.Pointer]*SubclassImpl{}

	// forwardEncodingsMu/forwardEncodings let message.go resolve a full
	// method encoding for selectors that only exist via forwardInvocation:
	// on classes synthesized by C6/C7, since such selectors never appear
	// in the runtime's static method table.
	forwardEncodingsMu sync.Mutex
	forwardEncodings   = map[unsafe.Pointer]map[string]string{}
)

func registerForwardEncoding(classPtr unsafe.Pointer, selector, encoding string) {
	forwardEncodingsMu.Lock()
	defer forwardEncodingsMu.Unlock()
	m, ok := forwardEncodings[classPtr]
	if !ok {
		m = map[string]string{}
		forwardEncodings[classPtr] = m
	}
	m[selector] = encoding
}

func lookupForwardEncodingByClass(classPtr unsafe.Pointer, selector string) (string, bool) {
	forwardEncodingsMu.Lock()
	defer forwardEncodingsMu.Unlock()
	m, ok := forwardEncodings[classPtr]
	if !ok {
		return "", false
	}
	enc, ok := m[selector]
	return enc, ok
}

func registerProtocolImpl(p *ProtocolImpl) {
	instanceRegistryMu.Lock()
	defer instanceRegistryMu.Unlock()
	instanceRegistry[p.instance] = p
}

func lookupProtocolImpl(instance unsafe.Pointer) *ProtocolImpl {
	instanceRegistryMu.Lock()
	defer instanceRegistryMu.Unlock()
	return instanceRegistry[instance]
}

func unregisterProtocolImpl(instance unsafe.Pointer) {
	instanceRegistryMu.Lock()
	defer instanceRegistryMu.Unlock()
	delete(instanceRegistry, instance)
}

func registerSubclassImpl(s *SubclassImpl) {
	classRegistryMu.Lock()
	defer classRegistryMu.Unlock()
	classRegistry[s.class] = s
}

// registerSubclassAlias makes s reachable under an additional key (the
// metaclass pointer, for class-method forwarding), since a class method's
// receiver is the Class object itself and object_getClass(Class) yields
// the metaclass, not the class pointer SubclassImpl is primarily keyed on.
func registerSubclassAlias(ptr unsafe.Pointer, s *SubclassImpl) {
	classRegistryMu.Lock()
	defer classRegistryMu.Unlock()
	classRegistry[ptr] = s
}

func lookupSubclassImpl(class unsafe.Pointer) *SubclassImpl {
	classRegistryMu.Lock()
	defer classRegistryMu.Unlock()
	return classRegistry[class]
}

// lookupCallback resolves the callback entry for (owner-of-class-or-
// instance, selector), checking the instance registry first (C6) and
// falling back to the class registry (C7), returning a value copy so the
// caller never holds a lock while invoking JS.
func lookupCallback(instance, class unsafe.Pointer, selector string) (callbackEntry, bool) {
	if p := lookupProtocolImpl(instance); p != nil {
		p.mu.Lock()
		e, ok := p.callbacks[selector]
		var copyE callbackEntry
		if ok {
			copyE = *e
		}
		p.mu.Unlock()
		if ok {
			return copyE, true
		}
	}
	if s := lookupSubclassImpl(class); s != nil {
		s.mu.Lock()
		e, ok := s.methods[selector]
		var copyE callbackEntry
		if ok {
			copyE = *e
		}
		s.mu.Unlock()
		if ok {
			return copyE, true
		}
	}
	return callbackEntry{}, false
}
