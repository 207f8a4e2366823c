//go:build darwin

package bridge

import (
	"testing"
	"unsafe"
)

func fakePtr(n int) unsafe.Pointer {
	return unsafe.Pointer(uintptr(n) + 1) // never 0/nil
}

func TestForwardEncodingRoundTrip(t *testing.T) {
	cls := fakePtr(1)
	registerForwardEncoding(cls, "compute:", "i24@0:8i16")
	enc, ok := lookupForwardEncodingByClass(cls, "compute:")
	if !ok || enc != "i24@0:8i16" {
		t.Fatalf("lookupForwardEncodingByClass = (%q, %v), want (i24@0:8i16, true)", enc, ok)
	}
	if _, ok := lookupForwardEncodingByClass(cls, "other:"); ok {
		t.Error("lookup of an unregistered selector should miss")
	}
	if _, ok := lookupForwardEncodingByClass(fakePtr(2), "compute:"); ok {
		t.Error("lookup under a different class pointer should miss")
	}
}

func TestProtocolImplRegistry(t *testing.T) {
	inst := fakePtr(10)
	p := &ProtocolImpl{instance: inst, protocol: "Widget", callbacks: map[string]*callbackEntry{
		"compute:": {encoding: "i24@0:8i16"},
	}}
	registerProtocolImpl(p)
	if got := lookupProtocolImpl(inst); got != p {
		t.Fatal("lookupProtocolImpl did not return the registered impl")
	}
	unregisterProtocolImpl(inst)
	if got := lookupProtocolImpl(inst); got != nil {
		t.Error("lookupProtocolImpl should miss after unregisterProtocolImpl")
	}
}

func TestSubclassAliasRoutesClassMethods(t *testing.T) {
	class := fakePtr(20)
	meta := fakePtr(21)
	s := &SubclassImpl{class: class, methods: map[string]*callbackEntry{
		"make": {isClassMethod: true, encoding: "@24@0:8"},
	}}
	registerSubclassImpl(s)
	registerSubclassAlias(meta, s)

	if got := lookupSubclassImpl(class); got != s {
		t.Error("lookupSubclassImpl by class pointer should find the impl")
	}
	if got := lookupSubclassImpl(meta); got != s {
		t.Error("lookupSubclassImpl by metaclass alias should find the same impl")
	}
}

func TestLookupCallbackPrefersInstanceThenClass(t *testing.T) {
	inst := fakePtr(30)
	class := fakePtr(31)

	p := &ProtocolImpl{instance: inst, callbacks: map[string]*callbackEntry{
		"foo:": {encoding: "instance-foo"},
	}}
	registerProtocolImpl(p)
	defer unregisterProtocolImpl(inst)

	s := &SubclassImpl{class: class, methods: map[string]*callbackEntry{
		"foo:": {encoding: "class-foo"},
		"bar:": {encoding: "class-bar"},
	}}
	registerSubclassImpl(s)

	entry, ok := lookupCallback(inst, class, "foo:")
	if !ok || entry.encoding != "instance-foo" {
		t.Fatalf("lookupCallback should prefer the instance registry, got %+v", entry)
	}

	entry, ok = lookupCallback(inst, class, "bar:")
	if !ok || entry.encoding != "class-bar" {
		t.Fatalf("lookupCallback should fall back to the class registry, got %+v", entry)
	}

	if _, ok := lookupCallback(inst, class, "missing:"); ok {
		t.Error("lookupCallback should miss for an unregistered selector")
	}
}
