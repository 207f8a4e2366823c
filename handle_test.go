//go:build darwin

package bridge

import "testing"

func TestWrapNilPointerYieldsNilHandle(t *testing.T) {
	if h := wrapRetained(nil); h != nil {
		t.Error("wrapRetained(nil) should return a nil *ObjectHandle")
	}
	if h := wrapOwned(nil); h != nil {
		t.Error("wrapOwned(nil) should return a nil *ObjectHandle")
	}
}

func TestNilObjectHandleIsSafe(t *testing.T) {
	var h *ObjectHandle
	if !h.IsNil() {
		t.Error("a nil *ObjectHandle should report IsNil")
	}
	if h.Pointer() != 0 {
		t.Error("Pointer() on a nil handle should be 0")
	}
	if h.classPointer() != nil {
		t.Error("classPointer() on a nil handle should be nil")
	}
	h.Close() // must not panic
}

func TestNilClassHandleIsSafe(t *testing.T) {
	var c *ClassHandle
	if c.Pointer() != 0 {
		t.Error("Pointer() on a nil *ClassHandle should be 0")
	}
	if c.Name() != "" {
		t.Error("Name() on a nil *ClassHandle should be empty")
	}
	if c.AsReceiver() != nil {
		t.Error("AsReceiver() on a nil *ClassHandle should be nil")
	}
}

func TestClassHandleAsReceiverSharesPointer(t *testing.T) {
	c := &ClassHandle{ptr: fakePtr(99), name: "Widget"}
	recv := c.AsReceiver()
	if recv.ptr != c.ptr {
		t.Error("AsReceiver should wrap the same pointer as the class")
	}
	if recv.IsNil() {
		t.Error("a receiver built from a non-nil class pointer should not be nil")
	}
}
