//go:build darwin

package bridge

import (
	"testing"
	"unsafe"
)

type fakeHost struct {
	sameThread bool
	callFn     func(fn JSFuncRef, args []Value) (Value, error)
}

func (h *fakeHost) CurrentThreadIsJSThread() bool { return h.sameThread }
func (h *fakeHost) Call(fn JSFuncRef, args []Value) (Value, error) {
	return h.callFn(fn, args)
}
func (h *fakeHost) Root(fn JSFuncRef) JSFuncRef                  { return fn }
func (h *fakeHost) Unroot(JSFuncRef)                             {}
func (h *fakeHost) NewThreadsafeCallback(fn JSFuncRef) ThreadsafeCallback {
	return &fakeTsfn{}
}
func (h *fakeHost) ResolveSymbol(name string) (uintptr, bool) { return 0, false }

type fakeTsfn struct {
	released bool
}

func (t *fakeTsfn) Invoke(fn JSFuncRef, args []Value, done func(Value, error)) {
	done(Int(len(args)), nil)
}
func (t *fakeTsfn) Release() { t.released = true }

func TestCallJSSyncDirectPath(t *testing.T) {
	var calledOnHostThread bool
	h := &fakeHost{sameThread: true, callFn: func(fn JSFuncRef, args []Value) (Value, error) {
		calledOnHostThread = true
		return Str("direct"), nil
	}}
	out, err := callJSSync(h, "fn", nil, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !calledOnHostThread {
		t.Error("callJSSync should call host.Call directly when on the JS thread and crossContext is false")
	}
	if out.Str() != "direct" {
		t.Errorf("result = %q, want direct", out.Str())
	}
}

func TestCallJSSyncCrossThreadPath(t *testing.T) {
	h := &fakeHost{sameThread: true, callFn: func(fn JSFuncRef, args []Value) (Value, error) {
		t.Fatal("callJSSync should not call host.Call directly when crossContext is true")
		return Null, nil
	}}
	tsfn := &fakeTsfn{}
	out, err := callJSSync(h, "fn", []Value{Int(1), Int(2)}, true, tsfn)
	if err != nil {
		t.Fatal(err)
	}
	if out.Int() != 2 {
		t.Errorf("result = %v, want 2 (arg count echoed back by fakeTsfn)", out)
	}
}

func TestForwardCachePeekThenTake(t *testing.T) {
	self := unsafe.Pointer(&struct{}{})
	entry := callbackEntry{encoding: "v@:"}

	if _, ok := peekCachedForwardLookup(self, "doThing"); ok {
		t.Fatal("peek on an empty cache should miss")
	}

	cacheForwardLookup(self, "doThing", entry)

	got, ok := peekCachedForwardLookup(self, "doThing")
	if !ok || got.encoding != entry.encoding {
		t.Fatalf("peek after cacheForwardLookup = %+v, %v; want the cached entry", got, ok)
	}

	// peek must not consume the entry.
	if _, ok := peekCachedForwardLookup(self, "doThing"); !ok {
		t.Fatal("a second peek should still see the entry")
	}

	got, ok = takeCachedForwardLookup(self, "doThing")
	if !ok || got.encoding != entry.encoding {
		t.Fatalf("take = %+v, %v; want the cached entry", got, ok)
	}

	if _, ok := peekCachedForwardLookup(self, "doThing"); ok {
		t.Fatal("take should have cleared the entry")
	}
}

func TestForwardCacheKeyedByReceiverAndSelector(t *testing.T) {
	a := unsafe.Pointer(&struct{ x int }{})
	b := unsafe.Pointer(&struct{ y int }{})
	cacheForwardLookup(a, "sel", callbackEntry{encoding: "for-a"})
	cacheForwardLookup(b, "sel", callbackEntry{encoding: "for-b"})

	gotA, ok := takeCachedForwardLookup(a, "sel")
	if !ok || gotA.encoding != "for-a" {
		t.Fatalf("lookup for a = %+v, %v; want for-a", gotA, ok)
	}
	gotB, ok := takeCachedForwardLookup(b, "sel")
	if !ok || gotB.encoding != "for-b" {
		t.Fatalf("lookup for b = %+v, %v; want for-b", gotB, ok)
	}
}

func TestCallJSSyncRequiresHostAndTsfn(t *testing.T) {
	if _, err := callJSSync(nil, "fn", nil, false, nil); err == nil {
		t.Error("callJSSync with a nil host should return a FatalError")
	}
	h := &fakeHost{sameThread: false}
	if _, err := callJSSync(h, "fn", nil, true, nil); err == nil {
		t.Error("callJSSync crossing threads with no ThreadsafeCallback should return a FatalError")
	}
}
