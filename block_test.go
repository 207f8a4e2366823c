//go:build darwin

package bridge

import (
	"testing"
	"unsafe"
)

func TestBlockThunkInvokeRoundTrip(t *testing.T) {
	var gotArgs []Value
	h := &fakeHost{sameThread: true, callFn: func(fn JSFuncRef, args []Value) (Value, error) {
		gotArgs = args
		return Int(args[0].Int() + 1), nil
	}}
	info := &BlockInfo{host: h, fn: "increment", ret: "i", params: []string{"i"}}

	var in int32 = 41
	// args[0] is the block-self pointer slot the ObjC ABI always passes;
	// blockThunk.invoke skips it and reads user params from args[1:].
	argv := []unsafe.Pointer{nil, unsafe.Pointer(&in)}
	var out int32
	blockThunk{info: info}.invoke(unsafe.Pointer(&out), argv)

	if len(gotArgs) != 1 || gotArgs[0].Int() != 41 {
		t.Fatalf("gotArgs = %v, want [41]", gotArgs)
	}
	if out != 42 {
		t.Errorf("out = %d, want 42", out)
	}
}

func TestBlockThunkInvokeVoidReturnSkipsWrite(t *testing.T) {
	called := false
	h := &fakeHost{sameThread: true, callFn: func(fn JSFuncRef, args []Value) (Value, error) {
		called = true
		return Null, nil
	}}
	info := &BlockInfo{host: h, fn: "noop", ret: "v"}
	blockThunk{info: info}.invoke(nil, []unsafe.Pointer{nil})
	if !called {
		t.Error("blockThunk.invoke should still call JS even with a void return")
	}
}

func TestCreateBlockFromJSBuildsHeapBlock(t *testing.T) {
	h := &fakeHost{sameThread: true, callFn: func(fn JSFuncRef, args []Value) (Value, error) {
		return Int(0), nil
	}}
	before := len(blocks)
	handle, err := CreateBlockFromJS("cb", "@?<i@?i>", h)
	if err != nil {
		t.Fatal(err)
	}
	if handle.IsNil() {
		t.Error("CreateBlockFromJS should produce a non-nil handle")
	}
	if len(blocks) != before+1 {
		t.Errorf("blocks registry grew by %d, want 1 (blocks are never freed, per spec)", len(blocks)-before)
	}
}

func TestCreateBlockFromJSFallsBackToVoidForBareSignature(t *testing.T) {
	h := &fakeHost{sameThread: true, callFn: func(fn JSFuncRef, args []Value) (Value, error) {
		if len(args) != 0 {
			t.Errorf("a bare @? block should be treated as zero-argument, got %d args", len(args))
		}
		return Null, nil
	}}
	handle, err := CreateBlockFromJS("cb", "@?", h)
	if err != nil {
		t.Fatal(err)
	}
	if handle.IsNil() {
		t.Error("CreateBlockFromJS should still produce a usable block for a bare @? signature")
	}
}
