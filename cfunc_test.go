//go:build darwin

package bridge

import "testing"

func TestResolveSymbolPrefersHost(t *testing.T) {
	hit := &symbolHost{addr: 0x1234}
	p, err := resolveSymbol(hit, "anything")
	if err != nil {
		t.Fatal(err)
	}
	if uintptr(p) != 0x1234 {
		t.Errorf("resolveSymbol should return the host-resolved address, got %v", p)
	}
}

func TestResolveSymbolMissesReturnSymbolNotFoundOrRealSymbol(t *testing.T) {
	// "printf" is guaranteed to exist in every process's default symbol
	// table, so a host whose ResolveSymbol misses should still let it
	// resolve via RTLD_DEFAULT.
	miss := &symbolHost{addr: 0, ok: false}
	p, err := resolveSymbol(miss, "printf")
	if err != nil {
		t.Fatalf("resolveSymbol(printf) = %v, want a resolved address", err)
	}
	if p == nil {
		t.Error("resolveSymbol(printf) returned a nil pointer")
	}
}

func TestResolveSymbolNotFound(t *testing.T) {
	miss := &symbolHost{addr: 0, ok: false}
	if _, err := resolveSymbol(miss, "definitely_not_a_real_symbol_xyz"); err == nil {
		t.Error("resolveSymbol should fail for a symbol name nothing provides")
	} else if _, ok := err.(*SymbolNotFoundError); !ok {
		t.Errorf("err = %T, want *SymbolNotFoundError", err)
	}
}

type symbolHost struct {
	addr uintptr
	ok   bool
}

func (s *symbolHost) CurrentThreadIsJSThread() bool                            { return true }
func (s *symbolHost) Call(JSFuncRef, []Value) (Value, error)                   { return Null, nil }
func (s *symbolHost) Root(fn JSFuncRef) JSFuncRef                              { return fn }
func (s *symbolHost) Unroot(JSFuncRef)                                        {}
func (s *symbolHost) NewThreadsafeCallback(fn JSFuncRef) ThreadsafeCallback   { return &fakeTsfn{} }
func (s *symbolHost) ResolveSymbol(name string) (uintptr, bool) {
	if s.addr != 0 {
		return s.addr, true
	}
	return 0, s.ok
}

func TestOpenLibraryCachesHandles(t *testing.T) {
	defer closeAllLibraries()
	h1 := openLibrary("/usr/lib/libSystem.B.dylib")
	if h1 == nil {
		t.Skip("libSystem not found in this environment")
	}
	h2 := openLibrary("/usr/lib/libSystem.B.dylib")
	if h1 != h2 {
		t.Error("openLibrary should cache and return the same handle for a repeated path")
	}
}
