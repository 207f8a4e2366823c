//go:build darwin

package bridge

import "testing"

func TestSetConfigFillsZeroFields(t *testing.T) {
	defer SetConfig(defaultConfig())

	SetConfig(Config{})
	if runLoopTick() != 0.001 {
		t.Errorf("runLoopTick() = %v, want default 0.001", runLoopTick())
	}

	var called bool
	SetConfig(Config{Logf: func(string, ...any) { called = true }, RunLoopTickSeconds: 0.5})
	logf("hello")
	if !called {
		t.Error("logf should dispatch through Config.Logf")
	}
	if runLoopTick() != 0.5 {
		t.Errorf("runLoopTick() = %v, want 0.5", runLoopTick())
	}
}

func TestDlopenSearchPathsAndDirectDispatchFlag(t *testing.T) {
	defer SetConfig(defaultConfig())

	SetConfig(Config{DlopenSearchPaths: []string{"/a", "/b"}, DisableDirectDispatch: true})
	if got := dlopenSearchPaths(); len(got) != 2 || got[0] != "/a" || got[1] != "/b" {
		t.Errorf("dlopenSearchPaths() = %v, want [/a /b]", got)
	}
	if !directDispatchDisabled() {
		t.Error("directDispatchDisabled() should reflect Config.DisableDirectDispatch")
	}
}
