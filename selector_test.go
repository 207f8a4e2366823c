//go:build darwin

package bridge

import "testing"

func TestSelectorRegistrationRoundTrip(t *testing.T) {
	sel := registerSelector("performSelector:withObject:")
	if sel == nil {
		t.Fatal("registerSelector returned nil")
	}
	if got := selectorName(sel); got != "performSelector:withObject:" {
		t.Errorf("selectorName = %q, want performSelector:withObject:", got)
	}
}

func TestSelectorRegistrationIsIdempotent(t *testing.T) {
	a := registerSelector("description")
	b := registerSelector("description")
	if a != b {
		t.Error("sel_registerName should return the same SEL for repeated registrations of the same name")
	}
}
