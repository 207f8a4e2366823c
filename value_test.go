//go:build darwin

package bridge

import "testing"

func TestValueIsNil(t *testing.T) {
	if !Null.IsNil() {
		t.Error("Null should report IsNil")
	}
	if Int(0).IsNil() {
		t.Error("a zero int is not nil")
	}
	if HandleValue(nil).IsNil() != true {
		t.Error("HandleValue(nil) should collapse to Null and report IsNil")
	}
}

func TestMapValuePreservesInsertionOrder(t *testing.T) {
	m := NewMapValue()
	m.Set("z", Int(1))
	m.Set("a", Int(2))
	m.Set("z", Int(3)) // update, should not duplicate the key

	if got := m.Keys; len(got) != 2 || got[0] != "z" || got[1] != "a" {
		t.Errorf("Keys = %v, want [z a]", got)
	}
	v, ok := m.Get("z")
	if !ok || v.Int() != 3 {
		t.Errorf("Get(z) = (%v, %v), want (3, true)", v, ok)
	}
}

func TestValueScalarAccessors(t *testing.T) {
	if Bool(true).Bool() != true {
		t.Error("Bool round-trip failed")
	}
	if Float(1.5).Float() != 1.5 {
		t.Error("Float round-trip failed")
	}
	if Str("hi").Str() != "hi" {
		t.Error("Str round-trip failed")
	}
}

func TestClassValueAndHandleValueNil(t *testing.T) {
	if ClassValue(nil).Kind != KindNull {
		t.Error("ClassValue(nil) should collapse to Null")
	}
	if HandleValue(nil).Kind != KindNull {
		t.Error("HandleValue(nil) should collapse to Null")
	}
}
