//go:build darwin

package bridge

import (
	"strings"
	"testing"
)

func TestCallSuperRejectsNilSelf(t *testing.T) {
	_, err := CallSuper(nil, "description", nil, nil)
	if err == nil {
		t.Fatal("CallSuper on a nil receiver should error before touching the ObjC runtime")
	}
	dnr, ok := err.(*DoesNotRespondError)
	if !ok {
		t.Fatalf("err = %T, want *DoesNotRespondError", err)
	}
	if dnr.Selector != "description" {
		t.Errorf("Selector = %q, want description", dnr.Selector)
	}
}

func TestDefineClassSpecShape(t *testing.T) {
	spec := DefineClassSpec{
		Name:       "MyWidget",
		Superclass: "NSObject",
		Protocols:  []string{"NSCopying"},
		Methods: map[string]MethodSpec{
			"description": {Types: "@16@0:8", IsClassMethod: false},
			"make":        {Types: "@16@0:8", IsClassMethod: true},
		},
	}
	if spec.Methods["make"].IsClassMethod != true {
		t.Error("class-method flag should round-trip through MethodSpec")
	}
	if spec.Methods["description"].IsClassMethod {
		t.Error("instance method should not be flagged as a class method")
	}
}

func TestDefineClassMintsNameWhenEmpty(t *testing.T) {
	handle, err := DefineClass(DefineClassSpec{Superclass: "NSObject"}, nil, false)
	if err != nil {
		t.Fatalf("DefineClass: %v", err)
	}
	if !strings.HasPrefix(handle.Name(), "JSSubclass_") {
		t.Errorf("Name() = %q, want a minted JSSubclass_ name for an empty spec.Name", handle.Name())
	}
}

func TestDefineClassKeepsCallerSuppliedName(t *testing.T) {
	handle, err := DefineClass(DefineClassSpec{Name: "MyCallerNamedWidget", Superclass: "NSObject"}, nil, false)
	if err != nil {
		t.Fatalf("DefineClass: %v", err)
	}
	if handle.Name() != "MyCallerNamedWidget" {
		t.Errorf("Name() = %q, want the caller-supplied name preserved verbatim", handle.Name())
	}
}
