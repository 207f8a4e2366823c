// Package bridge is a dynamic bridge between a JavaScript host runtime and
// the Objective-C runtime on macOS/iOS.
//
// It lets JS code send arbitrary messages to ObjC objects, call C functions
// resolved from loaded dynamic libraries, implement ObjC protocols with JS
// callbacks, declare new ObjC subclasses that override methods in JS, and
// pass JS functions where ObjC expects blocks. All type information is
// discovered at run time from the ObjC runtime's type-encoding strings; the
// bridge ships no precompiled bindings for any particular framework.
//
// The bridge does not embed a JS engine. It is driven by an embedder that
// implements Host, and it hands back plain Values that the embedder is
// responsible for exposing to JS however its bridge conventions require.
//go:build darwin

package bridge
