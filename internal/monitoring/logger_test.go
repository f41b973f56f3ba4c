package monitoring

import (
	"testing"
)

func TestSetLoggerForwardsCalls(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var gotFormat string
	var gotArgs []interface{}
	SetLogger(func(format string, v ...interface{}) {
		gotFormat = format
		gotArgs = v
	})

	Logf("vehicle %s: %d samples", "v1", 42)

	if gotFormat != "vehicle %s: %d samples" {
		t.Errorf("format = %q, want %q", gotFormat, "vehicle %s: %d samples")
	}
	if len(gotArgs) != 2 || gotArgs[0] != "v1" || gotArgs[1] != 42 {
		t.Errorf("args = %v, want [v1 42]", gotArgs)
	}
}

func TestSetLoggerNilMutes(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(string, ...interface{}) { called = true })
	SetLogger(nil)

	Logf("should be dropped")

	if called {
		t.Error("muted logger still forwarded a call")
	}
}

func TestLogfDefaultNotNil(t *testing.T) {
	if Logf == nil {
		t.Error("Logf is nil by default")
	}
}
