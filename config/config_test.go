package config

import "testing"

func TestCancelFuncNilChannelNeverCancels(t *testing.T) {
	c := ImportConfig{}
	if c.CancelFunc()() {
		t.Fatal("nil Cancel channel should never report cancellation")
	}
}

func TestCancelFuncReflectsClosedChannel(t *testing.T) {
	ch := make(chan struct{})
	c := ImportConfig{Cancel: ch}
	f := c.CancelFunc()
	if f() {
		t.Fatal("open channel should not report cancellation")
	}
	close(ch)
	if !f() {
		t.Fatal("closed channel should report cancellation")
	}
}

func TestDefaultImportConfigMatchesSpecDefaults(t *testing.T) {
	c := DefaultImportConfig()
	if c.FlushEvery != 1024 {
		t.Fatalf("FlushEvery = %d, want 1024", c.FlushEvery)
	}
	if !c.RequireZeroErrors {
		t.Fatal("RequireZeroErrors should default true")
	}
}
