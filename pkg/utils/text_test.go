package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("héllo wörld", 4); got != "héll..." {
		t.Errorf("multi-byte: got %s", got)
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("a  b\n\tc", 0); got != "a b c" {
		t.Errorf("got %q", got)
	}
	if got := Preview("one two three", 7); got != "one two..." {
		t.Errorf("got %q", got)
	}
}
