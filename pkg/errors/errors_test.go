package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDeserializationf(t *testing.T) {
	err := Deserializationf("bad magic %x", 0xdead)
	if !errors.Is(err, ErrDeserialization) {
		t.Fatalf("errors.Is() failed for %v", err)
	}
	if !strings.Contains(err.Error(), "bad magic dead") {
		t.Fatalf("detail lost: %v", err)
	}
}

func TestSentinelsWrapThroughLayers(t *testing.T) {
	inner := Deserializationf("checksum mismatch")
	outer := fmt.Errorf("loading snapshot: %w", inner)
	if !errors.Is(outer, ErrDeserialization) {
		t.Fatalf("wrapped sentinel not detected in %v", outer)
	}
	if errors.Is(outer, ErrDocumentNotFound) {
		t.Fatal("unrelated sentinel matched")
	}
}
