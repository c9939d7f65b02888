package trace

import (
	"context"
	"testing"
)

func TestEnsure_KeepsGivenID(t *testing.T) {
	ctx := Ensure(context.Background(), "abc")
	if got := FromContext(ctx); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
}

func TestEnsure_KeepsExistingContextID(t *testing.T) {
	ctx := WithContext(context.Background(), "existing")
	ctx = Ensure(ctx, "")
	if got := FromContext(ctx); got != "existing" {
		t.Errorf("expected existing, got %q", got)
	}
}

func TestEnsure_GeneratesID(t *testing.T) {
	ctx := Ensure(context.Background(), "")
	if got := FromContext(ctx); len(got) != 32 {
		t.Errorf("expected 32-char generated id, got %q", got)
	}
}
