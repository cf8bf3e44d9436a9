package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/imranmit2020/open-dental-helper-sub002/kv"
)

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Fatal("expected miss")
	}
	if err := s.Set(ctx, "a", "1"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.Get(ctx, "a")
	if err != nil || !ok || v != "1" {
		t.Fatalf("Get = %q %v %v", v, ok, err)
	}
	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestMaxEntries(t *testing.T) {
	ctx := context.Background()
	s := New(WithMaxEntries(1))

	if err := s.Set(ctx, "a", "1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "b", "2"); !errors.Is(err, kv.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if err := s.Set(ctx, "a", "3"); err != nil {
		t.Fatalf("overwrite should succeed at quota: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.Len())
	}
}
