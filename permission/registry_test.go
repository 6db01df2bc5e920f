package permission

import (
	"reflect"
	"testing"
)

func TestRegistryRegisterAndFreeze(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("invoice.create", "invoice", "create"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("invoice.list", "invoice", "read"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("invoice.create", "invoice", "create"); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if err := r.Register("", "invoice", "read"); err == nil {
		t.Fatal("expected empty operation to fail")
	}

	r.Freeze()
	if !r.Frozen() {
		t.Fatal("expected registry frozen")
	}
	if err := r.Register("invoice.delete", "invoice", "delete"); err == nil {
		t.Fatal("expected register after freeze to fail")
	}

	req, ok := r.Requirement("invoice.list")
	if !ok || req != (Requirement{Resource: "invoice", Action: "read"}) {
		t.Fatalf("unexpected requirement %+v ok=%v", req, ok)
	}
	if _, ok := r.Requirement("invoice.delete"); ok {
		t.Fatal("expected unknown operation lookup to fail")
	}
	if got := r.Operations(); !reflect.DeepEqual(got, []string{"invoice.create", "invoice.list"}) {
		t.Fatalf("unexpected operations %v", got)
	}
	if r.Count() != 2 {
		t.Fatalf("expected 2 operations, got %d", r.Count())
	}
}
