package cart

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestTotal(t *testing.T) {
	details := []Detail{
		{RecordID: "a", Amount: 2, PriceCents: 1500},
		{RecordID: "b", Amount: 1, PriceCents: 999},
	}
	if got := Total(details); got != 3999 {
		t.Fatalf("total = %d, want 3999", got)
	}
	want := []Detail{
		{RecordID: "a", Amount: 2, PriceCents: 1500, SubtotalCents: 3000},
		{RecordID: "b", Amount: 1, PriceCents: 999, SubtotalCents: 999},
	}
	if diff := cmp.Diff(want, details); diff != "" {
		t.Fatalf("details mismatch (-want +got):\n%s", diff)
	}

	if got := Total(nil); got != 0 {
		t.Fatalf("empty total = %d", got)
	}
}

func TestFind(t *testing.T) {
	c := Cart{Details: []Detail{
		{ID: "1", RecordID: "a", Amount: 2},
		{ID: "2", RecordID: "b", Amount: 1},
	}}

	d, ok := c.Find("b")
	if !ok {
		t.Fatal("line b not found")
	}
	if diff := cmp.Diff(Detail{RecordID: "b", Amount: 1}, d, cmpopts.IgnoreFields(Detail{}, "ID")); diff != "" {
		t.Fatalf("find b (-want +got):\n%s", diff)
	}
	if _, ok := c.Find("zzz"); ok {
		t.Fatal("unexpected line")
	}
}
