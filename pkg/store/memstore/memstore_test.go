package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/store"
)

func TestRecordLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Put(ctx, &domain.Record{Collection: store.CollectionMemory, ID: "b", Index: "x", Data: []byte("2"), CreatedAt: base.Add(time.Second)})
	s.Put(ctx, &domain.Record{Collection: store.CollectionMemory, ID: "a", Index: "y", Data: []byte("1"), CreatedAt: base})

	all, err := s.All(ctx, store.CollectionMemory)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 || all[0].ID != "a" || all[1].ID != "b" {
		t.Fatalf("All = %+v, want a then b", all)
	}

	byIdx, _ := s.AllByIndex(ctx, store.CollectionMemory, "x")
	if len(byIdx) != 1 || byIdx[0].ID != "b" {
		t.Errorf("AllByIndex(x) = %+v, want [b]", byIdx)
	}

	// Returned data must not alias the stored copy.
	got, err := s.Get(ctx, store.CollectionMemory, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got.Data[0] = 'z'
	again, _ := s.Get(ctx, store.CollectionMemory, "a")
	if string(again.Data) != "1" {
		t.Errorf("stored data mutated through Get result: %q", again.Data)
	}

	if err := s.Delete(ctx, store.CollectionMemory, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, store.CollectionMemory, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, store.CollectionMemory, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Delete missing: err = %v, want ErrNotFound", err)
	}

	s.Clear(ctx, store.CollectionMemory)
	all, _ = s.All(ctx, store.CollectionMemory)
	if len(all) != 0 {
		t.Errorf("All after Clear len = %d, want 0", len(all))
	}
}
