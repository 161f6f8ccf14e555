package storage

import (
	"context"
	"testing"
)

func TestMemoryStoreListIsPrefixScopedAndOrdered(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Put("jobs/job-1/b.txt", []byte("beta"))
	store.Put("jobs/job-1/a.txt", []byte("alpha"))
	store.Put("jobs/job-2/c.txt", []byte("gamma"))

	infos, err := store.List(ctx, "jobs/job-1/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(infos))
	}
	if infos[0].Name != "a.txt" || infos[1].Name != "b.txt" {
		t.Errorf("expected lexical order [a.txt b.txt], got [%s %s]", infos[0].Name, infos[1].Name)
	}
	if infos[0].Size != 5 {
		t.Errorf("expected size 5, got %d", infos[0].Size)
	}
}

func TestMemoryStoreDownloadMissingObject(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Download(context.Background(), "jobs/nope.txt")
	if err == nil {
		t.Fatal("expected error downloading missing object")
	}
}

func TestMemoryStoreDeleteAll(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Put("jobs/job-1/a.txt", []byte("a"))
	store.Put("jobs/job-1/b.txt", []byte("b"))
	store.Put("jobs/job-2/c.txt", []byte("c"))

	if err := store.DeleteAll(ctx, "jobs/job-1/"); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}

	if store.Len() != 1 {
		t.Errorf("expected 1 object remaining, got %d", store.Len())
	}
	if _, err := store.Download(ctx, "jobs/job-2/c.txt"); err != nil {
		t.Errorf("unrelated object was deleted: %v", err)
	}
}
