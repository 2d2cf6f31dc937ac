package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestFSStoreWriteRead(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}

	ctx := context.Background()
	location, err := s.Write(ctx, "backups/20260825T120000Z/res.json", []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !filepath.IsAbs(location) {
		t.Errorf("location = %s, want absolute path", location)
	}

	got, err := s.Read(ctx, "backups/20260825T120000Z/res.json")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("read back %s", got)
	}
}

func TestFSStoreReadMissing(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read(context.Background(), "nope.json"); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestFSStoreListPrefix(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	keys := []string{
		"backups/20260825T120000Z/a.json",
		"backups/20260826T090000Z/b.json",
		"reports/20260825T120100Z/run.json",
	}
	for _, k := range keys {
		if _, err := s.Write(ctx, k, []byte("{}")); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.List(ctx, "backups/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("listed %v, want the 2 backup keys", got)
	}
	for _, k := range got {
		if k[:8] != "backups/" {
			t.Errorf("unexpected key %s", k)
		}
	}
}

func TestNewFSStoreEmptyRoot(t *testing.T) {
	if _, err := NewFSStore(""); err == nil {
		t.Fatal("expected error for empty root")
	}
}
