package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	s := Load(path, nil)
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d entries", s.Len())
	}

	s.Put("data/a.txt", Entry{
		Fingerprint: "10:1:abc",
		ChunkIDs:    []string{"data/a.txt:unit=0:0:deadbeef"},
		IndexedAt:   time.Now().UTC(),
	})
	s.Put("data/b.pdf", Entry{Fingerprint: "20:2:def", ChunkIDs: []string{"id1", "id2"}})
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := Load(path, nil)
	if loaded.Len() != 2 {
		t.Fatalf("expected 2 entries after reload, got %d", loaded.Len())
	}
	e, ok := loaded.Get("data/a.txt")
	if !ok {
		t.Fatal("entry for data/a.txt missing after reload")
	}
	if e.Fingerprint != "10:1:abc" {
		t.Errorf("unexpected fingerprint: %s", e.Fingerprint)
	}
	if len(e.ChunkIDs) != 1 || e.ChunkIDs[0] != "data/a.txt:unit=0:0:deadbeef" {
		t.Errorf("unexpected chunk IDs: %v", e.ChunkIDs)
	}
}

func TestStore_RemoveAndPaths(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "m.json"), nil)
	s.Put("b", Entry{Fingerprint: "2"})
	s.Put("a", Entry{Fingerprint: "1"})
	s.Remove("b")

	paths := s.Paths()
	if len(paths) != 1 || paths[0] != "a" {
		t.Errorf("unexpected paths: %v", paths)
	}
	if _, ok := s.Get("b"); ok {
		t.Error("removed entry still present")
	}
}

func TestLoad_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	warned := false
	s := Load(path, func(msg string, err error) { warned = true })
	if s.Len() != 0 {
		t.Errorf("corrupt manifest should load empty, got %d entries", s.Len())
	}
	if !warned {
		t.Error("expected a warning for corrupt manifest")
	}
}

func TestSave_ReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	s := Load(path, nil)
	s.Put("x", Entry{Fingerprint: "1"})
	if err := s.Save(); err != nil {
		t.Fatalf("first save: %v", err)
	}
	s.Put("y", Entry{Fingerprint: "2"})
	if err := s.Save(); err != nil {
		t.Fatalf("second save: %v", err)
	}

	// No temp files left behind.
	matches, _ := filepath.Glob(filepath.Join(dir, ".manifest-*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}

	loaded := Load(path, nil)
	if loaded.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", loaded.Len())
	}
}

func TestFingerprint_ChangesWithContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("version one"), 0o644); err != nil {
		t.Fatal(err)
	}
	fp1, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}

	// Same content, same result.
	fp2, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if fp1 != fp2 {
		t.Errorf("fingerprint not stable: %s vs %s", fp1, fp2)
	}

	if err := os.WriteFile(path, []byte("version two!"), 0o644); err != nil {
		t.Fatal(err)
	}
	fp3, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if fp3 == fp1 {
		t.Error("fingerprint did not change with content")
	}
}

func TestFingerprint_MissingFile(t *testing.T) {
	if _, err := Fingerprint(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
