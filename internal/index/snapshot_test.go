package index

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/clinilearn/casesearch/internal/analyzer"
	cserrors "github.com/clinilearn/casesearch/pkg/errors"
)

func TestExportDeterministic(t *testing.T) {
	idx := newTestIndex()
	idx.Build(caseDocs())
	first := idx.Export()
	second := idx.Export()
	if !reflect.DeepEqual(first, second) {
		t.Fatal("two exports of the same index differ")
	}
	if first.DocumentCount != idx.DocumentCount() {
		t.Fatalf("exported count %d, index holds %d", first.DocumentCount, idx.DocumentCount())
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	original := newTestIndex()
	original.Build(caseDocs())

	restored := New(analyzer.New(), nil)
	if err := restored.Restore(original.Export()); err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}
	if !reflect.DeepEqual(original.Export(), restored.Export()) {
		t.Fatal("restored index exports differently than the original")
	}
	for _, doc := range caseDocs() {
		if got, want := restored.DocumentLength(doc.ID), original.DocumentLength(doc.ID); got != want {
			t.Errorf("DocumentLength(%s) = %d, want %d", doc.ID, got, want)
		}
	}
	// A restored index keeps answering queries.
	terms := restored.Analyze("chest pain")
	view := restored.QueryView(terms, 0)
	if len(view.Postings) == 0 {
		t.Fatal("restored index has no postings for indexed terms")
	}
}

func TestRestoreAfterRemoval(t *testing.T) {
	idx := newTestIndex()
	idx.Build(caseDocs())
	idx.Remove("case-002")

	restored := New(analyzer.New(), nil)
	if err := restored.Restore(idx.Export()); err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}
	if restored.DocumentCount() != 2 {
		t.Fatalf("DocumentCount() = %d, want 2", restored.DocumentCount())
	}
	if _, ok := restored.Document("case-002"); ok {
		t.Fatal("removed document resurrected by round trip")
	}
}

func TestValidateRejectsMalformedSnapshots(t *testing.T) {
	valid := func() *Snapshot {
		idx := newTestIndex()
		idx.Build(caseDocs())
		return idx.Export()
	}

	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"bad version", func(s *Snapshot) { s.Version = 99 }},
		{"count mismatch", func(s *Snapshot) { s.DocumentCount++ }},
		{"empty document id", func(s *Snapshot) { s.Documents[0].ID = "" }},
		{"duplicate document id", func(s *Snapshot) { s.Documents[1].ID = s.Documents[0].ID }},
		{"unknown posting target", func(s *Snapshot) {
			s.Terms[0].Postings["ghost-doc"] = 1
		}},
		{"non-positive frequency", func(s *Snapshot) {
			for id := range s.Terms[0].Postings {
				s.Terms[0].Postings[id] = 0
				break
			}
		}},
		{"empty term", func(s *Snapshot) { s.Terms[0].Term = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := s.Validate()
			if !errors.Is(err, cserrors.ErrDeserialization) {
				t.Fatalf("Validate() = %v, want ErrDeserialization", err)
			}
			// A failed restore leaves the target untouched.
			idx := newTestIndex()
			idx.Build(caseDocs()[:1])
			if err := idx.Restore(s); !errors.Is(err, cserrors.ErrDeserialization) {
				t.Fatalf("Restore() = %v, want ErrDeserialization", err)
			}
			if idx.DocumentCount() != 1 {
				t.Fatalf("failed restore mutated index: count = %d", idx.DocumentCount())
			}
		})
	}
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	idx := newTestIndex()
	idx.Build(caseDocs())
	path := filepath.Join(t.TempDir(), "index.snap")

	if err := WriteSnapshotFile(path, idx.Export()); err != nil {
		t.Fatalf("WriteSnapshotFile() failed: %v", err)
	}
	loaded, err := ReadSnapshotFile(path)
	if err != nil {
		t.Fatalf("ReadSnapshotFile() failed: %v", err)
	}
	if !reflect.DeepEqual(idx.Export(), loaded) {
		t.Fatal("snapshot changed across the file round trip")
	}
}

func TestReadSnapshotFileRejectsCorruption(t *testing.T) {
	idx := newTestIndex()
	idx.Build(caseDocs())
	dir := t.TempDir()
	path := filepath.Join(dir, "index.snap")
	if err := WriteSnapshotFile(path, idx.Export()); err != nil {
		t.Fatalf("WriteSnapshotFile() failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"truncated header", func(b []byte) []byte { return b[:8] }},
		{"bad magic", func(b []byte) []byte {
			out := append([]byte(nil), b...)
			out[0] ^= 0xFF
			return out
		}},
		{"bad container version", func(b []byte) []byte {
			out := append([]byte(nil), b...)
			out[4] = 0xEE
			return out
		}},
		{"flipped payload byte", func(b []byte) []byte {
			out := append([]byte(nil), b...)
			out[headerSize+1] ^= 0x01
			return out
		}},
		{"truncated payload", func(b []byte) []byte { return b[:len(b)-9] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corrupt := filepath.Join(dir, "corrupt.snap")
			if err := os.WriteFile(corrupt, tt.mutate(data), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := ReadSnapshotFile(corrupt)
			if !errors.Is(err, cserrors.ErrDeserialization) {
				t.Fatalf("ReadSnapshotFile() = %v, want ErrDeserialization", err)
			}
		})
	}
}

func TestReadSnapshotFileMissing(t *testing.T) {
	_, err := ReadSnapshotFile(filepath.Join(t.TempDir(), "missing.snap"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if errors.Is(err, cserrors.ErrDeserialization) {
		t.Fatal("missing file should be an I/O error, not a deserialization failure")
	}
}
