package vectorindex

import (
	"errors"
	"testing"
)

func seedChunk() Chunk {
	return Chunk{
		DocumentRef: PlaceholderRef,
		Text:        PlaceholderText,
		Vector:      []float32{0, 0, 1},
	}
}

func mustNew(t *testing.T, tenantID string) *Index {
	t.Helper()
	ix, err := New(tenantID, seedChunk())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ix
}

func TestNew_PlaceholderOnly(t *testing.T) {
	ix := mustNew(t, "7")

	if ix.Len() != 1 {
		t.Errorf("expected 1 chunk, got %d", ix.Len())
	}
	if ix.Chunks()[0].ID != 1 {
		t.Errorf("expected placeholder ID 1, got %d", ix.Chunks()[0].ID)
	}
	if ix.Chunks()[0].Text != PlaceholderText {
		t.Errorf("unexpected placeholder text %q", ix.Chunks()[0].Text)
	}
	if docs := ix.Documents(); len(docs) != 0 {
		t.Errorf("placeholder must not count as a document, got %v", docs)
	}
	if ix.Dimension() != 3 {
		t.Errorf("expected dimension 3, got %d", ix.Dimension())
	}
}

func TestNew_MissingSeedVector(t *testing.T) {
	_, err := New("7", Chunk{Text: PlaceholderText})
	if !errors.Is(err, ErrMissingVector) {
		t.Errorf("expected ErrMissingVector, got %v", err)
	}
}

func TestAppend_AssignsMonotonicIDs(t *testing.T) {
	ix := mustNew(t, "7")

	ids, err := ix.Append([]Chunk{
		{DocumentRef: "a.txt", Text: "first", Vector: []float32{1, 0, 0}},
		{DocumentRef: "a.txt", Text: "second", Vector: []float32{0, 1, 0}},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 3 {
		t.Errorf("expected IDs [2 3], got %v", ids)
	}
	if ix.Len() != 3 {
		t.Errorf("expected 3 chunks, got %d", ix.Len())
	}
}

func TestAppend_RejectsBadVectors(t *testing.T) {
	ix := mustNew(t, "7")

	_, err := ix.Append([]Chunk{
		{DocumentRef: "a.txt", Text: "good", Vector: []float32{1, 0, 0}},
		{DocumentRef: "a.txt", Text: "no vector"},
	})
	if !errors.Is(err, ErrMissingVector) {
		t.Errorf("expected ErrMissingVector, got %v", err)
	}
	if ix.Len() != 1 {
		t.Errorf("failed append must not add chunks, got %d", ix.Len())
	}

	_, err = ix.Append([]Chunk{
		{DocumentRef: "a.txt", Text: "wrong size", Vector: []float32{1, 0}},
	})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if ix.Len() != 1 {
		t.Errorf("failed append must not add chunks, got %d", ix.Len())
	}
}

func TestSearch_OrdersByCosineDescending(t *testing.T) {
	ix := mustNew(t, "7")
	_, err := ix.Append([]Chunk{
		{DocumentRef: "a.txt", Text: "orthogonal", Vector: []float32{0, 1, 0}},
		{DocumentRef: "a.txt", Text: "exact", Vector: []float32{1, 0, 0}},
		{DocumentRef: "a.txt", Text: "diagonal", Vector: []float32{1, 1, 0}},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	results, err := ix.Search([]float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Chunk.Text != "exact" {
		t.Errorf("expected best match 'exact', got %q", results[0].Chunk.Text)
	}
	if results[1].Chunk.Text != "diagonal" {
		t.Errorf("expected second match 'diagonal', got %q", results[1].Chunk.Text)
	}
	if results[0].Score <= results[1].Score || results[1].Score <= results[2].Score {
		t.Errorf("scores not descending: %v %v %v",
			results[0].Score, results[1].Score, results[2].Score)
	}
}

func TestSearch_TieBrokenByInsertionOrder(t *testing.T) {
	ix := mustNew(t, "7")
	_, err := ix.Append([]Chunk{
		{DocumentRef: "a.txt", Text: "earlier", Vector: []float32{1, 0, 0}},
		{DocumentRef: "a.txt", Text: "later", Vector: []float32{1, 0, 0}},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	results, err := ix.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results[0].Chunk.Text != "earlier" || results[1].Chunk.Text != "later" {
		t.Errorf("tie must prefer earlier insertion, got %q then %q",
			results[0].Chunk.Text, results[1].Chunk.Text)
	}
}

func TestSearch_Limits(t *testing.T) {
	ix := mustNew(t, "7")

	results, err := ix.Search([]float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("k beyond size must return all chunks, got %d", len(results))
	}

	results, err = ix.Search([]float32{1, 0, 0}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("k=0 must return nothing, got %d", len(results))
	}

	if _, err := ix.Search([]float32{1, 0}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for short query, got %v", err)
	}
}

func TestEncodeDecode_SearchIdentical(t *testing.T) {
	ix := mustNew(t, "7")
	_, err := ix.Append([]Chunk{
		{DocumentRef: "a.txt", Text: "alpha", Vector: []float32{1, 0, 0}},
		{DocumentRef: "b.txt", Text: "beta", Vector: []float32{0, 1, 0}},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	data, err := ix.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	restored, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	query := []float32{1, 1, 0}
	want, _ := ix.Search(query, 3)
	got, err := restored.Search(query, 3)
	if err != nil {
		t.Fatalf("Search on restored: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("result count differs: %d vs %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Chunk.ID != want[i].Chunk.ID || got[i].Score != want[i].Score {
			t.Errorf("result %d differs: got (%d, %v), want (%d, %v)",
				i, got[i].Chunk.ID, got[i].Score, want[i].Chunk.ID, want[i].Score)
		}
	}

	// ID assignment continues where the original left off.
	ids, err := restored.Append([]Chunk{
		{DocumentRef: "c.txt", Text: "gamma", Vector: []float32{0, 0, 1}},
	})
	if err != nil {
		t.Fatalf("Append on restored: %v", err)
	}
	if ids[0] != 4 {
		t.Errorf("expected next ID 4 after restore, got %d", ids[0])
	}
}

func TestDecode_Corrupt(t *testing.T) {
	if _, err := Decode([]byte("not a snapshot")); !errors.Is(err, ErrCorruptState) {
		t.Errorf("expected ErrCorruptState, got %v", err)
	}
	if _, err := Decode(nil); !errors.Is(err, ErrCorruptState) {
		t.Errorf("expected ErrCorruptState for empty blob, got %v", err)
	}
}

func TestClone_Independent(t *testing.T) {
	ix := mustNew(t, "7")
	clone := ix.Clone()

	_, err := clone.Append([]Chunk{
		{DocumentRef: "a.txt", Text: "only in clone", Vector: []float32{1, 0, 0}},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if ix.Len() != 1 {
		t.Errorf("append to clone mutated original: %d chunks", ix.Len())
	}
	if clone.Len() != 2 {
		t.Errorf("expected clone to have 2 chunks, got %d", clone.Len())
	}
}

func TestChunksForDocument(t *testing.T) {
	ix := mustNew(t, "7")
	_, err := ix.Append([]Chunk{
		{DocumentRef: "a.txt", Text: "one", Vector: []float32{1, 0, 0}},
		{DocumentRef: "b.txt", Text: "two", Vector: []float32{0, 1, 0}},
		{DocumentRef: "a.txt", Text: "three", Vector: []float32{0, 0, 1}},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	got := ix.ChunksForDocument("a.txt")
	if len(got) != 2 || got[0].Text != "one" || got[1].Text != "three" {
		t.Errorf("unexpected chunks for a.txt: %+v", got)
	}
	if chunks := ix.ChunksForDocument("missing.txt"); chunks != nil {
		t.Errorf("expected nil for unknown document, got %+v", chunks)
	}

	docs := ix.Documents()
	if len(docs) != 2 || docs[0] != "a.txt" || docs[1] != "b.txt" {
		t.Errorf("unexpected document list: %v", docs)
	}
}
