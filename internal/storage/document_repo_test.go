package storage

import (
	"context"
	"testing"
)

func TestDocumentRepoLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepo(db)
	ctx := context.Background()

	doc := DocumentRecord{ID: "doc-1", Title: "Kushtetuta", LawNumber: "8417", LawDate: "21.10.1998"}
	if err := repo.Insert(ctx, doc); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Title != "Kushtetuta" || got.LawNumber != "8417" {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not populated")
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}

	docs, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("ListAll returned %d docs, want 1", len(docs))
	}

	if err := repo.Delete(ctx, "doc-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := repo.Delete(ctx, "doc-1"); err != ErrNotFound {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetByID(ctx, "doc-1"); err != ErrNotFound {
		t.Errorf("GetByID after delete = %v, want ErrNotFound", err)
	}
}

func TestDocumentDeleteCascadesChunks(t *testing.T) {
	db := newTestDB(t)
	docs := NewDocumentRepo(db)
	chunks := NewChunkRepo(db)
	ctx := context.Background()

	seedDocument(t, db, "doc-1", "Kodi Penal")
	err := chunks.Insert(ctx, ChunkRecord{ID: "c1", DocumentID: "doc-1", Position: 0, Content: "vepra penale"})
	if err != nil {
		t.Fatalf("Insert chunk failed: %v", err)
	}

	if err := docs.Delete(ctx, "doc-1"); err != nil {
		t.Fatalf("Delete document failed: %v", err)
	}

	if _, err := chunks.GetByID(ctx, "c1"); err != ErrNotFound {
		t.Errorf("chunk survived document delete: %v", err)
	}
}
