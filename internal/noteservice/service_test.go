package noteservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/ghostwriter/internal/apperr"
	"github.com/starford/ghostwriter/internal/models"
	"github.com/starford/ghostwriter/internal/testutil"
)

func setup(t *testing.T, files map[string]string) *Service {
	t.Helper()
	store, db := testutil.IndexedVault(t, files)
	return NewService(store, db)
}

func TestGetNote_BacklinksAndHistory(t *testing.T) {
	svc := setup(t, map[string]string{
		"posts/Target.md": "---\ntitle: Target Note\n---\nbody #go",
		"a.md":            "see [[Target]]",
		"b.md":            "see [[posts/Target|alias]]",
		"c.md":            "no links",
	})
	ctx := context.Background()
	db := svc.db
	_ = db.RecordPublication(models.Publication{Path: "posts/Target.md", Slug: "target-note", RemoteID: "1", Kind: "post", Status: "draft", PublishedAt: time.Now()})

	n, err := svc.GetNote(ctx, "posts/Target.md")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if n.Title != "Target Note" || n.Slug != "target-note" {
		t.Errorf("title/slug = %q/%q", n.Title, n.Slug)
	}
	if len(n.Backlinks) != 2 || n.Backlinks[0] != "a.md" || n.Backlinks[1] != "b.md" {
		t.Errorf("backlinks = %v", n.Backlinks)
	}
	if len(n.Publications) != 1 || n.Publications[0].RemoteID != "1" {
		t.Errorf("publications = %+v", n.Publications)
	}
	if len(n.Tags) != 1 || n.Tags[0] != "go" {
		t.Errorf("tags = %v", n.Tags)
	}
	if n.PublishState != StateModified {
		t.Errorf("publish state = %q, want modified for a record without checksum", n.PublishState)
	}
}

func TestGetNote_PublishState(t *testing.T) {
	svc := setup(t, map[string]string{"a.md": "# A", "b.md": "# B"})
	ctx := context.Background()

	a, _ := svc.GetNote(ctx, "a.md")
	if a.PublishState != StateUnpublished {
		t.Errorf("a = %q, want unpublished", a.PublishState)
	}

	_ = svc.db.RecordPublication(models.Publication{Path: "a.md", Slug: "a", Checksum: a.Checksum, PublishedAt: time.Now()})
	a, _ = svc.GetNote(ctx, "a.md")
	if a.PublishState != StateCurrent {
		t.Errorf("a = %q, want current", a.PublishState)
	}

	_ = svc.db.RecordPublication(models.Publication{Path: "b.md", Slug: "b", Checksum: "stale", PublishedAt: time.Now()})
	b, _ := svc.GetNote(ctx, "b.md")
	if b.PublishState != StateModified {
		t.Errorf("b = %q, want modified", b.PublishState)
	}
}

func TestGetNote_Missing(t *testing.T) {
	svc := setup(t, nil)
	_, err := svc.GetNote(context.Background(), "nope.md")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListAndSearch(t *testing.T) {
	svc := setup(t, map[string]string{
		"one.md": "# One\nneedle here",
		"two.md": "# Two\nhay",
	})
	ctx := context.Background()

	items, total, err := svc.ListNotes(ctx, 10, 0, "", "")
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if total != 2 || len(items) != 2 || items[0].Slug != "one" {
		t.Errorf("items = %+v (total %d)", items, total)
	}

	res, err := svc.Search(ctx, "needle", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 1 || res[0].Path != "one.md" {
		t.Errorf("search = %+v", res)
	}

	res, _ = svc.Search(ctx, "absent-term", 10)
	if res == nil {
		t.Error("expected empty slice, got nil")
	}
}
