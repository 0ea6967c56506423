package artifact

import (
	"bytes"
	"reflect"
	"testing"
)

func TestWriteReadExists(t *testing.T) {
	t.Parallel()

	repo := NewRepository(t.TempDir())

	if repo.Exists("scout", "20260213-06.json") {
		t.Fatal("artifact should not exist before write")
	}

	payload := []byte(`{"items": []}`)
	if err := repo.Write("scout", "20260213-06.json", payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	if !repo.Exists("scout", "20260213-06.json") {
		t.Fatal("artifact missing after write")
	}

	got, err := repo.Read("scout", "20260213-06.json")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("read back %q, want %q", got, payload)
	}

	if repo.Size("scout", "20260213-06.json") != int64(len(payload)) {
		t.Fatal("unexpected size")
	}
}

func TestSecondWriteOverwrites(t *testing.T) {
	t.Parallel()

	repo := NewRepository(t.TempDir())
	if err := repo.Write("drafts", "20260213-article.md", []byte("v1")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := repo.Write("drafts", "20260213-article.md", []byte("v2")); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	got, err := repo.Read("drafts", "20260213-article.md")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("got %q, want overwrite to win", got)
	}
}

func TestListFiltersByPrefix(t *testing.T) {
	t.Parallel()

	repo := NewRepository(t.TempDir())
	for _, name := range []string{"20260213-06.json", "20260213-10.json", "20260212-22.json"} {
		if err := repo.Write("scout", name, []byte("{}")); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	got, err := repo.List("scout", "20260213-")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"20260213-06.json", "20260213-10.json"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("list = %v, want %v", got, want)
	}
}

func TestListMissingStageIsEmpty(t *testing.T) {
	t.Parallel()

	repo := NewRepository(t.TempDir())
	got, err := repo.List("never-ran", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no artifacts, got %v", got)
	}
}
