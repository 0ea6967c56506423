package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSendMessage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("chat_id") != "42" {
			t.Errorf("chat_id = %s", r.Form.Get("chat_id"))
		}
		if r.Form.Get("text") != "daily audit" {
			t.Errorf("text = %s", r.Form.Get("text"))
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewNotifier("tok", "42", nil)
	n.apiBase = server.URL

	if !n.SendMessage(context.Background(), "daily audit") {
		t.Fatal("expected delivery to succeed")
	}
}

func TestSendMessageAPIRejection(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer server.Close()

	n := NewNotifier("tok", "42", nil)
	n.apiBase = server.URL

	if n.SendMessage(context.Background(), "hello") {
		t.Fatal("expected rejection to report false")
	}
}

func TestSendDocumentUploadsMultipart(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendDocument") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("caption"); got != "the draft" {
			t.Errorf("caption = %q", got)
		}
		file, header, err := r.FormFile("document")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			file.Close()
			if header.Filename != "article.md" {
				t.Errorf("filename = %s", header.Filename)
			}
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "article.md")
	if err := os.WriteFile(path, []byte("# draft"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	n := NewNotifier("tok", "42", nil)
	n.apiBase = server.URL

	if !n.SendDocument(context.Background(), path, "the draft") {
		t.Fatal("expected upload to succeed")
	}
}

func TestSendDocumentMissingFile(t *testing.T) {
	t.Parallel()

	n := NewNotifier("tok", "42", nil)
	if n.SendDocument(context.Background(), "/does/not/exist.md", "") {
		t.Fatal("expected missing file to report false")
	}
}

func TestMisconfiguredNotifierDropsQuietly(t *testing.T) {
	t.Parallel()

	n := NewNotifier("", "", nil)
	if n.SendMessage(context.Background(), "hello") {
		t.Fatal("expected false without credentials")
	}
}
