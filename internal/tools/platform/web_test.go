package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReadWebPageTool_ExtractsReadableText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><article><p>Hello world, this is the article body.</p></article></body></html>`))
	}))
	defer srv.Close()

	tool := NewReadWebPageTool()
	params, _ := json.Marshal(map[string]string{"url": srv.URL})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error result: %+v", result)
	}
	if !strings.Contains(result.Content, "Hello world") {
		t.Fatalf("expected extracted text, got %q", result.Content)
	}
	if !strings.Contains(result.Content, "END OF DOCUMENT") {
		t.Fatalf("expected end-of-document footer for a short page, got %q", result.Content)
	}
}

func TestReadWebPageTool_ForbiddenStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tool := NewReadWebPageTool()
	params, _ := json.Marshal(map[string]string{"url": srv.URL})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for a 403 response")
	}
	if !strings.Contains(result.Content, "different URL") {
		t.Fatalf("expected remediation hint for 403, got %q", result.Content)
	}
}

func TestScrollWebPageTool_OutOfBounds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("short page"))
	}))
	defer srv.Close()

	tool := NewScrollWebPageTool()
	params, _ := json.Marshal(map[string]any{"url": srv.URL, "page": 99})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for out-of-bounds page")
	}
}

func TestSearchWebPageTool_NoMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>nothing relevant here</p></body></html>"))
	}))
	defer srv.Close()

	tool := NewSearchWebPageTool()
	params, _ := json.Marshal(map[string]string{"url": srv.URL, "query": "unobtainium"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for zero matches")
	}
	if !strings.Contains(result.Content, "synonym") {
		t.Fatalf("expected synonym hint, got %q", result.Content)
	}
}

func TestPaginate(t *testing.T) {
	pages := paginate("abcdefghij", 3)
	want := []string{"abc", "def", "ghi", "j"}
	if len(pages) != len(want) {
		t.Fatalf("expected %d pages, got %d: %v", len(want), len(pages), pages)
	}
	for i := range want {
		if pages[i] != want[i] {
			t.Fatalf("page %d: expected %q, got %q", i, want[i], pages[i])
		}
	}
}
