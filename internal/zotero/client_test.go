package zotero

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_ItemsPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/123/items" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Zotero-API-Key"); got != "key123" {
			t.Errorf("api key header = %q", got)
		}
		if got := r.URL.Query().Get("itemType"); got != "-attachment" {
			t.Errorf("itemType = %q, want -attachment", got)
		}

		start := r.URL.Query().Get("start")
		var items []Item
		if start == "0" {
			items = []Item{
				{Key: "A1", Version: 10, Data: ItemData{Key: "A1", ItemType: "journalArticle", Title: "First"}},
				{Key: "B2", Version: 11, Data: ItemData{Key: "B2", ItemType: "book", Title: "Second"}},
			}
		}
		json.NewEncoder(w).Encode(items)
	}))
	defer srv.Close()

	c := NewClient(Library{ID: "123", Type: "user"}, "key123", WithBaseURL(srv.URL))

	page, err := c.Items(context.Background(), 0, 2)
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(page) != 2 || page[0].Key != "A1" || page[1].Data.Title != "Second" {
		t.Errorf("unexpected page: %+v", page)
	}

	empty, err := c.Items(context.Background(), 2, 2)
	if err != nil {
		t.Fatalf("Items offset 2: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty page, got %d items", len(empty))
	}
}

func TestClient_ItemNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(Library{ID: "123", Type: "user"}, "", WithBaseURL(srv.URL))

	_, err := c.Item(context.Background(), "MISSING")
	if err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestClient_GroupLibraryPrefix(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode([]Item{})
	}))
	defer srv.Close()

	c := NewClient(Library{ID: "777", Type: "group"}, "", WithBaseURL(srv.URL))
	if _, err := c.Children(context.Background(), "K1"); err != nil {
		t.Fatalf("Children: %v", err)
	}
	if gotPath != "/groups/777/items/K1/children" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestClient_UpdateItemTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %q, want PATCH", r.Method)
		}
		if got := r.Header.Get("If-Unmodified-Since-Version"); got != "42" {
			t.Errorf("version header = %q, want 42", got)
		}
		var body map[string][]Tag
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(body["tags"]) != 2 {
			t.Errorf("tags = %+v", body["tags"])
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(Library{ID: "123", Type: "user"}, "k", WithBaseURL(srv.URL))
	err := c.UpdateItemTags(context.Background(), "A1", 42, []Tag{{Tag: "one"}, {Tag: "two"}})
	if err != nil {
		t.Fatalf("UpdateItemTags: %v", err)
	}
}

func TestClient_UpdateItemTagsConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
	}))
	defer srv.Close()

	c := NewClient(Library{ID: "123", Type: "user"}, "k", WithBaseURL(srv.URL))
	err := c.UpdateItemTags(context.Background(), "A1", 1, []Tag{{Tag: "x"}})
	if err == nil {
		t.Fatal("expected version conflict error")
	}
}

func TestFormatCreators(t *testing.T) {
	tests := []struct {
		name     string
		creators []Creator
		want     string
	}{
		{"empty", nil, "No authors listed"},
		{"first last", []Creator{{FirstName: "Ada", LastName: "Lovelace"}}, "Lovelace, Ada"},
		{"single name", []Creator{{Name: "Bourbaki"}}, "Bourbaki"},
		{"mixed", []Creator{
			{FirstName: "Ada", LastName: "Lovelace"},
			{Name: "Bourbaki"},
		}, "Lovelace, Ada; Bourbaki"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCreators(tt.creators); got != tt.want {
				t.Errorf("FormatCreators() = %q, want %q", got, tt.want)
			}
		})
	}
}
