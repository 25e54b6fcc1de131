package freesound_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"

	"github.com/haivivi/mixcraft/pkg/freesound"
)

const searchResponse = `{
  "count": 1,
  "results": [
    {
      "id": 42,
      "name": "rain loop.mp3",
      "username": "fielduser",
      "duration": 124.5,
      "download": "https://freesound.org/apiv2/sounds/42/download/",
      "previews": {
        "preview-hq-mp3": "https://cdn.example.com/42-hq.mp3",
        "preview-lq-mp3": "https://cdn.example.com/42-lq.mp3"
      },
      "tags": ["rain", "ambient"]
    }
  ]
}`

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/text/" {
			t.Errorf("path = %q, want /search/text/", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("query") != "rain ambient" {
			t.Errorf("query = %q", q.Get("query"))
		}
		if q.Get("filter") != "duration:[60 TO 300] type:mp3" {
			t.Errorf("filter = %q", q.Get("filter"))
		}
		w.Write([]byte(searchResponse))
	}))
	defer srv.Close()

	client := freesound.NewClient("test-key", freesound.WithBaseURL(srv.URL))
	sounds, err := client.Sounds.Search(context.Background(), &freesound.SearchRequest{
		Query:  "rain ambient",
		Filter: freesound.DurationFilter(60, 300),
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(sounds) != 1 {
		t.Fatalf("got %d sounds, want 1", len(sounds))
	}
	s := sounds[0]
	if s.ID != 42 || s.Username != "fielduser" || s.Duration != 124.5 {
		t.Fatalf("sound = %+v", s)
	}
	if s.Previews.HQMP3 != "https://cdn.example.com/42-hq.mp3" {
		t.Fatalf("preview url = %q", s.Previews.HQMP3)
	}
}

func TestSearchAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail": "Authentication credentials were not provided."}`))
	}))
	defer srv.Close()

	client := freesound.NewClient("", freesound.WithBaseURL(srv.URL))
	_, err := client.Sounds.Search(context.Background(), &freesound.SearchRequest{Query: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := freesound.AsError(err)
	if !ok {
		t.Fatalf("error %T is not *freesound.Error", err)
	}
	if !apiErr.IsInvalidToken() {
		t.Fatalf("error not classified as invalid token: %+v", apiErr)
	}
	if apiErr.Retryable() {
		t.Fatal("auth error must not be retryable")
	}
}

func TestDownloadPreview(t *testing.T) {
	payload := []byte("preview-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("authorization = %q", got)
		}
		w.Write(payload)
	}))
	defer srv.Close()

	client := freesound.NewClient("test-key")
	var buf bytes.Buffer
	sound := &freesound.Sound{Previews: freesound.Previews{HQMP3: srv.URL + "/42-hq.mp3"}}
	if err := client.Sounds.DownloadPreview(context.Background(), sound, &buf); err != nil {
		t.Fatalf("download: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), payload) {
		t.Fatalf("downloaded %q, want %q", buf.Bytes(), payload)
	}
}

func TestDownloadOriginal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer oauth-token" {
			t.Errorf("authorization = %q, want Bearer oauth-token", got)
		}
		w.Write([]byte("full-quality"))
	}))
	defer srv.Close()

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "oauth-token"})
	client := freesound.NewClient("test-key", freesound.WithTokenSource(ts))
	var buf bytes.Buffer
	sound := &freesound.Sound{Download: srv.URL + "/sounds/42/download/"}
	if err := client.Sounds.DownloadOriginal(context.Background(), sound, &buf); err != nil {
		t.Fatalf("download original: %v", err)
	}
	if buf.String() != "full-quality" {
		t.Fatalf("downloaded %q", buf.String())
	}
}

func TestDownloadOriginalWithoutTokenSource(t *testing.T) {
	client := freesound.NewClient("test-key")
	sound := &freesound.Sound{Download: "https://freesound.org/apiv2/sounds/42/download/"}
	err := client.Sounds.DownloadOriginal(context.Background(), sound, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error without token source")
	}
}
