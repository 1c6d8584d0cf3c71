package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStaticPageFetchesHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/acheter" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><a href="/propriete/villa-1">Villa</a></body></html>`))
	}))
	defer srv.Close()

	launcher := &StaticLauncher{Options: PageOptions{NavTimeout: 5 * time.Second}}
	session, err := launcher.Launch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()
	page := session.Page()

	if err := page.Navigate(context.Background(), srv.URL+"/acheter"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	html, err := page.HTML(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "/propriete/villa-1") {
		t.Errorf("HTML: got %q", html)
	}

	err = page.Navigate(context.Background(), srv.URL+"/missing")
	if !errors.Is(err, ErrNavigation) {
		t.Errorf("expected ErrNavigation for a 404, got %v", err)
	}
}
