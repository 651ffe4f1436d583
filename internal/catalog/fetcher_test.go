package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchSourceChannels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"slug": "Sports1", "name": "Sports One", "group": "Sports", "urls": ["http://a/1.m3u8", "http://b/1.m3u8"]},
			{"slug": "", "name": "broken", "urls": ["http://a/x.m3u8"]},
			{"slug": "no-urls", "name": "No URLs", "urls": []}
		]`))
	}))
	defer server.Close()

	channels, err := FetchSourceChannels(context.Background(), server.URL, time.Second)
	if err != nil {
		t.Fatalf("FetchSourceChannels: %v", err)
	}
	if len(channels) != 1 {
		t.Fatalf("channels = %+v, want entries without slug or urls dropped", channels)
	}
	if channels[0].Slug != "Sports1" || len(channels[0].URLs) != 2 {
		t.Fatalf("channel = %+v, want the valid entry intact", channels[0])
	}
}

func TestFetchSourceChannelsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if _, err := FetchSourceChannels(context.Background(), server.URL, time.Second); err == nil {
		t.Fatal("expected an error for a non-200 origin response")
	}
}

func TestFetchSourceChannelsInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("#EXTM3U"))
	}))
	defer server.Close()

	if _, err := FetchSourceChannels(context.Background(), server.URL, time.Second); err == nil {
		t.Fatal("expected an error for a non-JSON playlist body")
	}
}
