package catalog

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestCandidatesUnknownChannel(t *testing.T) {
	c := New()
	if _, err := c.Candidates("missing"); !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("err = %v, want ErrChannelNotFound", err)
	}
}

func TestRefreshPublishesChannels(t *testing.T) {
	c := New()
	c.Refresh(1, 5, []ParsedChannel{
		{Slug: "Sports1", Name: "Sports One", URLs: []string{"http://a/1.m3u8", "http://b/1.m3u8"}},
	})

	urls, err := c.Candidates("sports1")
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(urls) != 2 || urls[0] != "http://a/1.m3u8" || urls[1] != "http://b/1.m3u8" {
		t.Fatalf("urls = %v, want stable primary-first order", urls)
	}
}

func TestMultiSourceMergeOrderAndDedup(t *testing.T) {
	c := New()
	c.Refresh(1, 5, []ParsedChannel{
		{Slug: "news", Name: "News", URLs: []string{"http://low/news.m3u8", "http://shared/news.m3u8"}},
	})
	c.Refresh(2, 9, []ParsedChannel{
		{Slug: "news", Name: "News HD", URLs: []string{"http://high/news.m3u8", "http://shared/news.m3u8"}},
	})

	urls, err := c.Candidates("news")
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}

	want := []string{"http://high/news.m3u8", "http://shared/news.m3u8", "http://low/news.m3u8"}
	if len(urls) != len(want) {
		t.Fatalf("urls = %v, want %v", urls, want)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Fatalf("urls[%d] = %s, want %s (priority order with first-seen dedup)", i, urls[i], want[i])
		}
	}
}

func TestRefreshReplacesSourceContribution(t *testing.T) {
	c := New()
	c.Refresh(1, 5, []ParsedChannel{
		{Slug: "movies", Name: "Movies", URLs: []string{"http://old/movies.m3u8"}},
	})
	c.Refresh(1, 5, []ParsedChannel{
		{Slug: "movies", Name: "Movies", URLs: []string{"http://new/movies.m3u8"}},
	})

	urls, err := c.Candidates("movies")
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(urls) != 1 || urls[0] != "http://new/movies.m3u8" {
		t.Fatalf("urls = %v, want only the re-published URL", urls)
	}
}

func TestRemoveDropsSource(t *testing.T) {
	c := New()
	c.Refresh(1, 5, []ParsedChannel{{Slug: "kids", Name: "Kids", URLs: []string{"http://a/kids.m3u8"}}})
	c.Remove(1)

	if _, err := c.Candidates("kids"); !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("err = %v after Remove, want ErrChannelNotFound", err)
	}
	if c.Len() != 0 {
		t.Fatalf("Len = %d after Remove, want 0", c.Len())
	}
}

func TestConcurrentReadersNeverSeeTornRefresh(t *testing.T) {
	c := New()
	c.Refresh(1, 5, []ParsedChannel{
		{Slug: "live", Name: "Live", URLs: []string{"http://v0/a.m3u8", "http://v0/b.m3u8"}},
	})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for reader := 0; reader < 4; reader++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				urls, err := c.Candidates("live")
				if err != nil {
					t.Errorf("Candidates: %v", err)
					return
				}
				// Both URLs always come from the same published version.
				if len(urls) != 2 ||
					strings.TrimSuffix(urls[0], "/a.m3u8") != strings.TrimSuffix(urls[1], "/b.m3u8") {
					t.Errorf("torn read: %v", urls)
					return
				}
			}
		}()
	}

	for version := 1; version <= 200; version++ {
		prefix := fmt.Sprintf("http://v%d", version)
		c.Refresh(1, 5, []ParsedChannel{
			{Slug: "live", Name: "Live", URLs: []string{prefix + "/a.m3u8", prefix + "/b.m3u8"}},
		})
	}
	close(stop)
	wg.Wait()
}
