package catalog

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

var ErrChannelNotFound = errors.New("catalog: channel not found")

// ParsedChannel is one channel entry as delivered by an external playlist
// parser: the catalog never sees raw playlist syntax.
type ParsedChannel struct {
	Slug    string   `json:"slug"`
	Name    string   `json:"name"`
	Group   string   `json:"group,omitempty"`
	LogoURL string   `json:"logo,omitempty"`
	URLs    []string `json:"urls"`
}

type ChannelEntry struct {
	Slug string
	Name string
	URLs []string
}

type sourceSet struct {
	priority int
	channels []ParsedChannel
}

// Catalog maps channel slugs to ordered candidate URLs aggregated from every
// refreshed source. Readers work against an immutable published view, so a
// refresh in progress is never observed half-merged.
type Catalog struct {
	mu      sync.Mutex
	sources map[uint64]sourceSet
	view    atomic.Value // map[string]ChannelEntry
}

func New() *Catalog {
	c := &Catalog{sources: make(map[uint64]sourceSet)}
	c.view.Store(map[string]ChannelEntry{})
	return c
}

// Refresh replaces the channel set contributed by one source and republishes
// the merged view.
func (c *Catalog) Refresh(sourceID uint64, priority int, channels []ParsedChannel) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sources[sourceID] = sourceSet{priority: priority, channels: channels}
	c.view.Store(c.merge())
}

// Remove drops a source's contribution entirely.
func (c *Catalog) Remove(sourceID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.sources, sourceID)
	c.view.Store(c.merge())
}

// merge concatenates candidate URLs in source-priority order (higher priority
// first, source ID as tie-break) and de-duplicates by URL, first seen wins.
// Callers must hold c.mu.
func (c *Catalog) merge() map[string]ChannelEntry {
	ids := make([]uint64, 0, len(c.sources))
	for id := range c.sources {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := c.sources[ids[i]], c.sources[ids[j]]
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		return ids[i] < ids[j]
	})

	merged := make(map[string]ChannelEntry)
	for _, id := range ids {
		for _, channel := range c.sources[id].channels {
			slug := NormalizeSlug(channel.Slug)
			if slug == "" || len(channel.URLs) == 0 {
				continue
			}

			entry, ok := merged[slug]
			if !ok {
				entry = ChannelEntry{Slug: slug, Name: channel.Name}
			}

			seen := make(map[string]struct{}, len(entry.URLs))
			for _, u := range entry.URLs {
				seen[u] = struct{}{}
			}
			for _, u := range channel.URLs {
				u = strings.TrimSpace(u)
				if u == "" {
					continue
				}
				if _, dup := seen[u]; dup {
					continue
				}
				seen[u] = struct{}{}
				entry.URLs = append(entry.URLs, u)
			}

			merged[slug] = entry
		}
	}
	return merged
}

// Candidates returns the ordered candidate URLs for a channel.
func (c *Catalog) Candidates(channelSlug string) ([]string, error) {
	view := c.view.Load().(map[string]ChannelEntry)
	entry, ok := view[NormalizeSlug(channelSlug)]
	if !ok || len(entry.URLs) == 0 {
		return nil, ErrChannelNotFound
	}

	urls := make([]string, len(entry.URLs))
	copy(urls, entry.URLs)
	return urls, nil
}

// Channels lists every published channel, ordered by slug.
func (c *Catalog) Channels() []ChannelEntry {
	view := c.view.Load().(map[string]ChannelEntry)

	entries := make([]ChannelEntry, 0, len(view))
	for _, entry := range view {
		copied := entry
		copied.URLs = append([]string(nil), entry.URLs...)
		entries = append(entries, copied)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Slug < entries[j].Slug })
	return entries
}

func (c *Catalog) Len() int {
	return len(c.view.Load().(map[string]ChannelEntry))
}

func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}
