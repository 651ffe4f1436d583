package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxPlaylistBytes = 32 << 20

// FetchSourceChannels downloads a source's pre-parsed playlist. Origins serve
// a JSON array of channels; raw M3U parsing happens upstream of this service.
func FetchSourceChannels(ctx context.Context, originURL string, timeout time.Duration) ([]ParsedChannel, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, originURL, nil)
	if err != nil {
		return nil, fmt.Errorf("playlist: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("playlist: fetch %s: %w", originURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("playlist: %s answered %d", originURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes))
	if err != nil {
		return nil, fmt.Errorf("playlist: read %s: %w", originURL, err)
	}

	var channels []ParsedChannel
	if err := json.Unmarshal(body, &channels); err != nil {
		return nil, fmt.Errorf("playlist: decode %s: %w", originURL, err)
	}

	valid := make([]ParsedChannel, 0, len(channels))
	for _, channel := range channels {
		if NormalizeSlug(channel.Slug) == "" || len(channel.URLs) == 0 {
			continue
		}
		valid = append(valid, channel)
	}
	return valid, nil
}
