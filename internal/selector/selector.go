package selector

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"streamgate/internal/domain"
)

var (
	ErrChannelNotFound = errors.New("selector: channel not found")
	ErrNoHealthyProxy  = errors.New("selector: no healthy proxy available")
)

// CandidateSource yields the ordered candidate URLs for a channel.
type CandidateSource interface {
	Candidates(channelSlug string) ([]string, error)
}

// ProxyLister yields the proxies currently eligible for selection.
type ProxyLister interface {
	ListActive() []domain.Proxy
}

// Candidate is one (proxy, source URL) attempt pairing, scored at selection
// time and never cached across requests.
type Candidate struct {
	Proxy     domain.Proxy
	SourceURL string
	Score     float64
}

type Selector struct {
	catalog CandidateSource
	proxies ProxyLister

	successWeight float64
	latencyWeight float64
	epsilon       float64
	maxCandidates int

	mu  sync.Mutex
	rng *rand.Rand
}

func New(catalog CandidateSource, proxies ProxyLister, successWeight, latencyWeight, epsilon float64, maxCandidates int) *Selector {
	if maxCandidates <= 0 {
		maxCandidates = 1
	}
	return &Selector{
		catalog:       catalog,
		proxies:       proxies,
		successWeight: successWeight,
		latencyWeight: latencyWeight,
		epsilon:       epsilon,
		maxCandidates: maxCandidates,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Select ranks the active proxies for a channel and pairs them with the
// channel's candidate URLs: primary URL with the best proxy, each fallback
// with the next best, rotating through proxies when URLs outnumber them.
func (s *Selector) Select(channelSlug string) ([]Candidate, error) {
	urls, err := s.catalog.Candidates(channelSlug)
	if err != nil {
		return nil, ErrChannelNotFound
	}

	active := s.proxies.ListActive()
	if len(active) == 0 {
		return nil, ErrNoHealthyProxy
	}

	type scored struct {
		proxy domain.Proxy
		score float64
	}
	ranked := make([]scored, 0, len(active))
	for _, p := range active {
		ranked = append(ranked, scored{proxy: p, score: s.score(p)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].proxy.ID < ranked[j].proxy.ID
	})

	limit := len(urls)
	if limit > s.maxCandidates {
		limit = s.maxCandidates
	}

	candidates := make([]Candidate, 0, limit)
	for i := 0; i < limit; i++ {
		pick := ranked[i%len(ranked)]
		candidates = append(candidates, Candidate{
			Proxy:     pick.proxy,
			SourceURL: urls[i],
			Score:     pick.score,
		})
	}
	return candidates, nil
}

// score combines Laplace-smoothed success rate with inverse latency, plus an
// exploration jitter bounded by epsilon.
func (s *Selector) score(p domain.Proxy) float64 {
	total := float64(p.SuccessCount + p.FailureCount)
	successRate := (float64(p.SuccessCount) + 1) / (total + 2)
	latencyScore := 1 / (1 + p.LatencyMS/1000)

	score := s.successWeight*successRate + s.latencyWeight*latencyScore
	if s.epsilon > 0 {
		s.mu.Lock()
		score += s.rng.Float64() * s.epsilon
		s.mu.Unlock()
	}
	return score
}
