package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"streamgate/internal/database"
	"streamgate/internal/domain"
	"streamgate/internal/metrics"
	"streamgate/internal/selector"
	"streamgate/internal/support"
)

// Outcome is the terminal state of one relay request.
type Outcome string

const (
	OutcomeSuccess          Outcome = "SUCCESS"
	OutcomeChannelNotFound  Outcome = "CHANNEL_NOT_FOUND"
	OutcomeNoHealthyProxy   Outcome = "NO_HEALTHY_PROXY"
	OutcomeExhausted        Outcome = "EXHAUSTED"
	OutcomeMidStreamFailure Outcome = "MID_STREAM_FAILURE"
	OutcomeClientCancelled  Outcome = "CLIENT_CANCELLED"
)

type Result struct {
	Outcome   Outcome
	Attempts  int
	Bytes     int64
	Elapsed   time.Duration
	ProxyUsed string
	SourceURL string
	Err       error
}

type CandidateSelector interface {
	Select(channelSlug string) ([]selector.Candidate, error)
}

type OutcomeRecorder interface {
	RecordOutcome(proxyID uint64, success bool, latency time.Duration)
}

var (
	openUpstreamFunc = openUpstream
	recordAccessFunc = recordAccess
)

// Engine serves one client request by walking the ranked candidate list,
// streaming the first upstream that answers and failing over while no bytes
// have reached the client yet.
type Engine struct {
	selector CandidateSelector
	registry OutcomeRecorder
	timeout  time.Duration
}

func NewEngine(sel CandidateSelector, reg OutcomeRecorder, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Engine{selector: sel, registry: reg, timeout: timeout}
}

// Serve streams the channel to sink and returns the terminal outcome. Retry
// happens only while the client has received nothing: once the first byte is
// delivered an upstream failure ends the request instead of corrupting a
// partially delivered stream.
func (e *Engine) Serve(ctx context.Context, channelSlug string, sink io.Writer) Result {
	start := time.Now()

	candidates, err := e.selector.Select(channelSlug)
	if err != nil {
		result := Result{Err: err}
		switch {
		case errors.Is(err, selector.ErrChannelNotFound):
			result.Outcome = OutcomeChannelNotFound
		case errors.Is(err, selector.ErrNoHealthyProxy):
			result.Outcome = OutcomeNoHealthyProxy
		default:
			result.Outcome = OutcomeNoHealthyProxy
		}
		result.Elapsed = time.Since(start)
		e.finish(channelSlug, result)
		return result
	}

	// The selector may pair the same proxy with several fallback URLs, but
	// each proxy's health is charged at most once per request.
	reported := make(map[uint64]struct{})

	var result Result
	for _, candidate := range candidates {
		result.Attempts++
		result.ProxyUsed = candidate.Proxy.Address()
		result.SourceURL = candidate.SourceURL

		proxyID := candidate.Proxy.ID
		record := func(success bool, latency time.Duration) {
			if _, seen := reported[proxyID]; seen {
				return
			}
			reported[proxyID] = struct{}{}
			e.registry.RecordOutcome(proxyID, success, latency)
		}

		done, attempt := e.attempt(ctx, candidate, sink, record)
		result.Bytes += attempt.Bytes
		if done {
			result.Outcome = attempt.Outcome
			result.Err = attempt.Err
			result.Elapsed = time.Since(start)
			e.finish(channelSlug, result)
			return result
		}

		log.Debug("relay: candidate failed before first byte, advancing",
			"channel", channelSlug, "proxy", candidate.Proxy.Address(), "url", candidate.SourceURL, "error", attempt.Err)
	}

	result.Outcome = OutcomeExhausted
	if result.Err == nil {
		result.Err = fmt.Errorf("relay: no available source for channel %q after %d attempts", channelSlug, result.Attempts)
	}
	result.Elapsed = time.Since(start)
	e.finish(channelSlug, result)
	return result
}

type attemptResult struct {
	Outcome Outcome
	Bytes   int64
	Err     error
}

// attempt runs a single candidate. done=false means the failure is retryable
// and the caller should advance to the next candidate. Health reports go
// through record so the caller controls per-proxy dedupe.
func (e *Engine) attempt(ctx context.Context, candidate selector.Candidate, sink io.Writer, record func(success bool, latency time.Duration)) (done bool, res attemptResult) {
	start := time.Now()

	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()

	body, err := openUpstreamFunc(readCtx, candidate, e.timeout)
	if err != nil {
		if ctx.Err() != nil {
			// Client went away while connecting; nothing is charged to the proxy.
			metrics.RelayAttempts.WithLabelValues("cancelled").Inc()
			return true, attemptResult{Outcome: OutcomeClientCancelled, Err: ctx.Err()}
		}
		record(false, time.Since(start))
		metrics.RelayAttempts.WithLabelValues("connect_failed").Inc()
		return false, attemptResult{Err: err}
	}
	defer body.Close()

	// A stalled upstream read cancels the request so one slow source cannot
	// pin a worker forever.
	stall := time.AfterFunc(e.timeout, cancelRead)
	defer stall.Stop()

	var written int64
	var firstByteAt time.Time
	buf := make([]byte, 32*1024)

	for {
		stall.Reset(e.timeout)
		n, readErr := body.Read(buf)

		if n > 0 {
			if firstByteAt.IsZero() {
				firstByteAt = time.Now()
			}
			wn, writeErr := sink.Write(buf[:n])
			written += int64(wn)
			metrics.RelayBytes.Add(float64(wn))
			if writeErr != nil {
				// The client sink failed: normal termination, health-neutral.
				metrics.RelayAttempts.WithLabelValues("cancelled").Inc()
				return true, attemptResult{Outcome: OutcomeClientCancelled, Bytes: written, Err: writeErr}
			}
		}

		if readErr == io.EOF {
			record(true, firstByteLatency(start, firstByteAt))
			metrics.RelayAttempts.WithLabelValues("success").Inc()
			return true, attemptResult{Outcome: OutcomeSuccess, Bytes: written}
		}
		if readErr != nil {
			if ctx.Err() != nil {
				metrics.RelayAttempts.WithLabelValues("cancelled").Inc()
				return true, attemptResult{Outcome: OutcomeClientCancelled, Bytes: written, Err: ctx.Err()}
			}

			record(false, time.Since(start))
			if written > 0 {
				metrics.RelayAttempts.WithLabelValues("stream_failed").Inc()
				return true, attemptResult{Outcome: OutcomeMidStreamFailure, Bytes: written, Err: readErr}
			}
			metrics.RelayAttempts.WithLabelValues("read_failed").Inc()
			return false, attemptResult{Err: readErr}
		}
	}
}

func firstByteLatency(start, firstByteAt time.Time) time.Duration {
	if firstByteAt.IsZero() {
		return 0
	}
	return firstByteAt.Sub(start)
}

func (e *Engine) finish(channelSlug string, result Result) {
	metrics.RelayRequests.WithLabelValues(string(result.Outcome)).Inc()

	recordAccessFunc(domain.AccessLog{
		ChannelSlug: channelSlug,
		SourceURL:   result.SourceURL,
		ProxyUsed:   result.ProxyUsed,
		Outcome:     string(result.Outcome),
		ElapsedMS:   result.Elapsed.Milliseconds(),
		Bytes:       result.Bytes,
	})

	switch result.Outcome {
	case OutcomeSuccess, OutcomeClientCancelled:
		log.Info("relay: request finished", "channel", channelSlug, "outcome", result.Outcome,
			"attempts", result.Attempts, "bytes", result.Bytes, "proxy", result.ProxyUsed)
	default:
		log.Warn("relay: request failed", "channel", channelSlug, "outcome", result.Outcome,
			"attempts", result.Attempts, "error", result.Err)
	}
}

func recordAccess(entry domain.AccessLog) {
	if err := database.InsertAccessLog(entry); err != nil {
		log.Debug("relay: access log insert skipped", "error", err)
	}
}

// openUpstream connects to the source URL through the candidate's proxy and
// returns the response body stream.
func openUpstream(ctx context.Context, candidate selector.Candidate, timeout time.Duration) (io.ReadCloser, error) {
	transport, err := support.CreateTransport(candidate.Proxy, timeout)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate.SourceURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "streamgate/1.0")

	client := &http.Client{Transport: transport}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
