package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"apptrack-engine/internal/domain"
)

// Kind of mutation being announced.
type Kind string

const (
	KindAdded   Kind = "added"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
)

type payload struct {
	Type        Kind                     `json:"type"`
	Application domain.ApplicationRecord `json:"application"`
}

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TokenSource yields the current bearer token, or "" while logged out.
type TokenSource func() string

// Dispatcher fires best-effort notifications at the external endpoint.
// Outcomes are observed only for logging; a failed or slow call never blocks
// or rolls back the mutation that triggered it.
type Dispatcher struct {
	endpoint string
	token    TokenSource
	hc       *http.Client
	limiter  *rate.Limiter
}

func New(endpoint string, token TokenSource, perSec float64, burst int, timeout time.Duration) *Dispatcher {
	if perSec <= 0 {
		perSec = 1
	}
	if burst <= 0 {
		burst = 1
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{
		endpoint: endpoint,
		token:    token,
		hc:       &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(perSec), burst),
	}
}

// Notify sends {kind, record} with the bearer token attached. Returns
// immediately; the call runs on its own goroutine. Without a token it
// silently does nothing.
func (d *Dispatcher) Notify(kind Kind, rec domain.ApplicationRecord) {
	if d == nil || d.endpoint == "" {
		return
	}
	tok := d.token()
	if tok == "" {
		return
	}

	go d.send(kind, rec, tok)
}

func (d *Dispatcher) send(kind Kind, rec domain.ApplicationRecord, tok string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := d.limiter.Wait(ctx); err != nil {
		log.Printf("level=warn msg=\"notify dropped, rate limit wait\" kind=%s err=%v", kind, err)
		return
	}

	b, err := json.Marshal(payload{Type: kind, Application: rec})
	if err != nil {
		log.Printf("level=warn msg=\"notify marshal failed\" kind=%s err=%v", kind, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(b))
	if err != nil {
		log.Printf("level=warn msg=\"notify request failed\" kind=%s err=%v", kind, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)

	res, err := d.hc.Do(req)
	if err != nil {
		log.Printf("level=warn msg=\"notify send failed\" kind=%s err=%v", kind, err)
		return
	}
	defer res.Body.Close()

	var out response
	_ = json.NewDecoder(io.LimitReader(res.Body, 4096)).Decode(&out)

	switch {
	case res.StatusCode < 200 || res.StatusCode > 299:
		log.Printf("level=warn msg=\"notify rejected\" kind=%s status=%d err=%q", kind, res.StatusCode, out.Error)
	case !out.Success:
		log.Printf("level=warn msg=\"notify unsuccessful\" kind=%s msg=%q err=%q", kind, out.Message, out.Error)
	default:
		log.Printf("level=info msg=\"notify ok\" kind=%s id=%s", kind, rec.ID)
	}
}
