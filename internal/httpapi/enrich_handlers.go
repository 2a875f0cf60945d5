package httpapi

import (
	"errors"
	"net/http"
	"sync/atomic"

	"apptrack-engine/internal/config"
	"apptrack-engine/internal/enrich"
)

type EnrichHandler struct {
	Fetcher *enrich.Fetcher
	CfgVal  *atomic.Value // config.Config
}

// Get fetches a posting URL and returns prefill hints for the new
// application form.
func (h EnrichHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg := h.CfgVal.Load().(config.Config)
	if !cfg.Enrich.Enabled {
		WriteError(w, r, http.StatusServiceUnavailable, "enrich_disabled", "posting enrichment is disabled")
		return
	}

	u := r.URL.Query().Get("u") // already decoded by net/http
	if u == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_url", "missing u")
		return
	}

	hint, err := h.Fetcher.Fetch(r.Context(), u)
	if err != nil {
		if errors.Is(err, enrich.ErrBadURL) {
			WriteError(w, r, http.StatusBadRequest, "bad_url", "not a fetchable posting url")
			return
		}
		WriteError(w, r, http.StatusBadGateway, "fetch_failed", err.Error())
		return
	}
	writeJSON(w, hint)
}
