package httpapi

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"apptrack-engine/internal/config"
	"apptrack-engine/internal/mailscan"
)

type MailscanHandler struct {
	Scanner *mailscan.Scanner
	CfgVal  *atomic.Value // config.Config
}

func (h MailscanHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Scanner.Status())
}

func (h MailscanHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Scanner.Suggestions())
}

func (h MailscanHandler) Run(w http.ResponseWriter, r *http.Request) {
	cfg := h.CfgVal.Load().(config.Config)
	if !cfg.Mailscan.Enabled {
		writeJSON(w, map[string]any{"ok": false, "msg": "mailscan disabled"})
		return
	}
	if !h.Scanner.TryBegin() {
		writeJSON(w, map[string]any{"ok": false, "msg": "already running"})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		_, _ = h.Scanner.RunOnce(ctx, cfg)
	}()

	writeJSON(w, map[string]any{"ok": true})
}
