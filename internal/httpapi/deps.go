package httpapi

import (
	"sync/atomic"

	"apptrack-engine/internal/authprovider"
	"apptrack-engine/internal/config"
	"apptrack-engine/internal/enrich"
	"apptrack-engine/internal/events"
	"apptrack-engine/internal/kvstore"
	"apptrack-engine/internal/mailscan"
	"apptrack-engine/internal/notify"
	"apptrack-engine/internal/session"
)

type Deps struct {
	DB *kvstore.DB

	Hub *events.Hub

	Sessions *session.Manager
	Auth     *authprovider.Client
	Notify   *notify.Dispatcher
	Enrich   *enrich.Fetcher
	Mailscan *mailscan.Scanner

	// Atomic store for hot-reloadable config
	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)
}
