package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"apptrack-engine/internal/applist"
	"apptrack-engine/internal/authprovider"
	"apptrack-engine/internal/config"
	"apptrack-engine/internal/enrich"
	"apptrack-engine/internal/events"
	"apptrack-engine/internal/httpapi"
	"apptrack-engine/internal/kvstore"
	"apptrack-engine/internal/mailscan"
	"apptrack-engine/internal/notify"
	"apptrack-engine/internal/scheduler"
	"apptrack-engine/internal/session"
	"apptrack-engine/internal/snapshot"
)

func main() {
	// Engine data dir: use env if provided (the desktop shell passes one),
	// else local folder.
	dataDir := os.Getenv("APPTRACK_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	// One engine per data dir; a second instance would race the sqlite
	// writer and the snapshot cache.
	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("instance lock failed: %v", err)
	}
	if !locked {
		log.Fatalf("another engine is already running in %s", dataDir)
	}
	defer func() { _ = lock.Unlock() }()

	userCfgPath, err := config.EnsureUserConfig(dataDir)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	// Load config and keep it reloadable
	var cfgVal atomic.Value // stores config.Config
	loadCfg := func() (config.Config, error) {
		return config.Load(userCfgPath)
	}
	cfg, err := loadCfg()
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	cfg, vr := config.NormalizeAndValidate(cfg)
	if !vr.OK() {
		log.Fatalf("config invalid: %v", vr.Err())
	}
	for _, warn := range vr.Warnings {
		log.Printf("level=warn msg=\"config\" warn=%q", warn)
	}
	cfgVal.Store(cfg)

	db, err := kvstore.Open(filepath.Join(dataDir, "apptrack.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := kvstore.Migrate(db.Pool); err != nil {
		log.Fatal(err)
	}

	hub := events.NewHub()
	list := applist.New()
	store := snapshot.NewStore(db)

	provider := authprovider.New(cfg.Auth.BaseURL, cfg.Auth.APIKey,
		time.Duration(cfg.Auth.RefreshMarginSeconds)*time.Second)

	sessions := session.NewManager(provider, store, nil, list, hub)

	dispatcher := notify.New(cfg.Notify.Endpoint, sessions.Token,
		cfg.Notify.RatePerSec, cfg.Notify.Burst,
		time.Duration(cfg.Notify.TimeoutSeconds)*time.Second)
	if !cfg.Notify.Enabled {
		dispatcher = nil
	}

	fetcher := enrich.NewFetcher(enrich.NewHostLimiter(cfg.Enrich.RatePerSec, cfg.Enrich.Burst))
	scanner := mailscan.NewScanner(list, hub)

	mux := httpapi.NewMux(httpapi.Deps{
		DB:          db,
		Hub:         hub,
		Sessions:    sessions,
		Auth:        provider,
		Notify:      dispatcher,
		Enrich:      fetcher,
		Mailscan:    scanner,
		CfgVal:      &cfgVal,
		UserCfgPath: userCfgPath,
		LoadCfg:     loadCfg,
	})

	// Bind to the loopback only; the engine is a local backend, not a server.
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.App.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal(err)
	}

	srv := &http.Server{
		Handler: httpapi.Chain(mux,
			httpapi.Cors, httpapi.RequestID, httpapi.Recover, httpapi.AccessLog),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownToken, err := randomToken(16)
	if err != nil {
		log.Fatal(err)
	}
	mux.HandleFunc("/shutdown", shutdownHandler(&shutdownToken, srv))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("level=info msg=\"engine listening\" addr=http://%s data_dir=%s", addr, dataDir)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	// Session lifecycle: restore a cached or redirect-produced session, then
	// consume the provider's auth event stream.
	g.Go(func() error {
		rctx, cancel := context.WithTimeout(gctx, 30*time.Second)
		defer cancel()
		if err := sessions.Restore(rctx); err != nil {
			log.Printf("level=warn msg=\"session restore failed\" err=%v", err)
		}
		return sessions.Run(gctx)
	})

	// Mailbox scan poller. The ticker always runs; the per-tick check picks
	// up a config change enabling mailscan without a restart.
	g.Go(func() error {
		interval := time.Duration(cfgVal.Load().(config.Config).Mailscan.PollSeconds) * time.Second
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		scheduler.Every(gctx, interval, "mailscan", func(tctx context.Context) error {
			cur := cfgVal.Load().(config.Config)
			if !cur.Mailscan.Enabled || !scanner.TryBegin() {
				return nil
			}
			runCtx, cancel := context.WithTimeout(tctx, 2*time.Minute)
			defer cancel()
			_, err := scanner.RunOnce(runCtx, cur)
			return err
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}
