package httpapi

import "net/http"

// NewMux returns the raw mux so main() can still attach /shutdown (needs srv+token).
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Auth + session
	ah := AuthHandler{Sessions: d.Sessions, Auth: d.Auth}
	mux.HandleFunc("/auth/login", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ah.Login,
	}))
	mux.HandleFunc("/auth/signup", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ah.SignUp,
	}))
	mux.HandleFunc("/auth/oauth/url", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ah.OAuthURL,
	}))
	mux.HandleFunc("/auth/logout", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ah.Logout,
	}))
	mux.HandleFunc("/auth/session", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ah.Session,
	}))

	// Applications
	aph := ApplicationsHandler{Sessions: d.Sessions, Hub: d.Hub, Notify: d.Notify}
	mux.HandleFunc("/applications", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:  aph.List,
		http.MethodPost: aph.Create,
	}))
	mux.HandleFunc("/applications/", methodMux(map[string]http.HandlerFunc{
		http.MethodPut:    aph.UpdateByPath, // expects /applications/{id}
		http.MethodDelete: aph.DeleteByPath,
	}))
	mux.HandleFunc("/applications/counts", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: aph.Counts,
	}))
	mux.HandleFunc("/applications/calendar", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: aph.Calendar,
	}))

	// Profile
	ph := ProfileHandler{Sessions: d.Sessions, Hub: d.Hub}
	mux.HandleFunc("/profile", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ph.Get,
		http.MethodPut: ph.Put,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
	}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sh := SecretsHandler{CfgVal: d.CfgVal}
	mux.HandleFunc("/api/secrets/imap", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sh.SetIMAPPassword,
	}))

	// Posting enrichment
	eh := EnrichHandler{Fetcher: d.Enrich, CfgVal: d.CfgVal}
	mux.HandleFunc("/enrich", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.Get,
	}))

	// Mailbox scan
	mh := MailscanHandler{Scanner: d.Mailscan, CfgVal: d.CfgVal}
	mux.HandleFunc("/mailscan/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: mh.Status,
	}))
	mux.HandleFunc("/mailscan/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: mh.Run,
	}))
	mux.HandleFunc("/mailscan/suggestions", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: mh.Suggestions,
	}))

	// SSE events
	evh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: evh.ServeSSE,
	}))

	// Health + maintenance
	hh := HealthHandler{}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))
	dbh := DBHandler{DB: d.DB.Pool}
	mux.HandleFunc("/db/checkpoint", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: dbh.Checkpoint,
	}))

	return mux
}
