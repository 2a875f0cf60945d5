package mailscan

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"

	"apptrack-engine/internal/applist"
	"apptrack-engine/internal/config"
	"apptrack-engine/internal/domain"
	"apptrack-engine/internal/events"
	"apptrack-engine/internal/secrets"
)

// Suggestion is a proposed status change for a tracked application, derived
// from an inbox message. The user decides; the scanner never mutates the
// list itself.
type Suggestion struct {
	ApplicationID string        `json:"applicationId"`
	Company       string        `json:"company"`
	Position      string        `json:"position"`
	Current       domain.Status `json:"current"`
	Suggested     domain.Status `json:"suggested"`
	Subject       string        `json:"subject"`
	From          string        `json:"from"`
	ReceivedAt    time.Time     `json:"receivedAt"`
}

type Status struct {
	LastRunAt   string `json:"last_run_at"`
	LastOkAt    string `json:"last_ok_at"`
	LastError   string `json:"last_error"`
	LastMatched int    `json:"last_matched"`
	Running     bool   `json:"running"`
}

// Scanner polls the user's mailbox for interview, offer and rejection mail
// about tracked companies.
type Scanner struct {
	list *applist.List
	hub  *events.Hub

	mu          sync.Mutex
	status      Status
	suggestions []Suggestion
}

func NewScanner(list *applist.List, hub *events.Hub) *Scanner {
	return &Scanner{list: list, hub: hub}
}

func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Suggestions returns the accumulated suggestions, newest run first.
func (s *Scanner) Suggestions() []Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Suggestion(nil), s.suggestions...)
}

// TryBegin marks the scanner running; false when a run is already in flight.
func (s *Scanner) TryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Running {
		return false
	}
	s.status.Running = true
	s.status.LastRunAt = time.Now().Format(time.RFC3339)
	return true
}

func (s *Scanner) finish(matched int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running = false
	s.status.LastMatched = matched
	if err != nil {
		s.status.LastError = err.Error()
		return
	}
	s.status.LastError = ""
	s.status.LastOkAt = time.Now().Format(time.RFC3339)
}

// RunOnce connects, scans unseen mail against the tracked applications and
// records suggestions. Matched messages are marked \Seen. Callers must hold
// the running flag via TryBegin.
func (s *Scanner) RunOnce(ctx context.Context, cfg config.Config) (matched int, err error) {
	defer func() { s.finish(matched, err) }()

	if !cfg.Mailscan.Enabled {
		return 0, nil
	}
	if s.list.Len() == 0 {
		return 0, nil
	}

	password, err := secrets.GetIMAPPassword(secrets.IMAPAccount(cfg.Mailscan.Username, cfg.Mailscan.IMAPHost))
	if err != nil {
		return 0, err
	}

	addr := cfg.Mailscan.IMAPHost
	if !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:%d", addr, cfg.Mailscan.IMAPPort)
	}

	c, err := Dial(ctx, addr, cfg.Mailscan.Username, password)
	if err != nil {
		return 0, err
	}
	defer LogoutAndClose(c)

	msgs, err := FetchUnseen(ctx, c, cfg.Mailscan.Mailbox, cfg.Mailscan.MaxMessages)
	if err != nil {
		return 0, err
	}

	records := s.list.All()
	var seen []imap.UID

	for _, m := range msgs {
		sug, ok := Classify(m, records)
		if !ok {
			continue
		}
		matched++
		seen = append(seen, m.UID)

		s.mu.Lock()
		s.suggestions = append([]Suggestion{sug}, s.suggestions...)
		s.mu.Unlock()

		s.hub.Emit("", events.TypeMailSuggestion, sug)
		log.Printf("level=info msg=\"mail suggestion\" company=%s suggested=%s", sug.Company, sug.Suggested)
	}

	if err := MarkSeen(c, seen); err != nil {
		log.Printf("level=warn msg=\"mark seen failed\" err=%v", err)
	}
	return matched, nil
}

// Classify matches one envelope against the tracked applications. A hit
// needs both a tracked company named in the mail and wording that implies a
// status the application is not already in.
func Classify(m Message, records []domain.ApplicationRecord) (Suggestion, bool) {
	text := strings.ToLower(m.Subject + " " + m.From)

	status, ok := impliedStatus(text)
	if !ok {
		return Suggestion{}, false
	}

	for _, r := range records {
		co := strings.ToLower(strings.TrimSpace(r.Company))
		if co == "" || !strings.Contains(text, co) {
			continue
		}
		if r.Status == status {
			continue
		}
		return Suggestion{
			ApplicationID: r.ID,
			Company:       r.Company,
			Position:      r.Position,
			Current:       r.Status,
			Suggested:     status,
			Subject:       m.Subject,
			From:          m.From,
			ReceivedAt:    m.Date,
		}, true
	}
	return Suggestion{}, false
}

func impliedStatus(text string) (domain.Status, bool) {
	switch {
	case containsAny(text, "unfortunately", "not moving forward", "other candidates", "decided to pursue", "regret to"):
		return domain.StatusRejected, true
	case containsAny(text, "offer letter", "pleased to offer", "your offer", "congratulations"):
		return domain.StatusOffer, true
	case containsAny(text, "interview", "phone screen", "schedule a call", "next round", "meet the team"):
		return domain.StatusInterview, true
	}
	return "", false
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
