package authprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Session is the provider-issued credential pair plus the user it belongs to.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

type User struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"user_metadata,omitempty"`
}

type EventType string

const (
	SignedIn       EventType = "signed_in"
	SignedOut      EventType = "signed_out"
	TokenRefreshed EventType = "token_refreshed"
)

// Event is one entry on the provider's auth event stream.
type Event struct {
	Type    EventType
	Session *Session
}

// Error carries the provider's message so it can be shown inline.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("auth provider: %s (status %d)", e.Message, e.Status)
}

// Client talks to a GoTrue-style identity provider and surfaces sign-in,
// sign-out and token-refresh happenings as events on a buffered channel.
// Sends to a full channel are dropped, not queued.
type Client struct {
	baseURL string
	apiKey  string
	margin  time.Duration
	hc      *http.Client

	events chan Event

	mu      sync.Mutex
	cur     *Session
	refresh *time.Timer
}

func New(baseURL, apiKey string, refreshMargin time.Duration) *Client {
	if refreshMargin <= 0 {
		refreshMargin = time.Minute
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		margin:  refreshMargin,
		hc:      &http.Client{Timeout: 20 * time.Second},
		events:  make(chan Event, 8),
	}
}

// Events is the auth event stream. Single consumer expected.
func (c *Client) Events() <-chan Event { return c.events }

// CurrentSession returns the provider-held session, if any.
func (c *Client) CurrentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// PasswordLogin exchanges email+password for a session and emits signed_in.
func (c *Client) PasswordLogin(ctx context.Context, email, password string) (*Session, error) {
	var sess Session
	err := c.post(ctx, "/token?grant_type=password",
		map[string]string{"email": email, "password": password}, "", &sess)
	if err != nil {
		return nil, err
	}
	c.adopt(&sess)
	c.emit(Event{Type: SignedIn, Session: &sess})
	return &sess, nil
}

// SignUp registers a new user. A nil session with a non-nil user means the
// provider wants the email confirmed before the first sign-in.
func (c *Client) SignUp(ctx context.Context, email, password string, meta map[string]string) (*Session, *User, error) {
	body := map[string]any{"email": email, "password": password}
	if len(meta) > 0 {
		body["data"] = meta
	}

	var resp struct {
		Session
		ID string `json:"id"` // confirmation-pending responses are a bare user object
	}
	if err := c.post(ctx, "/signup", body, "", &resp); err != nil {
		return nil, nil, err
	}

	if resp.AccessToken == "" {
		u := resp.User
		if u.ID == "" {
			u = User{ID: resp.ID, Email: email}
		}
		return nil, &u, nil
	}

	sess := resp.Session
	c.adopt(&sess)
	c.emit(Event{Type: SignedIn, Session: &sess})
	return &sess, &sess.User, nil
}

// OAuthURL builds the browser redirect URL for an external OAuth provider.
func (c *Client) OAuthURL(provider, redirectTo string) string {
	q := url.Values{}
	q.Set("provider", provider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return c.baseURL + "/authorize?" + q.Encode()
}

// SignOut asks the provider to invalidate the token and emits signed_out.
// Local state is the session manager's problem; this only tears down the
// provider side.
func (c *Client) SignOut(ctx context.Context, token string) error {
	c.drop()
	err := c.post(ctx, "/logout", nil, token, nil)
	c.emit(Event{Type: SignedOut})
	return err
}

// GetUser validates a bearer token against the provider.
func (c *Client) GetUser(ctx context.Context, token string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user", nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, token)

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, readError(res)
	}
	var u User
	if err := json.NewDecoder(res.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("auth provider: decode user: %w", err)
	}
	return &u, nil
}

// Refresh rotates the session using the refresh token and emits
// token_refreshed.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var sess Session
	err := c.post(ctx, "/token?grant_type=refresh_token",
		map[string]string{"refresh_token": refreshToken}, "", &sess)
	if err != nil {
		return nil, err
	}
	c.adopt(&sess)
	c.emit(Event{Type: TokenRefreshed, Session: &sess})
	return &sess, nil
}

// adopt stores the session and arms the refresh timer at expiry minus margin.
func (c *Client) adopt(sess *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cur = sess
	if c.refresh != nil {
		c.refresh.Stop()
		c.refresh = nil
	}
	if sess.RefreshToken == "" || sess.ExpiresIn <= 0 {
		return
	}

	wait := time.Duration(sess.ExpiresIn)*time.Second - c.margin
	if wait < time.Second {
		wait = time.Second
	}
	rt := sess.RefreshToken
	c.refresh = time.AfterFunc(wait, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := c.Refresh(ctx, rt); err != nil {
			log.Printf("level=warn msg=\"token refresh failed\" err=%v", err)
			c.drop()
			c.emit(Event{Type: SignedOut})
		}
	})
}

func (c *Client) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = nil
	if c.refresh != nil {
		c.refresh.Stop()
		c.refresh = nil
	}
}

func (c *Client) emit(e Event) {
	select {
	case c.events <- e:
	default:
		// drop if slow
	}
}

func (c *Client) post(ctx context.Context, path string, body any, token string, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	c.setHeaders(req, token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return readError(res)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("auth provider: decode response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, token string) {
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func readError(res *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))

	var payload struct {
		Msg         string `json:"msg"`
		Message     string `json:"message"`
		Description string `json:"error_description"`
	}
	_ = json.Unmarshal(b, &payload)

	msg := payload.Msg
	if msg == "" {
		msg = payload.Message
	}
	if msg == "" {
		msg = payload.Description
	}
	if msg == "" {
		msg = res.Status
	}
	return &Error{Status: res.StatusCode, Message: msg}
}
