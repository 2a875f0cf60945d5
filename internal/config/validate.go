package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return errors.New("config validation failed:\n- " + strings.Join(v.Errors, "\n- "))
}

// NormalizeAndValidate returns a normalized copy plus the validation result.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	out.Auth.BaseURL = strings.TrimRight(strings.TrimSpace(out.Auth.BaseURL), "/")
	out.Notify.Endpoint = strings.TrimSpace(out.Notify.Endpoint)
	out.Mailscan.Username = strings.TrimSpace(out.Mailscan.Username)
	out.Mailscan.IMAPHost = strings.TrimSpace(out.Mailscan.IMAPHost)
	if out.Mailscan.Mailbox == "" {
		out.Mailscan.Mailbox = "INBOX"
	}

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	if out.Auth.BaseURL == "" {
		res.addWarn("auth.base_url is empty; only cached sessions will work until it is set.")
	} else if u, err := url.Parse(out.Auth.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		res.addErr("auth.base_url is not a valid URL")
	}
	if out.Auth.RefreshMarginSeconds < 0 {
		res.addErr("auth.refresh_margin_seconds must be >= 0")
	}

	if out.Notify.Enabled {
		if out.Notify.Endpoint == "" {
			res.addErr("notify.endpoint is required when notify.enabled=true")
		} else if u, err := url.Parse(out.Notify.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			res.addErr("notify.endpoint is not a valid URL")
		}
		if out.Notify.RatePerSec <= 0 {
			res.addErr("notify.rate_per_sec must be > 0")
		}
		if out.Notify.TimeoutSeconds <= 0 {
			res.addErr("notify.timeout_seconds must be > 0")
		}
	}

	if out.Enrich.Enabled && out.Enrich.RatePerSec <= 0 {
		res.addErr("enrich.rate_per_sec must be > 0")
	}

	// mailbox required fields if enabled (password is not here; it's in keychain)
	if out.Mailscan.Enabled {
		if out.Mailscan.IMAPHost == "" {
			res.addErr("mailscan.imap_host is required when mailscan.enabled=true")
		}
		if out.Mailscan.IMAPPort == 0 {
			res.addErr("mailscan.imap_port is required when mailscan.enabled=true")
		}
		if out.Mailscan.Username == "" {
			res.addErr("mailscan.username is required when mailscan.enabled=true")
		}
		if out.Mailscan.PollSeconds <= 0 {
			res.addErr("mailscan.poll_seconds must be > 0")
		} else if out.Mailscan.PollSeconds < 60 {
			res.addWarn("mailscan.poll_seconds is very low (%d) and may trip provider rate limits.", out.Mailscan.PollSeconds)
		}
		if out.Mailscan.MaxMessages <= 0 {
			res.addWarn("mailscan.max_messages is 0; each scan will fetch nothing.")
		}
	}

	return out, res
}
