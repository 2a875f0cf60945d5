package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	_, vr := NormalizeAndValidate(Default())
	assert.True(t, vr.OK(), "errors: %v", vr.Errors)
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.App.Port = 0

	_, vr := NormalizeAndValidate(cfg)
	assert.False(t, vr.OK())
}

func TestValidateMailscanRequiredFields(t *testing.T) {
	cfg := Default()
	cfg.Mailscan.Enabled = true

	_, vr := NormalizeAndValidate(cfg)
	require.False(t, vr.OK())
	assert.Contains(t, vr.Errors, "mailscan.imap_host is required when mailscan.enabled=true")
	assert.Contains(t, vr.Errors, "mailscan.username is required when mailscan.enabled=true")
}

func TestValidateNotifyEndpoint(t *testing.T) {
	cfg := Default()
	cfg.Notify.Enabled = true

	_, vr := NormalizeAndValidate(cfg)
	assert.False(t, vr.OK())

	cfg.Notify.Endpoint = "https://example.com/notifications"
	_, vr = NormalizeAndValidate(cfg)
	assert.True(t, vr.OK(), "errors: %v", vr.Errors)
}

func TestNormalizeTrimsBaseURL(t *testing.T) {
	cfg := Default()
	cfg.Auth.BaseURL = " https://auth.example.com/auth/v1/ "

	out, vr := NormalizeAndValidate(cfg)
	require.True(t, vr.OK(), "errors: %v", vr.Errors)
	assert.Equal(t, "https://auth.example.com/auth/v1", out.Auth.BaseURL)
}

func TestSaveAtomicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	cfg := Default()
	cfg.App.Port = 40001
	require.NoError(t, SaveAtomic(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 40001, loaded.App.Port)
	assert.Equal(t, cfg.Mailscan.Mailbox, loaded.Mailscan.Mailbox)
}

func TestSaveAtomicKeepsBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	require.NoError(t, SaveAtomic(path, Default()))
	cfg := Default()
	cfg.App.Port = 40002
	require.NoError(t, SaveAtomic(path, cfg))

	_, err := os.Stat(path + ".bak")
	assert.NoError(t, err)
}

func TestEnsureUserConfigCreatesOnce(t *testing.T) {
	dir := t.TempDir()

	p1, err := EnsureUserConfig(dir)
	require.NoError(t, err)

	cfg, err := Load(p1)
	require.NoError(t, err)
	cfg.App.Port = 40003
	require.NoError(t, SaveAtomic(p1, cfg))

	// a second bootstrap must not clobber the user's edits
	p2, err := EnsureUserConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	loaded, err := Load(p2)
	require.NoError(t, err)
	assert.Equal(t, 40003, loaded.App.Port)
}
