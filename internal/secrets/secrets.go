package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// “Service” groups the app’s secrets in the OS keychain.
	KeyringService = "apptrack"
)

// TokenAccount names the keychain entry holding the bearer token for one
// identity.
func TokenAccount(identity string) string {
	return fmt.Sprintf("apptrack:token:%s", identity)
}

// IMAPAccount names the keychain entry holding the mailbox password.
func IMAPAccount(username, host string) string {
	return fmt.Sprintf("apptrack:imap:%s@%s", username, host)
}

func GetToken(identity string) (string, error) {
	if strings.TrimSpace(identity) == "" {
		return "", errors.New("identity is empty")
	}
	tok, err := keyring.Get(KeyringService, TokenAccount(identity))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(tok) == "" {
		return "", errors.New("stored token is empty")
	}
	return tok, nil
}

func SetToken(identity, token string) error {
	if strings.TrimSpace(identity) == "" {
		return errors.New("identity is empty")
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("token is empty")
	}
	return keyring.Set(KeyringService, TokenAccount(identity), token)
}

func DeleteToken(identity string) error {
	if strings.TrimSpace(identity) == "" {
		return errors.New("identity is empty")
	}
	return keyring.Delete(KeyringService, TokenAccount(identity))
}

func GetIMAPPassword(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("keyring account name is empty")
	}
	pw, err := keyring.Get(KeyringService, account)
	if err == nil && strings.TrimSpace(pw) != "" {
		return pw, nil
	}
	return "", errors.New("IMAP password not found (set it via the secrets endpoint)")
}

func SetIMAPPassword(account, password string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, account, password)
}
