package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const apiTokenAccount = "server.api_token"

// SecretStore reads and writes secrets by service and account.
type SecretStore interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

// secretsFile keeps secrets in a 0600 JSON file shaped
// {"service": {"account": "value"}}.
type secretsFile struct {
	path string
}

// NewSecretsFile returns the secrets store under the data home.
func NewSecretsFile() SecretStore {
	return secretsFile{}
}

func (f secretsFile) file() string {
	if f.path != "" {
		return f.path
	}
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), "voicecheck", "secrets.json")
}

func (f secretsFile) read() (map[string]map[string]string, error) {
	data, err := os.ReadFile(f.file())
	if err != nil {
		return nil, err
	}
	var secrets map[string]map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return secrets, nil
}

func (f secretsFile) Get(service, account string) (string, error) {
	secrets, err := f.read()
	if err != nil {
		return "", fmt.Errorf("secrets not available: %w", err)
	}
	svc, ok := secrets[service]
	if !ok {
		return "", fmt.Errorf("service %q not found", service)
	}
	val, ok := svc[account]
	if !ok {
		return "", fmt.Errorf("account %q not found in service %q", account, service)
	}
	return val, nil
}

func (f secretsFile) Set(service, account, value string) error {
	secrets, _ := f.read()
	if secrets == nil {
		secrets = make(map[string]map[string]string)
	}
	if secrets[service] == nil {
		secrets[service] = make(map[string]string)
	}
	secrets[service][account] = value

	p := f.file()
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, out, 0o600)
}

// GetAPIToken returns the bearer token guarding the HTTP API. The
// VOICECHECK_API_TOKEN variable wins; otherwise the stored token is used,
// and a fresh one is generated and stored on first use.
func GetAPIToken(store SecretStore) (string, error) {
	if tok := os.Getenv("VOICECHECK_API_TOKEN"); tok != "" {
		return tok, nil
	}
	if tok, err := store.Get(secretsService, apiTokenAccount); err == nil && tok != "" {
		return tok, nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating API token: %w", err)
	}
	tok := hex.EncodeToString(buf)
	if err := store.Set(secretsService, apiTokenAccount, tok); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return tok, nil
}
