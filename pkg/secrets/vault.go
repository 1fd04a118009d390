package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"companion-engine/backend/pkg/logger"

	vault "github.com/hashicorp/vault/api"
)

var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

const secretCacheTTL = 5 * time.Minute

// VaultConfig comes from VAULT_* environment variables.
type VaultConfig struct {
	Address     string
	Token       string
	Namespace   string
	SecretsPath string
	Enabled     bool
	Timeout     time.Duration
	MaxRetries  int
}

func vaultConfigFromEnv() VaultConfig {
	cfg := VaultConfig{
		Address:     os.Getenv("VAULT_ADDR"),
		Token:       os.Getenv("VAULT_TOKEN"),
		Namespace:   os.Getenv("VAULT_NAMESPACE"),
		SecretsPath: os.Getenv("VAULT_SECRETS_PATH"),
		Enabled:     true,
		Timeout:     10 * time.Second,
		MaxRetries:  3,
	}
	if enabled := os.Getenv("VAULT_ENABLED"); enabled != "" {
		cfg.Enabled = enabled == "true" || enabled == "1" || enabled == "yes"
	}
	if cfg.SecretsPath == "" {
		cfg.SecretsPath = "secret/data/companion-engine"
	}
	return cfg
}

// VaultManager reads secrets from a KV v2 mount, caching resolved
// values for a short window and falling back to environment variables
// when a secret is absent or Vault is disabled.
type VaultManager struct {
	client *vault.Client
	config VaultConfig
	mu     sync.RWMutex
	cache  map[string]string
	log    *logger.Logger
}

func NewVaultManager(log *logger.Logger) (*VaultManager, error) {
	cfg := vaultConfigFromEnv()

	m := &VaultManager{config: cfg, cache: make(map[string]string), log: log}
	if !cfg.Enabled {
		return m, nil
	}

	if cfg.Address == "" {
		return nil, ErrNoVaultAddress
	}
	if cfg.Token == "" {
		return nil, ErrNoVaultToken
	}

	clientConfig := vault.DefaultConfig()
	clientConfig.Address = cfg.Address
	clientConfig.Timeout = cfg.Timeout
	clientConfig.MaxRetries = cfg.MaxRetries

	client, err := vault.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	m.client = client

	go m.expireCache()
	return m, nil
}

// GetSecret resolves key from cache, then Vault, then the environment.
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	cached, found := m.cache[key]
	m.mu.RUnlock()
	if found {
		return cached, nil
	}

	if !m.config.Enabled {
		return m.fromEnvironment(key)
	}

	value, err := m.fromVault(ctx, key)
	if err != nil {
		if errors.Is(err, ErrSecretNotFound) {
			m.log.Warn("secret not found in vault, falling back to environment", "key", key)
			return m.fromEnvironment(key)
		}
		return "", err
	}

	m.remember(key, value)
	return value, nil
}

// GetSecretWithDefault resolves key, returning defaultValue on any
// failure.
func (m *VaultManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		m.log.Warn("failed to get secret, using default value", "key", key, "error", err.Error())
		return defaultValue
	}
	return value
}

func (m *VaultManager) fromVault(ctx context.Context, key string) (string, error) {
	secret, err := m.client.KVv2("secret").Get(ctx, m.config.SecretsPath)
	if err != nil {
		m.log.Error("failed to read secret from vault", "path", m.config.SecretsPath, "error", err.Error())
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", ErrSecretNotFound
	}
	value, ok := data[key].(string)
	if !ok {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// fromEnvironment maps kebab-case or dotted keys to UPPER_SNAKE env
// names ("genai-api-key" becomes GENAI_API_KEY).
func (m *VaultManager) fromEnvironment(key string) (string, error) {
	envKey := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
	value := os.Getenv(envKey)
	if value == "" {
		return "", ErrSecretNotFound
	}
	m.remember(key, value)
	return value, nil
}

func (m *VaultManager) remember(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
}

// expireCache drops the whole cache on a fixed period so rotated
// secrets get picked up.
func (m *VaultManager) expireCache() {
	ticker := time.NewTicker(secretCacheTTL)
	defer ticker.Stop()
	for range ticker.C {
		m.mu.Lock()
		m.cache = make(map[string]string)
		m.mu.Unlock()
		m.log.Debug("secret cache cleared")
	}
}
