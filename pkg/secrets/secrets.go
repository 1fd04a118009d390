// Package secrets resolves credentials from Vault when it is
// configured and from the process environment otherwise, so local
// development needs nothing beyond a .env file.
package secrets

import (
	"context"
	"errors"
	"sync"

	"companion-engine/backend/pkg/logger"
)

// Manager resolves named secrets.
type Manager interface {
	GetSecret(ctx context.Context, key string) (string, error)
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

var ErrManagerNotInitialized = errors.New("secrets manager not initialized")

var (
	defaultManager Manager
	managerOnce    sync.Once
)

// Init wires the package-level manager. Safe to call more than once;
// only the first call constructs anything.
func Init(log *logger.Logger) error {
	var err error
	managerOnce.Do(func() {
		manager, initErr := NewVaultManager(log)
		if initErr != nil {
			err = initErr
			return
		}
		defaultManager = manager
	})
	return err
}

// GetSecret resolves key through the default manager.
func GetSecret(ctx context.Context, key string) (string, error) {
	if defaultManager == nil {
		return "", ErrManagerNotInitialized
	}
	return defaultManager.GetSecret(ctx, key)
}

// GetSecretWithDefault resolves key, returning defaultValue when the
// manager is missing or the lookup fails.
func GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	if defaultManager == nil {
		return defaultValue
	}
	return defaultManager.GetSecretWithDefault(ctx, key, defaultValue)
}

// SetManager replaces the default manager, for tests.
func SetManager(manager Manager) {
	defaultManager = manager
}
