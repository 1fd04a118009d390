package jwt

import (
	"time"
)

// Service signs and validates tokens with an injected secret, so the
// secret can come from the vault-backed config instead of the process
// environment.
type Service struct {
	secretKey string
	expiry    time.Duration
}

func NewService(secretKey string, expiry time.Duration) *Service {
	if secretKey == "" {
		secretKey = envSecret()
	}
	if expiry == 0 {
		expiry = 24 * time.Hour
	}
	return &Service{secretKey: secretKey, expiry: expiry}
}

// GenerateToken issues a token for the user with the service's expiry.
func (s *Service) GenerateToken(userID uint, email string) (string, error) {
	return sign(userID, email, s.secretKey, s.expiry)
}

// ValidateToken parses and verifies a token issued by this service.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return parse(tokenString, s.secretKey)
}
