package services

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// AuthService verifies the single config-provisioned admin account.
type AuthService struct {
	adminEmail        string
	adminPasswordHash string
	jwtService        *JWTService
}

func NewAuthService(adminEmail, adminPasswordHash string, jwtService *JWTService) *AuthService {
	return &AuthService{
		adminEmail:        adminEmail,
		adminPasswordHash: adminPasswordHash,
		jwtService:        jwtService,
	}
}

var ErrInvalidCredentials = errors.New("invalid email or password")

// Login checks the credentials against the configured admin account and
// returns a signed JWT on success.
func (s *AuthService) Login(email, password string) (string, error) {
	if email != s.adminEmail {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.adminPasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.jwtService.GenerateToken(email)
}

// HashPassword hashes a password using bcrypt. Used by provisioning tooling
// to produce ADMIN_PASSWORD_HASH values.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}
