package usecases

import (
	"errors"
	"fmt"
	"time"

	"gartenconnect/internal/entities"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAuthDisabled       = errors.New("authentication is not configured")
)

type AuthUsecase struct {
	admin     entities.Admin
	jwtSecret []byte
	now       func() time.Time
}

func NewAuthUsecase(username, passwordHash, secret string) *AuthUsecase {
	return &AuthUsecase{
		admin: entities.Admin{
			Username:     username,
			PasswordHash: passwordHash,
			Role:         "admin",
		},
		jwtSecret: []byte(secret),
		now:       time.Now,
	}
}

// Enabled reports whether a signing secret is configured
func (uc *AuthUsecase) Enabled() bool {
	return len(uc.jwtSecret) > 0
}

func (uc *AuthUsecase) Login(username, password string) (string, error) {
	if !uc.Enabled() || uc.admin.PasswordHash == "" {
		return "", ErrAuthDisabled
	}
	if username != uc.admin.Username {
		return "", ErrInvalidCredentials
	}

	err := bcrypt.CompareHashAndPassword([]byte(uc.admin.PasswordHash), []byte(password))
	if err != nil {
		return "", ErrInvalidCredentials
	}

	// Generate JWT
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  uc.admin.Username,
		"role": uc.admin.Role,
		"exp":  uc.now().Add(tokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(uc.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// HashPassword produces a value suitable for ADMIN_PASSWORD_HASH
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
