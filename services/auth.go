package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/CrowderSoup/launchpad/launch"
)

const (
	defaultTokenTTL     = 7 * 24 * time.Hour
	defaultMagicLinkTTL = 15 * time.Minute
)

type magicToken struct {
	user    launch.User
	expires time.Time
}

// AuthService signs users in with one-time magic links and keeps them
// signed in with JWTs.
type AuthService struct {
	mu        sync.Mutex
	tokens    map[string]magicToken
	jwtSecret []byte
	mailer    Mailer
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService signs tokens with secret. A nil mailer only returns links.
func NewAuthService(secret string, mailer Mailer, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		tokens:    make(map[string]magicToken),
		jwtSecret: []byte(secret),
		mailer:    mailer,
		logger:    logger,
		now:       time.Now,
	}
}

// GenerateMagicLink creates a one-time token and emails the magic link
func (s *AuthService) GenerateMagicLink(ctx context.Context, user launch.User, baseURL string) (string, error) {
	token, err := s.generateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now()
	s.mu.Lock()
	for t, mt := range s.tokens {
		if now.After(mt.expires) {
			delete(s.tokens, t)
		}
	}
	s.tokens[token] = magicToken{user: user, expires: now.Add(defaultMagicLinkTTL)}
	s.mu.Unlock()

	magicLink := fmt.Sprintf("%s/api/auth/magic-link?token=%s", baseURL, token)

	if s.mailer != nil {
		err := s.mailer.Send(ctx, Mail{
			To:      user.Email,
			Subject: "Your LaunchPad sign-in link",
			Message: fmt.Sprintf(`Click the link below to sign in to LaunchPad:<br><a href="%s">%s</a><br>`+
				`If you didn't request this link, you can safely ignore this email.`,
				html.EscapeString(magicLink), html.EscapeString(magicLink)),
		})
		if err != nil {
			s.logger.Warn("failed to send magic link email", slog.String("to", user.Email), slog.String("error", err.Error()))
		}
	}

	// For development, return the magic link directly
	return magicLink, nil
}

// VerifyMagicLinkToken consumes a one-time token and returns its user
func (s *AuthService) VerifyMagicLinkToken(token string) (launch.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mt, exists := s.tokens[token]
	if !exists {
		return launch.User{}, errors.New("invalid or expired token")
	}
	delete(s.tokens, token)

	if s.now().After(mt.expires) {
		return launch.User{}, errors.New("invalid or expired token")
	}
	return mt.user, nil
}

// CreateJWT generates a JWT token for a user
func (s *AuthService) CreateJWT(user launch.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": user.Email,
		"name":  user.Name,
		"exp":   s.now().Add(defaultTokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// VerifyJWT verifies a JWT token and returns the user it was issued to
func (s *AuthService) VerifyJWT(tokenString string) (launch.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return launch.User{}, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return launch.User{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return launch.User{}, errors.New("invalid token claims")
	}

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return launch.User{}, errors.New("email claim missing")
	}
	name, _ := claims["name"].(string)

	return launch.User{Name: name, Email: email}, nil
}

// Session resolves a bearer token into a session. Any failure yields an
// unauthenticated session.
func (s *AuthService) Session(tokenString string) launch.Session {
	user, err := s.VerifyJWT(tokenString)
	if err != nil {
		return launch.Session{Status: launch.AuthUnauthenticated}
	}
	return launch.AuthenticatedSession(user)
}

// Helper to generate a secure random token
func (s *AuthService) generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
