package services

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/CrowderSoup/studyboard/config"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is the signed-in owner carried by a token.
type Identity struct {
	OwnerID string `json:"ownerId"`
	Email   string `json:"email"`
}

type ownerClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type magicToken struct {
	email   string
	expires time.Time
}

// AuthService issues one-time login links and the owner tokens they are
// exchanged for.
type AuthService struct {
	log       *log.Logger
	jwtSecret []byte
	tokenTTL  time.Duration
	linkTTL   time.Duration
	smtp      config.SMTPConfig
	now       func() time.Time

	mu     sync.Mutex
	tokens map[string]magicToken
}

func NewAuthService(cfg *config.Config, logger *log.Logger) *AuthService {
	return &AuthService{
		log:       logger,
		jwtSecret: []byte(cfg.JWTSecret),
		tokenTTL:  cfg.TokenTTL,
		linkTTL:   cfg.MagicLinkTTL,
		smtp:      cfg.SMTP,
		now:       time.Now,
		tokens:    make(map[string]magicToken),
	}
}

// OwnerID derives the stable owner id for an email address.
func OwnerID(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String()
}

// GenerateMagicLink creates a one-time token and email magic link
func (s *AuthService) GenerateMagicLink(email string, baseURL string) (string, error) {
	token, err := generateSecureToken(32)
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
	s.tokens[token] = magicToken{email: strings.TrimSpace(email), expires: now.Add(s.linkTTL)}
	s.mu.Unlock()

	magicLink := fmt.Sprintf("%s/api/auth/magic-link?token=%s", baseURL, token)

	if s.smtp.Host != "" {
		if err := s.sendMagicLinkEmail(email, magicLink); err != nil {
			s.log.WithError(err).WithField("email", email).Warn("Failed to send magic link email")
		}
	}

	// For development, return the magic link directly
	return magicLink, nil
}

// VerifyMagicLinkToken consumes a one-time token and returns the associated email
func (s *AuthService) VerifyMagicLinkToken(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mt, ok := s.tokens[token]
	if !ok {
		return "", ErrInvalidToken
	}
	delete(s.tokens, token)
	if s.now().After(mt.expires) {
		return "", ErrInvalidToken
	}
	return mt.email, nil
}

// CreateJWT signs an owner token for email. The subject is the owner id.
func (s *AuthService) CreateJWT(email string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ownerClaims{
		Email: strings.TrimSpace(email),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   OwnerID(email),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// VerifyJWT checks an owner token and returns its identity.
func (s *AuthService) VerifyJWT(tokenString string) (Identity, error) {
	var claims ownerClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return Identity{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.Subject == "" {
		return Identity{}, errors.New("subject claim missing")
	}
	return Identity{OwnerID: claims.Subject, Email: claims.Email}, nil
}

func generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (s *AuthService) sendMagicLinkEmail(to, magicLink string) error {
	if s.smtp.Host == "" || s.smtp.Port == "" || s.smtp.Username == "" || s.smtp.Password == "" {
		return errors.New("SMTP not fully configured")
	}

	auth := smtp.PlainAuth("", s.smtp.Username, s.smtp.Password, s.smtp.Host)

	from := s.smtp.From
	if from == "" {
		from = s.smtp.Username
	}

	subject := "Your Studyboard login link"
	body := fmt.Sprintf("Click the link below to open your study dashboard:\n\n%s\n\nThe link works once and expires in %s. If you didn't request it, you can ignore this email.", magicLink, s.linkTTL)
	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", from, to, subject, body)

	addr := s.smtp.Host + ":" + s.smtp.Port
	if err := smtp.SendMail(addr, auth, from, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
