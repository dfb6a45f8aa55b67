package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/credittasks/backend/internal/auth/autherr"
	"github.com/credittasks/backend/internal/ledger"
	"github.com/credittasks/backend/internal/models"
	"github.com/credittasks/backend/internal/store"
)

const MinPasswordLength = 8

var (
	ErrDuplicateAccount   = autherr.ErrDuplicateAccount
	ErrInvalidCredentials = autherr.ErrInvalidCredentials
	ErrInvalidToken       = autherr.ErrInvalidToken
	ErrInvalidInput       = autherr.ErrInvalidInput
)

type Config struct {
	Secret     []byte
	TokenTTL   time.Duration
	Issuer     string
	Audience   string
	BcryptCost int
}

// Token is a signed bearer token and its expiry.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service interface {
	Register(ctx context.Context, email, username, password string) (*models.Account, *Token, error)
	Login(ctx context.Context, emailOrUsername, password string) (*models.Account, *Token, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, error)
}

type service struct {
	repo Repository
	cfg  Config
	now  func() time.Time
}

func NewService(repo Repository, cfg Config) *service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &service{repo: repo, cfg: cfg, now: time.Now}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

// Register creates an account with the starting balance and records the
// signup grant in the credit ledger.
func (s *service) Register(ctx context.Context, email, username, password string) (*models.Account, *Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if email == "" || username == "" || utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, nil, ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	acc := &models.Account{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Credits:      ledger.StartingCredits,
		RegisteredAt: now,
	}
	signup := ledger.NewEntry(acc, nil, models.CreditEntrySignupGrant, ledger.StartingCredits, now)
	if err := s.repo.CreateAccount(ctx, acc, signup); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, nil, ErrDuplicateAccount
		}
		return nil, nil, err
	}
	tok, err := s.issueToken(acc.ID)
	if err != nil {
		return nil, nil, err
	}
	return acc, tok, nil
}

func (s *service) Login(ctx context.Context, emailOrUsername, password string) (*models.Account, *Token, error) {
	acc, err := s.repo.GetAccountByLogin(ctx, emailOrUsername)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	tok, err := s.issueToken(acc.ID)
	if err != nil {
		return nil, nil, err
	}
	return acc, tok, nil
}

func (s *service) issueToken(userID uuid.UUID) (*Token, error) {
	now := s.now()
	expires := now.Add(s.cfg.TokenTTL)
	c := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    s.cfg.Issuer,
		ExpiresAt: jwt.NewNumericDate(expires),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	if s.cfg.Audience != "" {
		c.Audience = jwt.ClaimStrings{s.cfg.Audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{Value: signed, ExpiresAt: expires.UTC()}, nil
}

func (s *service) ValidateToken(ctx context.Context, token string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	if s.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.cfg.Audience))
	}
	var c jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return s.cfg.Secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}
