// Package auth registers users and issues the HS256 tokens that gate the API.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/R3E-Network/mintix/internal/app/domain/user"
	"github.com/R3E-Network/mintix/internal/app/storage"
	svcerrors "github.com/R3E-Network/mintix/internal/errors"
	"github.com/R3E-Network/mintix/pkg/logger"
)

// DefaultTokenTTL is the token lifetime when none is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Claims are carried by every issued token.
type Claims struct {
	Username string `json:"username"`
	// Password is a fingerprint of the stored hash, never the hash itself.
	Password string `json:"pwd"`
	jwt.RegisteredClaims
}

// Service implements signup, login and token verification.
type Service struct {
	users  storage.UserStore
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
	log    *logger.Logger
}

// New constructs the auth service. secret must be non-empty.
func New(users storage.UserStore, secret string, ttl time.Duration, log *logger.Logger) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Service{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
		log:    log,
	}, nil
}

// Signup registers a user with a bcrypt-hashed password.
func (s *Service) Signup(ctx context.Context, username, password, email string) (user.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || password == "" || email == "" {
		return user.User{}, svcerrors.Validation("username, password and email are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return user.User{}, svcerrors.Validation("email is not a valid address")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return user.User{}, svcerrors.Validation("password is too long")
		}
		return user.User{}, svcerrors.Internal("failed to hash password", err)
	}

	created, err := s.users.CreateUser(ctx, user.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return user.User{}, svcerrors.Validationf("username %s is already taken", username)
		}
		return user.User{}, svcerrors.Persistence("failed to create user", err)
	}
	s.log.WithContext(ctx).WithField("username", created.Username).Info("user registered")
	return created, nil
}

// Login checks credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", svcerrors.Validation("username and password are required")
	}
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", svcerrors.Unauthorized("invalid username or password")
		}
		return "", svcerrors.Persistence("failed to load user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.WithContext(ctx).WithField("username", username).Warn("login rejected")
		return "", svcerrors.Unauthorized("invalid username or password")
	}
	return s.IssueToken(u)
}

// IssueToken signs a token for u.
func (s *Service) IssueToken(u user.User) (string, error) {
	now := s.now()
	claims := Claims{
		Username: u.Username,
		Password: Fingerprint(u.PasswordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", svcerrors.Internal("failed to sign token", err)
	}
	return token, nil
}

// VerifyToken checks signature and expiry. There is no revocation.
func (s *Service) VerifyToken(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, svcerrors.Forbidden("no token provided")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		if err == nil {
			err = errors.New("token is not valid")
		}
		return nil, svcerrors.InvalidToken(err)
	}
	if claims.Username == "" {
		return nil, svcerrors.InvalidToken(errors.New("token has no username"))
	}
	return claims, nil
}

// Fingerprint hashes a stored password hash for embedding in tokens.
func Fingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:])
}
