package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/easyapt/easyapt/internal/platform/auth"
	"github.com/easyapt/easyapt/internal/platform/captcha"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password does not meet the security policy")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account temporarily locked after repeated failed logins")
	ErrSessionExpired     = errors.New("session expired due to inactivity")
)

const (
	maxFailedLogins = 5
	lockoutDuration = 15 * time.Minute
	minPasswordLen  = 12
)

// Notifier is the subset of the notification dispatcher the identity service
// needs. Delivery is best-effort; the dispatcher never returns errors here.
type Notifier interface {
	SendWelcome(ctx context.Context, email, name string)
}

type Service struct {
	repo        Repository
	hasher      *PasswordHasher
	tokens      *auth.TokenIssuer
	captcha     captcha.Verifier
	notifier    Notifier
	idleTimeout time.Duration
	logger      zerolog.Logger
}

func NewService(repo Repository, hasher *PasswordHasher, tokens *auth.TokenIssuer, verifier captcha.Verifier, notifier Notifier, idleTimeout time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		hasher:      hasher,
		tokens:      tokens,
		captcha:     verifier,
		notifier:    notifier,
		idleTimeout: idleTimeout,
		logger:      logger.With().Str("component", "identity").Logger(),
	}
}

// Register creates a patient account and fires the welcome email.
func (s *Service) Register(ctx context.Context, email, password, role string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, errors.New("invalid email address")
	}
	if role == "" {
		role = RolePatient
	}
	if !validRoles[role] {
		return nil, errors.New("invalid role: " + role)
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &User{Email: email, PasswordHash: hash, Role: role}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.notifier.SendWelcome(ctx, user.Email, user.Email)
	return user, nil
}

// Login verifies credentials and returns a signed access token. Repeated
// failures lock the account for lockoutDuration. The CAPTCHA outcome is
// advisory: a failed or unavailable check is logged but does not block the
// attempt.
func (s *Service) Login(ctx context.Context, email, password, captchaToken, remoteIP string) (string, *User, error) {
	s.checkCaptcha(ctx, captchaToken, remoteIP)

	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	now := time.Now().UTC()
	if user.Locked(now) {
		remaining := int(user.LockedUntil.Sub(now).Minutes()) + 1
		return "", nil, fmt.Errorf("%w: try again in %d minute(s)", ErrAccountLocked, remaining)
	}

	ok, needsRehash, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("password hash unreadable")
		return "", nil, ErrInvalidCredentials
	}
	if !ok {
		return "", nil, s.recordFailure(ctx, user, now)
	}

	if needsRehash {
		if hash, err := s.hasher.Hash(password); err == nil {
			user.PasswordHash = hash
			s.logger.Info().Str("user_id", user.ID.String()).Msg("upgraded legacy password hash")
		}
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastActive = &now
	if err := s.repo.Update(ctx, user); err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *Service) recordFailure(ctx context.Context, user *User, now time.Time) error {
	user.FailedLoginAttempts++
	if user.FailedLoginAttempts >= maxFailedLogins {
		lockedUntil := now.Add(lockoutDuration)
		user.LockedUntil = &lockedUntil
		user.FailedLoginAttempts = 0
		s.logger.Warn().Str("user_id", user.ID.String()).Time("locked_until", lockedUntil).Msg("account locked")
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return err
	}
	if user.LockedUntil != nil {
		return ErrAccountLocked
	}
	return ErrInvalidCredentials
}

func (s *Service) checkCaptcha(ctx context.Context, token, remoteIP string) {
	if s.captcha == nil {
		return
	}
	ok, err := s.captcha.Verify(ctx, token, remoteIP)
	if err != nil {
		s.logger.Warn().Err(err).Msg("captcha verification unavailable")
		return
	}
	if !ok {
		s.logger.Warn().Str("remote_ip", remoteIP).Msg("captcha verification failed")
	}
}

// Touch enforces the inactivity timeout and stamps the user's activity. It
// satisfies the auth middleware's SessionTracker.
func (s *Service) Touch(ctx context.Context, userID uuid.UUID) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if user.LastActive != nil && now.Sub(*user.LastActive) > s.idleTimeout {
		return ErrSessionExpired
	}
	return s.repo.TouchLastActive(ctx, userID, now)
}

// GetUser loads an account by id.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// validatePassword enforces the account password policy: at least 12
// characters with lowercase, uppercase, digit, and special characters.
func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return ErrWeakPassword
	}
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	if !lower || !upper || !digit || !special {
		return ErrWeakPassword
	}
	return nil
}
