package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"andromeda-healthcare/internal/model"
	"andromeda-healthcare/internal/repository"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailExists        = errors.New("email already in use")
	ErrUsernameExists     = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")

	// ErrUserNotFound and ErrInvalidPassword both match ErrInvalidCredentials,
	// so a caller that must not reveal which one happened can check only that.
	ErrUserNotFound    = fmt.Errorf("%w: user not found", ErrInvalidCredentials)
	ErrInvalidPassword = fmt.Errorf("%w: password mismatch", ErrInvalidCredentials)
)

// bcrypt ignores input past 72 bytes.
const maxPasswordBytes = 72

// ValidationError describes a rejected input field. It matches ErrInvalidInput.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

// LoginLimiter tracks failed logins per email.
type LoginLimiter interface {
	Locked(ctx context.Context, email string) (bool, error)
	RecordFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event model.AuthEvent) error
}

type AuthOptions struct {
	BcryptCost        int
	MinPasswordLength int
	Limiter           LoginLimiter
	Publisher         EventPublisher
	Logger            *slog.Logger
	Now               func() time.Time
}

// AuthService registers and authenticates users. It holds no per-request
// state and is safe for concurrent use.
type AuthService struct {
	userRepo          UserStore
	bcryptCost        int
	minPasswordLength int
	limiter           LoginLimiter
	publisher         EventPublisher
	log               *slog.Logger
	now               func() time.Time

	// compared against when the email is unknown so both failure paths pay
	// for one bcrypt comparison.
	dummyHash []byte
}

type RegisterInput struct {
	FullName   string
	Email      string
	Username   string
	Password   string
	RemoteAddr string
}

type LoginInput struct {
	Email      string
	Password   string
	RemoteAddr string
}

func NewAuthService(userRepo UserStore, opts AuthOptions) (*AuthService, error) {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("andromeda-placeholder"), opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare placeholder hash failed: %w", err)
	}

	return &AuthService{
		userRepo:          userRepo,
		bcryptCost:        opts.BcryptCost,
		minPasswordLength: opts.MinPasswordLength,
		limiter:           opts.Limiter,
		publisher:         opts.Publisher,
		log:               opts.Logger,
		now:               opts.Now,
		dummyHash:         dummy,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	fullName := strings.TrimSpace(input.FullName)
	email := normalizeEmail(input.Email)
	username := strings.TrimSpace(input.Username)

	if err := s.validateRegistration(fullName, email, username, input.Password); err != nil {
		return nil, err
	}

	existingByEmail, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existingByEmail != nil {
		return nil, ErrEmailExists
	}

	existingByName, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existingByName != nil {
		return nil, ErrUsernameExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	user := &model.User{
		FullName:     fullName,
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration; the unique index decided.
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, s.conflictFor(ctx, email)
		}
		return nil, err
	}

	s.log.InfoContext(ctx, "user registered", slog.Uint64("user_id", uint64(user.ID)))
	s.publish(ctx, model.EventUserRegistered, &user.ID, email, input.RemoteAddr)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*model.User, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, &ValidationError{Field: "email", Message: "Email is required"}
	}
	if input.Password == "" {
		return nil, &ValidationError{Field: "password", Message: "Password is required"}
	}

	if s.isLocked(ctx, email) {
		s.publish(ctx, model.EventUserLoginFailed, nil, email, input.RemoteAddr)
		return nil, ErrTooManyAttempts
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(input.Password))
		s.loginFailed(ctx, nil, email, input.RemoteAddr)
		return nil, ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.log.WarnContext(ctx, "compare password hash failed",
				slog.Uint64("user_id", uint64(user.ID)),
				slog.Any("error", err),
			)
		}
		s.loginFailed(ctx, &user.ID, email, input.RemoteAddr)
		return nil, ErrInvalidPassword
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, email); err != nil {
			s.log.WarnContext(ctx, "reset login failures failed", slog.Any("error", err))
		}
	}
	s.log.InfoContext(ctx, "user logged in", slog.Uint64("user_id", uint64(user.ID)))
	s.publish(ctx, model.EventUserLoginSucceeded, &user.ID, email, input.RemoteAddr)
	return user, nil
}

func (s *AuthService) validateRegistration(fullName, email, username, password string) error {
	switch {
	case fullName == "":
		return &ValidationError{Field: "fullName", Message: "Full name is required"}
	case email == "":
		return &ValidationError{Field: "email", Message: "Email is required"}
	case !isEmailShape(email):
		return &ValidationError{Field: "email", Message: "Email address is invalid"}
	case username == "":
		return &ValidationError{Field: "username", Message: "Username is required"}
	case strings.TrimSpace(password) == "":
		return &ValidationError{Field: "password", Message: "Password is required"}
	case len(password) > maxPasswordBytes:
		return &ValidationError{Field: "password", Message: "Password is too long"}
	case utf8.RuneCountInString(password) < s.minPasswordLength:
		return &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("Password must be at least %d characters", s.minPasswordLength),
		}
	}
	return nil
}

func (s *AuthService) conflictFor(ctx context.Context, email string) error {
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("classify duplicate registration failed: %w", err)
	}
	if existing != nil {
		return ErrEmailExists
	}
	return ErrUsernameExists
}

// isLocked fails open: a limiter outage must not lock everyone out.
func (s *AuthService) isLocked(ctx context.Context, email string) bool {
	if s.limiter == nil {
		return false
	}
	locked, err := s.limiter.Locked(ctx, email)
	if err != nil {
		s.log.WarnContext(ctx, "check login lock failed", slog.Any("error", err))
		return false
	}
	return locked
}

func (s *AuthService) loginFailed(ctx context.Context, userID *uint, email, remoteAddr string) {
	if s.limiter != nil {
		if err := s.limiter.RecordFailure(ctx, email); err != nil {
			s.log.WarnContext(ctx, "record login failure failed", slog.Any("error", err))
		}
	}
	s.publish(ctx, model.EventUserLoginFailed, userID, email, remoteAddr)
}

func (s *AuthService) publish(ctx context.Context, eventType string, userID *uint, email, remoteAddr string) {
	if s.publisher == nil {
		return
	}
	event := model.AuthEvent{
		Type:       eventType,
		UserID:     userID,
		Email:      email,
		RemoteAddr: remoteAddr,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WarnContext(ctx, "publish auth event failed",
			slog.String("type", eventType),
			slog.Any("error", err),
		)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isEmailShape accepts local@domain with exactly one '@', both parts
// non-empty and no whitespace. Single-label domains such as localhost pass.
func isEmailShape(email string) bool {
	if strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	local, domain, ok := strings.Cut(email, "@")
	return ok && local != "" && domain != "" && !strings.Contains(domain, "@")
}
