package user

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/cardfree/card-server-go/internal/auth"
)

// Record is one account as stored.
type Record struct {
	Name          string
	Email         string
	Salt          string
	PasswordProof string
	Active        bool
	Admin         bool
	CreatedAt     time.Time
}

// Ban is an active moderation ban. A zero Until means permanent.
type Ban struct {
	Username string
	Reason   string
	BannedBy string
	Until    time.Time
}

// Expired reports whether the ban has lapsed.
func (b Ban) Expired(now time.Time) bool {
	return !b.Until.IsZero() && now.After(b.Until)
}

// Store persists accounts.
type Store interface {
	GetUser(ctx context.Context, name string) (*Record, error)
	CreateUser(ctx context.Context, rec *Record) error
	ActivateUser(ctx context.Context, name string) error
	UpdatePassword(ctx context.Context, name, salt, proof string) error
	SetAdmin(ctx context.Context, name string, admin bool) error
}

// ModerationStore persists bans.
type ModerationStore interface {
	ActiveBan(ctx context.Context, username string) (*Ban, error)
	AddBan(ctx context.Context, ban Ban) error
}

// Store error sentinels, matched with errors.Is.
var (
	ErrUserNotFound = errors.New("user: not found")
	ErrUserExists   = errors.New("user: already exists")
)

// Manager error sentinels.
var (
	ErrLoginFailed  = errors.New("user: login failed")
	ErrNotActivated = errors.New("user: account not activated")
	ErrBanned       = errors.New("user: banned")
	ErrInvalidName  = errors.New("user: invalid username")
	ErrWeakPassword = errors.New("user: password too short")
)

// Policy configures authentication behavior.
type Policy struct {
	// Mode is "open" (guests allowed alongside registered accounts) or
	// "registered" (accounts only).
	Mode string
	// RequireActivation gates fresh registrations behind a token exchange.
	RequireActivation bool
	MinPasswordLength int
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{2,19}$`)

// Manager owns account lookup, registration and credential checks. It never
// sees plaintext passwords at login time; clients submit derived proofs.
type Manager struct {
	store  Store
	mod    ModerationStore
	policy Policy
	logger *zap.Logger

	// fakeSaltSecret makes salt responses for unknown users stable without
	// revealing that the account is missing.
	fakeSaltSecret []byte
}

// NewManager creates a user manager. mod may be nil to disable ban checks.
func NewManager(store Store, mod ModerationStore, policy Policy, logger *zap.Logger) (*Manager, error) {
	if policy.MinPasswordLength < 1 {
		policy.MinPasswordLength = 6
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("user: seed salt secret: %w", err)
	}
	return &Manager{
		store:          store,
		mod:            mod,
		policy:         policy,
		logger:         logger,
		fakeSaltSecret: secret,
	}, nil
}

// GuestsAllowed reports whether unregistered logins are accepted.
func (m *Manager) GuestsAllowed() bool {
	return m.policy.Mode == "open"
}

// Lookup returns the stored account record.
func (m *Manager) Lookup(ctx context.Context, username string) (*Record, error) {
	return m.store.GetUser(ctx, username)
}

// Salt returns the stored salt for a known account and a stable fabricated
// one otherwise, so the response never discloses account existence.
func (m *Manager) Salt(ctx context.Context, username string) (string, error) {
	rec, err := m.store.GetUser(ctx, username)
	switch {
	case err == nil:
		return rec.Salt, nil
	case errors.Is(err, ErrUserNotFound):
		return auth.DeriveFakeSalt(m.fakeSaltSecret, username), nil
	default:
		return "", err
	}
}

// Authenticate verifies a password proof against the stored account. All
// credential failures collapse to ErrLoginFailed; bans and missing
// activation are reported distinctly.
func (m *Manager) Authenticate(ctx context.Context, username, proof string) (*Record, error) {
	rec, err := m.store.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrLoginFailed
		}
		return nil, err
	}
	if !auth.VerifyProof(rec.PasswordProof, proof) {
		return nil, ErrLoginFailed
	}
	if !rec.Active {
		return nil, ErrNotActivated
	}
	if ban, err := m.banFor(ctx, username); err != nil {
		return nil, err
	} else if ban != nil {
		return nil, fmt.Errorf("%w: %s", ErrBanned, ban.Reason)
	}
	return rec, nil
}

// CheckGuestName validates a guest login name against the same rules as
// registered names and rejects names that collide with accounts or bans.
func (m *Manager) CheckGuestName(ctx context.Context, username string) error {
	if !m.GuestsAllowed() {
		return ErrLoginFailed
	}
	if !usernamePattern.MatchString(username) {
		return ErrInvalidName
	}
	_, err := m.store.GetUser(ctx, username)
	switch {
	case err == nil:
		return ErrUserExists
	case !errors.Is(err, ErrUserNotFound):
		return err
	}
	if ban, err := m.banFor(ctx, username); err != nil {
		return err
	} else if ban != nil {
		return fmt.Errorf("%w: %s", ErrBanned, ban.Reason)
	}
	return nil
}

// Register creates an account. The returned record is inactive when the
// policy requires activation.
func (m *Manager) Register(ctx context.Context, username, email, password string) (*Record, error) {
	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidName
	}
	if len(password) < m.policy.MinPasswordLength {
		return nil, ErrWeakPassword
	}

	salt, err := auth.GenerateSalt()
	if err != nil {
		return nil, err
	}
	rec := &Record{
		Name:          username,
		Email:         email,
		Salt:          salt,
		PasswordProof: auth.ComputeProof(password, salt),
		Active:        !m.policy.RequireActivation,
		CreatedAt:     time.Now(),
	}
	if err := m.store.CreateUser(ctx, rec); err != nil {
		return nil, err
	}

	m.logger.Info("user registered",
		zap.String("username", username),
		zap.Bool("requires_activation", m.policy.RequireActivation),
	)
	return rec, nil
}

// Activate marks a registered account usable.
func (m *Manager) Activate(ctx context.Context, username string) error {
	if err := m.store.ActivateUser(ctx, username); err != nil {
		return err
	}
	m.logger.Info("user activated", zap.String("username", username))
	return nil
}

// ResetPassword replaces the stored credentials with a freshly salted proof
// of the new password.
func (m *Manager) ResetPassword(ctx context.Context, username, newPassword string) error {
	if len(newPassword) < m.policy.MinPasswordLength {
		return ErrWeakPassword
	}
	salt, err := auth.GenerateSalt()
	if err != nil {
		return err
	}
	if err := m.store.UpdatePassword(ctx, username, salt, auth.ComputeProof(newPassword, salt)); err != nil {
		return err
	}
	m.logger.Info("password reset", zap.String("username", username))
	return nil
}

// AdjustMod grants or revokes moderator rights. Takes effect at the next
// login.
func (m *Manager) AdjustMod(ctx context.Context, username string, admin bool) error {
	if err := m.store.SetAdmin(ctx, username, admin); err != nil {
		return err
	}
	m.logger.Info("moderator level adjusted",
		zap.String("username", username),
		zap.Bool("admin", admin),
	)
	return nil
}

// BanUser records a ban. until zero means permanent.
func (m *Manager) BanUser(ctx context.Context, username, reason, bannedBy string, until time.Time) error {
	if m.mod == nil {
		return errors.New("user: moderation store not configured")
	}
	if err := m.mod.AddBan(ctx, Ban{Username: username, Reason: reason, BannedBy: bannedBy, Until: until}); err != nil {
		return err
	}
	m.logger.Info("user banned",
		zap.String("username", username),
		zap.String("banned_by", bannedBy),
		zap.String("reason", reason),
		zap.Time("until", until),
	)
	return nil
}

func (m *Manager) banFor(ctx context.Context, username string) (*Ban, error) {
	if m.mod == nil {
		return nil, nil
	}
	ban, err := m.mod.ActiveBan(ctx, username)
	if err != nil {
		return nil, err
	}
	if ban == nil || ban.Expired(time.Now()) {
		return nil, nil
	}
	return ban, nil
}
