// Package profiles owns account data: profile rows, avatar objects and
// password reset tokens.
package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mozillazg/go-unidecode"
	"github.com/sethvargo/go-password/password"
	"golang.org/x/crypto/bcrypt"

	"watchverse/models"
)

const resetTokenTTL = time.Hour

var (
	// ErrUsernameTaken is returned when a sign-up or profile update collides
	// with an existing username or email.
	ErrUsernameTaken = errors.New("username or email already taken")
	// ErrInvalidCredentials is returned for a failed password check.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrResetTokenInvalid is returned for unknown, used or expired reset tokens.
	ErrResetTokenInvalid = errors.New("password reset link is invalid or has expired")
)

// Sender delivers a password reset link to the account owner. The default
// implementation only logs it; deployments plug in a mailer.
type Sender interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

// LogSender writes reset links to the process log instead of sending mail.
type LogSender struct{}

// SendPasswordReset implements Sender.
func (LogSender) SendPasswordReset(_ context.Context, email, link string) error {
	log.Printf("[profiles] password reset for %s: %s", email, link)
	return nil
}

// Service reads and mutates account data.
type Service struct {
	db      *sql.DB
	avatars *AvatarStore
	sender  Sender
	baseURL string
}

// NewService creates a profile service. sender may be nil, in which case
// reset links are logged.
func NewService(db *sql.DB, avatars *AvatarStore, sender Sender, baseURL string) *Service {
	if sender == nil {
		sender = LogSender{}
	}
	return &Service{db: db, avatars: avatars, sender: sender, baseURL: strings.TrimRight(baseURL, "/")}
}

// NormalizeUsername folds a requested username to its stored form:
// ASCII-transliterated, lowercased and trimmed.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(username)))
}

// Create registers a new account and returns its profile.
func (s *Service) Create(ctx context.Context, username, email, plainPassword string) (*models.Profile, error) {
	username = NormalizeUsername(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || len(plainPassword) < 8 {
		return nil, fmt.Errorf("username, email and a password of at least 8 characters are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	profile := &models.Profile{
		ID:       uuid.NewString(),
		Username: username,
		Email:    email,
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, username, email, password_hash) VALUES (?, ?, ?, ?)`,
		profile.ID, profile.Username, profile.Email, string(hash),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert profile: %w", err)
	}

	log.Printf("[profiles] created account %s (%s)", profile.Username, profile.ID)
	return profile, nil
}

// GetByID returns one profile, or nil when the id is unknown.
func (s *Service) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	return s.getWhere(ctx, "id = ?", id)
}

// GetByLogin resolves a username or email to its profile, or nil.
func (s *Service) GetByLogin(ctx context.Context, login string) (*models.Profile, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	return s.getWhere(ctx, "username = ? OR email = ?", login, login)
}

func (s *Service) getWhere(ctx context.Context, where string, args ...any) (*models.Profile, error) {
	var p models.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, full_name, avatar_url, email, password_hash, created_at, updated_at
		 FROM profiles WHERE `+where, args...,
	).Scan(&p.ID, &p.Username, &p.FullName, &p.AvatarURL, &p.Email, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return &p, nil
}

// CheckPassword verifies a login/password pair and returns the matching
// profile. Unknown logins and wrong passwords both yield
// ErrInvalidCredentials, nothing more specific.
func (s *Service) CheckPassword(ctx context.Context, login, plainPassword string) (*models.Profile, error) {
	profile, err := s.GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(plainPassword)) != nil {
		return nil, ErrInvalidCredentials
	}
	return profile, nil
}

// Update changes the profile's display name and username.
func (s *Service) Update(ctx context.Context, userID, fullName, username string) error {
	username = NormalizeUsername(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}

	var name *string
	if fullName = strings.TrimSpace(fullName); fullName != "" {
		name = &fullName
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET full_name = ?, username = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, username, userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// setAvatarURL records the public URL of a freshly stored avatar.
func (s *Service) setAvatarURL(ctx context.Context, userID, url string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET avatar_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		url, userID,
	)
	if err != nil {
		return fmt.Errorf("update avatar url: %w", err)
	}
	return nil
}

// RequestPasswordReset creates a single-use reset token for the account
// and hands the reset link to the configured sender.
func (s *Service) RequestPasswordReset(ctx context.Context, userID string) error {
	profile, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if profile == nil {
		return fmt.Errorf("unknown account")
	}

	token, err := password.Generate(48, 12, 0, false, true)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO password_resets (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, time.Now().Add(resetTokenTTL).UTC(),
	)
	if err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link := s.baseURL + "/auth/update-password?token=" + token
	return s.sender.SendPasswordReset(ctx, profile.Email, link)
}

// CompletePasswordReset consumes a reset token and replaces the account
// password. Tokens are single use and expire after an hour.
func (s *Service) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	var userID string
	var expiresAt time.Time
	var used bool
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, expires_at, used FROM password_resets WHERE token = ?`, token,
	).Scan(&userID, &expiresAt, &used)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrResetTokenInvalid
	}
	if err != nil {
		return fmt.Errorf("query reset token: %w", err)
	}
	if used || time.Now().After(expiresAt) {
		return ErrResetTokenInvalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE profiles SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(hash), userID,
	); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE password_resets SET used = 1 WHERE token = ?`, token,
	); err != nil {
		return fmt.Errorf("mark token used: %w", err)
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
