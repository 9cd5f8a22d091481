package profile

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pearcircuitmike/replicate-codex/internal/models"

	"github.com/google/uuid"
)

// Digest cadence values for the email preferences.
const (
	DigestDaily  = "daily"
	DigestWeekly = "weekly"
	DigestNone   = "none"
)

var (
	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = errors.New("username is already taken")
	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrBadCadence is returned for digest values outside the known set.
	ErrBadCadence = errors.New("unknown digest cadence")
)

// Service manages user accounts and their preferences.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Register creates an account. Digest preferences start at weekly.
func (s *Service) Register(ctx context.Context, username, password string) (*models.Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM profiles WHERE username = $1)`, username,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	p := models.Profile{
		ID:                 uuid.NewString(),
		Username:           username,
		PasswordHash:       hashPassword(password),
		SubscriptionStatus: models.SubscriptionNone,
		PaperDigest:        DigestWeekly,
		ModelDigest:        DigestWeekly,
		CreatedAt:          time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, username, password_hash, full_name, avatar_url, subscription_status, stripe_customer_id, paper_digest, model_digest, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Username, p.PasswordHash, p.FullName, p.AvatarURL, p.SubscriptionStatus, p.StripeCustomerID, p.PaperDigest, p.ModelDigest, p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return &p, nil
}

// Authenticate checks a username/password pair and returns the profile.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.Profile, error) {
	p, err := s.byUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if p.PasswordHash != hashPassword(password) {
		return nil, ErrInvalidCredentials
	}
	return p, nil
}

// Get returns a profile by id.
func (s *Service) Get(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, full_name, avatar_url, subscription_status, stripe_customer_id, paper_digest, model_digest, created_at
		 FROM profiles WHERE id = $1`, userID,
	).Scan(&p.ID, &p.Username, &p.PasswordHash, &p.FullName, &p.AvatarURL, &p.SubscriptionStatus, &p.StripeCustomerID, &p.PaperDigest, &p.ModelDigest, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (s *Service) byUsername(ctx context.Context, username string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, full_name, avatar_url, subscription_status, stripe_customer_id, paper_digest, model_digest, created_at
		 FROM profiles WHERE username = $1`, username,
	).Scan(&p.ID, &p.Username, &p.PasswordHash, &p.FullName, &p.AvatarURL, &p.SubscriptionStatus, &p.StripeCustomerID, &p.PaperDigest, &p.ModelDigest, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get profile by username: %w", err)
	}
	return &p, nil
}

// UpdateDisplay sets the profile's display fields.
func (s *Service) UpdateDisplay(ctx context.Context, userID, fullName, avatarURL string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET full_name = $1, avatar_url = $2 WHERE id = $3`,
		fullName, avatarURL, userID,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return requireRow(res)
}

// UpdateDigestPrefs sets the digest cadence for papers and models.
func (s *Service) UpdateDigestPrefs(ctx context.Context, userID, paperDigest, modelDigest string) error {
	for _, d := range []string{paperDigest, modelDigest} {
		switch d {
		case DigestDaily, DigestWeekly, DigestNone:
		default:
			return fmt.Errorf("%w: %q", ErrBadCadence, d)
		}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET paper_digest = $1, model_digest = $2 WHERE id = $3`,
		paperDigest, modelDigest, userID,
	)
	if err != nil {
		return fmt.Errorf("update digest prefs: %w", err)
	}
	return requireRow(res)
}

// SetSubscription records the billing state pushed by webhook events. The
// customer id is kept only when the event carries one.
func (s *Service) SetSubscription(ctx context.Context, userID, status, stripeCustomerID string) error {
	var (
		res sql.Result
		err error
	)
	if stripeCustomerID != "" {
		res, err = s.db.ExecContext(ctx,
			`UPDATE profiles SET subscription_status = $1, stripe_customer_id = $2 WHERE id = $3`,
			status, stripeCustomerID, userID,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE profiles SET subscription_status = $1 WHERE id = $2`,
			status, userID,
		)
	}
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return requireRow(res)
}

// ByStripeCustomer resolves a profile from its billing customer id.
func (s *Service) ByStripeCustomer(ctx context.Context, customerID string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, full_name, avatar_url, subscription_status, stripe_customer_id, paper_digest, model_digest, created_at
		 FROM profiles WHERE stripe_customer_id = $1`, customerID,
	).Scan(&p.ID, &p.Username, &p.PasswordHash, &p.FullName, &p.AvatarURL, &p.SubscriptionStatus, &p.StripeCustomerID, &p.PaperDigest, &p.ModelDigest, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get profile by customer: %w", err)
	}
	return &p, nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
