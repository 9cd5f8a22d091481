package community

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pearcircuitmike/replicate-codex/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultInviteTTL = 7 * 24 * time.Hour

var (
	// ErrInviteExpired is returned when an invite is past its expiry.
	ErrInviteExpired = errors.New("invite has expired")
	// ErrInviteConsumed is returned when an invite was already accepted.
	ErrInviteConsumed = errors.New("invite has already been accepted")
)

// Service manages communities, memberships, and one-shot email invites.
type Service struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

func NewService(db *sql.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// CreateCommunity creates a community and its topic tags, then enrolls the
// creator as the first member.
func (s *Service) CreateCommunity(ctx context.Context, creatorID, name, description string, topics []string) (*models.Community, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("community name cannot be empty")
	}
	c := models.Community{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Topics:      topics,
		CreatedAt:   time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO communities (id, name, description, created_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.Description, c.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert community: %w", err)
	}
	for _, topic := range topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO community_topics (community_id, topic) VALUES ($1, $2)`,
			c.ID, topic,
		); err != nil {
			return nil, fmt.Errorf("insert topic %q: %w", topic, err)
		}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO memberships (user_id, community_id, created_at) VALUES ($1, $2, $3)`,
		creatorID, c.ID, c.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("enroll creator: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create community: %w", err)
	}
	return &c, nil
}

// GetCommunity returns one community with its topics.
func (s *Service) GetCommunity(ctx context.Context, id string) (*models.Community, error) {
	var c models.Community
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM communities WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get community: %w", err)
	}
	topics, err := s.topics(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Topics = topics
	return &c, nil
}

// ListCommunities returns all communities, newest first, topics included.
func (s *Service) ListCommunities(ctx context.Context) ([]models.Community, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM communities ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	defer rows.Close()

	var out []models.Community
	for rows.Next() {
		var c models.Community
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan community: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		topics, err := s.topics(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Topics = topics
	}
	return out, nil
}

func (s *Service) topics(ctx context.Context, communityID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT topic FROM community_topics WHERE community_id = $1 ORDER BY topic ASC`, communityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// Join adds the user to a community. Joining twice is a no-op.
func (s *Service) Join(ctx context.Context, userID, communityID string) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM memberships WHERE user_id = $1 AND community_id = $2)`,
		userID, communityID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if exists {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships (user_id, community_id, created_at) VALUES ($1, $2, $3)`,
		userID, communityID, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("join community: %w", err)
	}
	return nil
}

// Leave removes the user's membership.
func (s *Service) Leave(ctx context.Context, userID, communityID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE user_id = $1 AND community_id = $2`,
		userID, communityID,
	)
	if err != nil {
		return fmt.Errorf("leave community: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("membership rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListMembers returns user ids of a community's members.
func (s *Service) ListMembers(ctx context.Context, communityID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM memberships WHERE community_id = $1 ORDER BY created_at ASC`, communityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// CreateInvite issues a time-limited invite token for an email address.
func (s *Service) CreateInvite(ctx context.Context, communityID, email string, ttl time.Duration) (*models.Invite, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, errors.New("email cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	if _, err := s.GetCommunity(ctx, communityID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	inv := models.Invite{
		Token:       uuid.NewString(),
		CommunityID: communityID,
		Email:       email,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO invites (token, community_id, email, expires_at, accepted_at, created_at)
		 VALUES ($1, $2, $3, $4, NULL, $5)`,
		inv.Token, inv.CommunityID, inv.Email, inv.ExpiresAt, inv.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert invite: %w", err)
	}
	return &inv, nil
}

// AcceptInvite consumes an invite token and enrolls the user. A token is
// good exactly once; expired or already-used tokens are rejected.
func (s *Service) AcceptInvite(ctx context.Context, userID, token string) (*models.Invite, error) {
	var inv models.Invite
	err := s.db.QueryRowContext(ctx,
		`SELECT token, community_id, email, expires_at, accepted_at, created_at FROM invites WHERE token = $1`,
		token,
	).Scan(&inv.Token, &inv.CommunityID, &inv.Email, &inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lookup invite: %w", err)
	}
	if inv.AcceptedAt != nil {
		return nil, ErrInviteConsumed
	}
	now := time.Now().UTC()
	if now.After(inv.ExpiresAt) {
		return nil, ErrInviteExpired
	}

	// Claim the token first so two racing accepts cannot both win.
	res, err := s.db.ExecContext(ctx,
		`UPDATE invites SET accepted_at = $1 WHERE token = $2 AND accepted_at IS NULL`,
		now, token,
	)
	if err != nil {
		return nil, fmt.Errorf("claim invite: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("invite rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrInviteConsumed
	}
	inv.AcceptedAt = &now

	if err := s.Join(ctx, userID, inv.CommunityID); err != nil {
		return nil, err
	}
	return &inv, nil
}

// SweepExpiredInvites deletes unaccepted invites past their expiry and
// returns how many were removed.
func (s *Service) SweepExpiredInvites(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM invites WHERE accepted_at IS NULL AND expires_at < $1`,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("sweep invites: %w", err)
	}
	return res.RowsAffected()
}

// StartInviteSweeper runs SweepExpiredInvites on a fixed interval until the
// context is canceled.
func (s *Service) StartInviteSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.SweepExpiredInvites(ctx)
				if err != nil {
					s.log.Warnw("invite sweep failed", "error", err)
					continue
				}
				if removed > 0 {
					s.log.Infow("swept expired invites", "removed", removed)
				}
			}
		}
	}()
}
