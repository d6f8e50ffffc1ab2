package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"citifix/models"

	"github.com/google/uuid"
)

// CreateUser registers a new citizen or admin. The role is fixed at
// registration and never changes afterwards.
func (s *Service) CreateUser(ctx context.Context, name, role string) (*models.User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	switch role {
	case "":
		role = models.RoleCitizen
	case models.RoleCitizen, models.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	u := &models.User{
		ID:        uuid.NewString(),
		Name:      name,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, role, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.Role, u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

// GetUser returns a single user or ErrNotFound.
func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, role, reward_points, complaints_resolved, created_at
		 FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Role, &u.RewardPoints, &u.ComplaintsResolved, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GrantPoints atomically credits reward points and bumps the resolved
// counter. Idempotency is the escalation engine's responsibility: this is
// called once per complaint resolution, guarded by the prior-status check.
func (s *Service) GrantPoints(ctx context.Context, userID string, points int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users
		 SET reward_points = reward_points + ?, complaints_resolved = complaints_resolved + 1
		 WHERE id = ?`, points, userID)
	if err != nil {
		return fmt.Errorf("failed to grant points: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Leaderboard returns users ordered by reward points, highest first.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]*models.User, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, role, reward_points, complaints_resolved, created_at
		 FROM users
		 ORDER BY reward_points DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0, limit)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Role, &u.RewardPoints, &u.ComplaintsResolved, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}
	return users, nil
}

// GetUserStats returns a reporter's dashboard counters.
func (s *Service) GetUserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var submitted int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM complaints WHERE user_id = ?`, userID).Scan(&submitted)
	if err != nil {
		return nil, fmt.Errorf("failed to count submitted complaints: %w", err)
	}

	return &models.UserStats{
		UserID:              u.ID,
		RewardPoints:        u.RewardPoints,
		ComplaintsSubmitted: submitted,
		ComplaintsResolved:  u.ComplaintsResolved,
	}, nil
}
