// internal/membership/implementation.go
package membership

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/time/rate"
)

// service implements the Service interface.
type service struct {
	db          *sqlx.DB
	rateLimiter *rate.Limiter
}

// NewService creates a new membership service instance.
func NewService(db *sqlx.DB) Service {
	return &service{
		db:          db,
		rateLimiter: rate.NewLimiter(rate.Every(1*time.Minute), 5), // 5 requests per minute
	}
}

var validRoles = map[string]bool{
	"student":   true,
	"organizer": true,
	"admin":     true,
}

// RegisterMember creates a new member.
func (s *service) RegisterMember(ctx context.Context, email, name, password, role string) (*Member, error) {
	if !s.rateLimiter.Allow() {
		return nil, fmt.Errorf("rate limit exceeded")
	}

	if role == "" {
		role = "student"
	}
	if !validRoles[role] {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	passwordHash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	member := &Member{
		ID:        uuid.New(),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Name:      name,
		Role:      role,
		Interests: []string{},
		Skills:    []string{},
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	credential := &Credential{
		MemberID:     member.ID,
		PasswordHash: passwordHash,
		Salt:         salt,
	}

	if err := s.insertMember(ctx, member, credential); err != nil {
		return nil, fmt.Errorf("failed to store member: %w", err)
	}

	return member, nil
}

func (s *service) insertMember(ctx context.Context, member *Member, credential *Credential) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	memberQuery := `
		INSERT INTO members (id, email, name, role, department, year, interests, skills, status, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = tx.ExecContext(ctx, memberQuery,
		member.ID, member.Email, member.Name, member.Role, member.Department, member.Year,
		member.Interests, member.Skills, member.Status, member.CreatedAt, member.UpdatedAt, member.Version,
	)
	if err != nil {
		return err
	}

	credQuery := `
		INSERT INTO credentials (member_id, password_hash, salt)
		VALUES ($1, $2, $3)
	`
	_, err = tx.ExecContext(ctx, credQuery, credential.MemberID, credential.PasswordHash, credential.Salt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Authenticate verifies a member's credentials and returns the member if successful.
func (s *service) Authenticate(ctx context.Context, email, password string) (*Member, error) {
	if !s.rateLimiter.Allow() {
		return nil, fmt.Errorf("rate limit exceeded")
	}

	member := &Member{}
	err := s.db.GetContext(ctx, member, `
		SELECT id, email, name, role, department, year, interests, skills, status, created_at, updated_at, version
		FROM members
		WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	credential := &Credential{}
	err = s.db.GetContext(ctx, credential, `
		SELECT member_id, password_hash, salt
		FROM credentials
		WHERE member_id = $1
	`, member.ID)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	ok, err := verifyPassword(password, credential.Salt, credential.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("authentication failed: invalid credentials")
	}

	return member, nil
}

// GetMember retrieves a member by their ID.
func (s *service) GetMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	member := &Member{}
	err := s.db.GetContext(ctx, member, `
		SELECT id, email, name, role, department, year, interests, skills, status, created_at, updated_at, version
		FROM members
		WHERE id = $1
	`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("member with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// UpdateProfile replaces the member's personalization profile.
func (s *service) UpdateProfile(ctx context.Context, id uuid.UUID, profile Profile) (*Member, error) {
	member, err := s.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}

	interests := pq.StringArray(normalizeTags(profile.Interests))
	skills := pq.StringArray(normalizeTags(profile.Skills))

	query := `
		UPDATE members
		SET interests = $1, skills = $2, department = $3, year = $4, version = version + 1, updated_at = NOW()
		WHERE id = $5 AND version = $6
	`
	res, err := s.db.ExecContext(ctx, query, interests, skills, profile.Department, profile.Year, id, member.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("profile update conflicted, retry")
	}

	member.Interests = interests
	member.Skills = skills
	member.Department = profile.Department
	member.Year = profile.Year
	member.Version++
	return member, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
