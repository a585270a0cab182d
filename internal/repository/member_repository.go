package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/church-class-api/internal/models"
)

const memberColumns = "m.id, m.full_name, m.email, m.phone, m.status, m.created_at, m.updated_at"

// MemberRepository reads the member directory owned by the membership module.
type MemberRepository struct {
	db *sqlx.DB
}

// NewMemberRepository constructs the repository.
func NewMemberRepository(db *sqlx.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// FindByID returns a member by ID.
func (r *MemberRepository) FindByID(ctx context.Context, id string) (*models.Member, error) {
	query := "SELECT " + memberColumns + " FROM members m WHERE m.id = $1"
	var member models.Member
	if err := r.db.GetContext(ctx, &member, query, id); err != nil {
		return nil, err
	}
	return &member, nil
}

// FindByIDs returns the subset of ids that exist, keyed by id.
func (r *MemberRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Member, error) {
	result := make(map[string]models.Member, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In("SELECT "+memberColumns+" FROM members m WHERE m.id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("build member lookup: %w", err)
	}
	var members []models.Member
	if err := r.db.SelectContext(ctx, &members, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find members: %w", err)
	}
	for _, m := range members {
		result[m.ID] = m
	}
	return result, nil
}

// SearchEligible matches members by name or email. With ExcludeEnrolled set,
// members holding an enrolled row for the target level are dropped; without a
// level the target is the class itself.
func (r *MemberRepository) SearchEligible(ctx context.Context, filter models.MemberSearchFilter) ([]models.Member, error) {
	var conditions []string
	var args []interface{}

	if q := strings.TrimSpace(filter.Query); q != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(m.full_name) LIKE $%d OR LOWER(COALESCE(m.email, '')) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(q)+"%")
	}
	if filter.ExcludeEnrolled {
		if filter.LevelID != "" {
			conditions = append(conditions, fmt.Sprintf(`NOT EXISTS (
SELECT 1 FROM class_enrollments e WHERE e.member_id = m.id AND e.level_id = $%d AND e.status = 'enrolled')`, len(args)+1))
			args = append(args, filter.LevelID)
		} else {
			conditions = append(conditions, fmt.Sprintf(`NOT EXISTS (
SELECT 1 FROM class_enrollments e WHERE e.member_id = m.id AND e.class_id = $%d AND e.status = 'enrolled')`, len(args)+1))
			args = append(args, filter.ClassID)
		}
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf("SELECT %s FROM members m%s ORDER BY m.full_name ASC LIMIT %d", memberColumns, clause, limit)
	var members []models.Member
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, fmt.Errorf("search eligible members: %w", err)
	}
	return members, nil
}
