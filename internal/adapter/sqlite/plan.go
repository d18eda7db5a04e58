package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/liftoff/provisioner/internal/domain"
)

// Compile-time check: PlanRepository implements domain.PlanRepository.
var _ domain.PlanRepository = (*PlanRepository)(nil)

// PlanRepository implements domain.PlanRepository using SQLite.
type PlanRepository struct {
	db *sql.DB
}

// NewPlanRepository wraps an opened, migrated database.
func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Upsert creates the plan if missing; an existing plan keeps its quotas.
func (r *PlanRepository) Upsert(ctx context.Context, p domain.Plan) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO plans (id, name, max_users, max_api_keys)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Name, p.MaxUsers, p.MaxAPIKeys,
	)
	if err != nil {
		return fmt.Errorf("upserting plan: %w", err)
	}
	return nil
}

func (r *PlanRepository) GetByID(ctx context.Context, id string) (domain.Plan, error) {
	var p domain.Plan
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, max_users, max_api_keys FROM plans WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.MaxUsers, &p.MaxAPIKeys)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Plan{}, domain.ErrPlanNotFound
		}
		return domain.Plan{}, fmt.Errorf("scanning plan: %w", err)
	}
	return p, nil
}
