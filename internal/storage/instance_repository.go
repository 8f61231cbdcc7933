package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"llm_share/internal/models"
)

// InstanceRepository reads service instance records. Instances are
// written by the admin panel; the proxy only loads them.
type InstanceRepository struct {
	db *DB
}

// NewInstanceRepository creates a new instance repository.
func NewInstanceRepository(db *DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

// GetByID retrieves a service instance by ID, cached with a short TTL so
// admin edits take effect without a restart.
func (r *InstanceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceInstance, error) {
	if cached, found := r.db.instanceCache.Get(id.String()); found {
		if inst, ok := cached.(*models.ServiceInstance); ok {
			return inst, nil
		}
	}

	var inst models.ServiceInstance
	query := `
		SELECT id, type, name, config, created_at, updated_at
		FROM service_instances
		WHERE id = $1
	`

	err := r.db.conn.GetContext(ctx, &inst, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("failed to get service instance: %w", err)
	}

	r.db.instanceCache.Set(id.String(), &inst)
	return &inst, nil
}

// List returns all service instances ordered by name.
func (r *InstanceRepository) List(ctx context.Context) ([]*models.ServiceInstance, error) {
	query := `
		SELECT id, type, name, config, created_at, updated_at
		FROM service_instances
		ORDER BY name
	`

	var instances []*models.ServiceInstance
	if err := r.db.conn.SelectContext(ctx, &instances, query); err != nil {
		return nil, fmt.Errorf("failed to list service instances: %w", err)
	}
	return instances, nil
}
