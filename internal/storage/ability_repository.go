package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"llm_share/internal/models"
)

// AbilityRepository resolves bearer tokens to user/instance bindings.
// Read-only from the proxy's perspective; bindings are managed by the
// admin panel.
type AbilityRepository struct {
	db *DB
}

// NewAbilityRepository creates a new ability repository.
func NewAbilityRepository(db *DB) *AbilityRepository {
	return &AbilityRepository{db: db}
}

// GetByTokenAndInstance looks up the unique (token, instance) binding.
// Lookups are cached; a cache hit never touches the database.
func (r *AbilityRepository) GetByTokenAndInstance(ctx context.Context, tokenHash string, instanceID uuid.UUID) (*models.UserInstanceAbility, error) {
	cacheKey := tokenHash + ":" + instanceID.String()
	if cached, found := r.db.abilityCache.Get(cacheKey); found {
		if ability, ok := cached.(*models.UserInstanceAbility); ok {
			return ability, nil
		}
	}

	var ability models.UserInstanceAbility
	query := `
		SELECT token_hash, user_id, instance_id, can_use, data, created_at
		FROM user_instance_abilities
		WHERE token_hash = $1 AND instance_id = $2
	`

	err := r.db.conn.GetContext(ctx, &ability, query, tokenHash, instanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAbilityNotFound
		}
		return nil, fmt.Errorf("failed to get ability: %w", err)
	}

	r.db.abilityCache.Set(cacheKey, &ability)
	return &ability, nil
}

// ListByUser returns all bindings of one user, admin display only.
func (r *AbilityRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.UserInstanceAbility, error) {
	query := `
		SELECT token_hash, user_id, instance_id, can_use, data, created_at
		FROM user_instance_abilities
		WHERE user_id = $1
		ORDER BY created_at
	`

	var abilities []*models.UserInstanceAbility
	if err := r.db.conn.SelectContext(ctx, &abilities, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list abilities: %w", err)
	}
	return abilities, nil
}
