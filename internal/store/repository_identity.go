package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerkeep/ledger-sync/internal/logger"
	"github.com/ledgerkeep/ledger-sync/models"
)

type identityRepository struct {
	*DB
	logger *logger.Logger
}

func NewIdentityRepository(db *DB, logger *logger.Logger) IdentityRepository {
	return &identityRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *identityRepository) SaveIdentity(ctx context.Context, identity models.Identity) error {
	log := logger.FromContext(ctx)

	payload, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to encode cached identity: %w", err)
	}

	cachedAt := identity.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now().UTC()
	}

	_, err = r.DB.ExecContext(ctx, saveIdentitySlot, identitySlotKey, payload, cachedAt)
	if err != nil {
		log.Err(err).
			Str("func", "identityRepository.SaveIdentity").
			Str("user_id", identity.UserID).
			Msg("failed to persist cached identity")
		return fmt.Errorf("failed to persist cached identity: %w", err)
	}

	return nil
}

func (r *identityRepository) GetIdentity(ctx context.Context) (models.Identity, error) {
	log := logger.FromContext(ctx)

	var payload []byte
	row := r.DB.QueryRowContext(ctx, getIdentitySlot, identitySlotKey)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Identity{}, ErrIdentityNotFound
		}
		log.Err(err).
			Str("func", "identityRepository.GetIdentity").
			Msg("failed to scan cached identity row")
		return models.Identity{}, fmt.Errorf("failed to scan cached identity row: %w", err)
	}

	var identity models.Identity
	if err := json.Unmarshal(payload, &identity); err != nil {
		log.Err(err).
			Str("func", "identityRepository.GetIdentity").
			Msg("failed to decode cached identity")
		return models.Identity{}, fmt.Errorf("failed to decode cached identity: %w", err)
	}

	return identity, nil
}

func (r *identityRepository) ClearIdentity(ctx context.Context) error {
	log := logger.FromContext(ctx)

	_, err := r.DB.ExecContext(ctx, clearIdentitySlot, identitySlotKey)
	if err != nil {
		log.Err(err).
			Str("func", "identityRepository.ClearIdentity").
			Msg("failed to clear cached identity")
		return fmt.Errorf("failed to clear cached identity: %w", err)
	}

	return nil
}
