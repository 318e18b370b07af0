package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"c5isr-identity/internal/adapters/persistence/models"
	"c5isr-identity/internal/core/domain"
)

// identityRepository implements IdentityRepository over GORM
type identityRepository struct {
	db *gorm.DB
}

// NewIdentityRepository creates a new GORM-backed identity repository
func NewIdentityRepository(db *gorm.DB) IdentityRepository {
	return &identityRepository{db: db}
}

func (r *identityRepository) find(tx *gorm.DB, username string) (*models.Identity, error) {
	var row models.Identity
	err := tx.Where("username = ?", username).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrIdentityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// GetByUsername gets an identity by username
func (r *identityRepository) GetByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	row, err := r.find(r.db.WithContext(ctx), username)
	if err != nil {
		return nil, err
	}
	return row.ToDomain()
}

// List lists every identity ordered by username
func (r *identityRepository) List(ctx context.Context) ([]*domain.Identity, error) {
	var rows []*models.Identity
	if err := r.db.WithContext(ctx).Order("username ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*domain.Identity, 0, len(rows))
	for _, row := range rows {
		d, err := row.ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Upsert creates the identity or overwrites the stored row with the same username
func (r *identityRepository) Upsert(ctx context.Context, identity *domain.Identity) error {
	row := models.IdentityFromDomain(identity)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"full_name", "password_hash", "role", "clearance", "mfa_enabled",
			"totp_enrolled", "totp_secret", "disabled", "updated_at",
		}),
	}).Create(row).Error
}

// Exists checks if an identity with the username exists
func (r *identityRepository) Exists(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Identity{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

// RecordLogin bumps the login counter atomically
func (r *identityRepository) RecordLogin(ctx context.Context, username string, at time.Time) (*domain.Identity, error) {
	var out *domain.Identity
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Identity{}).
			Where("username = ?", username).
			UpdateColumns(map[string]interface{}{
				"last_login":  at,
				"login_count": gorm.Expr("login_count + ?", 1),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrIdentityNotFound
		}

		row, err := r.find(tx, username)
		if err != nil {
			return err
		}
		out, err = row.ToDomain()
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkTOTPEnrolled flags the identity as enrolled
func (r *identityRepository) MarkTOTPEnrolled(ctx context.Context, username string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Identity{}).
		Where("username = ?", username).
		Update("totp_enrolled", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}
