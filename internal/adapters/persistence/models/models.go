package models

import (
	"time"

	"gorm.io/gorm"

	"c5isr-identity/internal/core/domain"
)

// ============================================================
// Identity Tables
// ============================================================

// Identity represents identities table
type Identity struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;size:64;not null" json:"username"`
	FullName     string         `gorm:"size:128;not null" json:"full_name"`
	PasswordHash string         `gorm:"size:255;not null" json:"-"`
	Role         string         `gorm:"size:20;not null" json:"role"`
	Clearance    string         `gorm:"size:20;not null" json:"clearance"`
	MFAEnabled   bool           `gorm:"default:true" json:"mfa_enabled"`
	TOTPEnrolled bool           `gorm:"default:false" json:"totp_enrolled"`
	TOTPSecret   string         `gorm:"size:128" json:"-"`
	Disabled     bool           `gorm:"default:false" json:"disabled"`
	LastLogin    *time.Time     `json:"last_login"`
	LoginCount   int            `gorm:"default:0" json:"login_count"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Identity) TableName() string {
	return "identities"
}

// ToDomain converts the row into a domain identity, rejecting unknown enums
func (i *Identity) ToDomain() (*domain.Identity, error) {
	role, err := domain.ParseRole(i.Role)
	if err != nil {
		return nil, err
	}
	clearance, err := domain.ParseClearance(i.Clearance)
	if err != nil {
		return nil, err
	}
	return &domain.Identity{
		Username:     i.Username,
		FullName:     i.FullName,
		PasswordHash: i.PasswordHash,
		Role:         role,
		Clearance:    clearance,
		MFAEnabled:   i.MFAEnabled,
		TOTPEnrolled: i.TOTPEnrolled,
		TOTPSecret:   i.TOTPSecret,
		Disabled:     i.Disabled,
		LastLogin:    i.LastLogin,
		LoginCount:   i.LoginCount,
	}, nil
}

// IdentityFromDomain builds a row from a domain identity
func IdentityFromDomain(d *domain.Identity) *Identity {
	return &Identity{
		Username:     d.Username,
		FullName:     d.FullName,
		PasswordHash: d.PasswordHash,
		Role:         string(d.Role),
		Clearance:    d.Clearance.String(),
		MFAEnabled:   d.MFAEnabled,
		TOTPEnrolled: d.TOTPEnrolled,
		TOTPSecret:   d.TOTPSecret,
		Disabled:     d.Disabled,
		LastLogin:    d.LastLogin,
		LoginCount:   d.LoginCount,
	}
}

// AutoMigrate runs auto migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Identity{})
}
