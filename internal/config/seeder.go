package config

import (
	"context"
	"fmt"
	"log"

	"c5isr-identity/internal/adapters/persistence/repositories"
	"c5isr-identity/internal/core/domain"
	"c5isr-identity/internal/pkg/password"
)

// DefaultSeedPassword is the password of every reference identity.
// Development and exercise use only.
const DefaultSeedPassword = "password"

// SeedIdentity describes one reference operator account
type SeedIdentity struct {
	Username   string
	FullName   string
	Role       domain.Role
	Clearance  domain.Clearance
	TOTPSecret string
}

// ReferenceIdentities are the accounts provisioned on first boot
var ReferenceIdentities = []SeedIdentity{
	{
		Username:   "commander",
		FullName:   "Gen. Sarah Connor",
		Role:       domain.RoleCommander,
		Clearance:  domain.ClearanceTopSecret,
		TOTPSecret: "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP",
	},
	{
		Username:   "analyst",
		FullName:   "Lt. John Doe",
		Role:       domain.RoleSOCAnalyst,
		Clearance:  domain.ClearanceSecret,
		TOTPSecret: "KRSXG5CTMVRXEZLUKRSXG5CTMVRXEZLU",
	},
	{
		Username:   "redteam",
		FullName:   "Red Team Operator",
		Role:       domain.RoleRedTeam,
		Clearance:  domain.ClearanceConfidential,
		TOTPSecret: "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ",
	},
}

// Seeder provisions reference identities
type Seeder struct {
	repo repositories.IdentityRepository
	cost int
}

// NewSeeder creates a new seeder instance.
// cost is the bcrypt cost; zero uses the password package default.
func NewSeeder(repo repositories.IdentityRepository, cost int) *Seeder {
	return &Seeder{repo: repo, cost: cost}
}

// Run provisions every reference identity that does not exist yet
func (s *Seeder) Run(ctx context.Context) error {
	log.Println("🌱 Seeding reference identities...")

	created := 0
	for _, seed := range ReferenceIdentities {
		ok, err := s.seedIdentity(ctx, seed)
		if err != nil {
			return fmt.Errorf("seed %s: %w", seed.Username, err)
		}
		if ok {
			created++
		}
	}

	log.Printf("✅ Identity seeding completed (%d created)", created)
	return nil
}

func (s *Seeder) seedIdentity(ctx context.Context, seed SeedIdentity) (bool, error) {
	exists, err := s.repo.Exists(ctx, seed.Username)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	var hash string
	if s.cost > 0 {
		hash, err = password.HashWithCost(DefaultSeedPassword, s.cost)
	} else {
		hash, err = password.Hash(DefaultSeedPassword)
	}
	if err != nil {
		return false, err
	}

	identity := &domain.Identity{
		Username:     seed.Username,
		FullName:     seed.FullName,
		PasswordHash: hash,
		Role:         seed.Role,
		Clearance:    seed.Clearance,
		MFAEnabled:   true,
		TOTPSecret:   seed.TOTPSecret,
		// reference secrets ship pre-provisioned on the operators' tokens
		TOTPEnrolled: true,
	}
	if err := s.repo.Upsert(ctx, identity); err != nil {
		return false, err
	}

	log.Printf("✅ Identity created: %s [%s/%s]", seed.Username, seed.Role, seed.Clearance)
	return true, nil
}
