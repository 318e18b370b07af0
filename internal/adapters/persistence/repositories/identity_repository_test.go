package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"c5isr-identity/internal/adapters/persistence/models"
	"c5isr-identity/internal/core/domain"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

func forEachRepo(t *testing.T, fn func(t *testing.T, repo IdentityRepository)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryIdentityRepository()) })
	t.Run("gorm", func(t *testing.T) { fn(t, NewIdentityRepository(openTestDB(t))) })
}

func analyst() *domain.Identity {
	return &domain.Identity{
		Username:     "analyst",
		FullName:     "Analyst Jack",
		PasswordHash: "$2a$04$hash",
		Role:         domain.RoleSOCAnalyst,
		Clearance:    domain.ClearanceSecret,
		MFAEnabled:   true,
		TOTPSecret:   "KRSXG5CTMVRXEZLUKRSXG5CTMVRXEZLU",
	}
}

func TestIdentityRepositoryUpsertAndGet(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo IdentityRepository) {
		ctx := context.Background()

		_, err := repo.GetByUsername(ctx, "analyst")
		assert.ErrorIs(t, err, domain.ErrIdentityNotFound)

		require.NoError(t, repo.Upsert(ctx, analyst()))
		got, err := repo.GetByUsername(ctx, "analyst")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleSOCAnalyst, got.Role)
		assert.Equal(t, domain.ClearanceSecret, got.Clearance)
		assert.Equal(t, "KRSXG5CTMVRXEZLUKRSXG5CTMVRXEZLU", got.TOTPSecret)
		assert.Nil(t, got.LastLogin)

		updated := analyst()
		updated.Clearance = domain.ClearanceTopSecret
		require.NoError(t, repo.Upsert(ctx, updated))
		got, err = repo.GetByUsername(ctx, "analyst")
		require.NoError(t, err)
		assert.Equal(t, domain.ClearanceTopSecret, got.Clearance)

		ok, err := repo.Exists(ctx, "analyst")
		require.NoError(t, err)
		assert.True(t, ok)

		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestIdentityRepositoryRecordLogin(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo IdentityRepository) {
		ctx := context.Background()
		require.NoError(t, repo.Upsert(ctx, analyst()))

		at := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
		got, err := repo.RecordLogin(ctx, "analyst", at)
		require.NoError(t, err)
		assert.Equal(t, 1, got.LoginCount)
		require.NotNil(t, got.LastLogin)
		assert.True(t, at.Equal(*got.LastLogin))

		got, err = repo.RecordLogin(ctx, "analyst", at.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 2, got.LoginCount)

		_, err = repo.RecordLogin(ctx, "ghost", at)
		assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
	})
}

func TestIdentityRepositoryMarkTOTPEnrolled(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo IdentityRepository) {
		ctx := context.Background()
		require.NoError(t, repo.Upsert(ctx, analyst()))

		require.NoError(t, repo.MarkTOTPEnrolled(ctx, "analyst"))
		got, err := repo.GetByUsername(ctx, "analyst")
		require.NoError(t, err)
		assert.True(t, got.TOTPEnrolled)

		assert.ErrorIs(t, repo.MarkTOTPEnrolled(ctx, "ghost"), domain.ErrIdentityNotFound)
	})
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryIdentityRepository()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, analyst()))

	got, err := repo.GetByUsername(ctx, "analyst")
	require.NoError(t, err)
	got.Clearance = domain.ClearanceTopSecret

	again, err := repo.GetByUsername(ctx, "analyst")
	require.NoError(t, err)
	assert.Equal(t, domain.ClearanceSecret, again.Clearance)
}

func TestMemoryRepositoryConcurrentLogins(t *testing.T) {
	repo := NewMemoryIdentityRepository()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, analyst()))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.RecordLogin(ctx, "analyst", time.Now())
		}()
	}
	wg.Wait()

	got, err := repo.GetByUsername(ctx, "analyst")
	require.NoError(t, err)
	assert.Equal(t, 50, got.LoginCount)
}
