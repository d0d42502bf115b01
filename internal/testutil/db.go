package testutil

import (
	"testing"
	"time"

	"anoa.com/tutorhub/internal/bootstrap"
	"anoa.com/tutorhub/internal/entity"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens an in-memory sqlite database with every table migrated.
// It is closed automatically when the test completes.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("getting sql db: %v", err)
	}
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)

	if err := bootstrap.MigrateReadModels(db); err != nil {
		t.Fatalf("migrating read models: %v", err)
	}
	if err := bootstrap.Migrate(db); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	t.Cleanup(func() {
		if err := sqlDB.Close(); err != nil {
			t.Errorf("closing test db: %v", err)
		}
	})

	return db
}

// CreateUser inserts a user with the given role and returns it.
func CreateUser(t *testing.T, db *gorm.DB, name string, role entity.Role) *entity.User {
	t.Helper()

	u := &entity.User{
		ID:    uuid.New(),
		Name:  name,
		Email: name + "-" + uuid.NewString()[:8] + "@example.com",
		Role:  role,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("creating user %s: %v", name, err)
	}
	return u
}

// Clock returns a deterministic clock that advances by step on every call.
func Clock(start time.Time, step time.Duration) func() time.Time {
	now := start
	return func() time.Time {
		t := now
		now = now.Add(step)
		return t
	}
}
