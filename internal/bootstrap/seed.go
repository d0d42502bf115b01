package bootstrap

import (
	"errors"
	"strings"

	"anoa.com/tutorhub/internal/entity"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Migrate creates the tables this service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.Notification{},
	)
}

// MigrateReadModels creates the tables owned by the rest of the platform.
// Only used for local development and tests.
func MigrateReadModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.PayoutRequest{},
		&entity.VerificationRequest{},
		&entity.TeachingSession{},
		&entity.Dispute{},
	)
}

func SeedAdminUser(db *gorm.DB, email, password string, logger *zap.Logger) error {
	if password == "" {
		return errors.New("ADMIN_SEED_PASSWORD must be set to seed the admin user")
	}
	email = strings.ToLower(strings.TrimSpace(email))

	var count int64
	if err := db.Model(&entity.User{}).
		Where("email = ?", email).
		Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		logger.Info("admin user already exists, skipping seed", zap.String("email", email))
		return nil
	}

	hashedPasswordBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	adminUser := entity.User{
		Name:         "Administrator",
		Email:        email,
		PasswordHash: string(hashedPasswordBytes),
		Role:         entity.RoleAdmin,
	}

	if err := db.Create(&adminUser).Error; err != nil {
		return err
	}

	logger.Info("admin user seeded", zap.String("email", email), zap.String("user_id", adminUser.ID.String()))
	return nil
}
