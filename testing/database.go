// Package testing provides test utilities and database setup for testing the client portal
package testing

import (
	"context"
	"fmt"
	"log"

	"github.com/clearledger/portal-api/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB represents a test database instance
type TestDB struct {
	DB *gorm.DB
}

// SetupTestDB opens an isolated in-memory SQLite database and migrates
// the full schema. Each call gets its own database, so tests can run in
// parallel without interference.
func SetupTestDB() (*TestDB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=private"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.UserSession{},
		&models.Admin{},
		&models.Account{},
		&models.IndividualProfile{},
		&models.CompanyProfile{},
		&models.TrustProfile{},
		&models.PartnershipProfile{},
		&models.Partner{},
		&models.LegalConsent{},
		&models.Service{},
		&models.ServicePrice{},
		&models.AccountService{},
		&models.WebhookEvent{},
		&models.NotificationOutbox{},
		&models.AuditLog{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate test schema: %w", err)
	}

	return &TestDB{DB: db}, nil
}

// TeardownTestDB closes the underlying connection
func (tdb *TestDB) TeardownTestDB() error {
	if tdb.DB == nil {
		return nil
	}
	sqlDB, err := tdb.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ClearAllTables removes all data from tables while preserving structure
func (tdb *TestDB) ClearAllTables() error {
	// Order matters due to foreign key constraints
	tables := []string{
		"audit_log",
		"notification_outbox",
		"webhook_events",
		"account_services",
		"legal_consents",
		"partners",
		"individual_profiles",
		"company_profiles",
		"trust_profiles",
		"partnership_profiles",
		"accounts",
		"service_prices",
		"services",
		"user_sessions",
		"users",
		"admins",
	}

	for _, table := range tables {
		if err := tdb.DB.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}

	return nil
}

// TestWithDB sets up a test database, runs the test function, and cleans up
func TestWithDB(testFunc func(*TestDB) error) error {
	testDB, err := SetupTestDB()
	if err != nil {
		return fmt.Errorf("failed to setup test database: %w", err)
	}
	defer func() {
		if cleanupErr := testDB.TeardownTestDB(); cleanupErr != nil {
			log.Printf("Warning: failed to cleanup test database: %v", cleanupErr)
		}
	}()

	return testFunc(testDB)
}

// CreateTestContext creates a context for testing
func CreateTestContext() context.Context {
	return context.Background()
}
