package database

import (
	"log"
	"os"
	"time"

	"linkup/backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) {
	var err error

	// Configure GORM logger
	customLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             200 * time.Millisecond, // Slow SQL threshold
			LogLevel:                  logger.Warn,            // Log level
			IgnoreRecordNotFoundError: true,                   // Ignore ErrRecordNotFound error for logger
			Colorful:                  true,                   // Enable color
		},
	)

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: customLogger,
		// Unique violations surface as gorm.ErrDuplicatedKey so the store can
		// translate them instead of leaking driver errors.
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Database connection established.")

	// Run migrations
	err = DB.AutoMigrate(
		&models.User{},
		&models.Relationship{},
		&models.RelationshipStats{},
		&models.Conversation{},
		&models.Message{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Usernames are unique case-insensitively.
	err = DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username))").Error
	if err != nil {
		log.Fatalf("Failed to create username index: %v", err)
	}

	log.Println("Database migrated successfully.")
}
