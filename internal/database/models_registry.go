package database

import "bookswap/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models,
// ordered so that referenced tables come first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Book{},
		&models.LoanRequest{},
		&models.Notification{},
		&models.Rating{},
		&models.Dispute{},
		&models.Message{},
	}
}
