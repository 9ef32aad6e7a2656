package models

import "gorm.io/gorm"

// AllModels returns all models for migration.
// Referenced tables come before the tables pointing at them.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&APIKey{},
		&Category{},
		&EntryType{},
		&Group{},
		&Membership{},
		&InvitationRequest{},
		&LedgerEntry{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
