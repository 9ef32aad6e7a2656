package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is reference data, e.g. groceries or rent.
type Category struct {
	ID   uint   `gorm:"primarykey" json:"id"`
	Name string `gorm:"size:64;uniqueIndex;not null" json:"name"`
}

// Entry type names. Only these two are seeded.
const (
	EntryTypeIncome  = "income"
	EntryTypeExpense = "expense"
)

// EntryType is reference data naming whether an entry is income or expense.
type EntryType struct {
	ID   uint   `gorm:"primarykey" json:"id"`
	Name string `gorm:"size:7;uniqueIndex;not null" json:"name"`
}

// LedgerEntry is a dated income or expense record in a group's budget.
// Date holds a calendar day at midnight UTC.
type LedgerEntry struct {
	ID         uint            `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	GroupID    uint            `gorm:"not null;index" json:"group_id"`
	TypeID     uint            `gorm:"not null;index" json:"type_id"`
	Date       time.Time       `gorm:"type:date;not null;index" json:"date"`
	Title      string          `gorm:"size:128;not null" json:"title"`
	CategoryID *uint           `gorm:"index" json:"category_id"`
	Value      decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"value"`
	ByID       *uint           `gorm:"index" json:"by_id"`

	// Relationships
	Group    Group     `gorm:"foreignKey:GroupID" json:"-"`
	Type     EntryType `gorm:"foreignKey:TypeID" json:"-"`
	Category *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"-"`
	By       *User     `gorm:"foreignKey:ByID;constraint:OnDelete:SET NULL" json:"-"`
}
