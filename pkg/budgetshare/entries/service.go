// Package entries manages a group's ledger of income and expense entries.
package entries

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mikepea/budgetshare/pkg/budgetshare/access"
	"github.com/mikepea/budgetshare/pkg/budgetshare/apierr"
	"github.com/mikepea/budgetshare/pkg/budgetshare/metrics"
	"github.com/mikepea/budgetshare/pkg/budgetshare/models"
	"github.com/mikepea/budgetshare/pkg/budgetshare/refdata"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Service implements ledger entry operations.
type Service struct {
	db        *gorm.DB
	policy    *access.Policy
	catalog   *refdata.Catalog
	validator *Validator
}

func NewService(db *gorm.DB, policy *access.Policy, catalog *refdata.Catalog, loc *time.Location) *Service {
	return &Service{
		db:        db,
		policy:    policy,
		catalog:   catalog,
		validator: NewValidator(catalog, policy, loc),
	}
}

// Validator exposes the service's field validator.
func (s *Service) Validator() *Validator {
	return s.validator
}

// Filter narrows List and Summary. Zero values mean no restriction.
type Filter struct {
	TypeID     uint
	CategoryID uint
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// CategoryTotal sums one category's entries by type.
type CategoryTotal struct {
	CategoryID *uint
	Name       string
	Income     decimal.Decimal
	Expense    decimal.Decimal
}

// Summary totals a group's ledger.
type Summary struct {
	Count      int
	Income     decimal.Decimal
	Expense    decimal.Decimal
	Balance    decimal.Decimal
	ByCategory []CategoryTotal
}

// Create adds an entry to the group's ledger.
func (s *Service) Create(ctx context.Context, userID, groupID uint, in Input) (*models.LedgerEntry, error) {
	if _, err := s.policy.Resolve(ctx, userID, groupID, access.WriteLedger); err != nil {
		return nil, err
	}
	v, err := s.validator.validate(ctx, groupID, in, false)
	if err != nil {
		return nil, err
	}

	entry := models.LedgerEntry{
		GroupID:    groupID,
		TypeID:     *v.TypeID,
		Date:       *v.Date,
		Title:      *v.Title,
		CategoryID: v.CategoryID,
		Value:      *v.Value,
		ByID:       v.ByID,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}
	metrics.LedgerWrites.WithLabelValues("create").Inc()
	return &entry, nil
}

// Get returns one entry of the group.
func (s *Service) Get(ctx context.Context, userID, groupID, entryID uint) (*models.LedgerEntry, error) {
	if _, err := s.policy.Resolve(ctx, userID, groupID, access.ReadLedger); err != nil {
		return nil, err
	}
	return s.load(ctx, groupID, entryID)
}

func (s *Service) load(ctx context.Context, groupID, entryID uint) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := s.db.WithContext(ctx).Where("id = ? AND group_id = ?", entryID, groupID).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("Entry not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load entry: %w", err)
	}
	return &entry, nil
}

// Update applies the fields present in in and keeps the rest.
func (s *Service) Update(ctx context.Context, userID, groupID, entryID uint, in Input) (*models.LedgerEntry, error) {
	if _, err := s.policy.Resolve(ctx, userID, groupID, access.WriteLedger); err != nil {
		return nil, err
	}
	entry, err := s.load(ctx, groupID, entryID)
	if err != nil {
		return nil, err
	}
	v, err := s.validator.validate(ctx, groupID, in, true)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if v.TypeID != nil {
		updates["type_id"] = *v.TypeID
		entry.TypeID = *v.TypeID
	}
	if v.Date != nil {
		updates["date"] = *v.Date
		entry.Date = *v.Date
	}
	if v.Title != nil {
		updates["title"] = *v.Title
		entry.Title = *v.Title
	}
	if v.CategoryID != nil {
		updates["category_id"] = *v.CategoryID
		entry.CategoryID = v.CategoryID
	}
	if v.Value != nil {
		updates["value"] = *v.Value
		entry.Value = *v.Value
	}
	if v.ByID != nil {
		updates["by_id"] = *v.ByID
		entry.ByID = v.ByID
	}
	if len(updates) == 0 {
		return entry, nil
	}

	if err := s.db.WithContext(ctx).Model(entry).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	metrics.LedgerWrites.WithLabelValues("update").Inc()
	return entry, nil
}

// Delete removes an entry from the group's ledger.
func (s *Service) Delete(ctx context.Context, userID, groupID, entryID uint) error {
	if _, err := s.policy.Resolve(ctx, userID, groupID, access.WriteLedger); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Where("id = ? AND group_id = ?", entryID, groupID).Delete(&models.LedgerEntry{})
	if result.Error != nil {
		return fmt.Errorf("delete entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apierr.NotFound("Entry not found")
	}
	metrics.LedgerWrites.WithLabelValues("delete").Inc()
	return nil
}

func (s *Service) query(ctx context.Context, groupID uint, f Filter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.LedgerEntry{}).Where("group_id = ?", groupID)
	if f.TypeID != 0 {
		q = q.Where("type_id = ?", f.TypeID)
	}
	if f.CategoryID != 0 {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.From != nil {
		q = q.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("date <= ?", *f.To)
	}
	return q
}

// List returns the group's entries, newest date first, and the total
// number of matching entries before pagination.
func (s *Service) List(ctx context.Context, userID, groupID uint, f Filter) ([]models.LedgerEntry, int64, error) {
	if _, err := s.policy.Resolve(ctx, userID, groupID, access.ReadLedger); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.query(ctx, groupID, f).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	var out []models.LedgerEntry
	err := s.query(ctx, groupID, f).
		Order("date DESC, id DESC").
		Limit(limit).
		Offset(f.Offset).
		Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	return out, total, nil
}

// Summary totals income and expense over the filtered entries. Limit and
// Offset are ignored.
func (s *Service) Summary(ctx context.Context, userID, groupID uint, f Filter) (*Summary, error) {
	if _, err := s.policy.Resolve(ctx, userID, groupID, access.ReadLedger); err != nil {
		return nil, err
	}

	var rows []models.LedgerEntry
	if err := s.query(ctx, groupID, f).Select("type_id", "category_id", "value").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	income, _ := s.catalog.EntryTypeByName(models.EntryTypeIncome)
	sum := &Summary{Count: len(rows)}
	byCategory := map[uint]*CategoryTotal{}

	for _, e := range rows {
		var key uint
		if e.CategoryID != nil {
			key = *e.CategoryID
		}
		ct, ok := byCategory[key]
		if !ok {
			ct = &CategoryTotal{CategoryID: e.CategoryID}
			if cat, found := s.catalog.Category(key); found {
				ct.Name = cat.Name
			}
			byCategory[key] = ct
		}

		if e.TypeID == income.ID {
			sum.Income = sum.Income.Add(e.Value)
			ct.Income = ct.Income.Add(e.Value)
		} else {
			sum.Expense = sum.Expense.Add(e.Value)
			ct.Expense = ct.Expense.Add(e.Value)
		}
	}
	sum.Balance = sum.Income.Sub(sum.Expense)

	sum.ByCategory = make([]CategoryTotal, 0, len(byCategory))
	for _, ct := range byCategory {
		sum.ByCategory = append(sum.ByCategory, *ct)
	}
	sort.Slice(sum.ByCategory, func(i, j int) bool {
		return sum.ByCategory[i].Name < sum.ByCategory[j].Name
	})
	return sum, nil
}
