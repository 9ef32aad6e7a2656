// Package refdata holds the category and entry-type lookup tables. They are
// read from storage into an immutable snapshot which request handlers read
// without locking; administrative writes swap in a fresh snapshot.
package refdata

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/mikepea/budgetshare/pkg/budgetshare/models"
)

type snapshot struct {
	categories  map[uint]models.Category
	entryTypes  map[uint]models.EntryType
	typesByName map[string]models.EntryType
}

// Catalog serves lookups from the most recently loaded snapshot.
type Catalog struct {
	db   *gorm.DB
	snap atomic.Pointer[snapshot]
}

// NewCatalog returns an empty catalog. Call Load before serving requests.
func NewCatalog(db *gorm.DB) *Catalog {
	c := &Catalog{db: db}
	c.snap.Store(&snapshot{
		categories:  map[uint]models.Category{},
		entryTypes:  map[uint]models.EntryType{},
		typesByName: map[string]models.EntryType{},
	})
	return c
}

// Load reads both tables and replaces the current snapshot.
func (c *Catalog) Load(ctx context.Context) error {
	var categories []models.Category
	if err := c.db.WithContext(ctx).Find(&categories).Error; err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	var types []models.EntryType
	if err := c.db.WithContext(ctx).Find(&types).Error; err != nil {
		return fmt.Errorf("load entry types: %w", err)
	}

	s := &snapshot{
		categories:  make(map[uint]models.Category, len(categories)),
		entryTypes:  make(map[uint]models.EntryType, len(types)),
		typesByName: make(map[string]models.EntryType, len(types)),
	}
	for _, cat := range categories {
		s.categories[cat.ID] = cat
	}
	for _, t := range types {
		s.entryTypes[t.ID] = t
		s.typesByName[t.Name] = t
	}
	c.snap.Store(s)
	return nil
}

func (c *Catalog) Category(id uint) (models.Category, bool) {
	cat, ok := c.snap.Load().categories[id]
	return cat, ok
}

func (c *Catalog) EntryType(id uint) (models.EntryType, bool) {
	t, ok := c.snap.Load().entryTypes[id]
	return t, ok
}

func (c *Catalog) EntryTypeByName(name string) (models.EntryType, bool) {
	t, ok := c.snap.Load().typesByName[name]
	return t, ok
}

// Categories returns all categories ordered by name.
func (c *Catalog) Categories() []models.Category {
	s := c.snap.Load()
	out := make([]models.Category, 0, len(s.categories))
	for _, cat := range s.categories {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EntryTypes returns all entry types ordered by id.
func (c *Catalog) EntryTypes() []models.EntryType {
	s := c.snap.Load()
	out := make([]models.EntryType, 0, len(s.entryTypes))
	for _, t := range s.entryTypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Seed inserts the income and expense types and the given categories when
// they are missing. Existing rows are left alone.
func Seed(ctx context.Context, db *gorm.DB, categories []string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range []string{models.EntryTypeIncome, models.EntryTypeExpense} {
			t := models.EntryType{Name: name}
			if err := tx.Where(models.EntryType{Name: name}).FirstOrCreate(&t).Error; err != nil {
				return fmt.Errorf("seed entry type %q: %w", name, err)
			}
		}
		for _, name := range categories {
			cat := models.Category{Name: name}
			if err := tx.Where(models.Category{Name: name}).FirstOrCreate(&cat).Error; err != nil {
				return fmt.Errorf("seed category %q: %w", name, err)
			}
		}
		return nil
	})
}
