package forms

import (
	"context"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"gorm.io/gorm"

	"github.com/openwis/form-registry/pkg/datastore"
)

// SchemaCache is a read-through snapshot of the form metadata: table defs by
// id and name, column defs by name, choice sets by set id. Validation paths
// hit it on every submitted field, so lookups stay off the database; Refresh
// rebuilds the snapshot after schema changes.
type SchemaCache struct {
	db *gorm.DB

	mu           sync.RWMutex
	defsByID     map[int64]*datastore.TableDef
	defsByName   map[string]*datastore.TableDef
	colsByName   map[string]*datastore.ColumnDef
	choicesBySet map[int64][]datastore.Choice
	choiceIDs    map[int64]mapset.Set[int64]
}

// NewSchemaCache creates an empty cache. Call Refresh before first use.
func NewSchemaCache(db *gorm.DB) *SchemaCache {
	return &SchemaCache{db: db}
}

// Refresh replaces the snapshot with the current metadata state.
func (c *SchemaCache) Refresh(ctx context.Context) error {
	tx := c.db.WithContext(ctx)

	var defs []datastore.TableDef
	if err := tx.Find(&defs).Error; err != nil {
		return fmt.Errorf("load table defs: %w", err)
	}
	var cols []datastore.ColumnDef
	if err := tx.Find(&cols).Error; err != nil {
		return fmt.Errorf("load column defs: %w", err)
	}
	var choices []datastore.Choice
	if err := tx.Order("set_id, choice_rank, id").Find(&choices).Error; err != nil {
		return fmt.Errorf("load choices: %w", err)
	}

	defsByID := make(map[int64]*datastore.TableDef, len(defs))
	defsByName := make(map[string]*datastore.TableDef, len(defs))
	for i := range defs {
		defsByID[defs[i].ID] = &defs[i]
		defsByName[defs[i].Name] = &defs[i]
	}
	colsByName := make(map[string]*datastore.ColumnDef, len(cols))
	for i := range cols {
		colsByName[cols[i].Name] = &cols[i]
	}
	choicesBySet := make(map[int64][]datastore.Choice)
	choiceIDs := make(map[int64]mapset.Set[int64])
	for _, ch := range choices {
		choicesBySet[ch.SetID] = append(choicesBySet[ch.SetID], ch)
		set, ok := choiceIDs[ch.SetID]
		if !ok {
			set = mapset.NewSet[int64]()
			choiceIDs[ch.SetID] = set
		}
		set.Add(ch.ChoiceID)
	}

	c.mu.Lock()
	c.defsByID = defsByID
	c.defsByName = defsByName
	c.colsByName = colsByName
	c.choicesBySet = choicesBySet
	c.choiceIDs = choiceIDs
	c.mu.Unlock()
	return nil
}

// TableDefByID returns the cached table def with the given id.
func (c *SchemaCache) TableDefByID(id int64) (*datastore.TableDef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.defsByID[id]
	return d, ok
}

// TableDefByName returns the cached table def with the given name.
func (c *SchemaCache) TableDefByName(name string) (*datastore.TableDef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.defsByName[name]
	return d, ok
}

// ColumnDefByName returns the cached column def with the given attribute
// name. Attribute names are globally unique.
func (c *SchemaCache) ColumnDefByName(name string) (*datastore.ColumnDef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.colsByName[name]
	return d, ok
}

// ChoiceSet returns the cached choices of a set in rank order.
func (c *SchemaCache) ChoiceSet(setID int64) ([]datastore.Choice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows, ok := c.choicesBySet[setID]
	return rows, ok
}

// ChoiceIDs returns the set of valid choice ids of a choice set.
func (c *SchemaCache) ChoiceIDs(setID int64) (mapset.Set[int64], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.choiceIDs[setID]
	return s, ok
}
