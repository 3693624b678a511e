package forms

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/openwis/form-registry/pkg/datastore"
	"github.com/openwis/form-registry/pkg/schema"
)

// FormBuilder compiles form specifications into metadata rows and runtime
// data tables. All mutations run inside a single transaction: a failed build
// leaves no metadata and no tables behind.
type FormBuilder struct {
	db *gorm.DB
}

// NewFormBuilder creates a FormBuilder on the shared database handle.
func NewFormBuilder(db *gorm.DB) *FormBuilder {
	return &FormBuilder{db: db}
}

// DefaultViewName is the view name used when the specification does not name
// one.
func DefaultViewName(formName string) string {
	return strings.ToLower(formName) + "_view"
}

// Build compiles spec into a TableDef tree with a default active view per
// level and one data table per level. It returns the root TableDef.
func (b *FormBuilder) Build(ctx context.Context, spec *schema.CreateForm) (*datastore.TableDef, error) {
	var root *datastore.TableDef
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		def, err := b.buildForm(tx, spec, false, defaultLanguage)
		if err != nil {
			return err
		}
		root = def
		return nil
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}

// buildForm creates one level of the tree: the TableDef, its default view,
// every attribute, and the data table. Recursive attributes re-enter through
// the attribute dispatch with heritable=true. lang is the language code
// inherited from the hosting level; the spec's own Language overrides it.
func (b *FormBuilder) buildForm(tx *gorm.DB, spec *schema.CreateForm, heritable bool, lang string) (*datastore.TableDef, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("form name must not be empty")
	}
	if spec.Language != "" {
		lang = spec.Language
	}

	var count int64
	if err := tx.Model(&datastore.TableDef{}).Where("name = ?", spec.Name).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check form name %q: %w", spec.Name, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("form %q: %w", spec.Name, ErrTableExists)
	}

	def := &datastore.TableDef{
		Name:        spec.Name,
		Description: spec.Description,
		UserID:      spec.UserID,
		Heritable:   heritable,
	}
	if err := tx.Create(def).Error; err != nil {
		return nil, fmt.Errorf("create table def %q: %w", spec.Name, err)
	}

	view, err := b.createDefaultView(tx, def, spec)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	for i := range spec.Attributes {
		attr := &spec.Attributes[i]
		if err := b.validateAttributeName(tx, seen, attr.Name); err != nil {
			return nil, err
		}
		if err := b.buildAttribute(tx, def, view, attr, lang); err != nil {
			return nil, err
		}
	}

	dialect := tx.Dialector.Name()
	ddl := buildDataTableDDL(dialect, DataTableName(spec.Name, heritable), spec.Attributes, heritable)
	if err := applyDDL(tx, ddl); err != nil {
		return nil, fmt.Errorf("form %q: %w", spec.Name, err)
	}
	return def, nil
}

func (b *FormBuilder) createDefaultView(tx *gorm.DB, def *datastore.TableDef, spec *schema.CreateForm) (*datastore.TableView, error) {
	view := &datastore.TableView{
		TableDefID: def.ID,
		Name:       DefaultViewName(spec.Name),
		Revision:   1,
		Active:     true,
		UserID:     spec.UserID,
	}
	if spec.View != nil {
		if spec.View.Name != "" {
			view.Name = spec.View.Name
		}
		view.Description = spec.View.Description
		view.ConstraintView = spec.View.ConstraintView
	}
	if err := tx.Create(view).Error; err != nil {
		return nil, fmt.Errorf("create default view for %q: %w", spec.Name, err)
	}
	return view, nil
}

// validateAttributeName rejects bookkeeping names, the sentinel-state column
// namespace, repeats within the form, and names already claimed by another
// form. Attribute names are globally unique so that data columns and their
// ColumnDef rows stay in bijection.
func (b *FormBuilder) validateAttributeName(tx *gorm.DB, seen map[string]struct{}, name string) error {
	if name == "" {
		return fmt.Errorf("attribute name must not be empty")
	}
	if IsReservedField(name) {
		return fmt.Errorf("attribute %q: %w", name, ErrReservedName)
	}
	if _, dup := seen[name]; dup {
		return fmt.Errorf("attribute %q: %w", name, ErrDuplicateName)
	}
	seen[name] = struct{}{}

	var count int64
	if err := tx.Model(&datastore.ColumnDef{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return fmt.Errorf("check attribute name %q: %w", name, err)
	}
	if count > 0 {
		return fmt.Errorf("attribute %q: %w", name, ErrDuplicateName)
	}
	return nil
}

// CreateTableView adds a named view (revision 1, inactive) to an existing
// form. The name must be unused across the form's views.
func (b *FormBuilder) CreateTableView(ctx context.Context, formName string, spec *schema.CreateFormView, userID int64) (*datastore.TableView, error) {
	if spec == nil || spec.Name == "" {
		return nil, fmt.Errorf("view name must not be empty")
	}
	var created *datastore.TableView
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		def, err := tableDefByName(tx, formName)
		if err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&datastore.TableView{}).
			Where("table_def_id = ? AND name = ?", def.ID, spec.Name).
			Count(&count).Error; err != nil {
			return fmt.Errorf("check view name %q: %w", spec.Name, err)
		}
		if count > 0 {
			return fmt.Errorf("view %q: %w", spec.Name, ErrViewExists)
		}
		created = &datastore.TableView{
			TableDefID:     def.ID,
			Name:           spec.Name,
			Description:    spec.Description,
			Revision:       1,
			Active:         false,
			UserID:         userID,
			ConstraintView: spec.ConstraintView,
		}
		if err := tx.Create(created).Error; err != nil {
			return fmt.Errorf("create view %q: %w", spec.Name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func tableDefByName(tx *gorm.DB, name string) (*datastore.TableDef, error) {
	var def datastore.TableDef
	if err := tx.Where("name = ?", name).First(&def).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("form %q: %w", name, ErrTableNotFound)
		}
		return nil, fmt.Errorf("load form %q: %w", name, err)
	}
	return &def, nil
}
