package forms

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/openwis/form-registry/pkg/datastore"
	"github.com/openwis/form-registry/pkg/schema"
)

// SchemaContext selects how much of a form the reader reconstructs.
type SchemaContext int

const (
	// ContextForm reconstructs structure only: attributes, types, prompts,
	// choices, nested forms.
	ContextForm SchemaContext = iota
	// ContextView additionally attaches the active view's validation and
	// presentation configuration at every level.
	ContextView
)

// FormSchema is the reader's reconstruction of one form level.
type FormSchema struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Heritable   bool              `json:"heritable"`
	TableName   string            `json:"table_name"`
	View        *ViewSchema       `json:"view,omitempty"`
	Attributes  []AttributeSchema `json:"attributes"`
}

// ViewSchema is the active view configuration of a form level.
type ViewSchema struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	Revision       int            `json:"revision"`
	Description    string         `json:"description,omitempty"`
	ConstraintView map[string]any `json:"constraint_view,omitempty"`
}

// AttributeSchema is one attribute of a reconstructed form. Form holds the
// nested schema for form-typed attributes; Choices the option set for
// single/multiple attributes. The constraint blobs are present only under
// ContextView.
type AttributeSchema struct {
	ID              int64                `json:"id"`
	Name            string               `json:"name"`
	Type            schema.AttributeType `json:"type"`
	ChoiceSetID     *int64               `json:"choice_set_id,omitempty"`
	Prompts         []PromptSchema       `json:"prompts,omitempty"`
	Choices         []ChoiceSchema       `json:"choices,omitempty"`
	ConstraintValue []map[string]any     `json:"constraint_value,omitempty"`
	ConstraintView  map[string]any       `json:"constraint_view,omitempty"`
	Form            *FormSchema          `json:"form,omitempty"`
}

// PromptSchema is a display label of an attribute.
type PromptSchema struct {
	Value        string `json:"value"`
	Description  string `json:"description,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	Role         string `json:"role,omitempty"`
}

// ChoiceSchema is one option of a choice attribute, in rank order.
type ChoiceSchema struct {
	ChoiceID    int64  `json:"choice_id"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	Rank        int    `json:"rank"`
}

// FormReader reconstructs nested form schemas from metadata rows.
type FormReader struct {
	db *gorm.DB
}

// NewFormReader creates a FormReader on the shared database handle.
func NewFormReader(db *gorm.DB) *FormReader {
	return &FormReader{db: db}
}

// ReadForm reconstructs the named form without view configuration.
func (r *FormReader) ReadForm(ctx context.Context, name string) (*FormSchema, error) {
	return r.read(ctx, name, ContextForm)
}

// ReadFormView reconstructs the named form with its active view configuration
// at every level.
func (r *FormReader) ReadFormView(ctx context.Context, name string) (*FormSchema, error) {
	return r.read(ctx, name, ContextView)
}

func (r *FormReader) read(ctx context.Context, name string, sc SchemaContext) (*FormSchema, error) {
	tx := r.db.WithContext(ctx)
	def, err := tableDefByName(tx, name)
	if err != nil {
		return nil, err
	}
	return r.readDef(tx, def, sc)
}

// ReadByViewID reconstructs the form owning the given view, using that view's
// configuration at the root level and active views below.
func (r *FormReader) ReadByViewID(ctx context.Context, viewID int64) (*FormSchema, error) {
	tx := r.db.WithContext(ctx)
	view, err := tableViewByID(tx, viewID)
	if err != nil {
		return nil, err
	}
	var def datastore.TableDef
	if err := tx.First(&def, view.TableDefID).Error; err != nil {
		return nil, fmt.Errorf("load form %d: %w", view.TableDefID, err)
	}
	return r.readDefWithView(tx, &def, view, ContextView)
}

func (r *FormReader) readDef(tx *gorm.DB, def *datastore.TableDef, sc SchemaContext) (*FormSchema, error) {
	var view *datastore.TableView
	if sc == ContextView {
		v, err := activeView(tx, def.ID)
		if err != nil {
			return nil, err
		}
		view = v
	}
	return r.readDefWithView(tx, def, view, sc)
}

func (r *FormReader) readDefWithView(tx *gorm.DB, def *datastore.TableDef, view *datastore.TableView, sc SchemaContext) (*FormSchema, error) {
	out := &FormSchema{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		Heritable:   def.Heritable,
		TableName:   DataTableName(def.Name, def.Heritable),
	}
	var columnViews map[int64]*datastore.ColumnView
	if view != nil {
		out.View = &ViewSchema{
			ID:             view.ID,
			Name:           view.Name,
			Revision:       view.Revision,
			Description:    view.Description,
			ConstraintView: view.ConstraintView,
		}
		var cvs []datastore.ColumnView
		if err := tx.Where("table_view_id = ?", view.ID).Find(&cvs).Error; err != nil {
			return nil, fmt.Errorf("load column views of %q: %w", def.Name, err)
		}
		columnViews = make(map[int64]*datastore.ColumnView, len(cvs))
		for i := range cvs {
			columnViews[cvs[i].ColumnDefID] = &cvs[i]
		}
	}

	var cols []datastore.ColumnDef
	if err := tx.Where("table_def_id = ?", def.ID).Order("id").
		Preload("Prompts").Find(&cols).Error; err != nil {
		return nil, fmt.Errorf("load columns of %q: %w", def.Name, err)
	}

	for i := range cols {
		attr, err := r.readAttribute(tx, &cols[i], columnViews[cols[i].ID], sc)
		if err != nil {
			return nil, err
		}
		out.Attributes = append(out.Attributes, *attr)
	}
	return out, nil
}

// activeView returns the active view of a form. Exactly one is expected; a
// form with none is an error under ContextView.
func activeView(tx *gorm.DB, tableDefID int64) (*datastore.TableView, error) {
	var view datastore.TableView
	err := tx.Where("table_def_id = ? AND active = ?", tableDefID, true).
		Order("revision DESC").First(&view).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("form %d has no active view: %w", tableDefID, ErrViewNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load active view of form %d: %w", tableDefID, err)
	}
	return &view, nil
}
