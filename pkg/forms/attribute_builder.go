package forms

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/openwis/form-registry/pkg/datastore"
	"github.com/openwis/form-registry/pkg/schema"
)

// MultipleFormSuffix names the hidden sub-form that stores the selections of
// a multiple-choice attribute. Its two columns carry either the numeric
// choice id or free text.
const (
	MultipleFormSuffix = "_form"
	MultipleIntSuffix  = "_int"
	MultipleTextSuffix = "_text"
)

// buildAttribute dispatches one attribute to its type-specific construction.
// Primitive types become a ColumnDef plus a data column; choice types bind a
// choice set; recursive types build a heritable sub-form and link it through
// AttributeTypeID. lang is the enclosing form's language code; sub-forms
// inherit it unless they carry their own.
func (b *FormBuilder) buildAttribute(tx *gorm.DB, def *datastore.TableDef, view *datastore.TableView, attr *schema.CreateAttribute, lang string) error {
	if !attr.Type.Valid() {
		return fmt.Errorf("attribute %q type %q: %w", attr.Name, attr.Type, ErrUnknownType)
	}

	switch attr.Type {
	case schema.TypeSingle:
		setID, err := b.createChoiceSet(tx, attr, lang)
		if err != nil {
			return err
		}
		return b.createColumn(tx, def, view, attr, &setID, nil, lang)

	case schema.TypeMultiple:
		setID, err := b.createChoiceSet(tx, attr, lang)
		if err != nil {
			return err
		}
		sub, err := b.buildForm(tx, multipleSubForm(attr.Name, def.UserID, lang), true, lang)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", attr.Name, err)
		}
		return b.createColumn(tx, def, view, attr, &setID, &sub.ID, lang)

	case schema.TypeForm, schema.TypeFormOrNull:
		if attr.Form == nil {
			return fmt.Errorf("attribute %q: %w", attr.Name, ErrMissingSubForm)
		}
		sub, err := b.buildForm(tx, attr.Form, true, lang)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", attr.Name, err)
		}
		return b.createColumn(tx, def, view, attr, nil, &sub.ID, lang)

	default:
		return b.createColumn(tx, def, view, attr, nil, nil, lang)
	}
}

// multipleSubForm synthesizes the hidden heritable form backing a
// multiple-choice attribute.
func multipleSubForm(attrName string, userID int64, lang string) *schema.CreateForm {
	return &schema.CreateForm{
		Name:     attrName + MultipleFormSuffix,
		UserID:   userID,
		Language: lang,
		Attributes: []schema.CreateAttribute{
			{Name: attrName + MultipleIntSuffix, Type: schema.TypeInt},
			{Name: attrName + MultipleTextSuffix, Type: schema.TypeText},
		},
	}
}

// createColumn records the attribute's ColumnDef, its ColumnView under the
// form's default view, and any prompts.
func (b *FormBuilder) createColumn(tx *gorm.DB, def *datastore.TableDef, view *datastore.TableView, attr *schema.CreateAttribute, choiceSetID, attrTypeID *int64, lang string) error {
	col := &datastore.ColumnDef{
		Name:            attr.Name,
		TableDefID:      def.ID,
		UserID:          def.UserID,
		AttributeType:   attr.Type,
		AttributeTypeID: attrTypeID,
		ChoiceSetID:     choiceSetID,
	}
	if err := tx.Create(col).Error; err != nil {
		return fmt.Errorf("create column def %q: %w", attr.Name, err)
	}

	cv := &datastore.ColumnView{
		ColumnDefID: col.ID,
		TableViewID: view.ID,
		UserID:      def.UserID,
		ChoiceSetID: choiceSetID,
	}
	if attr.View != nil {
		cv.ConstraintValue = attr.View.ConstraintValue
		cv.ConstraintView = attr.View.ConstraintView
	}
	if err := tx.Create(cv).Error; err != nil {
		return fmt.Errorf("create column view %q: %w", attr.Name, err)
	}

	for _, p := range attr.Prompts {
		prompt := &datastore.AttributePrompt{
			ColumnDefID:  col.ID,
			Value:        p.Value,
			Description:  p.Description,
			LanguageCode: lang,
			Role:         "label",
		}
		if err := tx.Create(prompt).Error; err != nil {
			return fmt.Errorf("create prompt for %q: %w", attr.Name, err)
		}
	}
	return nil
}

const defaultLanguage = "en_US"

// createChoiceSet allocates the next set_id and inserts the attribute's
// choices in declaration order. Choice ids must be unique within the set.
func (b *FormBuilder) createChoiceSet(tx *gorm.DB, attr *schema.CreateAttribute, lang string) (int64, error) {
	if len(attr.Choices) == 0 {
		return 0, fmt.Errorf("attribute %q: %w", attr.Name, ErrMissingChoices)
	}

	var maxSet int64
	if err := tx.Model(&datastore.Choice{}).
		Select("COALESCE(MAX(set_id), 0)").Scan(&maxSet).Error; err != nil {
		return 0, fmt.Errorf("allocate choice set for %q: %w", attr.Name, err)
	}
	setID := maxSet + 1

	seen := map[int64]struct{}{}
	rows := make([]datastore.Choice, 0, len(attr.Choices))
	for rank, c := range attr.Choices {
		if _, dup := seen[c.ChoiceID]; dup {
			return 0, fmt.Errorf("attribute %q choice %d: %w", attr.Name, c.ChoiceID, ErrDuplicateChoice)
		}
		seen[c.ChoiceID] = struct{}{}

		setName := c.SetName
		if setName == "" {
			setName = attr.Name
		}
		rows = append(rows, datastore.Choice{
			ChoiceID:     c.ChoiceID,
			SetID:        setID,
			SetName:      setName,
			Value:        c.Value,
			Description:  c.Description,
			Rank:         rank,
			LanguageCode: lang,
		})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("create choice set for %q: %w", attr.Name, err)
	}
	return setID, nil
}
