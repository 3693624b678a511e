package forms

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/openwis/form-registry/pkg/datastore"
	"github.com/openwis/form-registry/pkg/schema"
)

// readAttribute reconstructs one attribute, dispatching on its type: choice
// types resolve their choice set, form types recurse into the nested
// definition. Multiple-choice attributes surface their choices and hide the
// backing sub-form.
func (r *FormReader) readAttribute(tx *gorm.DB, col *datastore.ColumnDef, cv *datastore.ColumnView, sc SchemaContext) (*AttributeSchema, error) {
	attr := &AttributeSchema{
		ID:          col.ID,
		Name:        col.Name,
		Type:        col.AttributeType,
		ChoiceSetID: col.ChoiceSetID,
	}
	for _, p := range col.Prompts {
		attr.Prompts = append(attr.Prompts, PromptSchema{
			Value:        p.Value,
			Description:  p.Description,
			LanguageCode: p.LanguageCode,
			Role:         p.Role,
		})
	}
	if cv != nil {
		attr.ConstraintValue = cv.ConstraintValue
		attr.ConstraintView = cv.ConstraintView
	}

	switch col.AttributeType {
	case schema.TypeSingle, schema.TypeMultiple:
		choices, err := r.readChoices(tx, col)
		if err != nil {
			return nil, err
		}
		attr.Choices = choices

	case schema.TypeForm, schema.TypeFormOrNull:
		if col.AttributeTypeID == nil {
			return nil, fmt.Errorf("attribute %q has no nested form: %w", col.Name, ErrMissingSubForm)
		}
		var sub datastore.TableDef
		if err := tx.First(&sub, *col.AttributeTypeID).Error; err != nil {
			return nil, fmt.Errorf("load nested form of %q: %w", col.Name, err)
		}
		nested, err := r.readDef(tx, &sub, sc)
		if err != nil {
			return nil, err
		}
		attr.Form = nested
	}
	return attr, nil
}

// readChoices loads an attribute's choice set in rank order.
func (r *FormReader) readChoices(tx *gorm.DB, col *datastore.ColumnDef) ([]ChoiceSchema, error) {
	if col.ChoiceSetID == nil {
		return nil, fmt.Errorf("attribute %q: %w", col.Name, ErrUndefinedChoices)
	}
	var rows []datastore.Choice
	if err := tx.Where("set_id = ?", *col.ChoiceSetID).
		Order("choice_rank, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load choices of %q: %w", col.Name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("attribute %q set %d: %w", col.Name, *col.ChoiceSetID, ErrUndefinedChoices)
	}
	out := make([]ChoiceSchema, 0, len(rows))
	for _, c := range rows {
		out = append(out, ChoiceSchema{
			ChoiceID:    c.ChoiceID,
			Value:       c.Value,
			Description: c.Description,
			Rank:        c.Rank,
		})
	}
	return out, nil
}
