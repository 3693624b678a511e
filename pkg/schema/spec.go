package schema

// CreateForm is the top-level form specification. Nested forms reuse the same
// shape through CreateAttribute.Form.
type CreateForm struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	UserID      int64             `json:"user_id"`
	Language    string            `json:"language,omitempty"`
	View        *CreateFormView   `json:"view,omitempty"`
	Attributes  []CreateAttribute `json:"attributes"`
}

// CreateFormView describes the default table view created alongside a form.
type CreateFormView struct {
	Name           string         `json:"name,omitempty"`
	Description    string         `json:"description,omitempty"`
	ConstraintView map[string]any `json:"constraint_view,omitempty"`
}

// CreateAttribute describes one attribute of a form. Choices apply to
// single/multiple types, Form to form types, Prompts to any type.
type CreateAttribute struct {
	Name    string               `json:"name"`
	Type    AttributeType        `json:"type"`
	View    *CreateAttributeView `json:"view,omitempty"`
	Choices []CreateChoice       `json:"choices,omitempty"`
	Prompts []CreatePrompt       `json:"prompts,omitempty"`
	Form    *CreateForm          `json:"form,omitempty"`
}

// CreateAttributeView carries the per-revision validation and presentation
// configuration of an attribute. Both constraint blobs are opaque to the
// core: they are stored and returned for the validation/presentation layer.
type CreateAttributeView struct {
	ConstraintValue []map[string]any `json:"constraint_value,omitempty"`
	ConstraintView  map[string]any   `json:"constraint_view,omitempty"`
}

// CreateChoice is one option of a single/multiple choice attribute.
type CreateChoice struct {
	ChoiceID    int64  `json:"choice_id"`
	SetName     string `json:"set_name,omitempty"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// CreatePrompt is a localized display label for an attribute.
type CreatePrompt struct {
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// ViewRevisionCreated reports the outcome of creating a new view revision.
type ViewRevisionCreated struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Revision int    `json:"revision"`
}
