// Package datastore holds the registry's fixed metadata model: form and view
// definitions, attribute definitions and their per-revision overrides, choice
// sets, prompts, submission objects and restatements. The runtime data tables
// generated per form are not modeled here; they are created and accessed
// through raw SQL by the forms and submission packages.
package datastore

import (
	"time"

	"github.com/openwis/form-registry/pkg/schema"
)

// TableDef is the identity of one form (or sub-form). Identity is immutable
// after creation: new schema versions create new TableDef rows.
type TableDef struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name        string    `gorm:"column:name;type:varchar(256);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	UserID      int64     `gorm:"column:user_id" json:"user_id"`
	Heritable   bool      `gorm:"column:heritable;default:false" json:"heritable"`
	CreatedOn   time.Time `gorm:"column:created_on;autoCreateTime" json:"created_on"`

	Views   []TableView `gorm:"foreignKey:TableDefID" json:"views"`
	Columns []ColumnDef `gorm:"foreignKey:TableDefID" json:"columns"`
}

// TableName returns the GORM table name.
func (TableDef) TableName() string { return "reg_table_def" }

// TableView is one revision of a TableDef's presentation and validation
// configuration. Revision numbers are monotonic per view name; at most one
// revision is active for serving at a time, enforced by the revision
// operations rather than a database constraint.
type TableView struct {
	ID               int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	TableDefID       int64     `gorm:"column:table_def_id;index;not null" json:"table_def_id"`
	Name             string    `gorm:"column:name;type:varchar(256);not null" json:"name"`
	Description      string    `gorm:"column:description;type:text" json:"description"`
	Revision         int       `gorm:"column:revision;not null" json:"revision"`
	Active           bool      `gorm:"column:active;default:false" json:"active"`
	UserID           int64     `gorm:"column:user_id" json:"user_id"`
	PermissionsSetID *int64    `gorm:"column:permissions_set_id" json:"permissions_set_id"`
	ConstraintView   JSONMap   `gorm:"column:constraint_view;type:text" json:"constraint_view"`
	CreatedOn        time.Time `gorm:"column:created_on;autoCreateTime" json:"created_on"`

	ColumnViews []ColumnView `gorm:"foreignKey:TableViewID" json:"column_views"`
}

// TableName returns the GORM table name.
func (TableView) TableName() string { return "reg_table_view" }

// ColumnDef is the identity of one attribute of a form. AttributeTypeID
// references the sub-form TableDef for form/multiple types, and ChoiceSetID
// the choice set for single/multiple types.
type ColumnDef struct {
	ID              int64                `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name            string               `gorm:"column:name;type:varchar(256);uniqueIndex;not null" json:"name"`
	TableDefID      int64                `gorm:"column:table_def_id;index;not null" json:"table_def_id"`
	UserID          int64                `gorm:"column:user_id" json:"user_id"`
	AttributeType   schema.AttributeType `gorm:"column:attribute_type;type:varchar(32);not null" json:"attribute_type"`
	AttributeTypeID *int64               `gorm:"column:attribute_type_id" json:"attribute_type_id"`
	ChoiceSetID     *int64               `gorm:"column:choice_set_id" json:"choice_set_id"`
	CreatedOn       time.Time            `gorm:"column:created_on;autoCreateTime" json:"created_on"`

	Views   []ColumnView      `gorm:"foreignKey:ColumnDefID" json:"views"`
	Prompts []AttributePrompt `gorm:"foreignKey:ColumnDefID" json:"prompts"`
}

// TableName returns the GORM table name.
func (ColumnDef) TableName() string { return "reg_column_def" }

// ColumnView is the per-revision configuration of one attribute: validation
// rules (constraint_value), presentation (constraint_view), permissions and
// choice set binding. Both constraint blobs are opaque to the core.
type ColumnView struct {
	ID               int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	ColumnDefID      int64     `gorm:"column:column_def_id;index;not null" json:"column_def_id"`
	TableViewID      int64     `gorm:"column:table_view_id;index;not null" json:"table_view_id"`
	UserID           int64     `gorm:"column:user_id" json:"user_id"`
	PermissionsSetID *int64    `gorm:"column:permissions_set_id" json:"permissions_set_id"`
	ConstraintValue  JSONSlice `gorm:"column:constraint_value;type:text" json:"constraint_value"`
	ConstraintView   JSONMap   `gorm:"column:constraint_view;type:text" json:"constraint_view"`
	ChoiceSetID      *int64    `gorm:"column:choice_set_id" json:"choice_set_id"`
	CreatedOn        time.Time `gorm:"column:created_on;autoCreateTime" json:"created_on"`
}

// TableName returns the GORM table name.
func (ColumnView) TableName() string { return "reg_column_view" }

// Choice is one option in a choice set. A set is the collection of rows
// sharing a set_id; choice_id is the caller-facing value stored in data
// tables and must be unique within a set (per language).
type Choice struct {
	ID           int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	ChoiceID     int64     `gorm:"column:choice_id;not null" json:"choice_id"`
	SetID        int64     `gorm:"column:set_id;index;not null" json:"set_id"`
	SetName      string    `gorm:"column:set_name;type:varchar(255)" json:"set_name"`
	Value        string    `gorm:"column:value;type:varchar(512);not null" json:"value"`
	Description  string    `gorm:"column:description;type:text" json:"description"`
	Rank         int       `gorm:"column:choice_rank" json:"rank"`
	LanguageCode string    `gorm:"column:language_code;type:varchar(25)" json:"language_code"`
	CreatedOn    time.Time `gorm:"column:created_on;autoCreateTime" json:"created_on"`
}

// TableName returns the GORM table name.
func (Choice) TableName() string { return "reg_choice" }

// AttributePrompt is a localized display label for an attribute.
type AttributePrompt struct {
	ID           int64  `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	ColumnDefID  int64  `gorm:"column:column_def_id;index;not null" json:"column_def_id"`
	Value        string `gorm:"column:value;type:varchar(255);not null" json:"value"`
	Description  string `gorm:"column:description;type:text" json:"description"`
	LanguageCode string `gorm:"column:language_code;type:varchar(25)" json:"language_code"`
	Role         string `gorm:"column:role;type:varchar(255);default:label" json:"role"`
}

// TableName returns the GORM table name.
func (AttributePrompt) TableName() string { return "reg_prompt" }

// SubmissionStatus is the lifecycle state of a submission object.
type SubmissionStatus string

const (
	StatusDraft     SubmissionStatus = "draft"
	StatusPublished SubmissionStatus = "published"
	StatusBlank     SubmissionStatus = "blank"
)

// SubmissionObj identifies one disclosure submission revision. Data rows in
// the generated tables reference it through their obj_id column. Revisions
// of the same disclosure share a name and count revision upward; at most one
// revision is active at a time.
type SubmissionObj struct {
	ID               int64            `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	TableViewID      int64            `gorm:"column:table_view_id;index;not null" json:"table_view_id"`
	Name             string           `gorm:"column:name;type:varchar(256);index;not null" json:"name"`
	Revision         int              `gorm:"column:revision;not null" json:"revision"`
	Status           SubmissionStatus `gorm:"column:status;type:varchar(16);default:draft" json:"status"`
	Active           bool             `gorm:"column:active;default:true" json:"active"`
	ActivatedOn      *time.Time       `gorm:"column:activated_on" json:"activated_on"`
	UserID           int64            `gorm:"column:user_id" json:"user_id"`
	SubmittedBy      int64            `gorm:"column:submitted_by" json:"submitted_by"`
	CheckedOut       bool             `gorm:"column:checked_out;default:false" json:"checked_out"`
	CheckedOutOn     *time.Time       `gorm:"column:checked_out_on" json:"checked_out_on"`
	PermissionsSetID *int64           `gorm:"column:permissions_set_id" json:"permissions_set_id"`
	CreatedOn        time.Time        `gorm:"column:created_on;autoCreateTime" json:"created_on"`
}

// TableName returns the GORM table name.
func (SubmissionObj) TableName() string { return "reg_submission" }

// Restatement is one audited value correction tied to a revision transition.
// GroupID is the id of the first revision of the submission, correlating all
// restatements of one disclosure across its history; rows created by a single
// update call additionally share their CreatedOn batch.
type Restatement struct {
	ID            int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	ObjID         int64     `gorm:"column:obj_id;index;not null" json:"obj_id"`
	GroupID       int64     `gorm:"column:group_id;index;not null" json:"group_id"`
	AttributeName string    `gorm:"column:attribute_name;type:varchar(256);not null" json:"attribute_name"`
	AttributeRow  int       `gorm:"column:attribute_row;default:0" json:"attribute_row"`
	OldValue      JSONValue `gorm:"column:old_value;type:text" json:"old_value"`
	NewValue      JSONValue `gorm:"column:new_value;type:text" json:"new_value"`
	Reason        string    `gorm:"column:reason_for_restatement;type:text" json:"reason"`
	CreatedOn     time.Time `gorm:"column:created_on;autoCreateTime" json:"created_on"`
}

// TableName returns the GORM table name.
func (Restatement) TableName() string { return "reg_restatement" }
