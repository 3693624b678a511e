package submission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/openwis/form-registry/pkg/datastore"
	"github.com/openwis/form-registry/pkg/forms"
	"github.com/openwis/form-registry/pkg/schema"
)

// Manager drives the submission lifecycle against one database handle. Each
// logical operation runs in its own transaction; instances hold no state
// across operations and are safe for concurrent use on distinct submissions.
type Manager struct {
	db      *gorm.DB
	schemas *forms.SchemaCache
}

// NewManager creates a Manager on the shared database handle.
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// WithSchemaCache routes choice validation through the shared metadata
// snapshot instead of per-request choice scans. Writers that change choice
// sets must refresh the cache.
func (m *Manager) WithSchemaCache(c *forms.SchemaCache) *Manager {
	m.schemas = c
	return m
}

// Submission is a loaded submission: its object row and the fully nested
// value tree reconstructed from the generated data tables.
type Submission struct {
	Obj    *datastore.SubmissionObj
	Schema *forms.FormSchema
	Values map[string]any
}

// Create allocates a new submission against a table view and, when values
// are supplied, writes the full nested value tree. A submission created
// without values starts checked out: it is a reserved name waiting for its
// first Update. The generated name embeds the form name; pass name to
// override.
func (m *Manager) Create(ctx context.Context, tableViewID int64, values map[string]any, userID int64, name string) (*datastore.SubmissionObj, error) {
	var obj *datastore.SubmissionObj
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fs, err := forms.NewFormReader(tx).ReadByViewID(ctx, tableViewID)
		if err != nil {
			return err
		}
		if name == "" {
			seq, err := nextSubmissionSeq(tx)
			if err != nil {
				return err
			}
			name = generateName(fs.Name, seq)
		}

		now := time.Now().UTC()
		obj = &datastore.SubmissionObj{
			TableViewID: tableViewID,
			Name:        name,
			Revision:    1,
			Status:      datastore.StatusDraft,
			Active:      true,
			UserID:      userID,
			SubmittedBy: userID,
		}
		if len(values) == 0 {
			obj.CheckedOut = true
			obj.CheckedOutOn = &now
		}
		if err := tx.Create(obj).Error; err != nil {
			return fmt.Errorf("create submission %q: %w", name, err)
		}
		if len(values) == 0 {
			return nil
		}
		return m.insertValues(tx, fs, obj.ID, values)
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Update writes the first value tree of a submission created empty. A
// submission that already has values must go through the revision manager.
func (m *Manager) Update(ctx context.Context, submissionID int64, values map[string]any, userID int64) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		obj, err := submissionByID(tx, submissionID)
		if err != nil {
			return err
		}
		fs, err := forms.NewFormReader(tx).ReadByViewID(ctx, obj.TableViewID)
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Table(fs.TableName).Where("obj_id = ?", obj.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("check submission %d values: %w", obj.ID, err)
		}
		if count > 0 {
			return fmt.Errorf("submission %d: %w", obj.ID, ErrNotEmpty)
		}

		if err := m.insertValues(tx, fs, obj.ID, values); err != nil {
			return err
		}
		return tx.Model(&datastore.SubmissionObj{}).Where("id = ?", obj.ID).
			Updates(map[string]any{"checked_out": false, "checked_out_on": nil}).Error
	})
}

// Load reconstructs the full nested value tree of a submission. It is
// read-only and runs one query per table level regardless of row count.
func (m *Manager) Load(ctx context.Context, submissionID int64) (*Submission, error) {
	tx := m.db.WithContext(ctx)
	obj, err := submissionByID(tx, submissionID)
	if err != nil {
		return nil, err
	}
	fs, err := forms.NewFormReader(tx).ReadByViewID(ctx, obj.TableViewID)
	if err != nil {
		return nil, err
	}
	values, err := loadValues(tx, fs, obj.ID)
	if err != nil {
		return nil, err
	}
	return &Submission{Obj: obj, Schema: fs, Values: values}, nil
}

func submissionByID(tx *gorm.DB, id int64) (*datastore.SubmissionObj, error) {
	var obj datastore.SubmissionObj
	if err := tx.First(&obj, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("submission %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load submission %d: %w", id, err)
	}
	return &obj, nil
}

func nextSubmissionSeq(tx *gorm.DB) (int64, error) {
	var maxID int64
	if err := tx.Model(&datastore.SubmissionObj{}).
		Select("COALESCE(MAX(id), 0)").Scan(&maxID).Error; err != nil {
		return 0, fmt.Errorf("allocate submission sequence: %w", err)
	}
	return maxID + 1, nil
}

// insertValues validates and writes a full value tree under objID. Child rows
// are written before their hosting parent row so a concurrent reader never
// sees a parent referencing missing children.
func (m *Manager) insertValues(tx *gorm.DB, fs *forms.FormSchema, objID int64, values map[string]any) error {
	start, err := maxFormID(tx, fs)
	if err != nil {
		return err
	}
	ins := &inserter{tx: tx, schemas: m.schemas, objID: objID, counter: start}
	return ins.insertLevel(fs, values, nil)
}

// inserter carries the per-operation form-id counter through the recursive
// fan-out. Form ids group the child rows of one hosted sub-form value; they
// are allocated monotonically above the highest id already present in the
// tree's tables.
type inserter struct {
	tx      *gorm.DB
	schemas *forms.SchemaCache
	objID   int64
	counter int64
}

func (ins *inserter) next() int64 {
	ins.counter++
	return ins.counter
}

func (ins *inserter) insertLevel(fs *forms.FormSchema, values map[string]any, valueID *int64) error {
	attrs := make(map[string]*forms.AttributeSchema, len(fs.Attributes))
	for i := range fs.Attributes {
		attrs[fs.Attributes[i].Name] = &fs.Attributes[i]
	}

	row := map[string]any{forms.FieldObjID: ins.objID}
	if valueID != nil {
		row[forms.FieldValueID] = *valueID
	}

	for name, value := range values {
		attr, ok := attrs[name]
		if !ok {
			return invalidf(name, "unknown column name")
		}
		if err := ins.insertAttribute(row, attr, value); err != nil {
			return err
		}
	}

	if err := ins.tx.Table(fs.TableName).Create(row).Error; err != nil {
		return fmt.Errorf("insert into %s: %w", fs.TableName, err)
	}
	return nil
}

// insertAttribute validates one supplied value and either stores it in the
// level's row or fans it out into child tables, recording the allocated form
// id in the row.
func (ins *inserter) insertAttribute(row map[string]any, attr *forms.AttributeSchema, value any) error {
	if attr.Type.OrNull() {
		state := schema.StateColumn(attr.Name)
		if schema.IsNullState(value) {
			row[state] = fmt.Sprintf("%v", value)
			row[attr.Name] = nil
			return nil
		}
		// a real value overrides the column's unanswered default
		row[state] = nil
	}

	switch attr.Type {
	case schema.TypeLabel:
		return invalidf(attr.Name, "label attributes do not store values")

	case schema.TypeSingle:
		n, ok := intValue(value)
		if !ok {
			return invalidf(attr.Name, "expected a choice id, got %T", value)
		}
		if err := ins.checkChoice(attr, n); err != nil {
			return err
		}
		row[attr.Name] = n

	case schema.TypeMultiple:
		list, ok := value.([]any)
		if !ok {
			return invalidf(attr.Name, "expected a list of choices, got %T", value)
		}
		childRows := MultipleToForm(list, attr.Name)
		intField := attr.Name + forms.MultipleIntSuffix
		for _, cr := range childRows {
			if n, _ := intValue(cr[intField]); n != FreeTextSentinel {
				if err := ins.checkChoice(attr, n); err != nil {
					return err
				}
			}
		}
		gid := ins.next()
		table := forms.DataTableName(attr.Name+forms.MultipleFormSuffix, true)
		for _, cr := range childRows {
			cr[forms.FieldObjID] = ins.objID
			cr[forms.FieldValueID] = gid
			if err := ins.tx.Table(table).Create(cr).Error; err != nil {
				return fmt.Errorf("insert into %s: %w", table, err)
			}
		}
		row[attr.Name] = gid

	case schema.TypeForm, schema.TypeFormOrNull:
		list, ok := value.([]map[string]any)
		if !ok {
			anyList, isAny := value.([]any)
			if !isAny {
				return invalidf(attr.Name, "expected a list of sub-form entries, got %T", value)
			}
			list = make([]map[string]any, 0, len(anyList))
			for _, e := range anyList {
				m, isMap := e.(map[string]any)
				if !isMap {
					return invalidf(attr.Name, "expected sub-form entries, got %T", e)
				}
				list = append(list, m)
			}
		}
		gid := ins.next()
		for _, entry := range list {
			if err := ins.insertLevel(attr.Form, entry, &gid); err != nil {
				return err
			}
		}
		row[attr.Name] = gid

	case schema.TypeBool, schema.TypeBoolOrNull:
		b, ok := value.(bool)
		if !ok {
			return invalidf(attr.Name, "expected a bool, got %T", value)
		}
		row[attr.Name] = b

	case schema.TypeInt, schema.TypeIntOrNull, schema.TypeFile, schema.TypeFileOrNull:
		n, ok := intValue(value)
		if !ok {
			return invalidf(attr.Name, "expected an integer, got %T", value)
		}
		row[attr.Name] = n

	case schema.TypeFloat, schema.TypeFloatOrNull:
		switch f := value.(type) {
		case float64:
			row[attr.Name] = f
		case float32:
			row[attr.Name] = float64(f)
		case int:
			row[attr.Name] = float64(f)
		case int64:
			row[attr.Name] = float64(f)
		default:
			return invalidf(attr.Name, "expected a number, got %T", value)
		}

	case schema.TypeText, schema.TypeTextOrNull:
		s, ok := value.(string)
		if !ok {
			return invalidf(attr.Name, "expected a string, got %T", value)
		}
		row[attr.Name] = s

	case schema.TypeDatetime:
		switch value.(type) {
		case string, time.Time:
			row[attr.Name] = value
		default:
			return invalidf(attr.Name, "expected a timestamp, got %T", value)
		}

	default:
		return invalidf(attr.Name, "unsupported attribute type %q", attr.Type)
	}
	return nil
}

// checkChoice verifies a choice id against the attribute's choice set. With a
// schema cache attached the check is a set-membership lookup on the snapshot;
// a set the snapshot does not know yet falls back to the loaded choices.
func (ins *inserter) checkChoice(attr *forms.AttributeSchema, id int64) error {
	if ins.schemas != nil && attr.ChoiceSetID != nil {
		if ids, ok := ins.schemas.ChoiceIDs(*attr.ChoiceSetID); ok {
			if ids.Contains(id) {
				return nil
			}
			return invalidf(attr.Name, "choice %d is not in the choice set", id)
		}
	}
	for _, c := range attr.Choices {
		if c.ChoiceID == id {
			return nil
		}
	}
	return invalidf(attr.Name, "choice %d is not in the choice set", id)
}

// quoteIdent quotes a column or table name for the session's SQL dialect.
// Attribute names may collide with SQL keywords, so every name interpolated
// into raw SQL goes through here.
func quoteIdent(tx *gorm.DB, name string) string {
	return forms.QuoteIdent(tx.Dialector.Name(), name)
}

// maxFormID returns the highest form id present in any form- or
// multiple-typed column across the whole table tree. New form ids are
// allocated above it.
func maxFormID(tx *gorm.DB, fs *forms.FormSchema) (int64, error) {
	var high int64
	for i := range fs.Attributes {
		attr := &fs.Attributes[i]
		if !attr.Type.Recursive() {
			continue
		}
		var v int64
		expr := fmt.Sprintf("COALESCE(MAX(%s), 0)", quoteIdent(tx, attr.Name))
		if err := tx.Table(fs.TableName).Select(expr).Scan(&v).Error; err != nil {
			return 0, fmt.Errorf("scan form ids of %s.%s: %w", fs.TableName, attr.Name, err)
		}
		if v > high {
			high = v
		}
		if attr.Form != nil {
			sub, err := maxFormID(tx, attr.Form)
			if err != nil {
				return 0, err
			}
			if sub > high {
				high = sub
			}
		}
	}
	return high, nil
}

// generateName builds a unique submission name from the form name, the next
// submission sequence number, the clock, and a random tail.
func generateName(formName string, seq int64) string {
	return fmt.Sprintf("REG-%s-%d-%d-%s",
		strings.ToUpper(formName), seq, time.Now().UnixNano(), nameEntropy())
}
