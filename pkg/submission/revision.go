package submission

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/openwis/form-registry/pkg/datastore"
	"github.com/openwis/form-registry/pkg/forms"
	"github.com/openwis/form-registry/pkg/schema"
)

// RevisionManager produces new disclosure revisions and in-place draft edits
// with restatement bookkeeping. History is append-only: publishing never
// rewrites an earlier revision's rows.
type RevisionManager struct {
	*Manager
}

// NewRevisionManager creates a RevisionManager on the shared database handle.
func NewRevisionManager(db *gorm.DB) *RevisionManager {
	return &RevisionManager{Manager: NewManager(db)}
}

// WithSchemaCache routes choice validation through the shared metadata
// snapshot, like Manager.WithSchemaCache.
func (r *RevisionManager) WithSchemaCache(c *forms.SchemaCache) *RevisionManager {
	r.Manager.WithSchemaCache(c)
	return r
}

// UpdateRequest describes one revision operation. Restatements maps changed
// field names to the human-readable reason recorded with the change.
type UpdateRequest struct {
	NewValues        map[string]any
	Restatements     map[string]string
	CreateSubmission bool
	Status           datastore.SubmissionStatus
}

// Update applies new values to a submission. With CreateSubmission it
// publishes a new revision: all prior values are copied forward, NewValues
// override them, the prior revision is deactivated and the new one activated,
// in one transaction. Without it the existing draft is edited in place,
// replacing values wholesale per field. Both paths persist one Restatement
// row per entry in Restatements.
func (r *RevisionManager) Update(ctx context.Context, submissionID int64, req UpdateRequest, userID int64) (*datastore.SubmissionObj, error) {
	if req.Status == "" {
		req.Status = datastore.StatusPublished
	}

	var result *datastore.SubmissionObj
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := submissionByID(tx, submissionID)
		if err != nil {
			return err
		}
		fs, err := forms.NewFormReader(tx).ReadByViewID(ctx, cur.TableViewID)
		if err != nil {
			return err
		}
		oldValues, err := loadValues(tx, fs, cur.ID)
		if err != nil {
			return err
		}

		if req.CreateSubmission {
			result, err = r.publish(tx, cur, fs, oldValues, req, userID)
			return err
		}
		result = cur
		return r.editDraft(tx, cur, fs, oldValues, req, userID)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// publish creates the next revision of a submission: copy-forward with
// overrides into a fresh row set. The checked-out flag is re-read inside the
// transaction so two concurrent publishes of the same submission cannot both
// proceed.
func (r *RevisionManager) publish(tx *gorm.DB, cur *datastore.SubmissionObj, fs *forms.FormSchema, oldValues map[string]any, req UpdateRequest, userID int64) (*datastore.SubmissionObj, error) {
	if !cur.Active {
		return nil, fmt.Errorf("submission %d: %w", cur.ID, ErrInactive)
	}
	if cur.CheckedOut {
		return nil, fmt.Errorf("submission %d: %w", cur.ID, ErrCheckedOut)
	}

	merged := stripBookkeeping(fs, oldValues)
	for name, v := range req.NewValues {
		merged[name] = v
	}

	now := time.Now().UTC()
	next := &datastore.SubmissionObj{
		TableViewID:      cur.TableViewID,
		Name:             cur.Name,
		Revision:         cur.Revision + 1,
		Status:           req.Status,
		Active:           true,
		ActivatedOn:      &now,
		UserID:           cur.UserID,
		SubmittedBy:      userID,
		PermissionsSetID: cur.PermissionsSetID,
	}
	if err := tx.Create(next).Error; err != nil {
		return nil, fmt.Errorf("create revision %d of %q: %w", next.Revision, cur.Name, err)
	}
	if err := tx.Model(&datastore.SubmissionObj{}).
		Where("name = ? AND id <> ?", cur.Name, next.ID).
		Update("active", false).Error; err != nil {
		return nil, fmt.Errorf("deactivate prior revisions of %q: %w", cur.Name, err)
	}

	if err := r.insertValues(tx, fs, next.ID, merged); err != nil {
		return nil, err
	}
	if err := r.recordRestatements(tx, cur, next.ID, oldValues, req); err != nil {
		return nil, err
	}
	return next, nil
}

// editDraft mutates an unpublished draft in place. Fields named in NewValues
// are replaced wholesale: hosted sub-form groups are deleted and rebuilt, not
// merged entry by entry.
func (r *RevisionManager) editDraft(tx *gorm.DB, cur *datastore.SubmissionObj, fs *forms.FormSchema, oldValues map[string]any, req UpdateRequest, userID int64) error {
	if cur.Status != datastore.StatusDraft {
		return fmt.Errorf("submission %d: %w", cur.ID, ErrNotDraft)
	}

	if len(oldValues) == 0 {
		// draft created empty: this is the first value write
		if err := r.insertValues(tx, fs, cur.ID, req.NewValues); err != nil {
			return err
		}
		return r.recordRestatements(tx, cur, cur.ID, oldValues, req)
	}

	attrs := make(map[string]*forms.AttributeSchema, len(fs.Attributes))
	for i := range fs.Attributes {
		attrs[fs.Attributes[i].Name] = &fs.Attributes[i]
	}

	start, err := maxFormID(tx, fs)
	if err != nil {
		return err
	}
	ins := &inserter{tx: tx, schemas: r.schemas, objID: cur.ID, counter: start}

	updates := map[string]any{}
	for name, value := range req.NewValues {
		attr, ok := attrs[name]
		if !ok {
			return invalidf(name, "unknown column name")
		}
		if attr.Type.Recursive() {
			if err := r.replaceGroup(tx, ins, fs, attr, cur.ID, value, updates); err != nil {
				return err
			}
			continue
		}
		if err := ins.insertAttribute(updates, attr, value); err != nil {
			return err
		}
	}

	if len(updates) > 0 {
		if err := tx.Table(fs.TableName).
			Where("obj_id = ?", cur.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update %s: %w", fs.TableName, err)
		}
	}
	return r.recordRestatements(tx, cur, cur.ID, oldValues, req)
}

// replaceGroup deletes a recursive attribute's current child rows and inserts
// the replacement entries under a fresh form id, recorded in updates.
func (r *RevisionManager) replaceGroup(tx *gorm.DB, ins *inserter, fs *forms.FormSchema, attr *forms.AttributeSchema, objID int64, value any, updates map[string]any) error {
	var gids []int64
	if err := tx.Table(fs.TableName).
		Where(fmt.Sprintf("obj_id = ? AND %s IS NOT NULL", quoteIdent(tx, attr.Name)), objID).
		Pluck(attr.Name, &gids).Error; err != nil {
		return fmt.Errorf("read form id of %s.%s: %w", fs.TableName, attr.Name, err)
	}
	for _, gid := range gids {
		if err := deleteGroup(tx, attr, objID, gid); err != nil {
			return err
		}
	}
	return ins.insertAttribute(updates, attr, value)
}

// deleteGroup removes the child rows of one hosted sub-form value, recursing
// into any sub-sub-forms those rows host.
func deleteGroup(tx *gorm.DB, attr *forms.AttributeSchema, objID, gid int64) error {
	table := forms.DataTableName(attr.Name+forms.MultipleFormSuffix, true)
	if attr.Form != nil {
		table = attr.Form.TableName
		for i := range attr.Form.Attributes {
			sub := &attr.Form.Attributes[i]
			if !sub.Type.Recursive() {
				continue
			}
			var gids []int64
			if err := tx.Table(table).Distinct(sub.Name).
				Where(fmt.Sprintf("obj_id = ? AND value_id = ? AND %s IS NOT NULL", quoteIdent(tx, sub.Name)), objID, gid).
				Pluck(sub.Name, &gids).Error; err != nil {
				return fmt.Errorf("collect nested form ids of %s.%s: %w", table, sub.Name, err)
			}
			for _, g := range gids {
				if err := deleteGroup(tx, sub, objID, g); err != nil {
					return err
				}
			}
		}
	}
	if err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE obj_id = ? AND value_id = ?", quoteIdent(tx, table)),
		objID, gid).Error; err != nil {
		return fmt.Errorf("delete group %d from %s: %w", gid, table, err)
	}
	return nil
}

// recordRestatements persists one Restatement per annotated field, linking
// old and new value. GroupID is the id of the submission's first revision so
// the full restatement history of one disclosure shares a key.
func (r *RevisionManager) recordRestatements(tx *gorm.DB, cur *datastore.SubmissionObj, newObjID int64, oldValues map[string]any, req UpdateRequest) error {
	if len(req.Restatements) == 0 {
		return nil
	}
	groupID, err := firstRevisionID(tx, cur.Name)
	if err != nil {
		return err
	}
	rows := make([]datastore.Restatement, 0, len(req.Restatements))
	for field, reason := range req.Restatements {
		rows = append(rows, datastore.Restatement{
			ObjID:         newObjID,
			GroupID:       groupID,
			AttributeName: field,
			OldValue:      datastore.JSONValue{Data: oldValues[field]},
			NewValue:      datastore.JSONValue{Data: req.NewValues[field]},
			Reason:        reason,
		})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("record restatements of %q: %w", cur.Name, err)
	}
	return nil
}

func firstRevisionID(tx *gorm.DB, name string) (int64, error) {
	var id int64
	if err := tx.Model(&datastore.SubmissionObj{}).
		Where("name = ?", name).Select("MIN(id)").Scan(&id).Error; err != nil {
		return 0, fmt.Errorf("find first revision of %q: %w", name, err)
	}
	return id, nil
}

// Rollback publishes a new revision whose values equal a historical
// revision's values. Nothing is deleted: the rollback is itself a revision.
func (r *RevisionManager) Rollback(ctx context.Context, submissionID, targetID, userID int64) (*datastore.SubmissionObj, error) {
	var result *datastore.SubmissionObj
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := submissionByID(tx, submissionID)
		if err != nil {
			return err
		}
		target, err := submissionByID(tx, targetID)
		if err != nil {
			return err
		}
		if target.Name != cur.Name {
			return fmt.Errorf("submission %d is not a revision of %q", targetID, cur.Name)
		}
		fs, err := forms.NewFormReader(tx).ReadByViewID(ctx, cur.TableViewID)
		if err != nil {
			return err
		}
		oldValues, err := loadValues(tx, fs, cur.ID)
		if err != nil {
			return err
		}
		targetValues, err := loadValues(tx, fs, target.ID)
		if err != nil {
			return err
		}
		req := UpdateRequest{
			NewValues: stripBookkeeping(fs, targetValues),
			Status:    datastore.StatusPublished,
		}
		result, err = r.publish(tx, cur, fs, oldValues, req, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// stripBookkeeping removes generated identity fields and unanswered values
// from a loaded tree so it can be re-submitted through the validation path.
func stripBookkeeping(fs *forms.FormSchema, values map[string]any) map[string]any {
	attrs := make(map[string]*forms.AttributeSchema, len(fs.Attributes))
	for i := range fs.Attributes {
		attrs[fs.Attributes[i].Name] = &fs.Attributes[i]
	}

	out := map[string]any{}
	for name, v := range values {
		attr, ok := attrs[name]
		if !ok || v == nil {
			continue
		}
		// an or-null attribute loaded as a sentinel string carries its state,
		// not a value tree, even when the attribute hosts a sub-form
		if attr.Type.OrNull() && schema.IsNullState(v) {
			out[name] = v
			continue
		}
		if attr.Form != nil {
			entries, isList := v.([]map[string]any)
			if !isList {
				continue
			}
			stripped := make([]map[string]any, 0, len(entries))
			for _, e := range entries {
				stripped = append(stripped, stripBookkeeping(attr.Form, e))
			}
			out[name] = stripped
			continue
		}
		out[name] = v
	}
	return out
}
