package submission

import (
	"context"
	"fmt"

	"github.com/openwis/form-registry/pkg/datastore"
)

// Revisions lists every revision of a submission name, oldest first.
func (m *Manager) Revisions(ctx context.Context, name string) ([]datastore.SubmissionObj, error) {
	var objs []datastore.SubmissionObj
	if err := m.db.WithContext(ctx).
		Where("name = ?", name).Order("revision, id").
		Find(&objs).Error; err != nil {
		return nil, fmt.Errorf("list revisions of %q: %w", name, err)
	}
	if len(objs) == 0 {
		return nil, fmt.Errorf("submission %q: %w", name, ErrNotFound)
	}
	return objs, nil
}

// Active returns the currently active revision of a submission name.
func (m *Manager) Active(ctx context.Context, name string) (*datastore.SubmissionObj, error) {
	objs, err := m.Revisions(ctx, name)
	if err != nil {
		return nil, err
	}
	for i := len(objs) - 1; i >= 0; i-- {
		if objs[i].Active {
			return &objs[i], nil
		}
	}
	return nil, fmt.Errorf("submission %q has no active revision: %w", name, ErrNotFound)
}

// Restatements lists the full restatement history of the disclosure a
// submission belongs to, oldest first.
func (r *RevisionManager) Restatements(ctx context.Context, submissionID int64) ([]datastore.Restatement, error) {
	tx := r.db.WithContext(ctx)
	obj, err := submissionByID(tx, submissionID)
	if err != nil {
		return nil, err
	}
	groupID, err := firstRevisionID(tx, obj.Name)
	if err != nil {
		return nil, err
	}
	var rows []datastore.Restatement
	if err := tx.Where("group_id = ?", groupID).
		Order("created_on, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list restatements of %q: %w", obj.Name, err)
	}
	return rows, nil
}

// CheckOut reserves a submission for exclusive revision work; CheckIn
// releases it. Publishing while a submission is checked out fails, which is
// the serialization point for concurrent revision creation.
func (m *Manager) CheckOut(ctx context.Context, submissionID int64, out bool) error {
	tx := m.db.WithContext(ctx)
	obj, err := submissionByID(tx, submissionID)
	if err != nil {
		return err
	}
	updates := map[string]any{"checked_out": out, "checked_out_on": nil}
	if out {
		updates["checked_out_on"] = nowFunc()
	}
	if err := tx.Model(&datastore.SubmissionObj{}).
		Where("id = ?", obj.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update checkout of %d: %w", obj.ID, err)
	}
	return nil
}
