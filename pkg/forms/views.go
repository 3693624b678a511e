package forms

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/openwis/form-registry/pkg/datastore"
	"github.com/openwis/form-registry/pkg/schema"
)

// CopySuffix is appended to a copied view's name.
const CopySuffix = "_copy"

// CopyTableView duplicates a view and its column views under the same form.
// The copy starts at revision 1, inactive, named after the source with the
// copy suffix.
func (b *FormBuilder) CopyTableView(ctx context.Context, viewID, userID int64) (*datastore.TableView, error) {
	var copied *datastore.TableView
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		src, err := tableViewByID(tx, viewID)
		if err != nil {
			return err
		}
		copied = &datastore.TableView{
			TableDefID:       src.TableDefID,
			Name:             src.Name + CopySuffix,
			Description:      src.Description,
			Revision:         1,
			Active:           false,
			UserID:           userID,
			PermissionsSetID: src.PermissionsSetID,
			ConstraintView:   src.ConstraintView,
		}
		if err := tx.Create(copied).Error; err != nil {
			return fmt.Errorf("copy view %q: %w", src.Name, err)
		}
		return copyColumnViews(tx, src.ID, copied.ID)
	})
	if err != nil {
		return nil, err
	}
	return copied, nil
}

// CreateViewRevision clones the highest revision of the named view into a new
// inactive revision one above it. It returns nil when no view carries the
// name.
func (b *FormBuilder) CreateViewRevision(ctx context.Context, viewName string, userID int64) (*schema.ViewRevisionCreated, error) {
	var result *schema.ViewRevisionCreated
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var src datastore.TableView
		err := tx.Where("name = ?", viewName).Order("revision DESC").First(&src).Error
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load view %q: %w", viewName, err)
		}

		next := &datastore.TableView{
			TableDefID:       src.TableDefID,
			Name:             src.Name,
			Description:      src.Description,
			Revision:         src.Revision + 1,
			Active:           false,
			UserID:           userID,
			PermissionsSetID: src.PermissionsSetID,
			ConstraintView:   src.ConstraintView,
		}
		if err := tx.Create(next).Error; err != nil {
			return fmt.Errorf("create revision %d of view %q: %w", next.Revision, viewName, err)
		}
		if err := copyColumnViews(tx, src.ID, next.ID); err != nil {
			return err
		}
		result = &schema.ViewRevisionCreated{ID: next.ID, Name: next.Name, Revision: next.Revision}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetActiveViewRevision makes exactly the named revision of the view active
// and deactivates its siblings. A missing revision is an error.
func (b *FormBuilder) SetActiveViewRevision(ctx context.Context, viewName string, revision int) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target datastore.TableView
		err := tx.Where("name = ? AND revision = ?", viewName, revision).First(&target).Error
		if err == gorm.ErrRecordNotFound {
			return fmt.Errorf("view %q revision %d: %w", viewName, revision, ErrViewNotFound)
		}
		if err != nil {
			return fmt.Errorf("load view %q revision %d: %w", viewName, revision, err)
		}

		if err := tx.Model(&datastore.TableView{}).
			Where("name = ? AND id <> ?", viewName, target.ID).
			Update("active", false).Error; err != nil {
			return fmt.Errorf("deactivate revisions of %q: %w", viewName, err)
		}
		if err := tx.Model(&datastore.TableView{}).
			Where("id = ?", target.ID).
			Update("active", true).Error; err != nil {
			return fmt.Errorf("activate view %q revision %d: %w", viewName, revision, err)
		}
		return nil
	})
}

// EnableTableView marks a view active.
func (b *FormBuilder) EnableTableView(ctx context.Context, viewID int64) error {
	return b.setViewActive(ctx, viewID, true)
}

// DisableTableView marks a view inactive.
func (b *FormBuilder) DisableTableView(ctx context.Context, viewID int64) error {
	return b.setViewActive(ctx, viewID, false)
}

func (b *FormBuilder) setViewActive(ctx context.Context, viewID int64, active bool) error {
	res := b.db.WithContext(ctx).Model(&datastore.TableView{}).
		Where("id = ?", viewID).
		Update("active", active)
	if res.Error != nil {
		return fmt.Errorf("update view %d: %w", viewID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("view %d: %w", viewID, ErrViewNotFound)
	}
	return nil
}

func tableViewByID(tx *gorm.DB, id int64) (*datastore.TableView, error) {
	var view datastore.TableView
	if err := tx.First(&view, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("view %d: %w", id, ErrViewNotFound)
		}
		return nil, fmt.Errorf("load view %d: %w", id, err)
	}
	return &view, nil
}

// copyColumnViews duplicates every column view of srcViewID under dstViewID
// in one batched insert.
func copyColumnViews(tx *gorm.DB, srcViewID, dstViewID int64) error {
	var cols []datastore.ColumnView
	if err := tx.Where("table_view_id = ?", srcViewID).Order("id").Find(&cols).Error; err != nil {
		return fmt.Errorf("load column views of %d: %w", srcViewID, err)
	}
	if len(cols) == 0 {
		return nil
	}
	copies := make([]datastore.ColumnView, 0, len(cols))
	for i := range cols {
		copies = append(copies, datastore.ColumnView{
			ColumnDefID:      cols[i].ColumnDefID,
			TableViewID:      dstViewID,
			UserID:           cols[i].UserID,
			PermissionsSetID: cols[i].PermissionsSetID,
			ConstraintValue:  cols[i].ConstraintValue,
			ConstraintView:   cols[i].ConstraintView,
			ChoiceSetID:      cols[i].ChoiceSetID,
		})
	}
	if err := tx.Create(&copies).Error; err != nil {
		return fmt.Errorf("copy column views of %d: %w", srcViewID, err)
	}
	return nil
}
