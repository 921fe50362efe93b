package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pickscan/pickscan/internal/models"
	"github.com/pickscan/pickscan/pkg/logger"
	"github.com/pickscan/pickscan/pkg/store"
)

// Store is the slice of the persistence gateway reconciliation needs.
type Store interface {
	GetItem(ctx context.Context, id string) (*models.Item, error)
	SaveItem(ctx context.Context, item *models.Item) error
	ListItemsByJob(ctx context.Context, jobID string) ([]*models.Item, error)
	DeleteItems(ctx context.Context, ids []string) error
}

// Service maintains the item working set: field patches with derived-field
// recomputation, and the bulk purge paths. It owns the invariant that every
// image handle is released when its owning item is removed, on every purge
// path alike.
type Service struct {
	store   Store
	handles *store.Handles
	logger  logger.Logger
}

func NewService(st Store, handles *store.Handles, log logger.Logger) *Service {
	return &Service{
		store:   st,
		handles: handles,
		logger:  log,
	}
}

// Update applies an arbitrary field patch to one item. Edits touching
// distributions or the reported total recompute calculatedTotal/isCorrect
// before persisting — unconditionally, on every such edit. A patch for an
// item that no longer exists (a late edit racing a purge) is a no-op.
func (s *Service) Update(ctx context.Context, id string, patch map[string]any) (*models.Item, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	merged, err := mergePatch(item, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to apply patch to item %s: %w", id, err)
	}
	// Identity and ownership are not patchable.
	merged.ID = item.ID
	merged.JobID = item.JobID
	merged.Page = item.Page
	merged.TemplateID = item.TemplateID

	if merged.TemplateID == "" {
		merged.Recalculate()
	}

	if err := s.store.SaveItem(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Delete removes items by explicit id list, releasing their handles.
func (s *Service) Delete(ctx context.Context, ids []string) error {
	if err := s.store.DeleteItems(ctx, ids); err != nil {
		return err
	}
	for _, id := range ids {
		s.handles.ReleaseItem(id)
	}
	return nil
}

// PurgeJob removes every item belonging to the job and releases their
// handles. Used by job delete and retry.
func (s *Service) PurgeJob(ctx context.Context, jobID string) error {
	items, err := s.store.ListItemsByJob(ctx, jobID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	if err := s.store.DeleteItems(ctx, ids); err != nil {
		return err
	}
	for _, id := range ids {
		s.handles.ReleaseItem(id)
	}
	// Catch handles for items already gone from storage.
	s.handles.ReleaseJob(jobID)
	return nil
}

// PurgePage removes the items for one (job, page) ahead of targeted
// reprocessing. Returns how many items were purged.
func (s *Service) PurgePage(ctx context.Context, jobID string, page int) (int, error) {
	items, err := s.store.ListItemsByJob(ctx, jobID)
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0)
	for _, it := range items {
		if it.Page == page {
			ids = append(ids, it.ID)
		}
	}
	if err := s.store.DeleteItems(ctx, ids); err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.handles.ReleaseItem(id)
	}
	return len(ids), nil
}

// mergePatch overlays patch keys onto the item's JSON representation.
func mergePatch(item *models.Item, patch map[string]any) (*models.Item, error) {
	base, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	var asMap map[string]any
	if err := json.Unmarshal(base, &asMap); err != nil {
		return nil, err
	}
	for k, v := range patch {
		if v == nil {
			delete(asMap, k)
			continue
		}
		asMap[k] = v
	}
	remarshaled, err := json.Marshal(asMap)
	if err != nil {
		return nil, err
	}
	var merged models.Item
	if err := json.Unmarshal(remarshaled, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}
