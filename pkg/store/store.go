package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/pickscan/pickscan/internal/models"
	"github.com/pickscan/pickscan/pkg/logger"
)

const (
	jobKeyPrefix      = "job:"
	itemKeyPrefix     = "item:"
	templateKeyPrefix = "template:"
	sourceKeySuffix   = "_source"
)

// PageImageKey is the composite blob key for one rasterized page.
// Format: {jobId}_{pageIndex}, 0-based index.
func PageImageKey(jobID string, pageIndex int) string {
	return fmt.Sprintf("%s_%d", jobID, pageIndex)
}

// SourceKey is the blob key holding the originally uploaded document, kept
// so retries and worker restarts can re-run the pipeline without the
// original upload.
func SourceKey(jobID string) string {
	return jobID + sourceKeySuffix
}

// Gateway is the single durable source of truth: jobs, items and templates
// as JSON records in redis, page images and source documents in a blob
// backend. Image handles are process-local and stripped before every write.
type Gateway struct {
	rdb     *redis.Client
	blob    Blob
	handles *Handles
	logger  logger.Logger
}

func NewGateway(rdb *redis.Client, blob Blob, log logger.Logger) *Gateway {
	return &Gateway{
		rdb:     rdb,
		blob:    blob,
		handles: NewHandles(),
		logger:  log,
	}
}

// Handles exposes the process-local image handle registry.
func (g *Gateway) Handles() *Handles {
	return g.handles
}

// Ping verifies both storage layers are reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.rdb.Ping(ctx).Err(); err != nil {
		return &models.PersistenceError{Op: "ping redis", Err: err}
	}
	if _, err := g.blob.List(ctx, "ping-probe-"); err != nil {
		return &models.PersistenceError{Op: "ping blob", Err: err}
	}
	return nil
}

// ---- jobs ----

func (g *Gateway) SaveJob(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return &models.PersistenceError{Op: "marshal job", Err: err}
	}
	if err := g.rdb.Set(ctx, jobKeyPrefix+job.ID, data, 0).Err(); err != nil {
		return &models.PersistenceError{Op: "save job", Err: err}
	}
	return nil
}

// GetJob returns (nil, nil) for a missing job; page-completion handlers use
// that to drop late results for deleted jobs.
func (g *Gateway) GetJob(ctx context.Context, id string) (*models.Job, error) {
	data, err := g.rdb.Get(ctx, jobKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &models.PersistenceError{Op: "get job", Err: err}
	}
	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, &models.PersistenceError{Op: "unmarshal job", Err: err}
	}
	return &job, nil
}

func (g *Gateway) ListJobs(ctx context.Context) ([]*models.Job, error) {
	keys, err := g.scanKeys(ctx, jobKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	jobs := make([]*models.Job, 0, len(keys))
	for _, key := range keys {
		data, err := g.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, &models.PersistenceError{Op: "get job", Err: err}
		}
		var job models.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return nil, &models.PersistenceError{Op: "unmarshal job", Err: err}
		}
		jobs = append(jobs, &job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs, nil
}

// DeleteJob removes the job record and cascades to its items, page images
// and stored source document.
func (g *Gateway) DeleteJob(ctx context.Context, id string) error {
	items, err := g.ListItemsByJob(ctx, id)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	if err := g.DeleteItems(ctx, ids); err != nil {
		return err
	}
	if err := g.DeletePageImages(ctx, id); err != nil {
		return err
	}
	if err := g.blob.Delete(ctx, SourceKey(id)); err != nil {
		g.logger.Warn("Failed to delete source document", logger.String("jobId", id), logger.Error(err))
	}
	if err := g.rdb.Del(ctx, jobKeyPrefix+id).Err(); err != nil {
		return &models.PersistenceError{Op: "delete job", Err: err}
	}
	return nil
}

// ---- items ----

// SaveItem persists one item with its transient image handle stripped.
func (g *Gateway) SaveItem(ctx context.Context, item *models.Item) error {
	return g.SaveItems(ctx, []*models.Item{item})
}

// SaveItems persists items in bulk. The process-local ImageHandle never
// reaches durable storage; only the stable (jobId, page) reference does.
func (g *Gateway) SaveItems(ctx context.Context, items []*models.Item) error {
	if len(items) == 0 {
		return nil
	}
	pipe := g.rdb.Pipeline()
	for _, item := range items {
		stripped := *item
		stripped.ImageHandle = ""
		data, err := json.Marshal(&stripped)
		if err != nil {
			return &models.PersistenceError{Op: "marshal item", Err: err}
		}
		pipe.Set(ctx, itemKeyPrefix+item.ID, data, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return &models.PersistenceError{Op: "save items", Err: err}
	}
	return nil
}

func (g *Gateway) GetItem(ctx context.Context, id string) (*models.Item, error) {
	data, err := g.rdb.Get(ctx, itemKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &models.PersistenceError{Op: "get item", Err: err}
	}
	var item models.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, &models.PersistenceError{Op: "unmarshal item", Err: err}
	}
	return &item, nil
}

func (g *Gateway) ListItems(ctx context.Context) ([]*models.Item, error) {
	keys, err := g.scanKeys(ctx, itemKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	items := make([]*models.Item, 0, len(keys))
	for _, key := range keys {
		data, err := g.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, &models.PersistenceError{Op: "get item", Err: err}
		}
		var item models.Item
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, &models.PersistenceError{Op: "unmarshal item", Err: err}
		}
		items = append(items, &item)
	}
	sortItems(items)
	return items, nil
}

func (g *Gateway) ListItemsByJob(ctx context.Context, jobID string) ([]*models.Item, error) {
	all, err := g.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]*models.Item, 0)
	for _, it := range all {
		if it.JobID == jobID {
			items = append(items, it)
		}
	}
	return items, nil
}

func (g *Gateway) DeleteItems(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = itemKeyPrefix + id
	}
	if err := g.rdb.Del(ctx, keys...).Err(); err != nil {
		return &models.PersistenceError{Op: "delete items", Err: err}
	}
	return nil
}

// ---- page images ----

func (g *Gateway) SavePageImage(ctx context.Context, jobID string, pageIndex int, data []byte, contentType string) error {
	if err := g.blob.Put(ctx, PageImageKey(jobID, pageIndex), data, contentType); err != nil {
		return &models.PersistenceError{Op: "save page image", Err: err}
	}
	return nil
}

func (g *Gateway) GetPageImage(ctx context.Context, jobID string, pageIndex int) ([]byte, string, error) {
	data, contentType, err := g.blob.Get(ctx, PageImageKey(jobID, pageIndex))
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", &models.PageNotFoundError{JobID: jobID, Page: pageIndex + 1}
	}
	if err != nil {
		return nil, "", &models.PersistenceError{Op: "get page image", Err: err}
	}
	return data, contentType, nil
}

// PageIndexes lists the stored page indexes for a job in ascending order.
// A non-empty result means rasterization can be skipped on (re)processing.
func (g *Gateway) PageIndexes(ctx context.Context, jobID string) ([]int, error) {
	keys, err := g.blob.List(ctx, jobID+"_")
	if err != nil {
		return nil, &models.PersistenceError{Op: "list page images", Err: err}
	}
	var indexes []int
	for _, key := range keys {
		suffix := strings.TrimPrefix(key, jobID+"_")
		idx, err := strconv.Atoi(suffix)
		if err != nil {
			continue // source document or foreign key
		}
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	return indexes, nil
}

func (g *Gateway) DeletePageImages(ctx context.Context, jobID string) error {
	indexes, err := g.PageIndexes(ctx, jobID)
	if err != nil {
		return err
	}
	for _, idx := range indexes {
		if err := g.blob.Delete(ctx, PageImageKey(jobID, idx)); err != nil {
			return &models.PersistenceError{Op: "delete page image", Err: err}
		}
	}
	return nil
}

// ---- source documents ----

func (g *Gateway) SaveSource(ctx context.Context, jobID string, data []byte, contentType string) error {
	if err := g.blob.Put(ctx, SourceKey(jobID), data, contentType); err != nil {
		return &models.PersistenceError{Op: "save source", Err: err}
	}
	return nil
}

func (g *Gateway) GetSource(ctx context.Context, jobID string) ([]byte, string, error) {
	data, contentType, err := g.blob.Get(ctx, SourceKey(jobID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", fmt.Errorf("source for job %s: %w", jobID, os.ErrNotExist)
	}
	if err != nil {
		return nil, "", &models.PersistenceError{Op: "get source", Err: err}
	}
	return data, contentType, nil
}

// ---- templates ----

func (g *Gateway) SaveTemplate(ctx context.Context, t *models.Template) error {
	data, err := json.Marshal(t)
	if err != nil {
		return &models.PersistenceError{Op: "marshal template", Err: err}
	}
	if err := g.rdb.Set(ctx, templateKeyPrefix+t.ID, data, 0).Err(); err != nil {
		return &models.PersistenceError{Op: "save template", Err: err}
	}
	return nil
}

func (g *Gateway) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	data, err := g.rdb.Get(ctx, templateKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &models.PersistenceError{Op: "get template", Err: err}
	}
	var t models.Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, &models.PersistenceError{Op: "unmarshal template", Err: err}
	}
	return &t, nil
}

func (g *Gateway) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	keys, err := g.scanKeys(ctx, templateKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	templates := make([]*models.Template, 0, len(keys))
	for _, key := range keys {
		data, err := g.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, &models.PersistenceError{Op: "get template", Err: err}
		}
		var t models.Template
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, &models.PersistenceError{Op: "unmarshal template", Err: err}
		}
		templates = append(templates, &t)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].CreatedAt.Before(templates[j].CreatedAt) })
	return templates, nil
}

func (g *Gateway) DeleteTemplate(ctx context.Context, id string) error {
	if err := g.rdb.Del(ctx, templateKeyPrefix+id).Err(); err != nil {
		return &models.PersistenceError{Op: "delete template", Err: err}
	}
	return nil
}

// ---- restore / clear ----

// workingSetSource is the slice of the gateway the restore logic reads;
// narrowed so the handle-synthesis rules are testable without live storage.
type workingSetSource interface {
	ListItems(ctx context.Context) ([]*models.Item, error)
	PageIndexes(ctx context.Context, jobID string) ([]int, error)
}

// Restore loads the full item working set after a restart. For every item
// whose page image is still stored, a fresh local handle is synthesized and
// attached; items with a missing image are returned without one. A storage
// outage degrades to an empty working set rather than failing startup.
func (g *Gateway) Restore(ctx context.Context) ([]*models.Item, error) {
	return restoreWorkingSet(ctx, g, g.handles, g.logger)
}

func restoreWorkingSet(ctx context.Context, src workingSetSource, handles *Handles, log logger.Logger) ([]*models.Item, error) {
	items, err := src.ListItems(ctx)
	if err != nil {
		log.Error("Restore degraded to empty working set", logger.Error(err))
		return []*models.Item{}, nil
	}

	pagesByJob := make(map[string]map[int]bool)
	for _, it := range items {
		if _, ok := pagesByJob[it.JobID]; !ok {
			indexes, err := src.PageIndexes(ctx, it.JobID)
			if err != nil {
				log.Error("Restore degraded to empty working set", logger.Error(err))
				return []*models.Item{}, nil
			}
			set := make(map[int]bool, len(indexes))
			for _, idx := range indexes {
				set[idx] = true
			}
			pagesByJob[it.JobID] = set
		}
		pageIndex := it.Page - 1
		if pagesByJob[it.JobID][pageIndex] {
			it.ImageHandle = handles.Allocate(it.ID, it.JobID, pageIndex)
		}
	}
	return items, nil
}

// AttachHandles decorates items with live handles for their stored page
// images, reusing existing handles rather than allocating.
func (g *Gateway) AttachHandles(ctx context.Context, items []*models.Item) {
	attachHandles(ctx, g, g.handles, items)
}

func attachHandles(ctx context.Context, src workingSetSource, handles *Handles, items []*models.Item) {
	pagesByJob := make(map[string]map[int]bool)
	for _, it := range items {
		if _, ok := pagesByJob[it.JobID]; !ok {
			indexes, err := src.PageIndexes(ctx, it.JobID)
			if err != nil {
				continue
			}
			set := make(map[int]bool, len(indexes))
			for _, idx := range indexes {
				set[idx] = true
			}
			pagesByJob[it.JobID] = set
		}
		pageIndex := it.Page - 1
		if pagesByJob[it.JobID][pageIndex] {
			it.ImageHandle = handles.Ensure(it.ID, it.JobID, pageIndex)
		}
	}
}

// Clear wipes every collection and releases all live handles.
func (g *Gateway) Clear(ctx context.Context) error {
	for _, pattern := range []string{jobKeyPrefix + "*", itemKeyPrefix + "*", templateKeyPrefix + "*"} {
		keys, err := g.scanKeys(ctx, pattern)
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := g.rdb.Del(ctx, keys...).Err(); err != nil {
				return &models.PersistenceError{Op: "clear", Err: err}
			}
		}
	}
	keys, err := g.blob.List(ctx, "")
	if err != nil {
		return &models.PersistenceError{Op: "clear blob", Err: err}
	}
	for _, key := range keys {
		if err := g.blob.Delete(ctx, key); err != nil {
			return &models.PersistenceError{Op: "clear blob", Err: err}
		}
	}
	g.handles.ReleaseAll()
	return nil
}

func (g *Gateway) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := g.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return nil, &models.PersistenceError{Op: "scan", Err: err}
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// sortItems orders by job, then page, then id for stable listings.
func sortItems(items []*models.Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].JobID != items[j].JobID {
			return items[i].JobID < items[j].JobID
		}
		if items[i].Page != items[j].Page {
			return items[i].Page < items[j].Page
		}
		return items[i].ID < items[j].ID
	})
}
