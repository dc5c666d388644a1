package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/learnhub/engine/internal/models"
	appErr "github.com/learnhub/engine/pkg/errors"
	"gorm.io/gorm"
)

// NodeFilter narrows node listings.
type NodeFilter struct {
	Archived *bool
	Page     int
	PageSize int
}

// NodeRepository persists hierarchical nodes. A node is addressed by
// (collection, uuid); soft-deleted nodes are invisible to reads.
type NodeRepository interface {
	CreateNode(ctx context.Context, n *models.Node) error
	GetNode(ctx context.Context, collection, id string) (*models.Node, error)
	SaveNode(ctx context.Context, n *models.Node) error
	DeleteNode(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string, f NodeFilter) ([]models.Node, int64, error)
	// InTx runs fn against a repository bound to a single transaction.
	InTx(ctx context.Context, fn func(tx NodeRepository) error) error
}

type nodeRepository struct {
	db *gorm.DB
}

func NewNodeRepository(db *gorm.DB) NodeRepository {
	return &nodeRepository{db: db}
}

func (r *nodeRepository) CreateNode(ctx context.Context, n *models.Node) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return appErr.Wrap(err, appErr.CodeAlreadyExists, "node already exists")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "create node failed")
	}
	return nil
}

func (r *nodeRepository) GetNode(ctx context.Context, collection, id string) (*models.Node, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, appErr.NotFound(collection, id)
	}
	var n models.Node
	err = r.db.WithContext(ctx).
		Where("id = ? AND collection = ? AND is_deleted = ?", uid, collection, false).
		First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.NotFound(collection, id)
		}
		return nil, appErr.Wrap(err, appErr.CodeInternal, "get node failed")
	}
	return &n, nil
}

// SaveNode writes every mutable column, guarded by the version the caller
// read. A stale version means another writer got there first.
func (r *nodeRepository) SaveNode(ctx context.Context, n *models.Node) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.Node{}).
		Where("id = ? AND version = ?", n.ID, n.Version).
		Updates(map[string]any{
			"name":               n.Name,
			"description":        n.Description,
			"metadata":           n.Metadata,
			"parent_nodes":       n.ParentNodes,
			"child_nodes":        n.ChildNodes,
			"is_archived":        n.IsArchived,
			"is_deleted":         n.IsDeleted,
			"version":            n.Version + 1,
			"last_modified_time": now,
		})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "save node failed")
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Node{}).Where("id = ?", n.ID).Count(&count).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "save node failed")
		}
		if count == 0 {
			return appErr.NotFound(n.Collection, n.Key())
		}
		return appErr.Newf(appErr.CodeConflict, "%s %s was modified concurrently", n.Collection, n.Key())
	}
	n.Version++
	n.LastModifiedTime = now
	return nil
}

func (r *nodeRepository) DeleteNode(ctx context.Context, collection, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return appErr.NotFound(collection, id)
	}
	res := r.db.WithContext(ctx).Where("id = ? AND collection = ?", uid, collection).Delete(&models.Node{})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "delete node failed")
	}
	if res.RowsAffected == 0 {
		return appErr.NotFound(collection, id)
	}
	return nil
}

func (r *nodeRepository) List(ctx context.Context, collection string, f NodeFilter) ([]models.Node, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Node{}).
		Where("collection = ? AND is_deleted = ?", collection, false)
	if f.Archived != nil {
		q = q.Where("is_archived = ?", *f.Archived)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeInternal, "count nodes failed")
	}

	page, size := normalizePage(f.Page, f.PageSize)
	var out []models.Node
	err := q.Order("created_time ASC").Order("id ASC").
		Offset((page - 1) * size).Limit(size).
		Find(&out).Error
	if err != nil {
		return nil, 0, appErr.Wrap(err, appErr.CodeInternal, "list nodes failed")
	}
	return out, total, nil
}

func (r *nodeRepository) InTx(ctx context.Context, fn func(tx NodeRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&nodeRepository{db: tx})
	})
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 1000 {
		size = 1000
	}
	return page, size
}
