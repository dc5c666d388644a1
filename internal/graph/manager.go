// Package graph keeps parent/child references between nodes symmetric.
//
// Every node stores the uuids of its neighbours, grouped by collection, in
// both directions. A child listed in B.child_nodes must list B in its own
// parent_nodes and vice versa. The Manager performs the neighbour writes
// that maintain this on create, update and delete. Callers run the
// Manager against a transactional Store so that both sides of a link land
// together.
package graph

import (
	"context"

	"github.com/learnhub/engine/internal/metrics"
	"github.com/learnhub/engine/internal/models"
	appErr "github.com/learnhub/engine/pkg/errors"
	"go.uber.org/zap"
)

// Store is the persistence the Manager needs. GetNode must not return
// soft-deleted nodes. SaveNode is a version-checked write.
type Store interface {
	GetNode(ctx context.Context, collection, id string) (*models.Node, error)
	SaveNode(ctx context.Context, n *models.Node) error
	DeleteNode(ctx context.Context, collection, id string) error
}

// Op selects whether a reference is added to or removed from neighbours.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

const defaultFanout = 8

// Manager maintains reference symmetry. It holds no state between calls.
type Manager struct {
	log     *zap.Logger
	metrics *metrics.Collector
	fanout  int
}

// NewManager builds a Manager. m may be nil.
func NewManager(log *zap.Logger, m *metrics.Collector) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{log: log, metrics: m, fanout: defaultFanout}
}

// WithFanout bounds concurrent child fetches during progress loads.
func (m *Manager) WithFanout(n int) *Manager {
	if n > 0 {
		m.fanout = n
	}
	return m
}

// ValidateReferences checks every reference n carries. Keys must name
// collections that may sit above (parents) or below (children) n's
// collection; every uuid must resolve to a live node. Nothing is written.
func (m *Manager) ValidateReferences(ctx context.Context, s Store, n *models.Node) error {
	if !models.IsCollection(n.Collection) {
		return appErr.Newf(appErr.CodeInvalid, "unknown collection %q", n.Collection)
	}
	for _, ref := range n.Parents().Each() {
		if !models.CanParent(ref.Collection, n.Collection) {
			return appErr.Newf(appErr.CodeInvalid, "%s cannot be a parent of %s", ref.Collection, n.Collection).
				WithMeta("field", "parent_nodes")
		}
		if err := m.checkRef(ctx, s, n, ref); err != nil {
			return err
		}
	}
	for _, ref := range n.Children().Each() {
		if !models.CanParent(n.Collection, ref.Collection) {
			return appErr.Newf(appErr.CodeInvalid, "%s cannot be a child of %s", ref.Collection, n.Collection).
				WithMeta("field", "child_nodes")
		}
		if err := m.checkRef(ctx, s, n, ref); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) checkRef(ctx context.Context, s Store, n *models.Node, ref models.Ref) error {
	if ref.ID == n.Key() {
		return appErr.Newf(appErr.CodeInvalid, "node %s cannot reference itself", ref.ID)
	}
	_, err := s.GetNode(ctx, ref.Collection, ref.ID)
	return err
}

// UpdateChildReferences adds n to, or removes n from, the child_nodes of
// every parent n lists. Parents that no longer exist are skipped on remove.
func (m *Manager) UpdateChildReferences(ctx context.Context, s Store, n *models.Node, op Op) error {
	return m.syncParents(ctx, s, n, n.Parents(), op)
}

// UpdateParentReferences adds n to, or removes n from, the parent_nodes of
// every child n lists.
func (m *Manager) UpdateParentReferences(ctx context.Context, s Store, n *models.Node, op Op) error {
	return m.syncChildren(ctx, s, n, n.Children(), op)
}

// Link publishes a freshly created node to all of its neighbours.
func (m *Manager) Link(ctx context.Context, s Store, n *models.Node) error {
	if err := m.UpdateChildReferences(ctx, s, n, OpAdd); err != nil {
		return err
	}
	return m.UpdateParentReferences(ctx, s, n, OpAdd)
}

// Relink applies the difference between old and updated reference maps to
// the neighbours: dropped references are removed, new ones added.
func (m *Manager) Relink(ctx context.Context, s Store, old, updated *models.Node) error {
	oldParents, newParents := old.Parents(), updated.Parents()
	oldChildren, newChildren := old.Children(), updated.Children()

	if err := m.syncParents(ctx, s, updated, oldParents.Minus(newParents), OpRemove); err != nil {
		return err
	}
	if err := m.syncParents(ctx, s, updated, newParents.Minus(oldParents), OpAdd); err != nil {
		return err
	}
	if err := m.syncChildren(ctx, s, updated, oldChildren.Minus(newChildren), OpRemove); err != nil {
		return err
	}
	return m.syncChildren(ctx, s, updated, newChildren.Minus(oldChildren), OpAdd)
}

// Detach removes n from every neighbour in both directions. n itself is
// not modified.
func (m *Manager) Detach(ctx context.Context, s Store, n *models.Node) error {
	if err := m.UpdateChildReferences(ctx, s, n, OpRemove); err != nil {
		return err
	}
	return m.UpdateParentReferences(ctx, s, n, OpRemove)
}

// syncParents rewrites parents' child_nodes[n.Collection].
func (m *Manager) syncParents(ctx context.Context, s Store, n *models.Node, parents models.NodeRefs, op Op) error {
	for _, ref := range parents.Each() {
		err := m.rewrite(ctx, s, ref, op, "parent", func(p *models.Node) bool {
			refs := p.Children()
			if !apply(refs, op, n.Collection, n.Key()) {
				return false
			}
			p.SetChildren(refs)
			return true
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// syncChildren rewrites children's parent_nodes[n.Collection].
func (m *Manager) syncChildren(ctx context.Context, s Store, n *models.Node, children models.NodeRefs, op Op) error {
	for _, ref := range children.Each() {
		err := m.rewrite(ctx, s, ref, op, "child", func(c *models.Node) bool {
			refs := c.Parents()
			if !apply(refs, op, n.Collection, n.Key()) {
				return false
			}
			c.SetParents(refs)
			return true
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) rewrite(ctx context.Context, s Store, ref models.Ref, op Op, side string, mutate func(*models.Node) bool) error {
	neighbour, err := s.GetNode(ctx, ref.Collection, ref.ID)
	if err != nil {
		if op == OpRemove && appErr.IsCode(err, appErr.CodeNotFound) {
			return nil
		}
		return err
	}
	if !mutate(neighbour) {
		return nil
	}
	if err := s.SaveNode(ctx, neighbour); err != nil {
		return err
	}
	m.metrics.RecordReferenceWrite(side, string(op))
	m.log.Debug("neighbour references updated",
		zap.String("side", side),
		zap.String("op", string(op)),
		zap.String("collection", ref.Collection),
		zap.String("uuid", ref.ID))
	return nil
}

func apply(refs models.NodeRefs, op Op, collection, id string) bool {
	if op == OpAdd {
		return refs.Add(collection, id)
	}
	return refs.Remove(collection, id)
}
