package graph

import (
	"context"

	"github.com/learnhub/engine/internal/models"
	appErr "github.com/learnhub/engine/pkg/errors"
	"go.uber.org/zap"
)

// DeleteNode detaches n from its neighbours and removes it. A soft delete
// keeps the row, flags it deleted and clears its own reference maps.
func (m *Manager) DeleteNode(ctx context.Context, s Store, n *models.Node, soft bool) error {
	if err := m.Detach(ctx, s, n); err != nil {
		return err
	}
	if soft {
		n.IsDeleted = true
		n.SetParents(models.NodeRefs{})
		n.SetChildren(models.NodeRefs{})
		if err := s.SaveNode(ctx, n); err != nil {
			return err
		}
	} else if err := s.DeleteNode(ctx, n.Collection, n.Key()); err != nil {
		return err
	}
	m.metrics.RecordNodeDeleted(n.Collection, soft)
	return nil
}

// DeleteTree removes root and every node reachable through child_nodes,
// children before parents. Each node is detached from all of its
// neighbours, including parents outside the tree. Nodes reached twice (a
// shared child, or a cycle) are deleted once. It returns the deleted uuids
// in deletion order.
func (m *Manager) DeleteTree(ctx context.Context, s Store, root *models.Node, soft bool) ([]string, error) {
	order, err := m.collect(ctx, s, root)
	if err != nil {
		return nil, err
	}

	deleted := make([]string, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		ref := order[i]
		// Reload: deleting descendants rewrote this node's child list.
		n, err := s.GetNode(ctx, ref.Collection, ref.ID)
		if err != nil {
			if appErr.IsCode(err, appErr.CodeNotFound) {
				continue
			}
			return deleted, err
		}
		if err := m.DeleteNode(ctx, s, n, soft); err != nil {
			return deleted, err
		}
		deleted = append(deleted, ref.ID)
	}

	m.log.Info("node tree deleted",
		zap.String("collection", root.Collection),
		zap.String("uuid", root.Key()),
		zap.Int("count", len(deleted)),
		zap.Bool("soft", soft))
	return deleted, nil
}

// collect walks the tree depth-first in pre-order. Dangling child
// references are ignored.
func (m *Manager) collect(ctx context.Context, s Store, root *models.Node) ([]models.Ref, error) {
	seen := map[string]bool{root.Key(): true}
	order := []models.Ref{{Collection: root.Collection, ID: root.Key()}}

	var walk func(n *models.Node) error
	walk = func(n *models.Node) error {
		for _, ref := range n.Children().Each() {
			if seen[ref.ID] {
				continue
			}
			seen[ref.ID] = true
			child, err := s.GetNode(ctx, ref.Collection, ref.ID)
			if err != nil {
				if appErr.IsCode(err, appErr.CodeNotFound) {
					continue
				}
				return err
			}
			order = append(order, ref)
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return order, nil
}
