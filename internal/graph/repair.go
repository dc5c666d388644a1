package graph

import (
	"context"

	"github.com/learnhub/engine/internal/models"
	appErr "github.com/learnhub/engine/pkg/errors"
)

// RepairReport counts what Repair changed.
type RepairReport struct {
	// Dropped references pointed at nodes that no longer exist.
	Dropped int `json:"dropped"`
	// Restored references were one-sided; the neighbour now agrees.
	Restored int `json:"restored"`
}

// Changed reports whether anything was written.
func (r RepairReport) Changed() bool { return r.Dropped+r.Restored > 0 }

// Repair reconciles n with its neighbours. References to missing nodes are
// removed from n; neighbours that do not list n back are updated to do so.
func (m *Manager) Repair(ctx context.Context, s Store, n *models.Node) (RepairReport, error) {
	var report RepairReport

	parents := n.Parents()
	for _, ref := range parents.Each() {
		ok, err := m.restore(ctx, s, ref, func(p *models.Node) bool {
			refs := p.Children()
			if !refs.Add(n.Collection, n.Key()) {
				return false
			}
			p.SetChildren(refs)
			return true
		}, &report)
		if err != nil {
			return report, err
		}
		if !ok {
			parents.Remove(ref.Collection, ref.ID)
			report.Dropped++
		}
	}

	children := n.Children()
	for _, ref := range children.Each() {
		ok, err := m.restore(ctx, s, ref, func(c *models.Node) bool {
			refs := c.Parents()
			if !refs.Add(n.Collection, n.Key()) {
				return false
			}
			c.SetParents(refs)
			return true
		}, &report)
		if err != nil {
			return report, err
		}
		if !ok {
			children.Remove(ref.Collection, ref.ID)
			report.Dropped++
		}
	}

	if report.Dropped > 0 {
		n.SetParents(parents)
		n.SetChildren(children)
		if err := s.SaveNode(ctx, n); err != nil {
			return report, err
		}
	}
	return report, nil
}

// restore loads the neighbour and applies fix. It reports false when the
// neighbour does not exist.
func (m *Manager) restore(ctx context.Context, s Store, ref models.Ref, fix func(*models.Node) bool, report *RepairReport) (bool, error) {
	neighbour, err := s.GetNode(ctx, ref.Collection, ref.ID)
	if appErr.IsCode(err, appErr.CodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if fix(neighbour) {
		if err := s.SaveNode(ctx, neighbour); err != nil {
			return true, err
		}
		report.Restored++
	}
	return true, nil
}
