package graph

import (
	"context"
	"math"
	"slices"

	"github.com/learnhub/engine/internal/models"
	appErr "github.com/learnhub/engine/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Progress statuses.
const (
	StatusCompleted    = "completed"
	StatusInProgress   = "in_progress"
	StatusNotAttempted = "not_attempted"
)

// Progress is a learner's completion of one node and its subtree.
type Progress struct {
	UUID       string      `json:"uuid"`
	Collection string      `json:"collection"`
	Name       string      `json:"name"`
	Progress   float64     `json:"progress"`
	Status     string      `json:"status"`
	Children   []*Progress `json:"children,omitempty"`
}

// LoadHierarchyProgress computes progress for root bottom-up. A leaf scores
// 100 when achieved, otherwise the profile's partial progress. An inner
// node scores the mean of its children unless it is itself achieved.
// Children are loaded concurrently; s must be safe for concurrent use.
func (m *Manager) LoadHierarchyProgress(ctx context.Context, s Store, root *models.Node, profile *models.LearnerProfile) (*Progress, error) {
	return m.progress(ctx, s, root, profile, []string{root.Key()})
}

func (m *Manager) progress(ctx context.Context, s Store, n *models.Node, profile *models.LearnerProfile, path []string) (*Progress, error) {
	refs := n.Children().Each()
	children := make([]*Progress, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.fanout)
	for i, ref := range refs {
		if slices.Contains(path, ref.ID) {
			continue
		}
		g.Go(func() error {
			child, err := s.GetNode(gctx, ref.Collection, ref.ID)
			if err != nil {
				if appErr.IsCode(err, appErr.CodeNotFound) {
					return nil
				}
				return err
			}
			p, err := m.progress(gctx, s, child, profile, append(slices.Clip(path), ref.ID))
			if err != nil {
				return err
			}
			children[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	children = slices.DeleteFunc(children, func(p *Progress) bool { return p == nil })

	out := &Progress{
		UUID:       n.Key(),
		Collection: n.Collection,
		Name:       n.Name,
		Children:   children,
	}
	switch {
	case profile.Achieved(n.Key()):
		out.Progress = 100
	case len(children) == 0:
		out.Progress = profile.PartialProgress(n.Key())
	default:
		var sum float64
		for _, c := range children {
			sum += c.Progress
		}
		out.Progress = sum / float64(len(children))
	}
	out.Progress = math.Round(out.Progress*100) / 100
	out.Status = statusFor(out.Progress)
	return out, nil
}

func statusFor(p float64) string {
	switch {
	case p >= 100:
		return StatusCompleted
	case p > 0:
		return StatusInProgress
	default:
		return StatusNotAttempted
	}
}
