package services

import (
	"context"
	"encoding/json"

	"github.com/learnhub/engine/internal/graph"
	"github.com/learnhub/engine/internal/models"
	"github.com/learnhub/engine/internal/repository"
	appErr "github.com/learnhub/engine/pkg/errors"
	"github.com/learnhub/engine/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// NodeService manages hierarchical content nodes. Every write that touches
// references runs in one transaction together with the neighbour updates.
type NodeService interface {
	CreateNode(ctx context.Context, collection string, input *CreateNodeInput) (*models.Node, error)
	GetNode(ctx context.Context, collection, id string) (*models.Node, error)
	ListNodes(ctx context.Context, collection string, filters *NodeFilters) ([]models.Node, int64, error)
	UpdateNode(ctx context.Context, collection, id string, input *UpdateNodeInput) (*models.Node, error)
	DeleteNode(ctx context.Context, collection, id string, soft bool) error
	DeleteTree(ctx context.Context, collection, id string, soft bool) ([]string, error)
	GetProgress(ctx context.Context, collection, id, learnerID string) (*graph.Progress, error)
}

type CreateNodeInput struct {
	Name        string
	Description string
	Metadata    map[string]any
	ParentNodes models.NodeRefs
	ChildNodes  models.NodeRefs
}

// UpdateNodeInput holds the fields to change; nil leaves a field as is.
// Version, when set, must match the stored version.
type UpdateNodeInput struct {
	Name        *string
	Description *string
	Metadata    map[string]any
	ParentNodes *models.NodeRefs
	ChildNodes  *models.NodeRefs
	IsArchived  *bool
	Version     *int
}

type NodeFilters struct {
	Archived *bool
	Page     int
	PageSize int
}

type nodeService struct {
	nodes    repository.NodeRepository
	profiles repository.LearnerProfileRepository
	graph    *graph.Manager
}

func NewNodeService(nodes repository.NodeRepository, profiles repository.LearnerProfileRepository, gm *graph.Manager) NodeService {
	return &nodeService{nodes: nodes, profiles: profiles, graph: gm}
}

// Ensure interfaces are satisfied at compile time
var _ NodeService = (*nodeService)(nil)

func (s *nodeService) CreateNode(ctx context.Context, collection string, input *CreateNodeInput) (*models.Node, error) {
	if !models.IsCollection(collection) {
		return nil, unknownCollection(collection)
	}
	metadata, err := marshalMetadata(input.Metadata)
	if err != nil {
		return nil, err
	}

	n := &models.Node{
		Collection:  collection,
		Name:        input.Name,
		Description: input.Description,
		Metadata:    metadata,
	}
	n.SetParents(dedupe(input.ParentNodes))
	n.SetChildren(dedupe(input.ChildNodes))

	err = s.nodes.InTx(ctx, func(tx repository.NodeRepository) error {
		if err := s.graph.ValidateReferences(ctx, tx, n); err != nil {
			return err
		}
		if err := tx.CreateNode(ctx, n); err != nil {
			return err
		}
		return s.graph.Link(ctx, tx, n)
	})
	if err != nil {
		return nil, err
	}

	logger.L().Info("node created",
		zap.String("collection", collection),
		zap.String("uuid", n.Key()),
		zap.Int("parents", n.Parents().Len()),
		zap.Int("children", n.Children().Len()))
	return n, nil
}

func (s *nodeService) GetNode(ctx context.Context, collection, id string) (*models.Node, error) {
	if !models.IsCollection(collection) {
		return nil, unknownCollection(collection)
	}
	return s.nodes.GetNode(ctx, collection, id)
}

func (s *nodeService) ListNodes(ctx context.Context, collection string, filters *NodeFilters) ([]models.Node, int64, error) {
	if !models.IsCollection(collection) {
		return nil, 0, unknownCollection(collection)
	}
	f := repository.NodeFilter{}
	if filters != nil {
		f = repository.NodeFilter{Archived: filters.Archived, Page: filters.Page, PageSize: filters.PageSize}
	}
	return s.nodes.List(ctx, collection, f)
}

func (s *nodeService) UpdateNode(ctx context.Context, collection, id string, input *UpdateNodeInput) (*models.Node, error) {
	if !models.IsCollection(collection) {
		return nil, unknownCollection(collection)
	}

	var updated *models.Node
	err := s.nodes.InTx(ctx, func(tx repository.NodeRepository) error {
		old, err := tx.GetNode(ctx, collection, id)
		if err != nil {
			return err
		}
		if input.Version != nil && *input.Version != old.Version {
			return appErr.Newf(appErr.CodeConflict, "%s %s is at version %d, not %d", collection, id, old.Version, *input.Version).
				WithMeta("version", old.Version)
		}

		next := *old
		if input.Name != nil {
			next.Name = *input.Name
		}
		if input.Description != nil {
			next.Description = *input.Description
		}
		if input.Metadata != nil {
			if next.Metadata, err = marshalMetadata(input.Metadata); err != nil {
				return err
			}
		}
		if input.IsArchived != nil {
			next.IsArchived = *input.IsArchived
		}
		refsChanged := false
		if input.ParentNodes != nil {
			next.SetParents(dedupe(*input.ParentNodes))
			refsChanged = true
		}
		if input.ChildNodes != nil {
			next.SetChildren(dedupe(*input.ChildNodes))
			refsChanged = true
		}

		if refsChanged {
			if err := s.graph.ValidateReferences(ctx, tx, &next); err != nil {
				return err
			}
		}
		if err := tx.SaveNode(ctx, &next); err != nil {
			return err
		}
		if refsChanged {
			if err := s.graph.Relink(ctx, tx, old, &next); err != nil {
				return err
			}
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.L().Info("node updated", zap.String("collection", collection), zap.String("uuid", id), zap.Int("version", updated.Version))
	return updated, nil
}

func (s *nodeService) DeleteNode(ctx context.Context, collection, id string, soft bool) error {
	if !models.IsCollection(collection) {
		return unknownCollection(collection)
	}
	err := s.nodes.InTx(ctx, func(tx repository.NodeRepository) error {
		n, err := tx.GetNode(ctx, collection, id)
		if err != nil {
			return err
		}
		return s.graph.DeleteNode(ctx, tx, n, soft)
	})
	if err != nil {
		return err
	}
	logger.L().Info("node deleted", zap.String("collection", collection), zap.String("uuid", id), zap.Bool("soft", soft))
	return nil
}

func (s *nodeService) DeleteTree(ctx context.Context, collection, id string, soft bool) ([]string, error) {
	if !models.IsCollection(collection) {
		return nil, unknownCollection(collection)
	}
	var deleted []string
	err := s.nodes.InTx(ctx, func(tx repository.NodeRepository) error {
		root, err := tx.GetNode(ctx, collection, id)
		if err != nil {
			return err
		}
		deleted, err = s.graph.DeleteTree(ctx, tx, root, soft)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (s *nodeService) GetProgress(ctx context.Context, collection, id, learnerID string) (*graph.Progress, error) {
	if !models.IsCollection(collection) {
		return nil, unknownCollection(collection)
	}
	if learnerID == "" {
		return nil, appErr.New(appErr.CodeInvalid, "learner_id is required").WithMeta("field", "learner_id")
	}
	root, err := s.nodes.GetNode(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetByLearnerID(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	return s.graph.LoadHierarchyProgress(ctx, s.nodes, root, profile)
}

func unknownCollection(collection string) error {
	return appErr.Newf(appErr.CodeNotFound, "unknown collection %q", collection).WithMeta("collection", collection)
}

func marshalMetadata(m map[string]any) (datatypes.JSON, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "invalid metadata json")
	}
	return datatypes.JSON(b), nil
}

// dedupe drops repeated ids and empty lists.
func dedupe(in models.NodeRefs) models.NodeRefs {
	out := models.NodeRefs{}
	for _, ref := range in.Each() {
		out.Add(ref.Collection, ref.ID)
	}
	return out
}
