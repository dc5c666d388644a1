package executor

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/learnhub/engine/internal/graph"
	"github.com/learnhub/engine/internal/models"
	"github.com/learnhub/engine/internal/repository"
	appErr "github.com/learnhub/engine/pkg/errors"
	"go.uber.org/zap"
)

const repairPageSize = 200

// ReferenceRepairInput is the input_data of a reference_repair job. An
// empty Collections list scans every collection.
type ReferenceRepairInput struct {
	Collections []string `json:"collections"`
}

// ReferenceRepair walks nodes and fixes one-sided or dangling references.
// Each node is repaired in its own transaction.
type ReferenceRepair struct {
	nodes repository.NodeRepository
	graph *graph.Manager
	log   *zap.Logger
}

func NewReferenceRepair(nodes repository.NodeRepository, gm *graph.Manager, log *zap.Logger) *ReferenceRepair {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReferenceRepair{nodes: nodes, graph: gm, log: log}
}

// Run returns the uuids of repaired nodes, comma joined.
func (h *ReferenceRepair) Run(ctx context.Context, job *models.BatchJob) (string, error) {
	var in ReferenceRepairInput
	if job.InputData != "" && job.InputData != "null" {
		if err := json.Unmarshal([]byte(job.InputData), &in); err != nil {
			return "", appErr.Wrap(err, appErr.CodeInvalid, "reference_repair input must be an object")
		}
	}
	collections := in.Collections
	if len(collections) == 0 {
		collections = models.Collections()
	}
	for _, c := range collections {
		if !models.IsCollection(c) {
			return "", appErr.Newf(appErr.CodeInvalid, "unknown collection %q", c)
		}
	}

	var repaired []string
	var total graph.RepairReport
	for _, c := range collections {
		for page := 1; ; page++ {
			nodes, count, err := h.nodes.List(ctx, c, repository.NodeFilter{Page: page, PageSize: repairPageSize})
			if err != nil {
				return "", err
			}
			for _, n := range nodes {
				report, err := h.repairOne(ctx, n.Collection, n.Key())
				if err != nil {
					return "", err
				}
				if report.Changed() {
					repaired = append(repaired, n.Key())
					total.Dropped += report.Dropped
					total.Restored += report.Restored
				}
			}
			if int64(page*repairPageSize) >= count {
				break
			}
		}
	}

	h.log.Info("reference repair finished",
		zap.Int("nodes", len(repaired)),
		zap.Int("dropped", total.Dropped),
		zap.Int("restored", total.Restored))
	return strings.Join(repaired, ","), nil
}

func (h *ReferenceRepair) repairOne(ctx context.Context, collection, id string) (graph.RepairReport, error) {
	var report graph.RepairReport
	err := h.nodes.InTx(ctx, func(tx repository.NodeRepository) error {
		n, err := tx.GetNode(ctx, collection, id)
		if err != nil {
			if appErr.IsCode(err, appErr.CodeNotFound) {
				return nil
			}
			return err
		}
		report, err = h.graph.Repair(ctx, tx, n)
		return err
	})
	return report, err
}
