package executor

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/learnhub/engine/internal/models"
	"github.com/learnhub/engine/internal/services"
	appErr "github.com/learnhub/engine/pkg/errors"
)

// CSVIngestionInput is the input_data of a csv_ingestion job.
type CSVIngestionInput struct {
	Collection string `json:"collection"`
	CSV        string `json:"csv"`
}

var csvColumns = []string{"name", "description", "parent_collection", "parent_uuid"}

// CSVIngestion creates one node per CSV row through the node service, so
// every row's parent learns about its new child. Rows created before a
// failing row are kept.
type CSVIngestion struct {
	nodes services.NodeService
}

func NewCSVIngestion(nodes services.NodeService) *CSVIngestion {
	return &CSVIngestion{nodes: nodes}
}

func (h *CSVIngestion) Run(ctx context.Context, job *models.BatchJob) (string, error) {
	var in CSVIngestionInput
	if err := json.Unmarshal([]byte(job.InputData), &in); err != nil {
		return "", appErr.Wrap(err, appErr.CodeInvalid, "csv_ingestion input must be an object with collection and csv")
	}
	if !models.IsCollection(in.Collection) {
		return "", appErr.Newf(appErr.CodeInvalid, "unknown collection %q", in.Collection)
	}

	r := csv.NewReader(strings.NewReader(in.CSV))
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeInvalid, "csv header missing")
	}
	cols, err := columnIndex(header)
	if err != nil {
		return "", err
	}

	var created []string
	for row := 2; ; row++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", appErr.Wrap(err, appErr.CodeInvalid, "malformed csv").WithMeta("row", row).WithMeta("created", created)
		}

		input, rowErr := rowInput(rec, cols)
		if rowErr != nil {
			return "", rowErr.WithMeta("row", row).WithMeta("created", created)
		}
		n, err := h.nodes.CreateNode(ctx, in.Collection, input)
		if err != nil {
			return "", appErr.Wrap(err, appErr.CodeOf(err), "row "+strconv.Itoa(row)+": "+err.Error()).
				WithMeta("row", row).WithMeta("created", created)
		}
		created = append(created, n.Key())
	}
	if len(created) == 0 {
		return "", appErr.New(appErr.CodeInvalid, "csv has no data rows")
	}
	return strings.Join(created, ","), nil
}

func columnIndex(header []string) (map[string]int, error) {
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range csvColumns {
		if _, ok := cols[c]; !ok {
			return nil, appErr.Newf(appErr.CodeInvalid, "csv header must contain %s", strings.Join(csvColumns, ","))
		}
	}
	return cols, nil
}

func rowInput(rec []string, cols map[string]int) (*services.CreateNodeInput, *appErr.AppError) {
	get := func(c string) string {
		if i := cols[c]; i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	input := &services.CreateNodeInput{Name: get("name"), Description: get("description")}
	if input.Name == "" {
		return nil, appErr.New(appErr.CodeInvalid, "name is required")
	}

	parentCollection, parentID := get("parent_collection"), get("parent_uuid")
	switch {
	case parentCollection == "" && parentID == "":
	case parentCollection == "" || parentID == "":
		return nil, appErr.New(appErr.CodeInvalid, "parent_collection and parent_uuid go together")
	default:
		input.ParentNodes = models.NodeRefs{}
		for _, id := range strings.Split(parentID, ";") {
			if id = strings.TrimSpace(id); id != "" {
				input.ParentNodes.Add(parentCollection, id)
			}
		}
	}
	return input, nil
}
