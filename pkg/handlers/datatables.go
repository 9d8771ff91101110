package handlers

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

// maxExportBody bounds the POST export body; the request only carries grid state.
const maxExportBody = 1 << 20

//go:embed export_request_schema.json
var exportRequestSchema string

var exportSchemaLoader = gojsonschema.NewStringLoader(exportRequestSchema)

// ParseGridRequest decodes the DataTables server-side query parameters:
// draw, start, length, search[value], columns[i][search][value],
// order[0][column], order[0][dir] and format. Malformed numbers fall back to
// their defaults; length is clamped later by the compiler.
func ParseGridRequest(q url.Values) *models.GridRequest {
	req := &models.GridRequest{
		Draw:          atoi(q.Get("draw"), 0),
		Start:         atoi64(q.Get("start"), 0),
		Length:        atoi64(q.Get("length"), models.DefaultPageLength),
		GlobalSearch:  q.Get("search[value]"),
		SortColumn:    atoi(q.Get("order[0][column]"), 0),
		SortDirection: parseSortDirection(q.Get("order[0][dir]")),
	}
	if req.Start < 0 {
		req.Start = 0
	}

	for key, values := range q {
		idx, ok := columnSearchIndex(key)
		if !ok || len(values) == 0 || values[0] == "" {
			continue
		}
		if req.ColumnSearch == nil {
			req.ColumnSearch = make(map[int]string)
		}
		req.ColumnSearch[idx] = values[0]
	}

	if f, ok := models.ParseExportFormat(q.Get("format")); ok {
		req.Format = f
	}
	return req
}

// columnSearchIndex extracts i from "columns[i][search][value]".
func columnSearchIndex(key string) (int, bool) {
	const prefix, suffix = "columns[", "][search][value]"
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) {
		return 0, false
	}
	idx, err := strconv.Atoi(key[len(prefix) : len(key)-len(suffix)])
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// ExportRequest is a decoded POST export body.
type ExportRequest struct {
	Grid *models.GridRequest
	// Delimiter overrides the configured CSV delimiter when non-zero.
	Delimiter rune
}

type exportBody struct {
	Format string `json:"format"`
	Search struct {
		Value string `json:"value"`
	} `json:"search"`
	Columns []struct {
		Search struct {
			Value string `json:"value"`
		} `json:"search"`
	} `json:"columns"`
	Order []struct {
		Column int    `json:"column"`
		Dir    string `json:"dir"`
	} `json:"order"`
	Delimiter string `json:"delimiter"`
}

// ParseExportRequest reads and validates a POST export body against the export
// request JSON schema.
func ParseExportRequest(r io.Reader) (*ExportRequest, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxExportBody+1))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(data) > maxExportBody {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxExportBody)
	}

	result, err := gojsonschema.Validate(exportSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("invalid export request: %s", strings.Join(msgs, "; "))
	}

	var body exportBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("invalid export request: %w", err)
	}

	format, _ := models.ParseExportFormat(body.Format)
	grid := &models.GridRequest{
		GlobalSearch: body.Search.Value,
		Format:       format,
	}
	for i, col := range body.Columns {
		if col.Search.Value == "" {
			continue
		}
		if grid.ColumnSearch == nil {
			grid.ColumnSearch = make(map[int]string)
		}
		grid.ColumnSearch[i] = col.Search.Value
	}
	if len(body.Order) > 0 {
		grid.SortColumn = body.Order[0].Column
		grid.SortDirection = parseSortDirection(body.Order[0].Dir)
	}

	out := &ExportRequest{Grid: grid}
	for _, c := range body.Delimiter {
		out.Delimiter = c
	}
	return out, nil
}

// parseSortDirection maps asc/desc in any case; anything else is passed through
// upper-cased so the compiler can log and degrade it.
func parseSortDirection(s string) models.SortDirection {
	return models.SortDirection(strings.ToUpper(strings.TrimSpace(s)))
}

func atoi(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func atoi64(s string, def int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return def
	}
	return n
}
