package repositories

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

//go:embed report_schema.json
var defaultReportSchema string

type reportsFile struct {
	Reports []*models.ReportDefinition `yaml:"reports"`
}

// FileReportStore serves definitions loaded from a YAML file at startup.
type FileReportStore struct {
	byID        map[string]*models.ReportDefinition
	byShortCode map[string]*models.ReportDefinition
	ordered     []*models.ReportDefinition
}

var _ ReportDefinitionStore = (*FileReportStore)(nil)

// NewFileReportStore reads path and validates it against the JSON schema at
// schemaPath, or the built-in schema when schemaPath is empty.
func NewFileReportStore(path, schemaPath string, logger *zap.Logger) (*FileReportStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report definitions: %w", err)
	}

	schema, err := schemaLoader(schemaPath)
	if err != nil {
		return nil, err
	}

	store, err := parseReportsFile(data, schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logger.Named("file_report_store").Info("Loaded report definitions",
		zap.String("path", path),
		zap.Int("reports", len(store.ordered)))
	return store, nil
}

func schemaLoader(schemaPath string) (gojsonschema.JSONLoader, error) {
	if schemaPath == "" {
		return gojsonschema.NewStringLoader(defaultReportSchema), nil
	}
	abs, err := filepath.Abs(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("invalid schema path: %w", err)
	}
	return gojsonschema.NewReferenceLoader("file://" + abs), nil
}

func parseReportsFile(data []byte, schema gojsonschema.JSONLoader) (*FileReportStore, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	result, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("invalid report definitions: %s", strings.Join(msgs, "; "))
	}

	var file reportsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}

	store := &FileReportStore{
		byID:        make(map[string]*models.ReportDefinition, len(file.Reports)),
		byShortCode: make(map[string]*models.ReportDefinition),
	}
	for _, def := range file.Reports {
		if _, dup := store.byID[def.ID]; dup {
			return nil, fmt.Errorf("duplicate report id %q", def.ID)
		}
		store.byID[def.ID] = def
		if def.ShortCode != "" {
			if _, dup := store.byShortCode[def.ShortCode]; dup {
				return nil, fmt.Errorf("duplicate short code %q", def.ShortCode)
			}
			store.byShortCode[def.ShortCode] = def
		}
		store.ordered = append(store.ordered, def)
	}
	sort.Slice(store.ordered, func(i, j int) bool {
		return store.ordered[i].ID < store.ordered[j].ID
	})
	return store, nil
}

func (s *FileReportStore) Get(_ context.Context, key string) (*models.ReportDefinition, error) {
	if def, ok := s.byID[key]; ok {
		return def, nil
	}
	if def, ok := s.byShortCode[key]; ok {
		return def, nil
	}
	return nil, fmt.Errorf("report %q: %w", key, apperrors.ErrNotFound)
}

func (s *FileReportStore) List(_ context.Context) ([]*models.ReportDefinition, error) {
	out := make([]*models.ReportDefinition, len(s.ordered))
	copy(out, s.ordered)
	return out, nil
}
