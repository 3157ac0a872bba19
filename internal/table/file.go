package table

import (
	"encoding/json"
	"fmt"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/common/fsutil"
	"github.com/deploymenttheory/go-batch-runner/internal/common/jsonutil"
	"github.com/deploymenttheory/go-batch-runner/internal/schema"
)

// Document is the serialized form of a table
type Document struct {
	ProjectID    string                `json:"projectId,omitempty"`
	InputSchema  []schema.InputColumn  `json:"inputSchema"`
	OutputSchema []schema.OutputColumn `json:"outputSchema"`
	Rows         []Row                 `json:"rows"`
}

// Document captures the current table
func (s *Store) Document(projectID string) Document {
	return Document{
		ProjectID:    projectID,
		InputSchema:  s.InputColumns(),
		OutputSchema: s.OutputColumns(),
		Rows:         s.Rows(),
	}
}

// FromDocument builds a store from a document, normalizing legacy column
// types. Rows left running by an interrupted task are reset to idle.
func FromDocument(doc Document) *Store {
	inputs := schema.NormalizeInputColumns(doc.InputSchema)
	outputs := schema.NormalizeOutputColumns(doc.OutputSchema)
	for i := range doc.Rows {
		if doc.Rows[i].Status == StatusRunning {
			doc.Rows[i].Status = StatusIdle
		}
	}
	return NewStore(inputs, outputs, doc.Rows...)
}

// Marshal encodes the table as JSON
func (s *Store) Marshal(projectID string) ([]byte, error) {
	data, err := json.MarshalIndent(s.Document(projectID), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrTableWriteError, err.Error())
	}
	return data, nil
}

// Unmarshal decodes a table encoded by Marshal
func Unmarshal(data []byte) (*Store, string, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, "", fmt.Errorf("%w: %s", errors.ErrTableReadError, err.Error())
	}
	return FromDocument(doc), doc.ProjectID, nil
}

// LoadFile reads a table file
func LoadFile(path string) (*Store, string, error) {
	var doc Document
	if err := jsonutil.ReadJSONFile(path, &doc); err != nil {
		return nil, "", fmt.Errorf("%w: %w", errors.ErrTableReadError, err)
	}
	return FromDocument(doc), doc.ProjectID, nil
}

// SaveFile writes the table to path atomically
func (s *Store) SaveFile(path, projectID string) error {
	data, err := s.Marshal(projectID)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrTableWriteError, err.Error())
	}
	return nil
}
