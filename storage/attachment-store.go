package storage

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"indicator-project/tracking-service/models"

	"github.com/google/uuid"
)

// AttachmentStore persists submitted files and returns stable references.
// Delete is idempotent; callers treat delete failures as hygiene, not
// correctness, and swallow them.
type AttachmentStore interface {
	Save(data []byte, suggestedName string) (models.Attachment, error)
	Delete(path string) error
}

type DiskAttachmentStore struct {
	baseDir string
}

func NewDiskAttachmentStore(baseDir string) (*DiskAttachmentStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %v", baseDir, err)
	}
	return &DiskAttachmentStore{baseDir: baseDir}, nil
}

func (s *DiskAttachmentStore) Save(data []byte, suggestedName string) (models.Attachment, error) {
	if len(data) == 0 {
		return models.Attachment{}, models.InvalidInputf("attachment data is empty")
	}

	name := filepath.Base(suggestedName)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "attachment"
	}
	stored := uuid.New().String() + "_" + name
	path := filepath.Join(s.baseDir, stored)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return models.Attachment{}, fmt.Errorf("failed to write attachment %s: %v", path, err)
	}
	return models.Attachment{Path: path, FileName: name}, nil
}

func (s *DiskAttachmentStore) Delete(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete attachment %s: %v", path, err)
	}
	return nil
}

// DecodeDataURI decodes an embedded "data:<mime>;base64,<payload>" URI into
// raw bytes, for submissions that carry their file inline instead of as a
// multipart upload.
func DecodeDataURI(dataURI string) ([]byte, error) {
	if !strings.HasPrefix(dataURI, "data:") {
		return nil, models.InvalidInputf("payload is not a data URI")
	}
	idx := strings.Index(dataURI, ",")
	if idx < 0 {
		return nil, models.InvalidInputf("malformed data URI: missing payload separator")
	}
	meta, payload := dataURI[5:idx], dataURI[idx+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, models.InvalidInputf("unsupported data URI encoding, expected base64")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, models.InvalidInputf("invalid base64 payload: %v", err)
	}
	return data, nil
}
