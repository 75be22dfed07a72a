package index

import "github.com/starford/notepub/internal/models"

// CaptureIndex is the interface consumers depend on.
type CaptureIndex interface {
	InsertCapture(file string, rec models.CapturedRequest) error
	DeleteCapture(file string) error
	ListCaptures(method string, limit int) ([]CaptureRow, error)
	AllFiles() (map[string]struct{}, error)
	Close() error
}

var _ CaptureIndex = (*DB)(nil)
