package index

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/starford/notepub/internal/models"
)

// CaptureRow is one indexed record.
type CaptureRow struct {
	File        string    `json:"file"`
	ID          string    `json:"id"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type,omitempty"`
	BodySize    int       `json:"body_size"`
	ReceivedAt  time.Time `json:"received_at"`
}

// InsertCapture indexes a record file. Re-indexing the same file is a no-op.
// Methods are stored upper-cased so ListCaptures filters case-insensitively.
func (db *DB) InsertCapture(file string, rec models.CapturedRequest) error {
	_, err := db.conn.Exec(`
		INSERT OR IGNORE INTO captures (file, id, method, path, url, content_type, body_size, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, file, rec.ID, strings.ToUpper(rec.Method), rec.Path, rec.URL,
		http.Header(rec.Headers).Get("Content-Type"), len(rec.Body), rec.ReceivedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: insert capture: %w", err)
	}
	return nil
}

// DeleteCapture removes a record from the index.
func (db *DB) DeleteCapture(file string) error {
	if _, err := db.conn.Exec(`DELETE FROM captures WHERE file = ?`, file); err != nil {
		return fmt.Errorf("index: delete capture: %w", err)
	}
	return nil
}

// ListCaptures returns the newest records first, optionally filtered by
// HTTP method (case-insensitive). limit <= 0 means no limit.
func (db *DB) ListCaptures(method string, limit int) ([]CaptureRow, error) {
	query := `SELECT file, id, method, path, url, content_type, body_size, received_at FROM captures`
	var args []any
	if method != "" {
		query += ` WHERE method = ?`
		args = append(args, strings.ToUpper(method))
	}
	query += ` ORDER BY received_at DESC, file DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list captures: %w", err)
	}
	defer rows.Close()

	var out []CaptureRow
	for rows.Next() {
		var r CaptureRow
		if err := rows.Scan(&r.File, &r.ID, &r.Method, &r.Path, &r.URL, &r.ContentType, &r.BodySize, &r.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllFiles returns every indexed record file name.
func (db *DB) AllFiles() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT file FROM captures`)
	if err != nil {
		return nil, fmt.Errorf("index: all files: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		out[f] = struct{}{}
	}
	return out, rows.Err()
}
