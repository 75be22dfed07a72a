package apperr

import "errors"

var (
	ErrExporterNotFound = errors.New("exporter not found")
	ErrBuilderNotFound  = errors.New("builder not found")
	ErrNotARepository   = errors.New("not a git repository")
)
