package store

import "github.com/cwbudde/clsizeof/internal/sizeof"

// Store persists size reports so later runs can be compared against them.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if the report doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveReport atomically saves a report under key, replacing any previous one.
	SaveReport(key string, report *sizeof.Report) error

	// LoadReport retrieves the report saved under key.
	LoadReport(key string) (*sizeof.Report, error)

	// ListReports returns metadata for all saved reports.
	ListReports() ([]ReportInfo, error)

	// DeleteReport removes the report saved under key.
	DeleteReport(key string) error
}

// ErrNotFound is returned when a requested report does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing report.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	if e.Key != "" {
		return "report not found: " + e.Key
	}
	return "report not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
