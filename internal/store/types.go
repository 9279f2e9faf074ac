package store

import (
	"strings"
	"time"

	"github.com/cwbudde/clsizeof/internal/sizeof"
)

// ReportInfo is the listing view of a saved report.
type ReportInfo struct {
	Key       string    `json:"key"`
	Backend   string    `json:"backend"`
	Platform  string    `json:"platform"`
	Device    string    `json:"device"`
	Count     uint32    `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// InfoOf extracts listing metadata from a report.
func InfoOf(key string, r *sizeof.Report) ReportInfo {
	return ReportInfo{
		Key:       key,
		Backend:   r.Backend,
		Platform:  r.Platform.Name,
		Device:    r.Device.Name,
		Count:     r.Count,
		Timestamp: r.Timestamp,
	}
}

// KeyFor derives the storage key of a report: a lowercase slug of backend,
// platform and device names, so reruns on the same device overwrite.
func KeyFor(r *sizeof.Report) string {
	return Slug(r.Backend + "-" + r.Platform.Name + "-" + r.Device.Name)
}

// Slug keeps [a-z0-9] and collapses everything else into single dashes.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
