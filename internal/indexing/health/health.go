// Package health provides system health monitoring and status reporting.
package health

import (
	"github.com/vietddude/votewatch/internal/indexing/indexer"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus      `json:"system_status"`
	JournalSize  int               `json:"journal_size"`
	Stores       map[string]string `json:"stores"`
	Indexer      indexer.Status    `json:"indexer"`
}
