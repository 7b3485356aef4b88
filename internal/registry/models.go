package registry

import (
	"strings"
	"time"
)

// DocumentStatus represents the lifecycle of a document in the pipeline.
type DocumentStatus string

const (
	StatusQueued     DocumentStatus = "queued"
	StatusProcessing DocumentStatus = "processing"
	StatusProcessed  DocumentStatus = "processed"
	StatusConverting DocumentStatus = "converting"
	StatusConverted  DocumentStatus = "converted"
)

var allDocumentStatuses = []DocumentStatus{
	StatusQueued,
	StatusProcessing,
	StatusProcessed,
	StatusConverting,
	StatusConverted,
}

var documentStatusSet = func() map[DocumentStatus]struct{} {
	set := make(map[DocumentStatus]struct{}, len(allDocumentStatuses))
	for _, status := range allDocumentStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// rollbackTransitions keys each speculative status by the status a failed
// attempt must restore. PROCESSED and CONVERTED never roll back.
var rollbackTransitions = map[DocumentStatus]DocumentStatus{
	StatusProcessing: StatusQueued,
	StatusConverting: StatusProcessed,
}

// RollbackStatus returns the status a failed attempt restores for the given
// in-flight status.
func RollbackStatus(status DocumentStatus) (DocumentStatus, bool) {
	prev, ok := rollbackTransitions[status]
	return prev, ok
}

// AllDocumentStatuses returns the ordered list of known document statuses.
func AllDocumentStatuses() []DocumentStatus {
	cp := make([]DocumentStatus, len(allDocumentStatuses))
	copy(cp, allDocumentStatuses)
	return cp
}

// ParseDocumentStatus converts a string into a known DocumentStatus.
func ParseDocumentStatus(value string) (DocumentStatus, bool) {
	normalized := DocumentStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := documentStatusSet[normalized]
	return normalized, ok
}

// Document represents a pipeline document persisted in SQLite.
type Document struct {
	ID                  int64
	OriginalFileID      string
	FileName            string
	InputFolder         string
	OutputFolder        string
	Status              DocumentStatus
	ProcessedFileID     string
	ConvertedDocumentID string
	ErrorMessage        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Terminal reports whether the document has reached the end of the pipeline.
func (d Document) Terminal() bool {
	return d.Status == StatusConverted
}

// ProcessorStatus represents the lifecycle of a fleet worker.
type ProcessorStatus string

const (
	ProcessorPending    ProcessorStatus = "pending"
	ProcessorRunning    ProcessorStatus = "running"
	ProcessorNotRunning ProcessorStatus = "not_running"
)

var allProcessorStatuses = []ProcessorStatus{
	ProcessorPending,
	ProcessorRunning,
	ProcessorNotRunning,
}

// AllProcessorStatuses returns the ordered list of known processor statuses.
func AllProcessorStatuses() []ProcessorStatus {
	cp := make([]ProcessorStatus, len(allProcessorStatuses))
	copy(cp, allProcessorStatuses)
	return cp
}

// ParseProcessorStatus converts a string into a known ProcessorStatus.
func ParseProcessorStatus(value string) (ProcessorStatus, bool) {
	normalized := ProcessorStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allProcessorStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return "", false
}

// Processor represents a fleet worker persisted in SQLite. Address is set
// only while the backing compute instance is running.
type Processor struct {
	ID         int64
	InstanceID string
	Address    string
	Status     ProcessorStatus
	Workload   int
	LastUsedAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AvailableSlots returns the unused concurrency slots under the given cap.
func (p Processor) AvailableSlots(limit int) int {
	slots := limit - p.Workload
	if slots < 0 {
		return 0
	}
	return slots
}

// DocumentStats aggregates document counts per status.
type DocumentStats map[DocumentStatus]int

// ProcessorStats aggregates processor counts per status.
type ProcessorStats map[ProcessorStatus]int
