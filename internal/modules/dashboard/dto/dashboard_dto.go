package dto

import "time"

// UrgentActionsSnapshot is cached as one JSON value and replaced whole.
type UrgentActionsSnapshot struct {
	WithdrawalRequests  int64     `json:"withdrawalRequests"`
	TeacherApplications int64     `json:"teacherApplications"`
	PendingSessions     int64     `json:"pendingSessions"`
	ReportedDisputes    int64     `json:"reportedDisputes"`
	GeneratedAt         time.Time `json:"generated_at"`
}
