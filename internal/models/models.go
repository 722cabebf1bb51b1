package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Role is the dashboard permission level of a user.
type Role string

const (
	RoleUser    Role = "USER"
	RoleQC      Role = "QC"
	RoleManager Role = "MANAGER"
	RoleAdmin   Role = "ADMIN"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleQC, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// UserStatus tracks the account lifecycle from invite to block.
type UserStatus string

const (
	StatusInvited UserStatus = "INVITED"
	StatusActive  UserStatus = "ACTIVE"
	StatusBlocked UserStatus = "BLOCKED"
)

func ValidUserStatus(s UserStatus) bool {
	switch s {
	case StatusInvited, StatusActive, StatusBlocked:
		return true
	}
	return false
}

type User struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	Email       string         `gorm:"unique;not null" json:"email"`
	Password    string         `gorm:"not null" json:"-"`
	Name        string         `json:"name"`
	Role        Role           `gorm:"default:'USER'" json:"role"`
	Status      UserStatus     `gorm:"default:'INVITED'" json:"status"`
	InviteToken string         `gorm:"index" json:"-"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Processes []Process `gorm:"foreignKey:UserID" json:"processes,omitempty"`
}

// ProcessStatus mirrors the backend job states the dashboard renders.
type ProcessStatus string

const (
	ProcessCreated    ProcessStatus = "CREATED"
	ProcessUploading  ProcessStatus = "UPLOADING"
	ProcessProcessing ProcessStatus = "PROCESSING"
	ProcessSearching  ProcessStatus = "SEARCHING"
	ProcessValidating ProcessStatus = "VALIDATING"
	ProcessCompleted  ProcessStatus = "COMPLETED"
	ProcessError      ProcessStatus = "ERROR"
)

func ValidProcessStatus(s ProcessStatus) bool {
	switch s {
	case ProcessCreated, ProcessUploading, ProcessProcessing, ProcessSearching,
		ProcessValidating, ProcessCompleted, ProcessError:
		return true
	}
	return false
}

// Process is one reviewer-finder run owned by a user.
type Process struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	UserID        uint           `gorm:"not null;index" json:"user_id"`
	Title         string         `gorm:"not null" json:"title"`
	Description   string         `json:"description"`
	CurrentStep   string         `gorm:"default:'upload'" json:"current_step"`
	Status        ProcessStatus  `gorm:"default:'CREATED'" json:"status"`
	JobID         string         `gorm:"index" json:"job_id,omitempty"`
	ManuscriptURL string         `json:"manuscript_url,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	User      User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	StepData  []StepData `gorm:"foreignKey:ProcessID" json:"step_data,omitempty"`
	Shortlist []Reviewer `gorm:"foreignKey:ProcessID" json:"shortlist,omitempty"`
}

// StepData is the opaque per-step payload the wizard persists, keyed by
// (process, step name).
type StepData struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	ProcessID uint           `gorm:"not null;uniqueIndex:idx_step_data_process_step" json:"process_id"`
	Step      string         `gorm:"not null;uniqueIndex:idx_step_data_process_step" json:"step"`
	Payload   datatypes.JSON `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ActivityLog is append-only; the server is the only writer.
type ActivityLog struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	UserEmail string         `json:"user_email"`
	ProcessID *uint          `gorm:"index" json:"process_id,omitempty"`
	Action    string         `gorm:"not null;index" json:"action"`
	Details   datatypes.JSON `json:"details,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"timestamp"`
}

// Reviewer is a shortlisted candidate. Position is the explicit ordering key;
// reorder rewrites positions, nothing else about them is significant.
type Reviewer struct {
	ID                 uint      `gorm:"primarykey" json:"id"`
	ProcessID          uint      `gorm:"not null;index" json:"process_id"`
	Email              string    `gorm:"not null" json:"email"`
	Name               string    `json:"name"`
	Affiliation        string    `json:"affiliation"`
	Country            string    `json:"country"`
	PublicationCount   int       `json:"publication_count"`
	RecentPublications int       `json:"recent_publications"`
	CoAuthor           bool      `json:"co_author"`
	AffiliationMatch   bool      `json:"affiliation_match"`
	CountryMatch       bool      `json:"country_match"`
	ConditionsMet      int       `json:"conditions_met"`
	Position           int       `gorm:"not null" json:"position"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// AlertSeverity for system alerts shown on the admin dashboard.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "INFO"
	SeverityWarning  AlertSeverity = "WARNING"
	SeverityCritical AlertSeverity = "CRITICAL"
)

type SystemAlert struct {
	ID             uint          `gorm:"primarykey" json:"id"`
	Severity       AlertSeverity `gorm:"not null" json:"severity"`
	Message        string        `gorm:"not null" json:"message"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}
