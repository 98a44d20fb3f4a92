package models

import (
	"time"
)

// Priority of a project.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Status is shared by projects and tasks. Transitions are unconstrained.
type Status string

const (
	StatusNotStarted Status = "Not Started"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Project is a unit of collaborative work with its own upload directory.
// OwnerID is always a member of TeamMembers.
type Project struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Department  string    `json:"department"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	Priority    Priority  `json:"priority"`
	TeamMembers StringSet `json:"team_members"`
	Budget      *float64  `json:"budget,omitempty"`
	Status      Status    `json:"status"`
	Tags        StringSet `json:"tags"`
	UploadPath  string    `json:"-"`
	Files       []string  `json:"files"`
	OwnerID     int64     `json:"owner_id"`
	NeedMembers bool      `json:"need_members"`
	Posted      bool      `json:"posted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Provisioned reports whether the upload directory has been assigned.
func (p *Project) Provisioned() bool {
	return p.UploadPath != ""
}

// HasFile reports whether name is recorded in the project's file list.
func (p *Project) HasFile(name string) bool {
	for _, f := range p.Files {
		if f == name {
			return true
		}
	}
	return false
}

// ExploreEntry is a posted project denormalized with its owner's contact details.
type ExploreEntry struct {
	Project
	OwnerName  string `json:"owner_name"`
	OwnerEmail string `json:"owner_email"`
}

// Provision records an upload directory whose creation has not been confirmed.
type Provision struct {
	ProjectID int64     `json:"project_id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}
