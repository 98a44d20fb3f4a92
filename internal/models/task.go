package models

import "time"

// Task belongs to exactly one project.
type Task struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	Title     string    `json:"title"`
	Assignee  string    `json:"assignee"`
	Status    Status    `json:"status"`
	Deadline  string    `json:"deadline"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is an append-only message posted to a project room.
// UserName is populated from the users table on read.
type ChatMessage struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CalendarProject is a project as shown on the calendar, with its tasks.
type CalendarProject struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	StartDate string         `json:"startDate"`
	EndDate   string         `json:"endDate"`
	Priority  Priority       `json:"priority"`
	Status    Status         `json:"status"`
	Tasks     []CalendarTask `json:"tasks"`
}

// CalendarTask is the calendar view of a task.
type CalendarTask struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	DueDate string `json:"dueDate"`
	Status  Status `json:"status"`
}
