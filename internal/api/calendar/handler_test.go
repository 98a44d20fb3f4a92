package calendar

import (
	"context"
	"net/http"
	"testing"

	"github.com/good-yellow-bee/projectdesk/internal/api/apitest"
	"github.com/good-yellow-bee/projectdesk/internal/collab"
	"github.com/good-yellow-bee/projectdesk/internal/models"
)

func TestCalendar(t *testing.T) {
	env := apitest.New(t)
	h := http.HandlerFunc(NewHandler(env.Calendar).Get)
	owner := env.User(t, "owner", models.RoleUser)
	member := env.User(t, "member", models.RoleUser)
	stranger := env.User(t, "stranger", models.RoleUser)
	project := env.Project(t, owner, member.ID)

	task, err := env.Tasks.Create(context.Background(), project.ID, &collab.TaskInput{
		Title:    "Launch",
		Assignee: "member",
		Deadline: "2024-05-01",
	}, owner)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	var entries []models.CalendarProject
	rec := apitest.Serve(h, apitest.Request("GET", "/api/calendar", nil, &member))
	apitest.Decode(t, rec, &entries)
	if rec.Code != http.StatusOK || len(entries) != 1 {
		t.Fatalf("member calendar: %d %s", rec.Code, rec.Body.String())
	}
	got := entries[0]
	if got.ID != project.ID || got.StartDate != "2024-01-01" || got.EndDate != "2024-06-30" {
		t.Errorf("entry = %+v", got)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].ID != task.ID || got.Tasks[0].DueDate != "2024-05-01" {
		t.Errorf("tasks = %+v", got.Tasks)
	}

	entries = nil
	rec = apitest.Serve(h, apitest.Request("GET", "/api/calendar", nil, &stranger))
	apitest.Decode(t, rec, &entries)
	if rec.Code != http.StatusOK || entries == nil || len(entries) != 0 {
		t.Errorf("stranger calendar: %d %s", rec.Code, rec.Body.String())
	}

	if rec := apitest.Serve(h, apitest.Request("GET", "/api/calendar", nil, nil)); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d", rec.Code)
	}
}
