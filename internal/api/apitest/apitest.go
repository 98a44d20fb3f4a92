// Package apitest builds a real storage, filestore and service stack in a
// temporary directory for handler tests.
package apitest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/good-yellow-bee/projectdesk/internal/api/middleware"
	"github.com/good-yellow-bee/projectdesk/internal/collab"
	"github.com/good-yellow-bee/projectdesk/internal/filestore"
	"github.com/good-yellow-bee/projectdesk/internal/models"
	"github.com/good-yellow-bee/projectdesk/internal/storage"
)

// Env is a migrated SQLite database plus every domain service.
type Env struct {
	Store    *storage.SQLiteStorage
	Files    *filestore.Store
	Projects *collab.ProjectService
	FileSvc  *collab.FileService
	Tasks    *collab.TaskService
	Explore  *collab.ExploreService
	Calendar *collab.CalendarService
	Accounts *collab.AccountService
}

// New creates an Env cleaned up with t.
func New(t *testing.T) *Env {
	t.Helper()
	dir := t.TempDir()

	store := storage.NewSQLiteStorage(filepath.Join(dir, "api.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	files, err := filestore.New(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("filestore: %v", err)
	}

	projects := collab.NewProjectService(store, files)
	return &Env{
		Store:    store,
		Files:    files,
		Projects: projects,
		FileSvc:  collab.NewFileService(store, files, 0),
		Tasks:    collab.NewTaskService(store),
		Explore:  collab.NewExploreService(store, projects),
		Calendar: collab.NewCalendarService(store),
		Accounts: collab.NewAccountService(store),
	}
}

// User inserts an account and returns its principal.
func (e *Env) User(t *testing.T, name string, role models.Role) models.Principal {
	t.Helper()
	u := models.NewUser(name, name+"@example.com", role)
	u.PasswordHash = "unused"
	if err := e.Store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u.Principal()
}

// Project creates a provisioned project owned by owner with the given
// extra team members.
func (e *Env) Project(t *testing.T, owner models.Principal, members ...string) *models.Project {
	t.Helper()
	raw, _ := json.Marshal(members)
	if members == nil {
		raw = []byte("[]")
	}
	p, err := e.Projects.Create(context.Background(), &collab.ProjectInput{
		Title:       "Apollo",
		Description: "Moon landing",
		Department:  "Engineering",
		StartDate:   "2024-01-01",
		EndDate:     "2024-06-30",
		Priority:    "High",
		TeamMembers: raw,
	}, owner)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

// Request builds a request authenticated as p. A nil p sends it anonymously.
// String and []byte bodies are sent as is; anything else is JSON encoded.
func Request(method, target string, body any, p *models.Principal) *http.Request {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	case []byte:
		reader = strings.NewReader(string(b))
	case io.Reader:
		reader = b
	default:
		data, _ := json.Marshal(b)
		reader = strings.NewReader(string(data))
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p != nil {
		req = req.WithContext(middleware.WithPrincipal(req.Context(), *p))
	}
	return req
}

// Serve runs req through h and returns the recorded response.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ErrorBody mirrors the error half of the response envelope.
type ErrorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Field   string              `json:"field"`
	Errors  []collab.FieldError `json:"errors"`
}

// Envelope is a decoded response.
type Envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *ErrorBody      `json:"error"`
}

// Decode parses the envelope and, when out is non-nil, its data.
func Decode(t *testing.T, rec *httptest.ResponseRecorder, out any) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("decode data %s: %v", env.Data, err)
		}
	}
	return env
}
