package projects

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/projectdesk/internal/api/apitest"
	"github.com/good-yellow-bee/projectdesk/internal/api/middleware"
	"github.com/good-yellow-bee/projectdesk/internal/models"
)

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/projects", h.Create)
	r.Get("/api/projects", h.List)
	r.With(middleware.RequireAdmin).Put("/api/projects", h.SetPosted)
	r.With(middleware.RequireAdmin).Get("/api/projects/admin", h.ListAll)
	r.Route("/api/projects/{id}", func(r chi.Router) {
		r.Use(middleware.ProjectIDParam("id"))
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.With(middleware.RequireAdmin).Get("/admin", h.Get)
		r.With(middleware.RequireAdmin).Put("/admin", h.AdminUpdate)
	})
	return r
}

func body(members ...any) map[string]any {
	if members == nil {
		members = []any{}
	}
	return map[string]any{
		"title":       "Apollo",
		"description": "Moon landing",
		"department":  "Engineering",
		"startDate":   "2024-01-01",
		"endDate":     "2024-06-30",
		"priority":    "High",
		"teamMembers": members,
		"budget":      2500,
		"milestones":  "design,launch",
	}
}

func TestCreateAndGet(t *testing.T) {
	env := apitest.New(t)
	router := newRouter(NewHandler(env.Projects, false))
	owner := env.User(t, "owner", models.RoleUser)
	member := env.User(t, "member", models.RoleUser)

	rec := apitest.Serve(router, apitest.Request("POST", "/api/projects", body(member.UserID()), &owner))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var created models.Project
	apitest.Decode(t, rec, &created)
	if created.Status != models.StatusNotStarted || !created.TeamMembers.Contains(owner.ID) || !created.TeamMembers.Contains(member.ID) {
		t.Errorf("created = %+v", created)
	}

	path := "/api/projects/" + models.FormatID(created.ID)
	if rec := apitest.Serve(router, apitest.Request("GET", path, nil, &member)); rec.Code != http.StatusOK {
		t.Errorf("member get status = %d", rec.Code)
	}

	stranger := env.User(t, "stranger", models.RoleUser)
	rec = apitest.Serve(router, apitest.Request("GET", path, nil, &stranger))
	if env := apitest.Decode(t, rec, nil); rec.Code != http.StatusForbidden || env.Error.Code != "FORBIDDEN" {
		t.Errorf("stranger get: %d %s", rec.Code, rec.Body.String())
	}

	if rec := apitest.Serve(router, apitest.Request("GET", "/api/projects/999", nil, &owner)); rec.Code != http.StatusNotFound {
		t.Errorf("missing project status = %d", rec.Code)
	}
	if rec := apitest.Serve(router, apitest.Request("GET", "/api/projects/abc", nil, &owner)); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", rec.Code)
	}
}

func TestCreate_Validation(t *testing.T) {
	env := apitest.New(t)
	router := newRouter(NewHandler(env.Projects, false))
	owner := env.User(t, "owner", models.RoleUser)

	b := body()
	b["priority"] = "Urgent"
	b["endDate"] = "someday"
	rec := apitest.Serve(router, apitest.Request("POST", "/api/projects", b, &owner))
	e := apitest.Decode(t, rec, nil)
	if rec.Code != http.StatusBadRequest || e.Error.Code != "VALIDATION_FAILED" || len(e.Error.Errors) != 2 {
		t.Errorf("validation: %d %s", rec.Code, rec.Body.String())
	}

	if rec := apitest.Serve(router, apitest.Request("POST", "/api/projects", "{", &owner)); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", rec.Code)
	}
	if rec := apitest.Serve(router, apitest.Request("POST", "/api/projects", body(), nil)); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous create status = %d", rec.Code)
	}
}

func TestList(t *testing.T) {
	env := apitest.New(t)
	owner := env.User(t, "owner", models.RoleUser)
	other := env.User(t, "other", models.RoleUser)
	admin := env.User(t, "admin", models.RoleAdmin)
	env.Project(t, owner)
	env.Project(t, other)

	router := newRouter(NewHandler(env.Projects, false))

	var list []models.Project
	apitest.Decode(t, apitest.Serve(router, apitest.Request("GET", "/api/projects", nil, &owner)), &list)
	if len(list) != 1 || list[0].OwnerID != owner.UserID() {
		t.Errorf("owner list = %+v", list)
	}

	if rec := apitest.Serve(router, apitest.Request("GET", "/api/projects", nil, nil)); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous list status = %d", rec.Code)
	}

	if rec := apitest.Serve(router, apitest.Request("GET", "/api/projects/admin", nil, &owner)); rec.Code != http.StatusForbidden {
		t.Errorf("user admin list status = %d", rec.Code)
	}
	list = nil
	apitest.Decode(t, apitest.Serve(router, apitest.Request("GET", "/api/projects/admin", nil, &admin)), &list)
	if len(list) != 2 {
		t.Errorf("admin list = %d projects", len(list))
	}

	public := newRouter(NewHandler(env.Projects, true))
	list = nil
	apitest.Decode(t, apitest.Serve(public, apitest.Request("GET", "/api/projects", nil, nil)), &list)
	if len(list) != 2 {
		t.Errorf("public list = %d projects", len(list))
	}
}

func TestUpdateAndDelete(t *testing.T) {
	env := apitest.New(t)
	router := newRouter(NewHandler(env.Projects, false))
	owner := env.User(t, "owner", models.RoleUser)
	member := env.User(t, "member", models.RoleUser)
	stranger := env.User(t, "stranger", models.RoleUser)
	admin := env.User(t, "admin", models.RoleAdmin)
	project := env.Project(t, owner, member.ID)
	path := "/api/projects/" + models.FormatID(project.ID)

	b := body()
	b["title"] = "Artemis"
	rec := apitest.Serve(router, apitest.Request("PUT", path, b, &member))
	var updated models.Project
	apitest.Decode(t, rec, &updated)
	if rec.Code != http.StatusOK || updated.Title != "Artemis" {
		t.Fatalf("member update: %d %s", rec.Code, rec.Body.String())
	}
	if !updated.TeamMembers.Contains(owner.ID) || !updated.TeamMembers.Contains(member.ID) {
		t.Errorf("team after update = %v", updated.TeamMembers)
	}

	if rec := apitest.Serve(router, apitest.Request("PUT", path, b, &stranger)); rec.Code != http.StatusForbidden {
		t.Errorf("stranger update status = %d", rec.Code)
	}

	// Admins read and update through the admin routes without joining the team.
	b["title"] = "Gemini"
	rec = apitest.Serve(router, apitest.Request("PUT", path+"/admin", b, &admin))
	updated = models.Project{}
	apitest.Decode(t, rec, &updated)
	if rec.Code != http.StatusOK || updated.Title != "Gemini" || updated.TeamMembers.Contains(admin.ID) {
		t.Errorf("admin update: %d %s", rec.Code, rec.Body.String())
	}
	if rec := apitest.Serve(router, apitest.Request("GET", path+"/admin", nil, &admin)); rec.Code != http.StatusOK {
		t.Errorf("admin get status = %d", rec.Code)
	}
	if rec := apitest.Serve(router, apitest.Request("PUT", path+"/admin", b, &owner)); rec.Code != http.StatusForbidden {
		t.Errorf("non-admin admin update status = %d", rec.Code)
	}

	if rec := apitest.Serve(router, apitest.Request("DELETE", path, nil, &stranger)); rec.Code != http.StatusForbidden {
		t.Errorf("stranger delete status = %d", rec.Code)
	}
	if rec := apitest.Serve(router, apitest.Request("DELETE", path, nil, &owner)); rec.Code != http.StatusNoContent {
		t.Fatalf("owner delete status = %d", rec.Code)
	}
	if rec := apitest.Serve(router, apitest.Request("GET", path, nil, &owner)); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
}

func TestSetPosted(t *testing.T) {
	env := apitest.New(t)
	router := newRouter(NewHandler(env.Projects, false))
	owner := env.User(t, "owner", models.RoleUser)
	admin := env.User(t, "admin", models.RoleAdmin)
	project := env.Project(t, owner)

	if rec := apitest.Serve(router, apitest.Request("PUT", "/api/projects", map[string]any{"id": project.ID, "posted": true}, &owner)); rec.Code != http.StatusForbidden {
		t.Errorf("owner toggle status = %d", rec.Code)
	}

	rec := apitest.Serve(router, apitest.Request("PUT", "/api/projects", map[string]any{"id": models.FormatID(project.ID), "posted": true}, &admin))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin toggle: %d %s", rec.Code, rec.Body.String())
	}
	entries, err := env.Explore.List(t.Context())
	if err != nil || len(entries) != 1 {
		t.Errorf("explore after posting = %v, %v", entries, err)
	}

	if rec := apitest.Serve(router, apitest.Request("PUT", "/api/projects", map[string]any{"id": "x", "posted": true}, &admin)); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", rec.Code)
	}
	if rec := apitest.Serve(router, apitest.Request("PUT", "/api/projects", map[string]any{"id": 999, "posted": true}, &admin)); rec.Code != http.StatusNotFound {
		t.Errorf("missing project status = %d", rec.Code)
	}
}
