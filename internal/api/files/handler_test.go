package files

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/projectdesk/internal/api/apitest"
	"github.com/good-yellow-bee/projectdesk/internal/api/middleware"
	"github.com/good-yellow-bee/projectdesk/internal/collab"
	"github.com/good-yellow-bee/projectdesk/internal/models"
)

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/projects/{id}/files", func(r chi.Router) {
		r.Use(middleware.ProjectIDParam("id"))
		r.Post("/", h.Upload)
		r.Get("/", h.List)
		r.Delete("/", h.Delete)
		r.Get("/{filename}", h.Download)
	})
	return r
}

func multipartRequest(t *testing.T, path string, p *models.Principal, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile(FormField, name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		io.WriteString(fw, content)
	}
	mw.Close()

	req := apitest.Request("POST", path, buf.Bytes(), p)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadListDownloadDelete(t *testing.T) {
	env := apitest.New(t)
	router := newRouter(NewHandler(env.FileSvc, 0))
	owner := env.User(t, "owner", models.RoleUser)
	project := env.Project(t, owner)
	base := fmt.Sprintf("/api/projects/%d/files", project.ID)

	rec := apitest.Serve(router, multipartRequest(t, base, &owner, map[string]string{"report.pdf": "pdf bytes"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	var uploaded collab.UploadResult
	apitest.Decode(t, rec, &uploaded)
	if len(uploaded.Stored) != 1 || !strings.HasPrefix(uploaded.Stored[0], "files-") || !strings.HasSuffix(uploaded.Stored[0], ".pdf") {
		t.Fatalf("uploaded = %+v", uploaded)
	}
	name := uploaded.Stored[0]

	var names []string
	apitest.Decode(t, apitest.Serve(router, apitest.Request("GET", base, nil, &owner)), &names)
	if len(names) != 1 || names[0] != name {
		t.Errorf("list = %v", names)
	}

	rec = apitest.Serve(router, apitest.Request("GET", base+"/"+name, nil, &owner))
	if rec.Code != http.StatusOK || rec.Body.String() != "pdf bytes" {
		t.Fatalf("download: %d %q", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") || !strings.Contains(cd, name) {
		t.Errorf("Content-Disposition = %q", cd)
	}

	if rec := apitest.Serve(router, apitest.Request("GET", base+"/unknown.pdf", nil, &owner)); rec.Code != http.StatusNotFound {
		t.Errorf("unknown download status = %d", rec.Code)
	}

	rec = apitest.Serve(router, apitest.Request("DELETE", base, DeleteRequest{FileNames: []string{name, "ghost.txt"}}, &owner))
	var deleted collab.DeleteResult
	apitest.Decode(t, rec, &deleted)
	if rec.Code != http.StatusOK || len(deleted.Deleted) != 1 || len(deleted.Failed) != 1 || deleted.Failed[0].Name != "ghost.txt" {
		t.Errorf("delete: %d %s", rec.Code, rec.Body.String())
	}
}

func TestUpload_Rejections(t *testing.T) {
	env := apitest.New(t)
	owner := env.User(t, "owner", models.RoleUser)
	stranger := env.User(t, "stranger", models.RoleUser)
	project := env.Project(t, owner)
	base := fmt.Sprintf("/api/projects/%d/files", project.ID)

	router := newRouter(NewHandler(env.FileSvc, 0))

	if rec := apitest.Serve(router, multipartRequest(t, base, &stranger, map[string]string{"a.txt": "a"})); rec.Code != http.StatusForbidden {
		t.Errorf("stranger upload status = %d", rec.Code)
	}

	rec := apitest.Serve(router, multipartRequest(t, base, &owner, map[string]string{}))
	if e := apitest.Decode(t, rec, nil); rec.Code != http.StatusBadRequest || e.Error.Field != "files" {
		t.Errorf("empty upload: %d %s", rec.Code, rec.Body.String())
	}

	many := map[string]string{}
	for i := 0; i < 11; i++ {
		many[fmt.Sprintf("f%d.txt", i)] = "x"
	}
	if rec := apitest.Serve(router, multipartRequest(t, base, &owner, many)); rec.Code != http.StatusBadRequest {
		t.Errorf("11 files status = %d", rec.Code)
	}

	small := newRouter(NewHandler(env.FileSvc, 64))
	rec = apitest.Serve(small, multipartRequest(t, base, &owner, map[string]string{"big.bin": strings.Repeat("x", 1024)}))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized upload status = %d", rec.Code)
	}

	if rec := apitest.Serve(router, apitest.Request("POST", base, "not multipart", &owner)); rec.Code != http.StatusBadRequest {
		t.Errorf("non-multipart status = %d", rec.Code)
	}

	if rec := apitest.Serve(router, apitest.Request("DELETE", base, DeleteRequest{}, &owner)); rec.Code != http.StatusBadRequest {
		t.Errorf("empty delete status = %d", rec.Code)
	}
}
