package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/good-yellow-bee/projectdesk/internal/models"
)

func setupTestDB(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "projectdesk-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	store := NewSQLiteStorage(filepath.Join(tmpDir, "test.db"))
	if err := store.Open(); err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("open database: %v", err)
	}

	if err := store.Migrate(); err != nil {
		store.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("migrate database: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

func createTestUser(t *testing.T, store *SQLiteStorage, name string) *models.User {
	t.Helper()
	user := models.NewUser(name, name+"@example.com", models.RoleUser)
	user.PasswordHash = "hashed-password"
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

func createTestProject(t *testing.T, store *SQLiteStorage, owner *models.User, members ...string) *models.Project {
	t.Helper()
	now := time.Now().UTC()
	project := &models.Project{
		Title:       "Apollo",
		Description: "Moon landing",
		Department:  "Engineering",
		StartDate:   "2024-01-01",
		EndDate:     "2024-12-31",
		Priority:    models.PriorityHigh,
		TeamMembers: models.NewStringSet(members...).Union(models.FormatID(owner.ID)),
		Status:      models.StatusNotStarted,
		Tags:        models.NewStringSet("launch"),
		OwnerID:     owner.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	ctx := context.Background()
	prov, err := store.Projects().CreatePending(ctx, project, func(id int64) string {
		return fmt.Sprintf("uploads/%d", id)
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if err := store.Projects().CompleteProvision(ctx, project.ID, prov.Path); err != nil {
		t.Fatalf("complete provision: %v", err)
	}
	project.UploadPath = prov.Path
	return project
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	tables := []string{"users", "projects", "tasks", "chats", "refresh_tokens", "project_files", "provisions", "schema_migrations"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s should exist: %v", table, err)
		}
	}

	// Re-running is a no-op.
	if err := store.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestUserRepository_CRUD(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice")
	if user.ID == 0 {
		t.Fatal("expected generated id")
	}

	got, err := store.Users().GetByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("get user by email: %v", err)
	}
	if got == nil || got.ID != user.ID {
		t.Fatalf("GetByEmail = %+v, want id %d", got, user.ID)
	}

	user.Name = "Alice Liddell"
	user.UpdatedAt = time.Now().UTC()
	if err := store.Users().Update(ctx, user); err != nil {
		t.Fatalf("update user: %v", err)
	}
	got, _ = store.Users().GetByID(ctx, user.ID)
	if got.Name != "Alice Liddell" {
		t.Errorf("name = %q, want Alice Liddell", got.Name)
	}

	dup := models.NewUser("Other", "alice@example.com", models.RoleUser)
	dup.PasswordHash = "x"
	if err := store.Users().Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate email error = %v, want ErrDuplicate", err)
	}

	if err := store.Users().Delete(ctx, user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if err := store.Users().Delete(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
	got, _ = store.Users().GetByID(ctx, user.ID)
	if got != nil {
		t.Error("user should be deleted")
	}
}

func TestProjectRepository_TwoPhaseCreate(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	project := &models.Project{
		Title:       "Pending",
		TeamMembers: models.NewStringSet(models.FormatID(owner.ID)),
		Priority:    models.PriorityLow,
		Status:      models.StatusNotStarted,
		OwnerID:     owner.ID,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	prov, err := store.Projects().CreatePending(ctx, project, func(id int64) string {
		return fmt.Sprintf("uploads/%d", id)
	})
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	if prov.Path != fmt.Sprintf("uploads/%d", project.ID) {
		t.Errorf("provision path = %q", prov.Path)
	}

	provs, err := store.Projects().ListProvisions(ctx)
	if err != nil {
		t.Fatalf("list provisions: %v", err)
	}
	if len(provs) != 1 || provs[0].ProjectID != project.ID {
		t.Fatalf("provisions = %+v, want one for project %d", provs, project.ID)
	}

	got, _ := store.Projects().GetByID(ctx, project.ID)
	if got.UploadPath != "" {
		t.Errorf("upload path before completion = %q, want empty", got.UploadPath)
	}

	if err := store.Projects().CompleteProvision(ctx, project.ID, prov.Path); err != nil {
		t.Fatalf("complete provision: %v", err)
	}
	got, _ = store.Projects().GetByID(ctx, project.ID)
	if got.UploadPath != prov.Path {
		t.Errorf("upload path = %q, want %q", got.UploadPath, prov.Path)
	}
	provs, _ = store.Projects().ListProvisions(ctx)
	if len(provs) != 0 {
		t.Errorf("provision should be cleared, got %+v", provs)
	}
}

func TestProjectRepository_AbortProvision(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	project := &models.Project{
		Title:     "Doomed",
		OwnerID:   owner.ID,
		Priority:  models.PriorityLow,
		Status:    models.StatusNotStarted,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := store.Projects().CreatePending(ctx, project, func(id int64) string { return "x" }); err != nil {
		t.Fatalf("create pending: %v", err)
	}

	if err := store.Projects().AbortProvision(ctx, project.ID); err != nil {
		t.Fatalf("abort: %v", err)
	}
	got, _ := store.Projects().GetByID(ctx, project.ID)
	if got != nil {
		t.Error("aborted project should be removed")
	}
	provs, _ := store.Projects().ListProvisions(ctx)
	if len(provs) != 0 {
		t.Errorf("provision should be cleared, got %+v", provs)
	}
}

func TestProjectRepository_RoundTrip(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	project := createTestProject(t, store, owner, "42")
	budget := 1500.5
	project.Budget = &budget
	project.Status = models.StatusInProgress
	project.UpdatedAt = time.Now().UTC()
	if err := store.Projects().Update(ctx, project); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.Projects().GetByID(ctx, project.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Apollo" || got.Priority != models.PriorityHigh || got.Status != models.StatusInProgress {
		t.Errorf("unexpected project %+v", got)
	}
	if got.Budget == nil || *got.Budget != budget {
		t.Errorf("budget = %v, want %v", got.Budget, budget)
	}
	if !got.TeamMembers.Contains("42") || !got.TeamMembers.Contains(models.FormatID(owner.ID)) {
		t.Errorf("team members = %v", got.TeamMembers)
	}
	if len(got.Files) != 0 {
		t.Errorf("files = %v, want empty", got.Files)
	}

	missing := &models.Project{ID: 9999, Title: "x"}
	if err := store.Projects().Update(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing error = %v, want ErrNotFound", err)
	}
}

func TestProjectRepository_ListForMember(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")
	carol := createTestUser(t, store, "carol")

	p1 := createTestProject(t, store, alice)
	p2 := createTestProject(t, store, bob, models.FormatID(alice.ID))
	createTestProject(t, store, carol)

	got, err := store.Projects().ListForMember(ctx, models.FormatID(alice.ID))
	if err != nil {
		t.Fatalf("list for member: %v", err)
	}
	ids := map[int64]bool{}
	for _, p := range got {
		ids[p.ID] = true
	}
	if len(got) != 2 || !ids[p1.ID] || !ids[p2.ID] {
		t.Errorf("ListForMember returned %d projects: %v", len(got), ids)
	}

	all, _ := store.Projects().List(ctx)
	if len(all) != 3 {
		t.Errorf("List returned %d projects, want 3", len(all))
	}
}

func TestProjectRepository_PostedAndNeedMembers(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	project := createTestProject(t, store, owner)
	createTestProject(t, store, owner)

	for i := 0; i < 2; i++ {
		if err := store.Projects().SetPosted(ctx, project.ID, true); err != nil {
			t.Fatalf("set posted (%d): %v", i, err)
		}
	}
	if err := store.Projects().SetNeedMembers(ctx, project.ID, true); err != nil {
		t.Fatalf("set need members: %v", err)
	}

	entries, err := store.Projects().ListPosted(ctx)
	if err != nil {
		t.Fatalf("list posted: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("posted entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.ID != project.ID || !e.Posted || !e.NeedMembers {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.OwnerName != "owner" || e.OwnerEmail != "owner@example.com" {
		t.Errorf("owner contact = %q <%s>", e.OwnerName, e.OwnerEmail)
	}

	if err := store.Projects().SetPosted(ctx, 9999, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("set posted on missing project error = %v, want ErrNotFound", err)
	}
}

func TestFileRepository_AppendRemove(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	project := createTestProject(t, store, owner)

	for _, name := range []string{"files-1-a.txt", "files-2-b.txt", "files-3-c.txt"} {
		if err := store.Files().Append(ctx, project.ID, name); err != nil {
			t.Fatalf("append %s: %v", name, err)
		}
	}
	if err := store.Files().Append(ctx, project.ID, "files-1-a.txt"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate append error = %v, want ErrDuplicate", err)
	}

	if err := store.Files().Remove(ctx, project.ID, "files-2-b.txt"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.Files().Remove(ctx, project.ID, "files-2-b.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second remove error = %v, want ErrNotFound", err)
	}

	got, _ := store.Projects().GetByID(ctx, project.ID)
	want := []string{"files-1-a.txt", "files-3-c.txt"}
	if fmt.Sprint(got.Files) != fmt.Sprint(want) {
		t.Errorf("files = %v, want %v", got.Files, want)
	}

	all, err := store.Files().ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all[project.ID]) != 2 {
		t.Errorf("ListAll = %v", all)
	}
}

func TestFileRepository_ConcurrentAppends(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	project := createTestProject(t, store, owner)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := store.Files().Append(ctx, project.ID, fmt.Sprintf("files-%d.bin", i)); err != nil {
				t.Errorf("append %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	names, err := store.Files().List(ctx, project.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 20 {
		t.Errorf("recorded %d files, want 20", len(names))
	}
}

func TestTaskRepository_CRUD(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	project := createTestProject(t, store, owner)

	now := time.Now().UTC()
	task := &models.Task{
		ProjectID: project.ID,
		Title:     "Write docs",
		Assignee:  "7",
		Status:    models.StatusNotStarted,
		Deadline:  "2024-06-01",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Tasks().Create(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	task.Status = models.StatusCompleted
	if err := store.Tasks().Update(ctx, task); err != nil {
		t.Fatalf("update task: %v", err)
	}
	got, _ := store.Tasks().GetByID(ctx, task.ID)
	if got.Status != models.StatusCompleted {
		t.Errorf("status = %q", got.Status)
	}

	list, _ := store.Tasks().ListByProjects(ctx, []int64{project.ID, 9999})
	if len(list) != 1 {
		t.Errorf("ListByProjects = %d tasks, want 1", len(list))
	}

	if err := store.Tasks().Delete(ctx, task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if err := store.Tasks().Delete(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
	if err := store.Tasks().Update(ctx, task); !errors.Is(err, ErrNotFound) {
		t.Errorf("update deleted task error = %v, want ErrNotFound", err)
	}
}

func TestChatRepository_HistoryOrder(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	project := createTestProject(t, store, owner)

	base := time.Now().UTC()
	for i, text := range []string{"first", "second", "third"} {
		msg := &models.ChatMessage{
			ProjectID: project.ID,
			UserID:    owner.ID,
			Message:   text,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.Chats().Create(ctx, msg); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	msgs, err := store.Chats().ListByProject(ctx, project.ID, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 3 || msgs[0].Message != "first" || msgs[2].Message != "third" {
		t.Fatalf("unexpected history %+v", msgs)
	}
	if msgs[0].UserName != "owner" {
		t.Errorf("user name = %q, want owner", msgs[0].UserName)
	}

	page, _ := store.Chats().ListByProject(ctx, project.ID, msgs[0].ID, 1)
	if len(page) != 1 || page[0].Message != "second" {
		t.Errorf("page = %+v", page)
	}
}

func TestProjectDelete_Cascades(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	project := createTestProject(t, store, owner)

	store.Files().Append(ctx, project.ID, "files-1.txt")
	store.Chats().Create(ctx, &models.ChatMessage{ProjectID: project.ID, UserID: owner.ID, Message: "hi", Timestamp: time.Now().UTC()})

	if err := store.Users().Delete(ctx, owner.ID); !errors.Is(err, ErrInUse) {
		t.Errorf("deleting project owner error = %v, want ErrInUse", err)
	}

	if err := store.Projects().Delete(ctx, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	names, _ := store.Files().List(ctx, project.ID)
	msgs, _ := store.Chats().ListByProject(ctx, project.ID, 0, 0)
	if len(names) != 0 || len(msgs) != 0 {
		t.Errorf("children not removed: files=%v msgs=%v", names, msgs)
	}
}

func TestEnsureAdminUser(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	admin, err := store.EnsureAdminUser(ctx, "root@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if admin == nil || admin.Role != models.RoleAdmin {
		t.Fatalf("admin = %+v", admin)
	}

	again, err := store.EnsureAdminUser(ctx, "other@example.com", "pw")
	if err != nil {
		t.Fatalf("second ensure admin: %v", err)
	}
	if again != nil {
		t.Error("second call should not create another admin")
	}
}

func TestTokenRepository_RotateIsSingleUse(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	user := createTestUser(t, store, "ada")

	first, _, err := models.NewRefreshToken(user.ID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Tokens().Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}

	second, _, _ := models.NewRefreshToken(user.ID, time.Hour)
	if err := store.Tokens().Rotate(ctx, first.TokenHash, second); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	third, _, _ := models.NewRefreshToken(user.ID, time.Hour)
	if err := store.Tokens().Rotate(ctx, first.TokenHash, third); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second rotate error = %v, want ErrNotFound", err)
	}
	if got, _ := store.Tokens().Find(ctx, third.TokenHash); got != nil {
		t.Error("losing rotation stored its replacement")
	}

	old, err := store.Tokens().Find(ctx, first.TokenHash)
	if err != nil || old == nil || !old.Revoked || old.RevokedAt == nil {
		t.Errorf("rotated token = %+v, %v", old, err)
	}
	live, _ := store.Tokens().Find(ctx, second.TokenHash)
	if live == nil || !live.IsValid() {
		t.Errorf("replacement token = %+v", live)
	}

	if err := store.Tokens().Revoke(ctx, second.TokenHash); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := store.Tokens().Revoke(ctx, second.TokenHash); !errors.Is(err, ErrNotFound) {
		t.Errorf("second revoke error = %v, want ErrNotFound", err)
	}
}
