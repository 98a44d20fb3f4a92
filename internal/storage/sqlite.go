package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/good-yellow-bee/projectdesk/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	path string
	db   *sql.DB

	users    *sqliteUserRepo
	projects *sqliteProjectRepo
	files    *sqliteFileRepo
	tasks    *sqliteTaskRepo
	chats    *sqliteChatRepo
	tokens   *sqliteTokenRepo
}

// NewSQLiteStorage creates a new SQLite storage.
func NewSQLiteStorage(path string) *SQLiteStorage {
	return &SQLiteStorage{path: path}
}

// Open initializes the database connection.
func (s *SQLiteStorage) Open() error {
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", s.path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	// SQLite is single-writer; one connection also keeps the pragmas below
	// applied to every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	s.db = db
	s.users = &sqliteUserRepo{db: db}
	s.projects = &sqliteProjectRepo{db: db}
	s.files = &sqliteFileRepo{db: db}
	s.tasks = &sqliteTaskRepo{db: db}
	s.chats = &sqliteChatRepo{db: db}
	s.tokens = &sqliteTokenRepo{db: db}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database connection for health checks.
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db
}

// Migrate runs database migrations.
func (s *SQLiteStorage) Migrate() error {
	return runMigrations(s.db)
}

// EnsureAdminUser creates an admin account when none exists. With an empty
// password a random one is generated and printed once to stdout.
// It returns the created user, or nil if an admin already existed.
func (s *SQLiteStorage) EnsureAdminUser(ctx context.Context, email, password string) (*models.User, error) {
	var admins int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE role = ?", models.RoleAdmin).Scan(&admins)
	if err != nil {
		return nil, fmt.Errorf("count admins: %w", err)
	}
	if admins > 0 {
		return nil, nil
	}

	if email == "" {
		email = "admin@localhost"
	}
	generated := password == ""
	if generated {
		password = generateRandomPassword(16)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	admin := models.NewUser("Administrator", email, models.RoleAdmin)
	admin.PasswordHash = string(hash)
	if err := s.Users().Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("create admin user: %w", err)
	}

	log.WithField("email", admin.Email).Info("bootstrap admin account created")
	if generated {
		fmt.Printf("\n")
		fmt.Printf("===========================================\n")
		fmt.Printf("  DEFAULT ADMIN USER CREATED\n")
		fmt.Printf("  Email:    %s\n", admin.Email)
		fmt.Printf("  Password: %s\n", password)
		fmt.Printf("  CHANGE THIS PASSWORD IMMEDIATELY!\n")
		fmt.Printf("===========================================\n")
		fmt.Printf("\n")
	}

	return admin, nil
}

// Users returns the user repository.
func (s *SQLiteStorage) Users() UserRepository {
	return s.users
}

// Projects returns the project repository.
func (s *SQLiteStorage) Projects() ProjectRepository {
	return s.projects
}

// Files returns the project file repository.
func (s *SQLiteStorage) Files() FileRepository {
	return s.files
}

// Tasks returns the task repository.
func (s *SQLiteStorage) Tasks() TaskRepository {
	return s.tasks
}

// Chats returns the chat message repository.
func (s *SQLiteStorage) Chats() ChatRepository {
	return s.chats
}

// Tokens returns the token repository.
func (s *SQLiteStorage) Tokens() TokenRepository {
	return s.tokens
}

// generateRandomPassword generates a random password of the specified length.
func generateRandomPassword(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)[:length]
}

// classify maps driver constraint failures onto the package sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", ErrInUse, err)
	}
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
