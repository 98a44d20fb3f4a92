package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/good-yellow-bee/projectdesk/internal/api"
	"github.com/good-yellow-bee/projectdesk/internal/chat"
	"github.com/good-yellow-bee/projectdesk/internal/collab"
	"github.com/good-yellow-bee/projectdesk/internal/filestore"
	"github.com/good-yellow-bee/projectdesk/internal/models"
)

var (
	reconcilePrune bool
	adminName      string
	adminEmail     string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStorage(cfg)
		if err != nil {
			return err
		}
		return store.Close()
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Resolve interrupted project creation and report upload drift",
	Long: `Reconcile completes or aborts projects left half-created by a crash,
lists recorded files that are missing on disk and, with --prune, removes
upload directories that belong to no project.`,
	RunE: runReconcile,
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an administrator account",
	Long: `Create an administrator account. The password is read from
PROJECTDESK_ADMIN_PASSWORD or prompted for interactively.`,
	RunE: runAdminCreate,
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcilePrune, "prune", false, "remove orphaned upload directories")

	adminCreateCmd.Flags().StringVarP(&adminName, "name", "n", "Administrator", "display name")
	adminCreateCmd.Flags().StringVarP(&adminEmail, "email", "e", "", "email address (required)")
	_ = adminCreateCmd.MarkFlagRequired("email")
	adminCmd.AddCommand(adminCreateCmd)

	rootCmd.AddCommand(migrateCmd, reconcileCmd, adminCmd)
}

// offlineServices builds the domain services without an HTTP server.
// Chat publishing goes to an idle hub, which no offline command uses.
func offlineServices(cfg *Config) (*api.Services, func() error, error) {
	store, err := openStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	files, err := filestore.New(cfg.Uploads.Dir)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("open uploads: %w", err)
	}
	svc := api.NewServices(store, files, chat.NewHub(1), cfg.Uploads.MaxFiles)
	return svc, store.Close, nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, closeFn, err := offlineServices(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	report, err := svc.Projects.Reconcile(cmd.Context(), collab.ReconcileOptions{PruneOrphans: reconcilePrune})
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runAdminCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	password := cfg.Admin.Password
	if password == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		password, err = promptPassword()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	svc, closeFn, err := offlineServices(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	user, err := svc.Accounts.Create(cmd.Context(), &collab.AccountInput{
		Name:     adminName,
		Email:    adminEmail,
		Password: password,
		Role:     string(models.RoleAdmin),
	})
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Admin %s created (id %d)\n", user.Email, user.ID)
	return nil
}

// promptPassword reads a password without echo when stdin is a terminal.
func promptPassword() (string, error) {
	fd := syscall.Stdin
	if term.IsTerminal(fd) {
		passwordBytes, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(passwordBytes), nil
	}

	// piped input
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(password), nil
}
