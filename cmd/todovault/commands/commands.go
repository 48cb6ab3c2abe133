package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/todovault/core/internal/adapters/repository"
	"github.com/todovault/core/internal/domain/entities"
	"github.com/todovault/core/internal/infrastructure/config"
	"github.com/todovault/core/internal/infrastructure/database"
	"github.com/todovault/core/internal/infrastructure/hoststatus"
	"github.com/todovault/core/internal/infrastructure/logger"
	"github.com/todovault/core/internal/infrastructure/server"
	"github.com/todovault/core/internal/infrastructure/settings"
	"github.com/todovault/core/internal/scheduler"
	"github.com/todovault/core/internal/worker"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the TodoVault server",
		Long:  "Start the TodoVault API server, the job scheduler and the background workers",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage database migrations (up, down, version)",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Run all up migrations",
		Run: func(cmd *cobra.Command, args []string) {
			withDatabase(func(db *database.DB) {
				if err := db.Migrate(); err != nil {
					log.Fatalf("Migration failed: %v", err)
				}
				fmt.Println("Migration up completed successfully")
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Run all down migrations",
		Run: func(cmd *cobra.Command, args []string) {
			withDatabase(func(db *database.DB) {
				if err := db.MigrateDown(); err != nil {
					log.Fatalf("Migration failed: %v", err)
				}
				fmt.Println("Migration down completed successfully")
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		Run: func(cmd *cobra.Command, args []string) {
			withDatabase(func(db *database.DB) {
				version, dirty, err := db.MigrationVersion()
				if err != nil {
					log.Fatalf("Failed to get migration version: %v", err)
				}
				fmt.Printf("Current migration version: %d\n", version)
				fmt.Printf("Dirty: %t\n", dirty)
			})
		},
	})

	return migrateCmd
}

// NewBackupCommand creates the one-shot backup command
func NewBackupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Back up the database once and exit",
		Run: func(cmd *cobra.Command, args []string) {
			runBackup()
		},
	}
}

// NewUserCommand creates the user management command
func NewUserCommand() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long:  "Create users without going through the API",
	}

	createUserCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user",
		Run: func(cmd *cobra.Command, args []string) {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")

			if email == "" || password == "" {
				log.Fatal("Email and password are required")
			}
			if name == "" {
				name = email
			}

			createUser(name, email, password)
		},
	}

	createUserCmd.Flags().String("name", "", "Display name")
	createUserCmd.Flags().String("email", "", "User email (required)")
	createUserCmd.Flags().String("password", "", "User password (required)")

	userCmd.AddCommand(createUserCmd)
	return userCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print TodoVault version",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load()
			if err != nil {
				log.Fatalf("Failed to load configuration: %v", err)
			}
			fmt.Printf("%s %s\n", cfg.App.Name, cfg.App.Version)
		},
	}
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	db, err := database.Open(cfg.Storage)
	if err != nil {
		appLogger.Fatalw("Failed to open database", "error", err.Error())
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		appLogger.Fatalw("Failed to run migrations", "error", err.Error())
	}

	store, err := settings.Open(cfg.Storage.SettingsPath(), appLogger)
	if err != nil {
		appLogger.Fatalw("Failed to open settings store", "error", err.Error())
	}

	registry := prometheus.NewRegistry()
	jobRepo := repository.NewJobRepository(db)
	sched := scheduler.New(jobRepo, hoststatus.New(), appLogger, registry, cfg.Scheduler)

	srv, err := server.New(cfg, db, store, sched, registry, appLogger)
	if err != nil {
		appLogger.Fatalw("Failed to initialize server", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.EnsureStartupJobs(ctx); err != nil {
		appLogger.Fatalw("Failed to register startup jobs", "error", err.Error())
	}

	sched.Start(ctx)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		appLogger.Infow("Starting TodoVault server",
			"address", address,
			"environment", cfg.App.Environment,
		)
		if err := srv.Start(address); err != nil {
			appLogger.Infow("Server stopped", "reason", err.Error())
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorw("Server shutdown failed", "error", err.Error())
	}
	sched.Wait()
}

func runBackup() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	db, err := database.Open(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	store, err := settings.Open(cfg.Storage.SettingsPath(), appLogger)
	if err != nil {
		log.Fatalf("Failed to open settings store: %v", err)
	}

	backup := worker.NewBackup(db, store, appLogger, cfg.Storage.BackupPath())
	if err := backup.Run(context.Background()); err != nil {
		log.Fatalf("Backup failed: %v", err)
	}

	fmt.Println("Backup completed successfully")
}

func withDatabase(fn func(db *database.DB)) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Open(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fn(db)
}

func createUser(name, email, password string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Open(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	users := repository.NewUserRepository(db, repository.NewHub())
	id, err := users.Create(context.Background(), &entities.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashedPassword),
	})
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Printf("User created successfully:\n")
	fmt.Printf("  ID: %d\n", id)
	fmt.Printf("  Name: %s\n", name)
	fmt.Printf("  Email: %s\n", email)
}
