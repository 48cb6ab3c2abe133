package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/todovault/core/cmd/todovault/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "todovault",
		Short: "TodoVault server",
		Long:  `TodoVault is a personal task tracker with reminders, scheduled backups and a reactive JSON API.`,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewBackupCommand())
	rootCmd.AddCommand(commands.NewUserCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
