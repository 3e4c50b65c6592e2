package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/resq-agent/internal/config"
	"github.com/PabloGalante/resq-agent/internal/observability"
)

var v = config.NewViper()

var rootCmd = &cobra.Command{
	Use:   "resq",
	Short: "RESQ 112 call triage",
	Long: `RESQ answers emergency calls, collects the emergency, location, name and
number, classifies the priority and keeps a dispatch queue for operators.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	rootCmd.AddCommand(serveCmd(), queueCmd(), resolveCmd(), classifyCmd(), migrateCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
	}
	observability.Init(v.GetString("log.level"))
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path to a resq.yaml config file")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("storage", "memory", "case storage backend (memory, sqlite, firestore)")
	flags.String("sqlite-path", "emergency_calls.db", "sqlite database file")
	_ = v.BindPFlag("config", flags.Lookup("config"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("storage.backend", flags.Lookup("storage"))
	_ = v.BindPFlag("sqlite.path", flags.Lookup("sqlite-path"))
}
