package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	sqlitestore "github.com/PabloGalante/resq-agent/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/resq-agent/internal/app/dispatch"
	"github.com/PabloGalante/resq-agent/internal/domain"
)

func withDispatch(cmd *cobra.Command, fn func(*dispatch.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cases, closeCases, err := openCaseStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeCases()
	return fn(dispatch.NewService(cases, nil, nil))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func queueCmd() *cobra.Command {
	var (
		asJSON   bool
		resolved bool
	)
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List cases in dispatch order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatch(cmd, func(svc *dispatch.Service) error {
				var (
					cases []*domain.Case
					err   error
				)
				if resolved {
					cases, err = svc.Resolved(cmd.Context())
				} else {
					cases, err = svc.Queue(cmd.Context())
				}
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cases)
				}

				now := time.Now()
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "ID", "Priority", "Emergency", "Location", "Name", "Waiting"})
				for i, c := range cases {
					waiting := ""
					if c.Status == domain.StatusOpen {
						waiting = dispatch.TimeInQueue(c.CreatedAt, now)
					}
					tw.AppendRow(table.Row{i + 1, c.ID, c.Priority.Label(), c.Emergency, c.Location, c.Name, waiting})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	cmd.Flags().BoolVar(&resolved, "resolved", false, "list resolved cases instead")
	return cmd
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <case-id>",
		Short: "Mark a case resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDispatch(cmd, func(svc *dispatch.Service) error {
				c, err := svc.Resolve(cmd.Context(), domain.CaseID(args[0]))
				if err != nil {
					return err
				}
				fmt.Printf("resolved %s (%s)\n", c.ID, c.Priority.Label())
				return nil
			})
		},
	}
}

func classifyCmd() *cobra.Command {
	var stress float64
	cmd := &cobra.Command{
		Use:   "classify <text>",
		Short: "Classify an emergency description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var level *float64
			if cmd.Flags().Changed("stress") {
				level = &stress
			}
			res := newClassifier(cfg).Classify(cmd.Context(), args[0], level)

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Priority", "Confidence", "Method", "Label", "Override", "Stress"})
			tw.AppendRow(table.Row{
				fmt.Sprintf("%d %s", res.Priority, res.Priority.Label()),
				fmt.Sprintf("%.2f", res.Confidence),
				res.Method, res.Label, res.CriticalOverride, res.StressAdjusted,
			})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().Float64Var(&stress, "stress", 0, "caller stress level between 0 and 1")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply sqlite schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := sql.Open("sqlite", cfg.SQLitePath)
			if err != nil {
				return err
			}
			defer db.Close()
			version, err := sqlitestore.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			fmt.Printf("%s at schema version %d\n", cfg.SQLitePath, version)
			return nil
		},
	}
}
