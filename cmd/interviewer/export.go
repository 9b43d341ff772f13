package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/interviewer/internal/bank"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/store"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export interview sessions as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "interviewer.db", "SQLite database path")
	f.StringP("bank", "b", "", "Question bank file used to fill in question totals (optional)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	ctx := cmd.Context()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var countQuestions func(string) (int, error)
	if path := v.GetString("bank"); path != "" {
		b, err := bank.Load(path)
		if err != nil {
			return fmt.Errorf("load question bank: %w", err)
		}
		countQuestions = b.Count
	}

	sessions, err := db.ExportAllSessions(ctx, countQuestions)
	if err != nil {
		return fmt.Errorf("export sessions: %w", err)
	}
	bankVersion, err := db.BankVersion(ctx)
	if err != nil {
		return fmt.Errorf("read bank version: %w", err)
	}

	export := model.Export{
		GeneratedAt: time.Now().UTC(),
		BankVersion: bankVersion,
		Sessions:    sessions,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	slog.Info("exported sessions", "count", len(sessions), "output", outPath)
	return nil
}
