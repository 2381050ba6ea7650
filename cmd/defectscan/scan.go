package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldaudit/defectscan"
	"github.com/fieldaudit/defectscan/output"
	"github.com/fieldaudit/defectscan/report"
)

func scanCmd() *cobra.Command {
	var (
		outDir  string
		xlsxOut string
		dbPath  string
		order   string
		lenient bool
		workers int
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "scan <pdf>...",
		Short: "Extract defect records from one or more report PDFs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := defectscan.DefaultConfig()
			cfg.DBPath = dbPath
			cfg.OrderPolicy = order
			cfg.LenientReason = lenient
			cfg.PageWorkers = workers
			if v := os.Getenv("DEFECTSCAN_DB_PATH"); v != "" && dbPath == "" {
				cfg.DBPath = v
			}

			engine, err := defectscan.New(cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			var opts []defectscan.ProcessOption
			if force {
				opts = append(opts, defectscan.WithForceReprocess())
			}

			batch, err := engine.ProcessBatch(cmd.Context(), args, opts...)
			if err != nil {
				return err
			}

			for _, doc := range batch.Documents {
				if doc.Err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "FAILED  %s: %v\n", doc.Path, doc.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok      %s: %d pages, %d defects\n",
					doc.Result.Filename, doc.Result.Pages, len(doc.Result.Records))
			}

			if outDir != "" && len(batch.Records) > 0 {
				if _, err := output.Write(outDir, batch.Records); err != nil {
					return fmt.Errorf("writing output tree: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d images under %s\n", len(batch.Records), outDir)
			}

			if xlsxOut != "" {
				data, err := report.Workbook(batch.Records)
				if err != nil {
					return fmt.Errorf("building report: %w", err)
				}
				if err := os.WriteFile(xlsxOut, data, 0644); err != nil {
					return fmt.Errorf("writing report: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote report %s\n", xlsxOut)
			}

			if batch.Failed == len(args) {
				return errors.New("all documents failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory for extracted images grouped by reason")
	cmd.Flags().StringVar(&xlsxOut, "xlsx", "", "path for the XLSX defect register")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default ~/.defectscan/defectscan.db)")
	cmd.Flags().StringVar(&order, "order", "stream", "candidate ordering policy: stream|visual")
	cmd.Flags().BoolVar(&lenient, "lenient", false, "use a placeholder reason when the keyword is missing")
	cmd.Flags().IntVar(&workers, "workers", 4, "pages processed in parallel per document")
	cmd.Flags().BoolVar(&force, "force", false, "re-extract even if the document is unchanged")
	return cmd
}

func searchCmd() *cobra.Command {
	var (
		dbPath string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over stored defect reasons",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := defectscan.DefaultConfig()
			cfg.DBPath = dbPath

			engine, err := defectscan.New(cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			records, err := engine.SearchRecords(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%s p%d code %s: %s\n",
					r.Document, r.Page, r.Code, r.Reason)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no matches")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default ~/.defectscan/defectscan.db)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	return cmd
}
