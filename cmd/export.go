package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/docpipe/internal/export"
	"github.com/sells-group/docpipe/internal/store"
)

var (
	exportOut        string
	exportReviewOnly bool
	exportLimit      int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored extractions to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.New(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		filter := store.ExtractionFilter{Limit: exportLimit}
		if exportReviewOnly {
			review := true
			filter.NeedsReview = &review
		}

		results, err := st.ListExtractions(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list extractions")
		}

		if err := export.WriteXLSX(exportOut, results); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("file", exportOut),
			zap.Int("extractions", len(results)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "extractions.xlsx", "output file path")
	exportCmd.Flags().BoolVar(&exportReviewOnly, "review-only", false, "export only extractions flagged for review")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 1000, "max extractions to export")
	rootCmd.AddCommand(exportCmd)
}
