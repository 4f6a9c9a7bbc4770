package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/docpipe/internal/model"
)

var (
	batchDir     string
	batchDocType string
	batchLimit   int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Extract every document in a directory",
	Long:  "Walks a directory of .txt documents and runs each through the pipeline concurrently. Results are persisted to the store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		paths, err := collectDocuments(batchDir, batchLimit)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			zap.L().Info("no documents found", zap.String("dir", batchDir))
			return nil
		}

		return processBatch(ctx, paths, cfg.Batch.MaxConcurrentDocuments, func(ctx context.Context, path string) (*model.Result, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, eris.Wrapf(err, "read %s", path)
			}

			result, err := env.Pipeline.Run(ctx, model.ExtractionRequest{
				Text:         string(data),
				TaskType:     model.TaskDocumentExtraction,
				DocumentType: model.DocumentType(batchDocType),
			})
			if err != nil {
				return nil, err
			}

			if err := env.Store.SaveExtraction(ctx, result); err != nil {
				zap.L().Warn("failed to persist extraction",
					zap.String("document", path),
					zap.Error(err),
				)
			}
			return result, nil
		})
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchDir, "dir", "", "directory of document text files (required)")
	batchCmd.Flags().StringVar(&batchDocType, "type", "", "document type hint applied to every file")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of documents to process (0 = all)")
	_ = batchCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(batchCmd)
}

// collectDocuments lists .txt files under dir, sorted, optionally truncated.
func collectDocuments(dir string, limit int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read dir %s", dir)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".txt") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	return paths, nil
}

// extractFunc is the callback signature for processing a single document.
type extractFunc func(ctx context.Context, path string) (*model.Result, error)

// processBatch runs fn over the paths concurrently. Unreadable documents and
// provider exhaustion count as failures for the summary but do not stop the
// batch; only context cancellation aborts early.
func processBatch(ctx context.Context, paths []string, concurrency int, fn extractFunc) error {
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("documents", len(paths)),
		zap.Int("concurrency", concurrency),
	)

	var succeeded, failed, flagged atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, path := range paths {
		g.Go(func() error {
			result, err := fn(gctx, path)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				zap.L().Error("document extraction failed",
					zap.String("document", path),
					zap.Error(err),
				)
				return nil
			}

			succeeded.Add(1)
			if result.NeedsReview {
				flagged.Add(1)
			}
			zap.L().Info("document extracted",
				zap.String("document", path),
				zap.String("reference", result.Record.Reference),
				zap.Bool("needs_review", result.NeedsReview),
			)
			return nil
		})
	}

	err := g.Wait()

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Int64("needs_review", flagged.Load()),
	)

	return err
}
