package main

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/docpipe/internal/model"
	"github.com/sells-group/docpipe/internal/ocr"
)

var (
	extractFile    string
	extractPDF     string
	extractDocType string
	extractCaller  string
	extractImages  []string
	extractNoSave  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a structured record from a single document",
	Long:  "Reads document text from --file (or stdin), runs it through the provider fallback chain, and prints the extraction result as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var text string
		if extractPDF != "" {
			conv, err := ocr.NewConverter(cfg.OCR, cfg.Keys.Mistral)
			if err != nil {
				return err
			}
			text, err = conv.ToText(ctx, extractPDF)
			if err != nil {
				return err
			}
		} else {
			text, err = readDocument(extractFile)
			if err != nil {
				return err
			}
		}

		req := model.ExtractionRequest{
			Text:         text,
			TaskType:     model.TaskDocumentExtraction,
			DocumentType: model.DocumentType(extractDocType),
			CallerID:     extractCaller,
		}

		if len(extractImages) > 0 {
			req.TaskType = model.TaskVision
			req.Images, err = loadPageImages(extractImages)
			if err != nil {
				return err
			}
		}

		result, err := env.Pipeline.Run(ctx, req)
		if err != nil {
			return eris.Wrap(err, "extraction")
		}

		if !extractNoSave {
			if err := env.Store.SaveExtraction(ctx, result); err != nil {
				zap.L().Warn("failed to persist extraction", zap.Error(err))
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractFile, "file", "", "document text file (default stdin)")
	extractCmd.Flags().StringVar(&extractPDF, "pdf", "", "PDF file to convert via OCR before extraction")
	extractCmd.Flags().StringVar(&extractDocType, "type", "", "document type hint: tender, invoice, deliveryNote")
	extractCmd.Flags().StringVar(&extractCaller, "caller", "", "caller identifier for rate accounting")
	extractCmd.Flags().StringArrayVar(&extractImages, "image", nil, "page image file (repeatable, switches to vision extraction)")
	extractCmd.Flags().BoolVar(&extractNoSave, "no-save", false, "skip persisting the result to the store")
	rootCmd.AddCommand(extractCmd)
}

func readDocument(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", eris.Wrap(err, "read stdin")
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "read %s", path)
	}
	return string(data), nil
}

func loadPageImages(paths []string) ([]model.PageImage, error) {
	images := make([]model.PageImage, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "read image %s", p)
		}
		images = append(images, model.PageImage{
			MediaType: imageMediaType(p),
			Data:      base64.StdEncoding.EncodeToString(data),
		})
	}
	return images, nil
}

func imageMediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}
