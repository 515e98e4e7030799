package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/store"
)

var documentCmd = &cobra.Command{
	Use:         "document",
	Short:       "Register scanned documents",
	Annotations: map[string]string{configMode: "store"},
}

var documentAddCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Register a document and create a PENDING extraction job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		docType, _ := cmd.Flags().GetString("type")
		name, _ := cmd.Flags().GetString("name")

		path, err := filepath.Abs(args[0])
		if err != nil {
			return eris.Wrap(err, "document add: resolve path")
		}
		if _, err := os.Stat(path); err != nil {
			return eris.Wrap(err, "document add")
		}
		if name == "" {
			name = filepath.Base(path)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		doc, job, err := createDocumentJob(ctx, st, documentRequest{
			DocumentType: model.DocumentType(docType),
			FileKey:      path,
			OriginalName: name,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(documentResponse{Document: doc, Job: job})
	},
}

// documentRequest is the input for registering a document.
type documentRequest struct {
	DocumentType model.DocumentType `json:"document_type"`
	FileKey      string             `json:"file_key"`
	OriginalName string             `json:"original_name,omitempty"`
}

// documentResponse pairs a registered document with its first job.
type documentResponse struct {
	Document *model.Document      `json:"document"`
	Job      *model.ExtractionJob `json:"job"`
}

// createDocumentJob stores the document and opens a PENDING job for it.
// Unsupported types are accepted here; the processor fails their jobs.
func createDocumentJob(ctx context.Context, st store.Store, req documentRequest) (*model.Document, *model.ExtractionJob, error) {
	req.DocumentType = model.DocumentType(strings.TrimSpace(string(req.DocumentType)))
	if req.DocumentType == "" {
		return nil, nil, eris.New("document_type is required")
	}
	if strings.TrimSpace(req.FileKey) == "" {
		return nil, nil, eris.New("file_key is required")
	}

	doc, err := st.CreateDocument(ctx, model.Document{
		Type:         req.DocumentType,
		FileKey:      req.FileKey,
		OriginalName: req.OriginalName,
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "create document")
	}
	job, err := st.CreateJob(ctx, doc.ID)
	if err != nil {
		return nil, nil, eris.Wrap(err, "create job")
	}

	zap.L().Info("document registered",
		zap.String("document_id", doc.ID),
		zap.String("job_id", job.ID),
		zap.String("document_type", string(doc.Type)),
	)
	return doc, job, nil
}

func init() {
	documentAddCmd.Flags().String("type", "", "document type (escritura, patente_comercio, patente_sociedad, dpi)")
	documentAddCmd.Flags().String("name", "", "original file name (default: base name of the file)")
	_ = documentAddCmd.MarkFlagRequired("type")

	documentCmd.AddCommand(documentAddCmd)
	rootCmd.AddCommand(documentCmd)
}
