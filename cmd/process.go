package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/ocr"
)

var processCmd = &cobra.Command{
	Use:         "process",
	Short:       "Run extraction for a job from pre-computed OCR output",
	Annotations: map[string]string{configMode: "extract"},
	Long:        "Loads OCR output ({text, blocks} JSON) from disk and runs both extraction sources, consensus and verification for the job.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		jobID, _ := cmd.Flags().GetString("job")
		ocrPath, _ := cmd.Flags().GetString("ocr")

		res, err := ocr.NewFile().Recognize(ctx, ocrPath)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "extract")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Processor.Process(ctx, jobID, res)
		if err != nil {
			return eris.Wrapf(err, "process job %s", jobID)
		}
		return printResult(result)
	},
}

var runCmd = &cobra.Command{
	Use:         "run",
	Short:       "Run OCR and extraction for a job",
	Annotations: map[string]string{configMode: "extract"},
	Long:        "Runs the configured OCR provider over the document file, then extraction, consensus and verification. Without --file the document's stored file key is used.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		jobID, _ := cmd.Flags().GetString("job")
		path, _ := cmd.Flags().GetString("file")

		env, err := initPipeline(ctx, "extract")
		if err != nil {
			return err
		}
		defer env.Close()

		if path == "" {
			path, err = documentPath(cmd, env, jobID)
			if err != nil {
				return err
			}
		}

		result, err := env.Processor.Run(ctx, jobID, path)
		if err != nil {
			return eris.Wrapf(err, "run job %s", jobID)
		}
		return printResult(result)
	},
}

func documentPath(cmd *cobra.Command, env *pipelineEnv, jobID string) (string, error) {
	job, err := env.Store.GetJob(cmd.Context(), jobID)
	if err != nil {
		return "", err
	}
	doc, err := env.Store.GetDocument(cmd.Context(), job.DocumentID)
	if err != nil {
		return "", err
	}
	return doc.FileKey, nil
}

func printResult(result *model.ExtractionResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func init() {
	processCmd.Flags().String("job", "", "extraction job id")
	processCmd.Flags().String("ocr", "", "path to OCR output JSON")
	_ = processCmd.MarkFlagRequired("job")
	_ = processCmd.MarkFlagRequired("ocr")

	runCmd.Flags().String("job", "", "extraction job id")
	runCmd.Flags().String("file", "", "document file (default: the document's stored file key)")
	_ = runCmd.MarkFlagRequired("job")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(runCmd)
}
