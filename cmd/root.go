package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/docextract/internal/config"
)

// configMode is the command annotation naming the config.Validate mode a
// command needs. Subcommands inherit the mode of their parent.
const configMode = "docextract/config-mode"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "docextract",
	Short: "Dual-source extraction pipeline for scanned legal documents",
	Long:  "Runs OCR over scanned Guatemalan legal documents, extracts structured fields with two independent LLM sources, reconciles them and verifies critical fields against the OCR text.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return prepareConfig(cmd, cfg)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// modeFor returns the validation mode of cmd or its nearest annotated
// ancestor, or "" when no ancestor carries one.
func modeFor(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		if mode, ok := c.Annotations[configMode]; ok {
			return mode
		}
	}
	return ""
}

// prepareConfig validates c for the mode cmd needs. The serve mode pins the
// upload directory to an absolute path so stored file keys resolve the same
// way for the life of the server.
func prepareConfig(cmd *cobra.Command, c *config.Config) error {
	mode := modeFor(cmd)
	if mode == "" {
		return nil
	}
	if err := c.Validate(mode); err != nil {
		return err
	}
	if mode == "serve" && c.Server.UploadDir != "" {
		dir, err := filepath.Abs(c.Server.UploadDir)
		if err != nil {
			return fmt.Errorf("resolve upload dir: %w", err)
		}
		c.Server.UploadDir = dir
	}
	zap.L().Debug("config validated", zap.String("command", cmd.CommandPath()), zap.String("mode", mode))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
