package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docextract/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"migrate", "document", "process", "run", "jobs", "serve", "status"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "docextract", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestProcessCommand_Flags(t *testing.T) {
	for _, name := range []string{"job", "ocr"} {
		assert.NotNil(t, processCmd.Flags().Lookup(name), "process should have --%s flag", name)
	}
}

func TestRunCommand_Flags(t *testing.T) {
	require.NotNil(t, runCmd.Flags().Lookup("job"))
	require.NotNil(t, runCmd.Flags().Lookup("file"))
}

func TestDocumentCommand_HasAdd(t *testing.T) {
	var found bool
	for _, c := range documentCmd.Commands() {
		if c.Name() == "add" {
			found = true
		}
	}
	assert.True(t, found)
	assert.NotNil(t, documentAddCmd.Flags().Lookup("type"))
}

func TestJobsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range jobsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])

	flag := jobsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestModeFor(t *testing.T) {
	tests := []struct {
		cmd  *cobra.Command
		want string
	}{
		{rootCmd, ""},
		{migrateCmd, "store"},
		{documentAddCmd, "store"},
		{jobsListCmd, "store"},
		{jobsShowCmd, "store"},
		{statusCmd, "store"},
		{processCmd, "extract"},
		{runCmd, "extract"},
		{serveCmd, "serve"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.Name(), func(t *testing.T) {
			assert.Equal(t, tt.want, modeFor(tt.cmd))
		})
	}
}

func storeOnlyConfig() *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: "docextract.db"},
	}
}

func TestPrepareConfig_ValidatesForMode(t *testing.T) {
	assert.NoError(t, prepareConfig(rootCmd, &config.Config{}))
	assert.NoError(t, prepareConfig(migrateCmd, storeOnlyConfig()))

	err := prepareConfig(processCmd, storeOnlyConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestPrepareConfig_ServeResolvesUploadDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	wd, err := os.Getwd()
	require.NoError(t, err)

	c := storeOnlyConfig()
	c.Anthropic.Key = "sk-ant-key"
	c.Gemini.Key = "gm-key"
	c.Server = config.ServerConfig{Port: 8080, UploadDir: "uploads"}

	require.NoError(t, prepareConfig(serveCmd, c))
	assert.Equal(t, filepath.Join(wd, "uploads"), c.Server.UploadDir)
}

func TestRootPreRun_RejectsBadStoreDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DOCEXTRACT_STORE_DRIVER", "oracle")

	err := rootCmd.PersistentPreRunE(migrateCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be postgres or sqlite")
}
