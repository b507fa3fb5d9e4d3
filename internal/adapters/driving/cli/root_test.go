package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	configfile "github.com/custodia-labs/recall/internal/adapters/driven/config/file"
)

// stubConfig pre-populates the app config so PersistentPreRunE skips
// real service wiring during command tests.
func stubConfig() func() {
	oldConfig := appConfig
	appConfig = &configfile.Config{}
	return func() {
		appConfig = oldConfig
	}
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "recall", rootCmd.Use)
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"ingest", "search", "status", "expansion", "serve", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootCmd_ConfigFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("config")
	assert.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestRootCmd_VerboseFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("verbose")
	assert.NotNil(t, flag)
	assert.Equal(t, "v", flag.Shorthand)
}

func TestVersionCmd_Use(t *testing.T) {
	assert.Equal(t, "version", versionCmd.Use)
}

func TestVersionCmd_PrintsVersion(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"version"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "recall version dev")
}
