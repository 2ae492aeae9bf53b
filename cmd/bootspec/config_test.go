package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestEmpty(t *testing.T) {
	config, err := LoadConfig(afero.NewOsFs(), "testdata/empty-config.toml")
	require.NoError(t, err)
	require.NotNil(t, config)
	require.Equal(t, GetDefaultConfig(), config)
}

func TestNonExisting(t *testing.T) {
	config, err := LoadConfig(afero.NewOsFs(), "testdata/non-existing-config.toml")
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
	require.Nil(t, config)
}

func TestInvalid(t *testing.T) {
	config, err := LoadConfig(afero.NewOsFs(), "testdata/invalid.toml")
	require.Error(t, err)
	require.Nil(t, config)
}

func TestDefaultConfig(t *testing.T) {
	defaultConfig := GetDefaultConfig()
	require.Equal(t, "info", defaultConfig.LogLevel)
	require.False(t, defaultConfig.LogJournal)
	require.False(t, defaultConfig.Decode.Strict)
	require.False(t, defaultConfig.Decode.AllowComments)
	require.Equal(t, "table", defaultConfig.Output.Format)
	require.Equal(t, "boot.json", defaultConfig.Synthesize.Filename)
}

func TestConfig(t *testing.T) {
	config, err := LoadConfig(afero.NewOsFs(), "testdata/test.toml")
	require.NoError(t, err)
	require.NotNil(t, config)

	require.Equal(t, &ConfigFile{
		LogLevel:   "debug",
		LogJournal: true,
		Decode: DecodeConfig{
			Strict:        true,
			AllowComments: true,
		},
		Output: OutputConfig{
			Format: "yaml",
		},
		Synthesize: SynthesizeConfig{
			Filename: "bootspec.json",
		},
	}, config)
}

func TestPartialConfigKeepsDefaults(t *testing.T) {
	config, err := LoadConfig(afero.NewOsFs(), "testdata/partial.toml")
	require.NoError(t, err)
	require.Equal(t, "json", config.Output.Format)
	require.Equal(t, "info", config.LogLevel)
	require.Equal(t, "boot.json", config.Synthesize.Filename)
}

func TestDumpConfig(t *testing.T) {
	config, err := LoadConfig(afero.NewOsFs(), "testdata/test.toml")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, DumpConfig(config, &buf))

	var dumped ConfigFile
	_, err = toml.Decode(buf.String(), &dumped)
	require.NoError(t, err)
	require.Equal(t, config, &dumped)
}
