package main

import (
	"io"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"

	"github.com/osbuild/bootspec/pkg/bootspec"
)

const DefaultConfigFile = "/etc/bootspec/bootspec.toml"

type DecodeConfig struct {
	Strict        bool `toml:"strict"`
	AllowComments bool `toml:"allow_comments"`
}

type OutputConfig struct {
	Format string `toml:"format"`
}

type SynthesizeConfig struct {
	Filename string `toml:"filename"`
}

type ConfigFile struct {
	LogLevel   string           `toml:"log_level"`
	LogJournal bool             `toml:"log_journal"`
	Decode     DecodeConfig     `toml:"decode"`
	Output     OutputConfig     `toml:"output"`
	Synthesize SynthesizeConfig `toml:"synthesize"`
}

func GetDefaultConfig() *ConfigFile {
	return &ConfigFile{
		LogLevel: "info",
		Output: OutputConfig{
			Format: "table",
		},
		Synthesize: SynthesizeConfig{
			Filename: bootspec.JSONFilename,
		},
	}
}

// LoadConfig reads the TOML file name on top of the defaults.
func LoadConfig(fs afero.Fs, name string) (*ConfigFile, error) {
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, err
	}
	c := GetDefaultConfig()
	_, err = toml.Decode(string(data), c)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func DumpConfig(c *ConfigFile, w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
