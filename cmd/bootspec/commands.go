package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"

	"github.com/osbuild/bootspec/internal/inspect"
	"github.com/osbuild/bootspec/internal/jsondb"
	"github.com/osbuild/bootspec/internal/schemagen"
	"github.com/osbuild/bootspec/internal/synthesize"
	"github.com/osbuild/bootspec/pkg/bootspec"
)

// readDocument returns the raw contents of a document, with comments
// stripped when enabled or when the file is named *.jsonc.
func (a *app) readDocument(path string) ([]byte, error) {
	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return nil, err
	}
	if a.config.Decode.AllowComments || strings.HasSuffix(path, ".jsonc") {
		data = jsonc.ToJSON(data)
	}
	return data, nil
}

func (a *app) loadGeneration(path string) (bootspec.Generation, error) {
	data, err := a.readDocument(path)
	if err != nil {
		return nil, err
	}
	var g bootspec.Generation
	if a.config.Decode.Strict {
		g, err = bootspec.UnmarshalStrict(data)
	} else {
		g, err = bootspec.Unmarshal(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check that documents decode and carry all required values",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				err := a.validate(path)
				if err != nil {
					logrus.WithField("file", path).Error(err)
					failed++
					continue
				}
				logrus.WithField("file", path).Info("valid")
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed validation", failed, len(args))
			}
			return nil
		},
	}
}

func (a *app) validate(path string) error {
	g, err := a.loadGeneration(path)
	if err != nil {
		return err
	}
	switch g := g.(type) {
	case *bootspec.GenerationV1:
		return g.Validate()
	default:
		return fmt.Errorf("unsupported bootspec version %d", g.Version())
	}
}

func (a *app) showCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show FILE",
		Short: "Render a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("output") {
				output = a.config.Output.Format
			}
			format, err := inspect.ParseFormat(output)
			if err != nil {
				return err
			}
			g, err := a.loadGeneration(args[0])
			if err != nil {
				return err
			}
			return inspect.Render(a.out, g, format)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json, yaml or toml")
	return cmd
}

func (a *app) queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query FILE EXPR",
		Short: "Evaluate a JSONPath expression against a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Decode first so that queries only ever run on valid documents.
			if _, err := a.loadGeneration(args[0]); err != nil {
				return err
			}
			data, err := a.readDocument(args[0])
			if err != nil {
				return err
			}
			results, err := inspect.Query(data, args[1])
			if err != nil {
				return err
			}
			logrus.Debugf("%d matches for %s", len(results), args[1])
			for _, result := range results {
				line, err := json.Marshal(result)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, string(line))
			}
			return nil
		},
	}
}

func (a *app) extensionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extension FILE NAME",
		Short: "Print the payload of one extension",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.loadGeneration(args[0])
			if err != nil {
				return err
			}
			var payload bootspec.Extension
			switch g := g.(type) {
			case *bootspec.GenerationV1:
				ext, ok := g.Extensions[args[1]]
				if !ok {
					return &bootspec.ExtensionError{Name: args[1], Err: bootspec.ErrExtensionNotFound}
				}
				payload = ext
			default:
				return fmt.Errorf("unsupported bootspec version %d", g.Version())
			}
			data, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, string(data))
			return nil
		},
	}
}

func (a *app) extensionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extensions FILE [PATTERN]",
		Short: "List the extensions of a document whose names match a glob pattern",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := "**"
			if len(args) == 2 {
				pattern = args[1]
			}
			g, err := a.loadGeneration(args[0])
			if err != nil {
				return err
			}
			names, err := inspect.ExtensionNames(g, pattern)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(a.out, name)
			}
			return nil
		},
	}
}

func (a *app) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the current document format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := schemagen.Generate()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(schema, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, string(data))
			return nil
		},
	}
}

func (a *app) synthesizeCmd() *cobra.Command {
	var (
		out     string
		system  string
		version int
	)
	cmd := &cobra.Command{
		Use:   "synthesize DIR",
		Short: "Build a document from an existing system closure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if version != bootspec.SchemaVersionV1 {
				return fmt.Errorf("cannot synthesize bootspec version %d", version)
			}
			dir := args[0]
			g, err := synthesize.Synthesize(a.fs, dir, synthesize.Options{System: system})
			if err != nil {
				return err
			}
			if err := g.Validate(); err != nil {
				return fmt.Errorf("synthesized document is incomplete: %w", err)
			}
			if out == "-" {
				data, err := bootspec.MarshalIndent(g, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.out, string(data))
				return err
			}
			if out == "" {
				if a.config.Synthesize.Filename == "" {
					return errors.New("no output file configured")
				}
				out = filepath.Join(dir, a.config.Synthesize.Filename)
			}

			log := logrus.WithField("file", out)
			db := jsondb.New(a.fs, filepath.Dir(out), 0644)
			old, exists, err := db.Read(filepath.Base(out))
			if err != nil {
				log.Warnf("replacing unreadable document: %v", err)
			} else if exists {
				if v1, ok := old.(*bootspec.GenerationV1); ok && v1.Equal(*g) {
					log.Info("bootspec document is up to date")
					return nil
				}
				log.Debug("replacing existing document")
			}
			if err := db.Write(filepath.Base(out), g); err != nil {
				return err
			}
			log.Info("wrote bootspec document")
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file, '-' for standard output (default DIR/boot.json)")
	cmd.Flags().StringVar(&system, "system", "", "system double, overrides the closure's system file")
	cmd.Flags().IntVar(&version, "version", bootspec.SchemaVersion, "schema version to produce")
	return cmd
}
