// Package synthesize builds bootspec records from existing NixOS-style
// generation directories that predate boot.json.
package synthesize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/osbuild/bootspec/pkg/bootspec"
)

// Options tune the synthesized record.
type Options struct {
	// System overrides the contents of the generation's "system" file.
	System string
}

// Synthesize reads the generation directory dir and returns its v1 record,
// specialisations included.
//
// Symlinks to the kernel, the initrd and the initrd secrets appender are
// resolved one level when fs supports it. The init path and the extensions
// are left as they are: there is nothing to resolve or to discover.
func Synthesize(fs afero.Fs, dir string, opts Options) (*bootspec.GenerationV1, error) {
	toplevel, err := resolve(fs, dir)
	if err != nil {
		return nil, err
	}
	log := logrus.WithField("generation", toplevel)

	version, err := readTrimmed(fs, filepath.Join(toplevel, "nixos-version"))
	if err != nil {
		return nil, err
	}

	system := opts.System
	if system == "" {
		system, err = readTrimmed(fs, filepath.Join(toplevel, "system"))
		if err != nil {
			return nil, err
		}
	}

	kernelVersion, err := kernelVersion(fs, toplevel)
	if err != nil {
		return nil, err
	}

	params, err := afero.ReadFile(fs, filepath.Join(toplevel, "kernel-params"))
	if err != nil {
		return nil, fmt.Errorf("reading kernel parameters: %w", err)
	}

	kernel, err := resolve(fs, filepath.Join(toplevel, "kernel"))
	if err != nil {
		return nil, err
	}

	initrd, err := resolveOptional(fs, filepath.Join(toplevel, "initrd"))
	if err != nil {
		return nil, err
	}
	if initrd == nil {
		log.Debug("generation has no initrd")
	}

	initrdSecrets, err := resolveOptional(fs, filepath.Join(toplevel, "append-initrd-secrets"))
	if err != nil {
		return nil, err
	}

	g := &bootspec.GenerationV1{
		System:         system,
		Init:           filepath.Join(toplevel, "init"),
		Initrd:         initrd,
		InitrdSecrets:  initrdSecrets,
		Kernel:         kernel,
		KernelParams:   strings.Fields(string(params)),
		Label:          fmt.Sprintf("NixOS %s (Linux %s)", version, kernelVersion),
		Toplevel:       bootspec.SystemConfigurationRoot(toplevel),
		Specialisation: map[bootspec.SpecialisationName]bootspec.GenerationV1{},
		Extensions:     bootspec.Extensions{},
	}

	specialisations, err := listSpecialisations(fs, toplevel)
	if err != nil {
		return nil, err
	}
	for _, name := range specialisations {
		log.Debugf("synthesizing specialisation %q", name)
		// specialisations carry their own system file
		sub, err := Synthesize(fs, filepath.Join(toplevel, "specialisation", name), Options{})
		if err != nil {
			return nil, fmt.Errorf("specialisation %q: %w", name, err)
		}
		g.Specialisation[bootspec.SpecialisationName(name)] = *sub
	}

	return g, nil
}

func readTrimmed(fs afero.Fs, path string) (string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return strings.TrimSpace(string(data)), nil
}

// kernelVersion returns the name of the first module directory of the
// generation's kernel.
func kernelVersion(fs afero.Fs, toplevel string) (string, error) {
	modules := filepath.Join(toplevel, "kernel-modules", "lib", "modules")
	entries, err := afero.ReadDir(fs, modules)
	if err != nil {
		return "", fmt.Errorf("reading kernel modules: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			return entry.Name(), nil
		}
	}
	return "", fmt.Errorf("no kernel version found in %s", modules)
}

func listSpecialisations(fs afero.Fs, toplevel string) ([]string, error) {
	entries, err := afero.ReadDir(fs, filepath.Join(toplevel, "specialisation"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading specialisations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

// resolve follows path if it is a symlink, one level deep. Relative targets
// are taken relative to the link's directory.
func resolve(fs afero.Fs, path string) (string, error) {
	lstater, ok := fs.(afero.Lstater)
	if !ok {
		if _, err := fs.Stat(path); err != nil {
			return "", err
		}
		return path, nil
	}
	info, _, err := lstater.LstatIfPossible(path)
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return path, nil
	}
	reader, ok := fs.(afero.LinkReader)
	if !ok {
		return path, nil
	}
	target, err := reader.ReadlinkIfPossible(path)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return filepath.Clean(target), nil
}

func resolveOptional(fs afero.Fs, path string) (*string, error) {
	resolved, err := resolve(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &resolved, nil
}
