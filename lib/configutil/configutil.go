package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// decodeLayer reads and json5-decodes one config layer into out. A
// missing or empty file reports found=false with no error, so layers
// are optional.
func decodeLayer[T any](path string, out *T) (bool, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(raw) == 0 {
		return false, nil
	}
	if err := json5.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return true, nil
}

// localPath derives the override sibling: config.json5 -> config.local.json5.
func localPath(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

// ReadConfig reads a json5 config file plus an optional `.local` sibling
// whose non-zero fields override the base, so a checked-in config can
// carry defaults and a machine-specific file the rest. Returns a bare
// os.ErrNotExist when neither file exists, callers branch on IsNotExist.
func ReadConfig[T any](name string) (T, error) {
	var out T

	found, err := decodeLayer(name, &out)
	if err != nil {
		return out, err
	}

	var override T
	foundLocal, err := decodeLayer(localPath(name), &override)
	if err != nil {
		return out, err
	}
	if foundLocal {
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, err
		}
		slog.Info("merged local config overrides", "path", localPath(name))
	}

	if !found && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively walks from the working directory up to the filesystem
// root looking for a config file with the given name, so commands work
// from any subdirectory of a checkout.
func ReadRecursively[T any](name string) (T, error) {
	var zero T

	dir, err := os.Getwd()
	if err != nil {
		return zero, err
	}

	for {
		config, err := ReadConfig[T](filepath.Join(dir, name))
		if !os.IsNotExist(err) {
			return config, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return zero, os.ErrNotExist
		}
		dir = parent
	}
}
