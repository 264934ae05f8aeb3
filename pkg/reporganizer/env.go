package reporganizer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/himanishpuri/RepOrganizer/pkg/utils"
)

// checkEnvironment verifies the game directory layout and returns every
// problem found, joined.
func checkEnvironment(cfg *Config) error {
	var errs []error

	if !utils.IsDir(cfg.GameDir) {
		return &EnvironmentPreconditionError{
			Path:   cfg.GameDir,
			Reason: "game directory does not exist",
		}
	}

	for _, name := range cfg.MarkerFiles {
		p := resolve(cfg.GameDir, name)
		if !utils.IsRegularFile(p) {
			errs = append(errs, &EnvironmentPreconditionError{
				Path:   p,
				Reason: "required file is missing; is this the game installation folder?",
			})
		}
	}

	if !utils.IsDir(cfg.replayPath()) {
		errs = append(errs, &EnvironmentPreconditionError{
			Path:   cfg.replayPath(),
			Reason: "replay folder does not exist; please create it",
		})
	}

	return errors.Join(errs...)
}

// listReplays returns the paths of the *.rep files directly inside dir,
// sorted by name.
func listReplays(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), ".rep") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}
