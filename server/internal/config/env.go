package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadEnv loads KEY=VALUE pairs from the given dotenv files into the process
// environment so that *_env indirections (API key, webhook URLs, broker
// password) resolve. Existing variables are not overridden. Missing files are
// ignored.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("server config: load env %q: %w", f, err)
		}
	}
	return nil
}
