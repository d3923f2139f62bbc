package configutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// LoadDotenv loads variables from the given .env files into the process
// environment. A missing file is not an error, variables that are already
// set are left alone.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		err := godotenv.Load(f)
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("no env file found, continuing without it", "file", f)
			continue
		}
		if err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overwrites fields of out tagged with `env:"..."` whose
// variables are set in the environment. Fields without a matching
// variable keep the values they were read with.
func ApplyEnv(ctx context.Context, out any) error {
	return envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:           out,
		Lookuper:         envconfig.OsLookuper(),
		DefaultOverwrite: true,
	})
}

// ApplyEnvFrom is ApplyEnv but reads variables from the given map.
func ApplyEnvFrom(ctx context.Context, out any, env map[string]string) error {
	return envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:           out,
		Lookuper:         envconfig.MapLookuper(env),
		DefaultOverwrite: true,
	})
}
