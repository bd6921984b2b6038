package persistence

import (
	"context"
	"fmt"
	"os"
)

// CheckHealth reports whether dir accepts new files. The check file is removed
// before returning.
func CheckHealth(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, ".healthcheck-*")
	if err != nil {
		return fmt.Errorf("data directory %s is not writable: %w", dir, err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("close check file: %w", err)
	}
	return os.Remove(name)
}
