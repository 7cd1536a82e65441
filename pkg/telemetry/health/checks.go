package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirWritable checks that the directory holding path exists and accepts
// new files. It is registered for the audit log and anchor state.
func DirWritable(path string) CheckFunc {
	return func(context.Context) error {
		dir := filepath.Dir(path)
		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
		f, err := os.CreateTemp(dir, ".guardian-health-*")
		if err != nil {
			return fmt.Errorf("directory not writable: %w", err)
		}
		name := f.Name()
		f.Close()
		return os.Remove(name)
	}
}

// Pinger adapts anything with a context-aware Ping, such as *sql.DB.
func Pinger(p interface{ PingContext(context.Context) error }) CheckFunc {
	return p.PingContext
}
