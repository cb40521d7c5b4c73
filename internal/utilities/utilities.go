package utilities

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// OpenDaily opens (append, create) dir/prefix_YYYYMMDD.ext, creating dir if needed.
func OpenDaily(dir, prefix, ext string, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	name := filepath.Join(dir, prefix+"_"+now.Format("20060102")+"."+ext)
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}
