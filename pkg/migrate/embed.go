package migrate

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
)

//go:embed migrations/*.sql
var embedded embed.FS

const embeddedDir = "migrations"

// Files exposes the migrations compiled into the binary.
func Files() fs.FS {
	return embedded
}

// source resolves dir to a filesystem rooted at the migration files. The
// default directory is served from the binary so deployed images need no
// checkout.
func source(dir string) (fs.FS, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	if dir == DefaultDir {
		return fs.Sub(embedded, embeddedDir)
	}
	return os.DirFS(dir), nil
}
