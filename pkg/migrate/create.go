package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var unsafeNameRe = regexp.MustCompile(`[^a-z0-9]+`)

const versionLayout = "20060102150405"

// CreateSQLMigration writes an empty goose migration to dir and returns its
// path. The version is the UTC timestamp of now, bumped past the newest
// existing file so two migrations created in the same second still sort.
func CreateSQLMigration(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(unsafeNameRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	version, err := nextVersion(dir, now.UTC())
	if err != nil {
		return "", err
	}
	full := filepath.Join(dir, fmt.Sprintf("%d_%s.sql", version, slug))

	body := strings.Join([]string{
		upMarker,
		blockBegin,
		"-- " + slug,
		blockEnd,
		"",
		downMarker,
		blockBegin,
		"-- revert " + slug,
		blockEnd,
		"",
	}, "\n")

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %q: %w", full, err)
	}
	if _, err := f.WriteString(body); err != nil {
		f.Close()
		return "", fmt.Errorf("write %q: %w", full, err)
	}
	return full, f.Close()
}

func nextVersion(dir string, now time.Time) (int64, error) {
	version, err := strconv.ParseInt(now.Format(versionLayout), 10, 64)
	if err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read dir %q: %w", dir, err)
	}
	for _, e := range entries {
		m := migrationNameRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		existing, _ := strconv.ParseInt(m[1], 10, 64)
		if existing >= version {
			version = existing + 1
		}
	}
	return version, nil
}
