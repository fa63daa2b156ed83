package migrate

import (
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

const versionLen = 14

var migrationNameRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)

const (
	upMarker   = "-- +goose Up"
	downMarker = "-- +goose Down"
	blockBegin = "-- +goose StatementBegin"
	blockEnd   = "-- +goose StatementEnd"
)

// ValidateDir checks the migrations under dir. The default dir is checked
// against the embedded copy.
func ValidateDir(dir string) error {
	fsys, err := source(dir)
	if err != nil {
		return err
	}
	return Validate(fsys)
}

// Validate reports every malformed migration at the root of fsys rather
// than stopping at the first one.
func Validate(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	var errs error
	seen := map[string]string{}
	for _, name := range names {
		m := migrationNameRe.FindStringSubmatch(name)
		if m == nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: expected YYYYMMDDHHMMSS_snake_name.sql", name))
			continue
		}
		if prev, ok := seen[m[1]]; ok {
			errs = multierr.Append(errs, fmt.Errorf("%s: version %s already used by %s", name, m[1], prev))
		}
		seen[m[1]] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		errs = multierr.Append(errs, checkBody(name, string(body)))
	}
	return errs
}

func checkBody(name, body string) error {
	up := strings.Index(body, upMarker)
	down := strings.Index(body, downMarker)

	var errs error
	switch {
	case up < 0:
		errs = multierr.Append(errs, fmt.Errorf("%s: missing %q", name, upMarker))
	case down < 0:
		errs = multierr.Append(errs, fmt.Errorf("%s: missing %q", name, downMarker))
	case down < up:
		errs = multierr.Append(errs, fmt.Errorf("%s: down section precedes up section", name))
	}

	depth := 0
	for _, line := range strings.Split(body, "\n") {
		switch strings.TrimSpace(line) {
		case blockBegin:
			depth++
		case blockEnd:
			depth--
		}
		if depth < 0 || depth > 1 {
			return multierr.Append(errs, fmt.Errorf("%s: unbalanced statement block", name))
		}
	}
	if depth != 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s: unterminated statement block", name))
	}
	return errs
}
