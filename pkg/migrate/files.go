package migrate

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var (
	unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)
	fileName    = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
)

const (
	annotationUp    = "-- +goose Up"
	annotationDown  = "-- +goose Down"
	annotationBegin = "-- +goose StatementBegin"
	annotationEnd   = "-- +goose StatementEnd"
)

// CreateSQLMigration writes <dir>/<UTC timestamp>_<name>.sql with empty up
// and down sections and returns the path.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", errors.New("dir is required")
	}
	slug := slugify(name)
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	target := filepath.Join(dir, time.Now().UTC().Format(versionLayout)+"_"+slug+".sql")
	body := strings.Join([]string{
		annotationUp, annotationBegin, "-- " + slug, annotationEnd, "",
		annotationDown, annotationBegin, "-- undo " + slug, annotationEnd, "",
	}, "\n")

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration: %w", err)
	}
	if _, err := f.WriteString(body); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	return target, f.Close()
}

func slugify(name string) string {
	return strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

// ValidateDir runs ValidateFS over a directory on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS checks every .sql file at the root of fsys: the name carries a
// unique 14 digit version, both goose sections exist in order, and every
// StatementBegin is closed before the next one opens.
func ValidateFS(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return err
	}
	versions := make(map[string]string, len(names))
	for _, name := range names {
		m := fileName.FindStringSubmatch(path.Base(name))
		if m == nil {
			return fmt.Errorf("%s: name must look like %s_name.sql", name, versionLayout)
		}
		if other, dup := versions[m[1]]; dup {
			return fmt.Errorf("%s: version %s already used by %s", name, m[1], other)
		}
		versions[m[1]] = name

		if err := validateFile(fsys, name); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func validateFile(fsys fs.FS, name string) error {
	f, err := fsys.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	var (
		sawUp, sawDown bool
		openedAt       int
		line           int
	)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line++
		switch strings.TrimSpace(sc.Text()) {
		case annotationUp:
			sawUp = true
		case annotationDown:
			if !sawUp {
				return fmt.Errorf("line %d: down section before up", line)
			}
			if openedAt > 0 {
				return fmt.Errorf("line %d: unbalanced statement block opened at line %d", line, openedAt)
			}
			sawDown = true
		case annotationBegin:
			if openedAt > 0 {
				return fmt.Errorf("line %d: unbalanced statement block opened at line %d", line, openedAt)
			}
			openedAt = line
		case annotationEnd:
			if openedAt == 0 {
				return fmt.Errorf("line %d: unbalanced StatementEnd", line)
			}
			openedAt = 0
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	switch {
	case !sawUp:
		return fmt.Errorf("missing %q", annotationUp)
	case !sawDown:
		return fmt.Errorf("missing %q", annotationDown)
	case openedAt > 0:
		return fmt.Errorf("unbalanced statement block opened at line %d", openedAt)
	}
	return nil
}
