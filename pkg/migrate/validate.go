package migrate

import (
	"fmt"
	"io/fs"
	"maps"
	"path"
	"regexp"
	"slices"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// Validate checks every .sql file under dir in fsys: the filename must be
// <YYYYMMDDHHMMSS>_<name>.sql with a unique version, the body must carry
// both goose sections, and StatementBegin/End markers must pair up.
func Validate(fsys fs.FS, dir string) error {
	_, err := validateDir(fsys, dir)
	return err
}

// ValidateSet checks every dialect subdirectory of root and requires them
// all to carry the same migration versions.
func ValidateSet(fsys fs.FS, root string) error {
	var (
		want     []string
		wantFrom string
	)
	for _, dialect := range Dialects {
		dir := path.Join(root, dialect)
		versions, err := validateDir(fsys, dir)
		if err != nil {
			return fmt.Errorf("%s migrations: %w", dialect, err)
		}
		got := slices.Sorted(maps.Keys(versions))
		if want == nil {
			want, wantFrom = got, dialect
			continue
		}
		if !slices.Equal(want, got) {
			return fmt.Errorf("%s migrations %v do not match %s migrations %v", dialect, got, wantFrom, want)
		}
	}
	return nil
}

func validateDir(fsys fs.FS, dir string) (map[string]string, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	versions := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, dup := versions[m[1]]; dup {
			return nil, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		versions[m[1]] = name

		body, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read file %q: %w", name, err)
		}
		if err := checkAnnotations(string(body)); err != nil {
			return nil, fmt.Errorf("migration %q: %w", name, err)
		}
	}

	if len(versions) == 0 {
		return nil, fmt.Errorf("no migrations found in %q", dir)
	}
	return versions, nil
}

func checkAnnotations(sql string) error {
	for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
		if !strings.Contains(sql, marker) {
			return fmt.Errorf("missing %q", marker)
		}
	}
	begins := strings.Count(sql, "-- +goose StatementBegin")
	ends := strings.Count(sql, "-- +goose StatementEnd")
	if begins != ends {
		return fmt.Errorf("%d StatementBegin markers but %d StatementEnd", begins, ends)
	}
	return nil
}

// ValidateEmbedded checks the migrations compiled into the binary.
func ValidateEmbedded() error {
	return ValidateSet(migrationsFS, embeddedDir)
}
