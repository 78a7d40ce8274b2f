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

const versionLayout = "20060102150405"

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

const sqlTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration writes an empty goose migration to
// <root>/<dialect>/<YYYYMMDDHHMMSS>_<name>.sql for every dialect, all sharing
// one version. The version is later than any migration already under root,
// so two sets created in the same second still apply in creation order.
func CreateSQLMigration(root string, name string) ([]string, error) {
	if root == "" {
		return nil, fmt.Errorf("dir is required")
	}
	slug, err := migrationSlug(name)
	if err != nil {
		return nil, err
	}

	var latest int64
	for _, dialect := range Dialects {
		dir := filepath.Join(root, dialect)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %q: %w", dir, err)
		}
		v, err := latestVersion(dir)
		if err != nil {
			return nil, err
		}
		latest = max(latest, v)
	}
	version := nextVersion(time.Now().UTC(), latest)

	body := fmt.Sprintf(sqlTemplate, slug)
	paths := make([]string, 0, len(Dialects))
	for _, dialect := range Dialects {
		fullpath := filepath.Join(root, dialect, fmt.Sprintf("%s_%s.sql", version, slug))
		if err := os.WriteFile(fullpath, []byte(body), 0o644); err != nil {
			return nil, fmt.Errorf("write migration %q: %w", fullpath, err)
		}
		paths = append(paths, fullpath)
	}
	return paths, nil
}

func migrationSlug(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("name is required")
	}
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = nameSanitizeRe.ReplaceAllString(slug, "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	return slug, nil
}

// latestVersion returns the highest version among well-formed migration
// filenames in dir, or 0 when there are none.
func latestVersion(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read dir %q: %w", dir, err)
	}
	var latest int64
	for _, e := range entries {
		m := sqlFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil && v > latest {
			latest = v
		}
	}
	return latest, nil
}

func nextVersion(now time.Time, latest int64) string {
	candidate := now.Format(versionLayout)
	v, _ := strconv.ParseInt(candidate, 10, 64)
	if v > latest {
		return candidate
	}
	prev, err := time.Parse(versionLayout, strconv.FormatInt(latest, 10))
	if err != nil {
		return strconv.FormatInt(latest+1, 10)
	}
	return prev.Add(time.Second).Format(versionLayout)
}
