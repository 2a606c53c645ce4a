// Package db embeds the SQL migrations and seed data.
package db

import (
	"embed"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migration is one versioned schema change, named NNN_description.sql.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrations returns the embedded migrations ordered by version.
func Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}

	out := make([]Migration, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		prefix, _, ok := strings.Cut(name, "_")
		if !ok || e.IsDir() {
			return nil, errors.Errorf("migration %q: want NNN_name.sql", name)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, errors.Wrapf(err, "migration %q version", name)
		}
		data, err := migrations.ReadFile(path.Join("migrations", name))
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", name)
		}
		out = append(out, Migration{Version: version, Name: name, SQL: string(data)})
	}

	slices.SortFunc(out, func(a, b Migration) int { return a.Version - b.Version })
	for i := 1; i < len(out); i++ {
		if out[i].Version == out[i-1].Version {
			return nil, errors.Errorf("duplicate migration version %d", out[i].Version)
		}
	}
	return out, nil
}
