package migrations

import (
	"fmt"

	pkgmigrations "go-concord/pkg/migrations"
)

// Migration is what each numbered file registers from its init function
type Migration struct {
	Version     string
	Description string
	Up          pkgmigrations.MigrationFunc
	Down        pkgmigrations.MigrationFunc
}

var registered = map[string]Migration{}

// Register records a migration; a repeated version is a programming error
func Register(m Migration) {
	if _, dup := registered[m.Version]; dup {
		panic(fmt.Sprintf("migration %s registered twice", m.Version))
	}
	if m.Up == nil {
		panic(fmt.Sprintf("migration %s has no Up function", m.Version))
	}
	registered[m.Version] = m
}

// Versions lists the registered migration versions; the runner orders them
func Versions() []string {
	out := make([]string, 0, len(registered))
	for v := range registered {
		out = append(out, v)
	}
	return out
}

// RegisterAll hands every registered migration to runner
func RegisterAll(runner *pkgmigrations.Runner) {
	for _, m := range registered {
		runner.Register(pkgmigrations.RegisteredMigration{
			Version:     m.Version,
			Description: m.Description,
			Up:          m.Up,
			Down:        m.Down,
		})
	}
}
