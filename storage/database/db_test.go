package database

import (
	"database/sql"
	"io/fs"
	"reflect"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/pogil/core"
)

func TestDSN(t *testing.T) {
	conf := &core.Config{Database: core.DatabaseConfig{
		Engine: "postgres", Host: "db", Port: 5432, Name: "pogil",
		User: "app", Password: "p@ss", AdminUser: "root", AdminPassword: "secret",
	}}
	tests := []struct {
		name       string
		admin      bool
		disableTLS bool
		want       string
	}{
		{name: "app user", want: "postgres://app:p%40ss@db:5432/pogil?sslmode=require&timezone=utc"},
		{name: "admin", admin: true, disableTLS: true, want: "postgres://root:secret@db:5432/pogil?sslmode=disable&timezone=utc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf.Database.DisableTLS = tt.disableTLS
			if got := DSN("pogil", tt.admin, conf); got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMigrate(t *testing.T) {
	var gotCmd, gotDir string
	var gotArgs []string
	orig := gooseRunFunc
	defer func() { gooseRunFunc = orig }()
	gooseRunFunc = func(command string, _ *sql.DB, fsys fs.FS, dir string, args ...string) error {
		gotCmd, gotDir, gotArgs = command, dir, args
		if command == "bogus" {
			return errors.New("unknown command")
		}
		names, err := fs.Glob(fsys, dir+"/*.sql")
		if err != nil || len(names) < 2 {
			t.Errorf("embedded migrations = %v (%v)", names, err)
		}
		return nil
	}

	if err := Migrate(nil, "up-to", "2"); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if gotCmd != "up-to" || gotDir != MigrationsDir || !reflect.DeepEqual(gotArgs, []string{"2"}) {
		t.Errorf("goose ran %q %q %v", gotCmd, gotDir, gotArgs)
	}
	if err := Migrate(nil, "bogus"); err == nil || err.Error() != "migrate bogus: unknown command" {
		t.Errorf("Migrate(bogus) error = %v", err)
	}
}
