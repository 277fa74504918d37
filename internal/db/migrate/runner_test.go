package migrate_test

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/jrsteele09/go-session-server/internal/db"
	"github.com/jrsteele09/go-session-server/internal/db/migrate"
	"github.com/stretchr/testify/require"
)

func TestRun_RejectsBadInput(t *testing.T) {
	require.Error(t, migrate.Run("", migrate.Up))
	require.Error(t, migrate.Run("postgres://localhost/x", "sideways"))
}

func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(db.MigrationFS, "migrations")
	require.NoError(t, err)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	require.Equal(t, ups, downs)
}
