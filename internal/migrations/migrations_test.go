package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	sub, err := Files()
	require.NoError(t, err)

	entries, err := fs.ReadDir(sub, ".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestSchemaEnforcesSameLenderUniqueness(t *testing.T) {
	sub, err := Files()
	require.NoError(t, err)

	body, err := fs.ReadFile(sub, "000001_init.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "ON invoices (lender_id, invoice_id)")
	assert.Contains(t, string(body), "PRIMARY KEY (lender_id, key)")
}

func TestUpRequiresPool(t *testing.T) {
	assert.Error(t, Up(nil))
}
