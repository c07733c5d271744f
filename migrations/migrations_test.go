package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSPairsUpAndDown(t *testing.T) {
	ups, err := fs.Glob(FS, "*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(FS, "*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}

func TestAppointmentsSchemaRejectsOverlap(t *testing.T) {
	body, err := fs.ReadFile(FS, "000001_create_appointments.up.sql")
	require.NoError(t, err)

	schema := string(body)
	assert.Contains(t, schema, "btree_gist")
	assert.Contains(t, schema, "EXCLUDE USING gist")
	assert.Contains(t, schema, "'[)'")
}
