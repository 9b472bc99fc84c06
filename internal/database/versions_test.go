package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersions(t *testing.T) {
	got, err := Versions()
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, got)
}

func TestMigrations_HaveDownFiles(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, up := range names {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(migrationsFS, down)
		assert.NoError(t, err, "%s has no rollback", up)
	}
}

func TestStatusOf(t *testing.T) {
	known := []uint{1, 2, 5}

	tests := []struct {
		name    string
		current uint
		dirty   bool
		want    Status
	}{
		{"empty database", 0, false, Status{Current: 0, Latest: 5, Pending: []uint{1, 2, 5}}},
		{"partially migrated", 2, false, Status{Current: 2, Latest: 5, Pending: []uint{5}}},
		{"up to date", 5, false, Status{Current: 5, Latest: 5, Pending: []uint{}}},
		{"dirty keeps pending", 2, true, Status{Current: 2, Latest: 5, Dirty: true, Pending: []uint{5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(known, tt.current, tt.dirty))
		})
	}

	assert.Equal(t, Status{Pending: []uint{}}, statusOf(nil, 0, false))
}

func TestBetween(t *testing.T) {
	known := []uint{1, 2, 3}
	assert.Equal(t, []uint{2, 3}, between(known, 1, 3))
	assert.Equal(t, []uint{}, between(known, 3, 3))
	assert.Equal(t, []uint{1}, between(known, 0, 1))
}
