package migration

import (
	"testing"
	"time"

	"git.handmade.network/hmn/postmerge/src/migration/migrations"
	"git.handmade.network/hmn/postmerge/src/migration/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func version(day int) types.MigrationVersion {
	return types.MigrationVersion(time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC))
}

func TestMigrationPlan(t *testing.T) {
	all := []types.MigrationVersion{version(1), version(2), version(3)}

	t.Run("fresh database", func(t *testing.T) {
		plan, rollback, err := migrationPlan(all, types.MigrationVersion{}, version(3))
		require.NoError(t, err)
		assert.False(t, rollback)
		assert.Equal(t, all, plan)
	})
	t.Run("forward", func(t *testing.T) {
		plan, rollback, err := migrationPlan(all, version(1), version(3))
		require.NoError(t, err)
		assert.False(t, rollback)
		assert.Equal(t, []types.MigrationVersion{version(2), version(3)}, plan)
	})
	t.Run("rollback", func(t *testing.T) {
		plan, rollback, err := migrationPlan(all, version(3), version(1))
		require.NoError(t, err)
		assert.True(t, rollback)
		assert.Equal(t, []types.MigrationVersion{version(3), version(2)}, plan)
	})
	t.Run("up to date", func(t *testing.T) {
		plan, _, err := migrationPlan(all, version(2), version(2))
		require.NoError(t, err)
		assert.Empty(t, plan)
	})
	t.Run("unknown target", func(t *testing.T) {
		_, _, err := migrationPlan(all, version(1), version(9))
		assert.Error(t, err)
	})
	t.Run("unknown current", func(t *testing.T) {
		_, _, err := migrationPlan(all, version(9), version(3))
		assert.Error(t, err)
	})
}

func TestPreviousVersion(t *testing.T) {
	all := []types.MigrationVersion{version(1), version(2)}
	assert.Equal(t, version(1), previousVersion(all, version(2)))
	assert.True(t, previousVersion(all, version(1)).IsZero())
}

func TestRegisteredMigrations(t *testing.T) {
	versions := getSortedMigrationVersions()
	require.NotEmpty(t, versions)
	for i, v := range versions {
		m := migrations.All[v]
		assert.True(t, m.Version().Equal(v))
		assert.NotEmpty(t, m.Name())
		if i > 0 {
			assert.True(t, versions[i-1].Before(v))
		}
	}
	assert.Equal(t, versions[len(versions)-1], LatestVersion())
}
