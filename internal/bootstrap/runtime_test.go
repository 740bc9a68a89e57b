package bootstrap

import (
	"testing"

	"bookswap/internal/config"
	"bookswap/internal/models"
	"bookswap/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDevRootAdmin(t *testing.T) {
	t.Run("skipped outside development", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		cfg := &config.Config{Env: "production", DevBootstrapRoot: true, DevRootPassword: "x"}
		require.NoError(t, ensureDevRootAdmin(cfg, db))

		var n int64
		require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
		assert.Zero(t, n)
	})

	t.Run("requires a password", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		cfg := &config.Config{Env: "development", DevBootstrapRoot: true}
		assert.Error(t, ensureDevRootAdmin(cfg, db))
	})

	t.Run("creates root admin", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		cfg := &config.Config{Env: "development", DevBootstrapRoot: true, DevRootPassword: "R00t!pass"}
		require.NoError(t, ensureDevRootAdmin(cfg, db))

		var root models.User
		require.NoError(t, db.Where("email = ?", defaultRootEmail).First(&root).Error)
		assert.True(t, root.IsAdmin())
	})

	t.Run("promotes existing account", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		u := testutil.CreateUser(t, db, "Ops Person")
		cfg := &config.Config{
			Env:              "development",
			DevBootstrapRoot: true,
			DevRootEmail:     u.Email,
			DevRootPassword:  "R00t!pass",
		}
		require.NoError(t, ensureDevRootAdmin(cfg, db))

		var got models.User
		require.NoError(t, db.First(&got, u.ID).Error)
		assert.Equal(t, models.UserRoleAdmin, got.Role)
		assert.Equal(t, u.Password, got.Password)
	})
}

func TestSeedIfEmpty(t *testing.T) {
	db := testutil.NewTestDB(t)
	owner := testutil.CreateUser(t, db, "Existing Owner")
	testutil.CreateBook(t, db, owner.ID, "Already Here")

	require.NoError(t, seedIfEmpty(db))

	var books int64
	require.NoError(t, db.Model(&models.Book{}).Count(&books).Error)
	assert.EqualValues(t, 1, books)
}
