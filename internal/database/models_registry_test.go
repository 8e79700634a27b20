package database

import (
	"testing"

	"bsuchat/internal/testutil"

	"github.com/stretchr/testify/assert"
)

func TestPersistentModels_Migrate(t *testing.T) {
	db := testutil.NewSQLiteDB(t, PersistentModels()...)

	assert.True(t, db.Migrator().HasTable("users"))
	assert.True(t, db.Migrator().HasTable("settings"))
}
