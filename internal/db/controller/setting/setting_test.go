package setting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/go-admin-template/go-admin-template/internal/db/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	err = db.AutoMigrate(&models.Setting{})
	require.NoError(t, err, "failed to migrate test database")

	return db
}

func TestGet(t *testing.T) {
	db := setupTestDB(t)

	testCases := []struct {
		name          string
		dbParam       *gorm.DB
		settingName   string
		expectedError error
	}{
		{
			name:          "nil database",
			dbParam:       nil,
			settingName:   "theme",
			expectedError: ErrDBNil,
		},
		{
			name:          "empty name",
			dbParam:       db,
			settingName:   "",
			expectedError: ErrSettingNameEmpty,
		},
		{
			name:          "missing setting",
			dbParam:       db,
			settingName:   "missing",
			expectedError: ErrSettingNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Get(tc.dbParam, tc.settingName)
			assert.ErrorIs(t, err, tc.expectedError)
		})
	}

	_, err := Create(db, "theme", []byte(`{"mode":"dark"}`))
	require.NoError(t, err)

	setting, err := Get(db, "theme")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"mode":"dark"}`), setting.Value)
}

func TestGetAll(t *testing.T) {
	db := setupTestDB(t)

	settings, err := GetAll(db)
	require.NoError(t, err)
	assert.Empty(t, settings)

	_, err = Create(db, "zebra", []byte(`1`))
	require.NoError(t, err)
	_, err = Create(db, "alpha", []byte(`2`))
	require.NoError(t, err)

	settings, err = GetAll(db)
	require.NoError(t, err)
	require.Len(t, settings, 2)
	assert.Equal(t, "alpha", settings[0].Name, "sorted by name")
}

func TestCreateDuplicate(t *testing.T) {
	db := setupTestDB(t)

	_, err := Create(db, "theme", []byte(`{}`))
	require.NoError(t, err)

	_, err = Create(db, "theme", []byte(`{}`))
	assert.ErrorIs(t, err, ErrSettingAlreadyExists)
}

func TestSet(t *testing.T) {
	db := setupTestDB(t)

	// Creates when missing
	setting, err := Set(db, "theme", []byte(`{"mode":"light"}`))
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"mode":"light"}`), setting.Value)

	// Updates in place when present
	setting, err = Set(db, "theme", []byte(`{"mode":"dark"}`))
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"mode":"dark"}`), setting.Value)

	settings, err := GetAll(db)
	require.NoError(t, err)
	assert.Len(t, settings, 1)
}

func TestDeleteByName(t *testing.T) {
	db := setupTestDB(t)

	err := DeleteByName(db, "missing")
	assert.ErrorIs(t, err, ErrSettingNotFound)

	_, err = Create(db, "theme", []byte(`{}`))
	require.NoError(t, err)

	require.NoError(t, DeleteByName(db, "theme"))

	_, err = Get(db, "theme")
	assert.ErrorIs(t, err, ErrSettingNotFound)
}
