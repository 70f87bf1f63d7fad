package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumastudio/dataplane/v1/dataerr"
)

func TestDefaultRegistry(t *testing.T) {
	r, err := NewDefaultRegistry()
	require.NoError(t, err)

	assert.Len(t, r.Tables(), 13)

	photos, err := r.Metadata(TablePhotos)
	require.NoError(t, err)
	assert.Equal(t, "id", photos.PrimaryKey)
	assert.Equal(t, KeyGeneratedUUID, photos.KeyKind)
	assert.True(t, photos.IsJSON("tags"))
	assert.False(t, photos.IsJSON("title"))

	audit, err := r.Metadata(TableAuditLog)
	require.NoError(t, err)
	assert.Equal(t, KeyNone, audit.KeyKind)
	assert.Empty(t, audit.PrimaryKey)

	blackout, err := r.Metadata(TableBlackoutDates)
	require.NoError(t, err)
	assert.Equal(t, KeyNaturalString, blackout.KeyKind)
}

func TestMetadataUnknownTable(t *testing.T) {
	r := MustDefaultRegistry()

	_, err := r.Metadata("secrets")
	require.Error(t, err)
	assert.ErrorIs(t, err, dataerr.ErrUnknownTable)
	assert.True(t, dataerr.HasCode(err, dataerr.CodeUnknownTable))
}

func TestColumnAllowList(t *testing.T) {
	r := MustDefaultRegistry()

	assert.True(t, r.IsColumnAllowed(TableBookings, "booking_date"))
	assert.False(t, r.IsColumnAllowed(TableBookings, "password"))
	assert.False(t, r.IsColumnAllowed("secrets", "id"))

	require.NoError(t, r.AssertColumnAllowed(TablePhotos, "like_count"))

	err := r.AssertColumnAllowed(TablePhotos, "like_count; DROP TABLE photos")
	assert.ErrorIs(t, err, dataerr.ErrColumnNotAllowed)

	err = r.AssertColumnAllowed("nope", "id")
	assert.ErrorIs(t, err, dataerr.ErrUnknownTable)
}

func TestValidIdentifier(t *testing.T) {
	valid := []string{"id", "_x", "booking_date", "A1"}
	invalid := []string{"", "1abc", "a-b", "a.b", "a b", "`id`", "id;"}

	for _, v := range valid {
		assert.True(t, ValidIdentifier(v), v)
	}
	for _, v := range invalid {
		assert.False(t, ValidIdentifier(v), v)
	}
}

func TestNewRegistryRejectsBadMetadata(t *testing.T) {
	_, err := NewRegistry([]Table{{Name: "bad-name", Columns: []string{"id"}, KeyKind: KeyNone}}, nil)
	assert.Error(t, err)

	_, err = NewRegistry([]Table{{Name: "t", Columns: []string{"id"}, PrimaryKey: "missing", KeyKind: KeyAutoIncrement}}, nil)
	assert.Error(t, err)

	_, err = NewRegistry([]Table{{Name: "t", Columns: []string{"id"}, JSONColumns: []string{"x"}, KeyKind: KeyNone}}, nil)
	assert.Error(t, err)

	_, err = NewRegistry(DefaultTables(), []DerivedCounter{{CounterTable: TableTags, KeyColumn: "name", CounterColumn: "usage_count", SourceTable: TablePhotos, SourceKey: "id", SourceColumn: "title"}})
	assert.Error(t, err)
}

func TestCountersAffectedBy(t *testing.T) {
	r := MustDefaultRegistry()

	assert.Equal(t, []DerivedCounter{TagUsage}, r.CountersAffectedBy(TablePhotos))
	assert.Equal(t, []DerivedCounter{TagUsage}, r.CountersAffectedBy(TableTags))
	assert.Empty(t, r.CountersAffectedBy(TableBookings))
}
