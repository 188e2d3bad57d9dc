package containers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "testsqlite_filters_equals_null", sanitizeName("TestSQLite/Filters/equals null"))
	long := sanitizeName(strings.Repeat("a", 80))
	assert.Len(t, long, 40)
}

func TestIsValidDatabaseName(t *testing.T) {
	assert.True(t, isValidDatabaseName("test_abc_123"))
	assert.False(t, isValidDatabaseName(""))
	assert.False(t, isValidDatabaseName("bad-name"))
	assert.False(t, isValidDatabaseName("Upper"))
	assert.False(t, isValidDatabaseName(strings.Repeat("a", 64)))
}

func TestDatabaseName(t *testing.T) {
	name := databaseName(t)
	assert.True(t, strings.HasPrefix(name, "test_testdatabasename_"))
	assert.True(t, isValidDatabaseName(name))
}
