package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect(t *testing.T) {
	d := Dialect{}

	assert.Equal(t, "postgres", d.Name())
	assert.Equal(t, `"customer"`, d.QuoteIdentifier("customer"))
	assert.Equal(t, `"odd""name"`, d.QuoteIdentifier(`odd"name`))

	clause, args := d.Paginate(30, 10)
	assert.Equal(t, "LIMIT ? OFFSET ?", clause)
	assert.Equal(t, []any{int64(10), int64(30)}, args)

	assert.Equal(t, "SELECT * FROM (SELECT 1) AS probe LIMIT 1", d.LimitOne("SELECT 1"))
}

func TestDialect_PlaceholderFormat(t *testing.T) {
	sql, err := Dialect{}.PlaceholderFormat().ReplacePlaceholders("SELECT '??' FROM t WHERE a = ? AND b = ?")
	require.NoError(t, err)
	assert.Equal(t, "SELECT '?' FROM t WHERE a = $1 AND b = $2", sql)
}

func TestDialect_IsTextType(t *testing.T) {
	for _, typ := range []string{"TEXT", "VARCHAR", "BPCHAR", "NAME", "BYTEA"} {
		assert.True(t, Dialect{}.IsTextType(typ), typ)
	}
	for _, typ := range []string{"INT4", "NUMERIC", "DATE", "UUID", "JSONB", "TEXT[]", "UNKNOWN"} {
		assert.False(t, Dialect{}.IsTextType(typ), typ)
	}
}

func TestNormalizeValue(t *testing.T) {
	id := [16]byte{0x6b, 0xa7, 0xb8, 0x10, 0x9d, 0xad, 0x11, 0xd1, 0x80, 0xb4, 0x00, 0xc0, 0x4f, 0xd4, 0x30, 0xc8}
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", normalizeValue(id))
	assert.Equal(t, "x", normalizeValue("x"))
	assert.Nil(t, normalizeValue(nil))
}

func TestPgTypeNameFromOID(t *testing.T) {
	assert.Equal(t, "TEXT", pgTypeNameFromOID(25))
	assert.Equal(t, "NUMERIC", pgTypeNameFromOID(1700))
	assert.Equal(t, "UNKNOWN", pgTypeNameFromOID(999999))
}
