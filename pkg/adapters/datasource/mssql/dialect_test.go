package mssql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect(t *testing.T) {
	d := Dialect{}

	assert.Equal(t, "mssql", d.Name())
	assert.Equal(t, "[customer]", d.QuoteIdentifier("customer"))
	assert.Equal(t, "[odd]]name]", d.QuoteIdentifier("odd]name"))

	clause, args := d.Paginate(30, 10)
	assert.Equal(t, "OFFSET ? ROWS FETCH NEXT ? ROWS ONLY", clause)
	assert.Equal(t, []any{int64(30), int64(10)}, args)

	assert.Equal(t, "SELECT TOP (1) * FROM (SELECT 1 AS x) AS probe", d.LimitOne("SELECT 1 AS x"))
}

func TestDialect_PlaceholderFormat(t *testing.T) {
	sql, err := Dialect{}.PlaceholderFormat().ReplacePlaceholders("SELECT a FROM t WHERE a = ? AND b LIKE ?")
	require.NoError(t, err)
	assert.Equal(t, "SELECT a FROM t WHERE a = @p1 AND b LIKE @p2", sql)
}

func TestDialect_IsTextTypeAfterMapping(t *testing.T) {
	for _, native := range []string{"NVARCHAR", "VARCHAR", "NCHAR", "NTEXT", "VARBINARY", "IMAGE"} {
		assert.True(t, Dialect{}.IsTextType(mapSQLServerType(native)), native)
	}
	for _, native := range []string{"INT", "DECIMAL", "DATETIME2", "BIT", "UNIQUEIDENTIFIER", "XML"} {
		assert.False(t, Dialect{}.IsTextType(mapSQLServerType(native)), native)
	}
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "12.50", normalizeValue("NUMERIC", []byte("12.50")))
	assert.Equal(t, "abc", normalizeValue("VARCHAR", []byte("abc")))
	assert.Equal(t, []byte{0x01}, normalizeValue("BYTEA", []byte{0x01}))
	assert.Equal(t, int64(5), normalizeValue("BIGINT", int64(5)))

	// SQL Server stores the first three groups little-endian
	raw := []byte{0x10, 0xb8, 0xa7, 0x6b, 0xad, 0x9d, 0xd1, 0x11, 0x80, 0xb4, 0x00, 0xc0, 0x4f, 0xd4, 0x30, 0xc8}
	assert.Equal(t, "6BA7B810-9DAD-11D1-80B4-00C04FD430C8", normalizeValue("UUID", raw))
}

func TestDialect_LikeOperandConvertsBinary(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, "CONVERT(VARCHAR(MAX), [payload], 2)", d.LikeOperand("[payload]", mapSQLServerType("VARBINARY")))
	assert.Equal(t, "CONVERT(VARCHAR(MAX), [scan], 2)", d.LikeOperand("[scan]", mapSQLServerType("IMAGE")))
	assert.Equal(t, "[name]", d.LikeOperand("[name]", mapSQLServerType("NVARCHAR")))
}
