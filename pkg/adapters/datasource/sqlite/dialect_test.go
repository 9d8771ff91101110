package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect_PlaceholderFormatUnescapes(t *testing.T) {
	sql, err := Dialect{}.PlaceholderFormat().ReplacePlaceholders("SELECT 'a??' AS q FROM t WHERE x = ? AND y = ?")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 'a?' AS q FROM t WHERE x = ? AND y = ?", sql)
}

func TestDialect_QuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"name"`, Dialect{}.QuoteIdentifier("name"))
	assert.Equal(t, `"we""ird"`, Dialect{}.QuoteIdentifier(`we"ird`))
}

func TestDialect_IsTextType(t *testing.T) {
	for _, typ := range []string{"TEXT", "VARCHAR", "NCHAR", "CLOB", "BLOB", "character varying"} {
		assert.True(t, Dialect{}.IsTextType(typ), typ)
	}
	for _, typ := range []string{"INTEGER", "NUMERIC", "REAL", "DATETIME", "BOOLEAN", "POINT"} {
		assert.False(t, Dialect{}.IsTextType(typ), typ)
	}
}

func TestDialect_PaginateAndLimitOne(t *testing.T) {
	clause, args := Dialect{}.Paginate(20, 10)
	assert.Equal(t, "LIMIT ? OFFSET ?", clause)
	assert.Equal(t, []any{int64(10), int64(20)}, args)

	assert.Equal(t, "SELECT * FROM (SELECT 1) AS probe LIMIT 1", Dialect{}.LimitOne("SELECT 1"))
}

func TestFromMap(t *testing.T) {
	cfg, err := FromMap(map[string]any{"path": "/data/r.db", "busy_timeout_ms": float64(100), "read_only": false})
	require.NoError(t, err)
	assert.Equal(t, "/data/r.db", cfg.Path)
	assert.Equal(t, 100, cfg.BusyTimeoutMs)
	assert.False(t, cfg.ReadOnly)

	_, err = FromMap(map[string]any{})
	require.Error(t, err)
}

func TestBuildDSN(t *testing.T) {
	assert.Equal(t, "file:/r.db?_pragma=busy_timeout%285000%29&mode=ro", buildDSN(&Config{Path: "/r.db", ReadOnly: true, BusyTimeoutMs: 5000}))
	assert.Equal(t, ":memory:", buildDSN(&Config{Path: ":memory:", ReadOnly: true}))
}
