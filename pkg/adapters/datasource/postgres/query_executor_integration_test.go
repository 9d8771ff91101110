//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-reports/pkg/testhelpers"
)

func newIntegrationExecutor(t *testing.T) *QueryExecutor {
	t.Helper()
	testDB := testhelpers.GetTestDB(t)

	cfg, err := FromMap(testDB.DatasourceConfig())
	require.NoError(t, err)
	exec, err := NewQueryExecutor(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })
	return exec
}

func TestQueryExecutor_Integration_ColumnsAndValues(t *testing.T) {
	exec := newIntegrationExecutor(t)
	ctx := context.Background()

	require.NoError(t, exec.TestConnection(ctx))

	rows, err := exec.Query(ctx,
		"SELECT id, customer, amount, note FROM orders WHERE tenant_id = $1 ORDER BY id LIMIT 1",
		[]any{testhelpers.TenantAcme})
	require.NoError(t, err)
	defer rows.Close()

	assert.Equal(t, []datasource.ColumnInfo{
		{Name: "id", Type: "INT4"},
		{Name: "customer", Type: "VARCHAR"},
		{Name: "amount", Type: "NUMERIC"},
		{Name: "note", Type: "TEXT"},
	}, rows.Columns())

	require.True(t, rows.Next())
	values, err := rows.Values()
	require.NoError(t, err)
	assert.Equal(t, []any{int32(1), "Customer 01", "10.50", "note 1"}, values)
	assert.False(t, rows.Next())
	require.NoError(t, rows.Err())
}

func TestQueryExecutor_Integration_CountAndPaginate(t *testing.T) {
	exec := newIntegrationExecutor(t)
	ctx := context.Background()

	n, err := exec.QueryCount(ctx, "SELECT COUNT(*) FROM (SELECT * FROM orders) AS baseq", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(testhelpers.SalesOrderCount), n)

	suffix, args := exec.Dialect().Paginate(20, 10)
	sql, err := exec.Dialect().PlaceholderFormat().ReplacePlaceholders("SELECT id FROM orders ORDER BY id " + suffix)
	require.NoError(t, err)

	rows, err := exec.Query(ctx, sql, args)
	require.NoError(t, err)
	defer rows.Close()

	count := 0
	for rows.Next() {
		count++
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, testhelpers.SalesOrderCount-20, count)
}

func TestQueryExecutor_Integration_WrongDatabaseFailsConnectionTest(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	m := testDB.DatasourceConfig()
	m["database"] = "does_not_exist"

	cfg, err := FromMap(m)
	require.NoError(t, err)
	exec, err := NewQueryExecutor(context.Background(), cfg)
	if err == nil {
		defer exec.Close()
		err = exec.TestConnection(context.Background())
	}
	assert.Error(t, err)
}
