package mssql

import (
	"strings"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
)

// quoteName mirrors SQL Server's QUOTENAME(): square brackets with ] escaped as ]].
func quoteName(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

// canonicalTypes maps SQL Server type names to the names shared by all
// adapters. Names missing here pass through upper-cased.
var canonicalTypes = map[string]string{
	"INT":              "INTEGER",
	"DECIMAL":          "NUMERIC",
	"SMALLMONEY":       "MONEY",
	"FLOAT":            "DOUBLE PRECISION",
	"NCHAR":            "CHAR",
	"NVARCHAR":         "VARCHAR",
	"NTEXT":            "TEXT",
	"BINARY":           "BYTEA",
	"VARBINARY":        "BYTEA",
	"IMAGE":            "BLOB",
	"DATETIME":         "TIMESTAMP",
	"DATETIME2":        "TIMESTAMP",
	"SMALLDATETIME":    "TIMESTAMP",
	"DATETIMEOFFSET":   "TIMESTAMP WITH TIME ZONE",
	"BIT":              "BOOLEAN",
	"UNIQUEIDENTIFIER": "UUID",
}

func mapSQLServerType(sqlServerType string) string {
	name := strings.ToUpper(sqlServerType)
	if canonical, ok := canonicalTypes[name]; ok {
		return canonical
	}
	return name
}

// normalizeValue converts go-mssqldb driver values into plain Go values.
// DECIMAL and MONEY arrive as their textual []byte form; UNIQUEIDENTIFIER
// arrives in SQL Server's mixed-endian byte order.
func normalizeValue(typeName string, v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	switch typeName {
	case "NUMERIC", "MONEY":
		return string(b)
	case "XML", "JSON":
		return string(b)
	case "UUID":
		var id mssql.UniqueIdentifier
		if err := id.Scan(b); err != nil {
			return v
		}
		return id.String()
	}
	return datasource.DefaultNormalizer(typeName, v)
}
