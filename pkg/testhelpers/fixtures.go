package testhelpers

import (
	"fmt"
	"strings"
)

// Sales fixture shape. Orders 1-15 belong to TenantAcme, 16-25 to TenantGlobex.
const (
	TenantAcme   = "acme"
	TenantGlobex = "globex"

	SalesOrderCount  = 25
	AcmeOrderCount   = 15
	GlobexOrderCount = 10
)

// Notes carrying LIKE metacharacters, on orders 3 and 7.
const (
	NotePercent    = "50% off"
	NoteUnderscore = "under_score"
)

var salesRegions = []string{"north", "south", "west"}

// SalesOrder is one fixture row.
type SalesOrder struct {
	ID       int
	TenantID string
	Customer string
	Region   string
	Amount   float64
	Note     string
}

// SalesOrders returns the fixture rows in id order.
func SalesOrders() []SalesOrder {
	orders := make([]SalesOrder, 0, SalesOrderCount)
	for i := 1; i <= SalesOrderCount; i++ {
		tenant := TenantAcme
		if i > AcmeOrderCount {
			tenant = TenantGlobex
		}
		note := fmt.Sprintf("note %d", i)
		switch i {
		case 3:
			note = NotePercent
		case 7:
			note = NoteUnderscore
		}
		orders = append(orders, SalesOrder{
			ID:       i,
			TenantID: tenant,
			Customer: fmt.Sprintf("Customer %02d", i),
			Region:   salesRegions[i%len(salesRegions)],
			Amount:   float64(i*10) + 0.5,
			Note:     note,
		})
	}
	return orders
}

// SalesFixtureStatements creates and fills the orders table. amountType is the
// declared type of the amount column, which differs per engine.
func SalesFixtureStatements(amountType string) []string {
	stmts := []string{
		`DROP TABLE IF EXISTS orders`,
		`CREATE TABLE orders (
			id        INTEGER PRIMARY KEY,
			tenant_id VARCHAR(32) NOT NULL,
			customer  VARCHAR(64) NOT NULL,
			region    VARCHAR(16) NOT NULL,
			amount    ` + amountType + ` NOT NULL,
			note      TEXT
		)`,
	}

	values := make([]string, 0, SalesOrderCount)
	for _, o := range SalesOrders() {
		values = append(values, fmt.Sprintf("(%d, '%s', '%s', '%s', %.2f, '%s')",
			o.ID, o.TenantID, o.Customer, o.Region, o.Amount, strings.ReplaceAll(o.Note, "'", "''")))
	}
	stmts = append(stmts,
		`INSERT INTO orders (id, tenant_id, customer, region, amount, note) VALUES `+strings.Join(values, ",\n"))
	return stmts
}
