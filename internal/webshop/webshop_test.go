package webshop

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/syssam/tablemap/dialect"
)

func TestSchema(t *testing.T) {
	lite := Schema(dialect.SQLite)
	assert.Len(t, lite, 4)
	assert.Contains(t, lite[0], "id INTEGER PRIMARY KEY AUTOINCREMENT")
	assert.Contains(t, lite[0], "tags BLOB")

	my := Schema(dialect.MySQL)
	assert.Contains(t, my[3], "id INT AUTO_INCREMENT PRIMARY KEY")

	pg := Schema(dialect.Postgres)
	assert.Contains(t, pg[2], "id SERIAL PRIMARY KEY")
	assert.Contains(t, pg[0], "image BYTEA")
	for _, stmt := range pg {
		assert.NotContains(t, stmt, "{")
	}
}

func TestOrderTotal(t *testing.T) {
	cup := &Article{Price: decimal.RequireFromString("2.50")}
	pot := &Article{Price: decimal.RequireFromString("19.99")}
	o := &Order{Lines: []*OrderLine{
		{Article: cup, Quantity: 4},
		{Article: pot, Quantity: 1},
		{Quantity: 3},
	}}
	assert.Equal(t, "29.99", o.Total().String())
	assert.True(t, (&Order{}).Total().IsZero())
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "open", StatusOpen.String())
	assert.Equal(t, "cancelled", StatusCancelled.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}
