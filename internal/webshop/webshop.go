// Package webshop is a small order domain mapped with tablemap: articles,
// customers, orders and their lines.
package webshop

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syssam/tablemap"
	"github.com/syssam/tablemap/dialect"
)

// Status is the processing state of an order.
type Status int

// Order states.
const (
	StatusOpen Status = iota
	StatusPaid
	StatusShipped
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusPaid:
		return "paid"
	case StatusShipped:
		return "shipped"
	case StatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Article is a sellable item.
type Article struct {
	ID    int
	Code  uuid.UUID
	Name  string
	Price decimal.Decimal
	Tags  []string
	Image []byte
}

// Customer places orders.
type Customer struct {
	ID       int
	Name     string
	Email    *string
	Birthday *tablemap.Date
}

// Order is owned by a customer and owns its lines.
type Order struct {
	ID       int
	Placed   tablemap.Date
	Status   Status
	Customer *Customer
	Lines    []*OrderLine
}

// OrderLine is one article position of an order.
type OrderLine struct {
	ID       int
	Article  *Article
	Quantity int
	Note     *string
}

// Total returns the sum of the line prices.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		if l.Article != nil {
			total = total.Add(l.Article.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
	}
	return total
}

// Shop holds the factories of the domain.
type Shop struct {
	Registry  *tablemap.Registry
	Articles  *tablemap.Factory[Article]
	Customers *tablemap.Factory[Customer]
	Orders    *tablemap.Factory[Order]
	Lines     *tablemap.Factory[OrderLine]
}

// New declares the mappings of the domain and registers them in reg.
func New(reg *tablemap.Registry, conns dialect.ConnFactory, opts ...tablemap.Option) (*Shop, error) {
	s := &Shop{
		Registry:  reg,
		Articles:  tablemap.NewFactory[Article](conns, opts...),
		Customers: tablemap.NewFactory[Customer](conns, opts...),
		Orders:    tablemap.NewFactory[Order](conns, opts...),
		Lines:     tablemap.NewFactory[OrderLine](conns, opts...),
	}
	s.Articles.CreateMapping("articles").
		AddPrimaryKey(tablemap.Prop("ID", func(a *Article) *int { return &a.ID }), "id").
		AddField(tablemap.Prop("Code", func(a *Article) *uuid.UUID { return &a.Code }), "code", tablemap.TypeVarChar).
		AddField(tablemap.Prop("Name", func(a *Article) *string { return &a.Name }), "name", tablemap.TypeVarChar).
		AddField(tablemap.Prop("Price", func(a *Article) *decimal.Decimal { return &a.Price }), "price").
		AddField(tablemap.Encoded("Tags", func(a *Article) *[]string { return &a.Tags }), "tags").
		AddField(tablemap.Prop("Image", func(a *Article) *[]byte { return &a.Image }), "image")

	// Default table and column names: "customers", "id", "name", "email".
	s.Customers.CreateMapping("").
		AddPrimaryKey(tablemap.Prop("ID", func(c *Customer) *int { return &c.ID }), "").
		AddField(tablemap.Prop("Name", func(c *Customer) *string { return &c.Name }), "").
		AddField(tablemap.Prop("Email", func(c *Customer) **string { return &c.Email }), "").
		AddField(tablemap.Prop("Birthday", func(c *Customer) **tablemap.Date { return &c.Birthday }), "")

	s.Orders.CreateMapping("orders").
		AddPrimaryKey(tablemap.Prop("ID", func(o *Order) *int { return &o.ID }), "id").
		AddField(tablemap.Prop("Placed", func(o *Order) *tablemap.Date { return &o.Placed }), "placed").
		AddField(tablemap.Prop("Status", func(o *Order) *Status { return &o.Status }), "status").
		AddForeignKey(tablemap.Ref("Customer", func(o *Order) **Customer { return &o.Customer }), "customers", "customer_id").
		AddForeignKey(tablemap.Refs("Lines", func(o *Order) *[]*OrderLine { return &o.Lines }), "order_lines", "order_id")

	s.Lines.CreateMapping("order_lines").
		AddPrimaryKey(tablemap.Prop("ID", func(l *OrderLine) *int { return &l.ID }), "id").
		AddForeignKey(tablemap.Ref("Article", func(l *OrderLine) **Article { return &l.Article }), "articles", "article_id").
		AddForeignKey(tablemap.BackRef("Order", func(o *Order) *[]*OrderLine { return &o.Lines }), "orders", "order_id").
		AddField(tablemap.Prop("Quantity", func(l *OrderLine) *int { return &l.Quantity }), "quantity").
		AddField(tablemap.Prop("Note", func(l *OrderLine) **string { return &l.Note }), "note", tablemap.TypeText)

	for _, f := range []tablemap.EntityFactory{s.Articles, s.Customers, s.Orders, s.Lines} {
		if err := reg.Register(f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Schema returns the DDL of the domain tables for the given dialect.
func Schema(name string) []string {
	autoIncrement := "INTEGER PRIMARY KEY AUTOINCREMENT"
	blob := "BLOB"
	switch name {
	case dialect.MySQL:
		autoIncrement = "INT AUTO_INCREMENT PRIMARY KEY"
	case dialect.Postgres:
		autoIncrement = "SERIAL PRIMARY KEY"
		blob = "BYTEA"
	}
	stmts := []string{
		`CREATE TABLE articles (id {pk}, code VARCHAR(36) NOT NULL, name VARCHAR(200) NOT NULL, price DECIMAL(10,2) NOT NULL, tags {blob}, image {blob})`,
		`CREATE TABLE customers (id {pk}, name VARCHAR(200) NOT NULL, email VARCHAR(200), birthday DATE)`,
		`CREATE TABLE orders (id {pk}, placed DATE NOT NULL, status INTEGER NOT NULL, customer_id INTEGER REFERENCES customers(id))`,
		`CREATE TABLE order_lines (id {pk}, article_id INTEGER REFERENCES articles(id), order_id INTEGER REFERENCES orders(id), quantity INTEGER NOT NULL, note TEXT)`,
	}
	r := strings.NewReplacer("{pk}", autoIncrement, "{blob}", blob)
	for i, s := range stmts {
		stmts[i] = r.Replace(s)
	}
	return stmts
}

// Migrate creates the domain tables on one connection of conns.
func Migrate(ctx context.Context, conns dialect.ConnFactory) (rerr error) {
	conn, err := conns(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil && rerr == nil {
			rerr = err
		}
	}()
	for _, stmt := range Schema(conn.Dialect()) {
		if err := conn.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("webshop: migrate: %w", err)
		}
	}
	return nil
}
