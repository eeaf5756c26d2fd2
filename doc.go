// Package tablemap maps Go entity types onto relational tables.
//
// A mapping is an ordered list of column bindings declared once per entity
// type. Plain columns are bound with Prop or Encoded accessors; relations
// with Ref (the entity stores the key of one other entity), Refs (the
// entity owns a collection whose members point back at it) and BackRef
// (the member side of Refs):
//
//	orders := tablemap.NewFactory[Order](drv.Acquire)
//	orders.CreateMapping("orders").
//		AddPrimaryKey(tablemap.Prop("ID", func(o *Order) *int { return &o.ID }), "id").
//		AddField(tablemap.Prop("Status", func(o *Order) *Status { return &o.Status }), "status").
//		AddForeignKey(tablemap.Ref("Customer", func(o *Order) **Customer { return &o.Customer }), "customers", "customer_id").
//		AddForeignKey(tablemap.Refs("Lines", func(o *Order) *[]*OrderLine { return &o.Lines }), "order_lines", "order_id")
//
// Factories are registered in a Registry, through which relations find the
// factory of the entity on the other side:
//
//	reg := tablemap.NewRegistry("shop")
//	reg.MustRegister(articles, customers, orders, lines)
//
// Create, Update and Delete cascade into owned collections: members that
// are not stored yet are inserted with the owner's key, members removed
// from the collection are deleted on Update, and all members are deleted
// before their owner. Referenced entities (Ref) are never written by the
// referencing entity.
//
// Every operation acquires its own connection from the dialect.ConnFactory
// the factory was created with and releases it before returning. No
// transaction spans a cascade.
package tablemap
