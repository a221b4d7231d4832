package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ensureID assigns a v4 id when the caller left it empty so inserts never
// depend on a database-side default.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (u *User) BeforeCreate(*gorm.DB) error            { ensureID(&u.ID); return nil }
func (v *Vendor) BeforeCreate(*gorm.DB) error          { ensureID(&v.ID); return nil }
func (o *Order) BeforeCreate(*gorm.DB) error           { ensureID(&o.ID); return nil }
func (i *OrderItem) BeforeCreate(*gorm.DB) error       { ensureID(&i.ID); return nil }
func (p *ProductPurchase) BeforeCreate(*gorm.DB) error { ensureID(&p.ID); return nil }
func (d *Demand) BeforeCreate(*gorm.DB) error          { ensureID(&d.ID); return nil }
func (n *Notification) BeforeCreate(*gorm.DB) error    { ensureID(&n.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error     { ensureID(&e.ID); return nil }
func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error       { ensureID(&d.ID); return nil }

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	if p.Images == nil {
		p.Images = pq.StringArray{}
	}
	return nil
}
