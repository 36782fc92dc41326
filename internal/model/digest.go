package model

import "time"

// AlertDigest is the daily snapshot of dashboard alerts kept by the
// scheduler.
type AlertDigest struct {
	Date           time.Time    `json:"date" bson:"date"`
	GeneratedAt    time.Time    `json:"generated_at" bson:"generated_at"`
	InventoryValue string       `json:"inventory_value" bson:"inventory_value"`
	ActiveOrders   int64        `json:"active_orders" bson:"active_orders"`
	LowStock       []DigestItem `json:"low_stock" bson:"low_stock"`
	Expiring       []DigestItem `json:"expiring" bson:"expiring"`
	TrapAlerts     []DigestItem `json:"trap_alerts" bson:"trap_alerts"`
}

type DigestItem struct {
	Key   string `json:"key" bson:"key"`
	Label string `json:"label,omitempty" bson:"label,omitempty"`
	Value string `json:"value" bson:"value"`
}

// Empty reports whether nothing needs attention.
func (d *AlertDigest) Empty() bool {
	return len(d.LowStock) == 0 && len(d.Expiring) == 0 && len(d.TrapAlerts) == 0
}
