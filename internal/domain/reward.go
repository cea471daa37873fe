package domain

import "time"

// Reward is a catalog item. A nil Stock means unlimited.
type Reward struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Cost        int64     `db:"cost" json:"cost"`
	Stock       *int64    `db:"stock" json:"stock"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// InStock reports whether at least one unit can be sold.
func (r *Reward) InStock() bool {
	return r.Stock == nil || *r.Stock > 0
}

func (r *Reward) Clone() *Reward {
	c := *r
	if r.Stock != nil {
		s := *r.Stock
		c.Stock = &s
	}
	return &c
}

type Purchase struct {
	ID        string    `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	RewardID  int64     `db:"reward_id" json:"reward_id"`
	Cost      int64     `db:"cost" json:"cost"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Receipt is returned to the buyer after a successful purchase.
type Receipt struct {
	PurchaseID string    `json:"purchase_id"`
	RewardID   int64     `json:"reward_id"`
	RewardName string    `json:"reward_name"`
	Cost       int64     `json:"cost"`
	Balance    int64     `json:"balance"`
	StockLeft  *int64    `json:"stock_left"`
	NewBadges  []string  `json:"new_achievements,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
