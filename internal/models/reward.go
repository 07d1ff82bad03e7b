package models

// Reward is a catalog entry citizens can redeem points for.
type Reward struct {
	ID             string `json:"id" db:"id"`
	Name           string `json:"name" db:"name"`
	ImageURL       string `json:"image_url" db:"image_url"`
	PointsRequired int    `json:"points_required" db:"points_required"`
	Stock          int    `json:"stock" db:"stock"`
	CreatedAt      int64  `json:"created_at" db:"created_at"`
}
