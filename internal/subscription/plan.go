package subscription

import "time"

// Plan is a subscription tier a worker can hold.
type Plan struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int    `json:"price_cents"`
	DaysValid  int    `json:"duration_days"`
	DailyLimit int    `json:"daily_appointment_limit"`
	Trial      bool   `json:"is_trial"`
}

// Subscription binds a worker to a plan for a period.
type Subscription struct {
	WorkerID  string    `json:"worker_id"`
	Plan      Plan      `json:"plan"`
	Status    string    `json:"status"` // active, expired, cancelled
	ExpiresAt time.Time `json:"expires_at"`
}

// UsageStats reports today's quota consumption for a worker.
type UsageStats struct {
	PlanName       string `json:"plan_name"`
	DailyLimit     int    `json:"daily_limit"`
	UsedToday      int    `json:"today_usage"`
	RemainingToday int    `json:"remaining_today"`
}
