package models

// Notification types, also used as websocket message types and FCM data "type".
const (
	NotificationTaskAssigned   = "task_assigned"
	NotificationTaskAccepted   = "task_accepted"
	NotificationPickupVerified = "pickup_verified"
	NotificationPickupRejected = "pickup_rejected"
	NotificationTaskSettled    = "task_settled"
	NotificationOrderAssigned  = "order_assigned"
	NotificationOrderOTP       = "order_otp"
	NotificationOrderCancelled = "order_cancelled"
	NotificationOrderCompleted = "order_completed"
	NotificationReportRewarded = "report_rewarded"
	NotificationRewardRedeemed = "reward_redeemed"
	NotificationOrderPickedUp  = "order_picked_up"
	NotificationOrderDelivered = "order_delivered"
)

type Notification struct {
	ID        string  `json:"id" db:"id"`
	UserID    string  `json:"user_id" db:"user_id"`
	Type      string  `json:"type" db:"type"`
	Title     string  `json:"title" db:"title"`
	Body      string  `json:"body" db:"body"`
	Data      Payload `json:"data" db:"data"`
	Read      bool    `json:"read" db:"read"`
	CreatedAt int64   `json:"created_at" db:"created_at"`
}

// FCMToken represents a Firebase Cloud Messaging token for a user
type FCMToken struct {
	ID         int    `json:"id" db:"id"`
	UserID     string `json:"user_id" db:"user_id"`
	Token      string `json:"token" db:"token"`
	DeviceType string `json:"device_type" db:"device_type"` // "ios", "android" or "web"
	CreatedAt  int64  `json:"created_at" db:"created_at"`
	UpdatedAt  int64  `json:"updated_at" db:"updated_at"`
}
