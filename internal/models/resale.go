package models

type DeviceCondition string

const (
	ConditionGood    DeviceCondition = "good"
	ConditionFair    DeviceCondition = "fair"
	ConditionPoor    DeviceCondition = "poor"
	ConditionUnknown DeviceCondition = "unknown"
)

type ListingStatus string

const (
	ListingAvailable ListingStatus = "available"
	ListingReserved  ListingStatus = "reserved"
	ListingSold      ListingStatus = "sold"
)

// Listing is a verified device offered for resale by a citizen.
type Listing struct {
	ID            string          `json:"id" db:"id"`
	SellerID      string          `json:"seller_id" db:"seller_id"`
	ReportID      *string         `json:"report_id,omitempty" db:"report_id"`
	Model         string          `json:"model" db:"model"`
	PurchaseYear  int             `json:"purchase_year" db:"purchase_year"`
	Condition     DeviceCondition `json:"condition" db:"condition"`
	Price         float64         `json:"price" db:"price"`
	PickupAddress string          `json:"pickup_address" db:"pickup_address"`
	Status        ListingStatus   `json:"status" db:"status"`
	CreatedAt     int64           `json:"created_at" db:"created_at"`
	UpdatedAt     int64           `json:"updated_at" db:"updated_at"`
}

type OrderStatus string

const (
	OrderAssigned  OrderStatus = "assigned"
	OrderPickedUp  OrderStatus = "picked_up"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// Open reports whether the order still holds its volunteer.
func (s OrderStatus) Open() bool {
	return s == OrderAssigned || s == OrderPickedUp
}

// Order tracks the volunteer-run handoff of a listing from seller to buyer. OTP gates
// the pickup from the seller, OTP2 the delivery to the buyer. OTPFailures counts wrong
// codes across both.
type Order struct {
	ID                 string      `json:"id" db:"id"`
	ListingID          string      `json:"listing_id" db:"listing_id"`
	FirstUser          string      `json:"first_user" db:"first_user"` // Seller
	EndUserID          string      `json:"end_user_id" db:"end_user_id"`
	VolunteerID        string      `json:"volunteer_id" db:"volunteer_id"`
	AgencyID           string      `json:"agency_id" db:"agency_id"`
	PickupAddress      string      `json:"pickup_address" db:"pickup_address"`
	DestinationAddress string      `json:"destination_address" db:"destination_address"`
	Price              float64     `json:"price" db:"price"`
	Status             OrderStatus `json:"status" db:"status"`
	OTP                string      `json:"-" db:"otp"`
	OTP2               string      `json:"-" db:"otp2"`
	OTPFailures        int         `json:"otp_failures" db:"otp_failures"`
	DeviceOK           *bool       `json:"device_ok" db:"device_ok"`
	DeliveredAt        *int64      `json:"delivered_at" db:"delivered_at"`
	CreatedAt          int64       `json:"created_at" db:"created_at"`
	UpdatedAt          int64       `json:"updated_at" db:"updated_at"`
}

// CreateListingRequest is the body of POST /api/listings.
type CreateListingRequest struct {
	ReportID      *string         `json:"report_id,omitempty"`
	Model         string          `json:"model"`
	PurchaseYear  int             `json:"purchase_year"`
	Condition     DeviceCondition `json:"condition"`
	PickupAddress string          `json:"pickup_address"`
}

// CreateOrderRequest is the body of POST /api/listings/{id}/order.
type CreateOrderRequest struct {
	DestinationAddress string `json:"destination_address"`
}

// OTPRequest is the body of the pickup and delivery verification endpoints.
type OTPRequest struct {
	OTP string `json:"otp"`
}

// DeviceCheckRequest is the body of POST /api/orders/{id}/device-check.
type DeviceCheckRequest struct {
	OK bool `json:"ok"`
}
