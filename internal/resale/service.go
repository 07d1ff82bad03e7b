package resale

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"ewaste-backend/internal/apperr"
	"ewaste-backend/internal/messaging"
	"ewaste-backend/internal/models"
	"ewaste-backend/internal/otp"
	"ewaste-backend/internal/store"

	"github.com/google/uuid"
)

const (
	otpDigits = 4
	// MaxOTPFailures wrong codes on one order cancel it.
	MaxOTPFailures = 5
)

type Service struct {
	store  store.Store
	otp    otp.Generator
	prices PriceTable
	now    func() time.Time
}

func NewService(s store.Store, gen otp.Generator, prices PriceTable) *Service {
	if prices == nil {
		prices = DefaultPriceTable
	}
	return &Service{store: s, otp: gen, prices: prices, now: time.Now}
}

// Quote prices a device without listing it.
func (s *Service) Quote(model string, purchaseYear int, condition models.DeviceCondition) (float64, error) {
	return s.prices.Price(model, purchaseYear, NormalizeCondition(condition), s.now())
}

func (s *Service) CreateListing(ctx context.Context, sellerID string, req models.CreateListingRequest) (*models.Listing, error) {
	req.PickupAddress = strings.TrimSpace(req.PickupAddress)
	if req.PickupAddress == "" {
		return nil, apperr.Validation("pickup_address is required")
	}
	condition := NormalizeCondition(req.Condition)
	price, err := s.prices.Price(req.Model, req.PurchaseYear, condition, s.now())
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	listing := &models.Listing{
		ID:            uuid.New().String(),
		SellerID:      sellerID,
		ReportID:      req.ReportID,
		Model:         strings.TrimSpace(req.Model),
		PurchaseYear:  req.PurchaseYear,
		Condition:     condition,
		Price:         price,
		PickupAddress: req.PickupAddress,
		Status:        models.ListingAvailable,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateListing(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	log.Printf("🏷️  Listing %s created: %s (%d, %s) at ₹%.2f", listing.ID, listing.Model, listing.PurchaseYear, listing.Condition, listing.Price)
	return listing, nil
}

func (s *Service) ListListings(ctx context.Context, f store.ListingFilter) ([]models.Listing, error) {
	return s.store.ListListings(ctx, f)
}

func (s *Service) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error) {
	return s.store.ListOrders(ctx, f)
}

// CreateOrder reserves the first available volunteer in roster order and opens the
// order. When nobody is available nothing is written.
func (s *Service) CreateOrder(ctx context.Context, listingID, buyerID string, req models.CreateOrderRequest) (*models.Order, error) {
	req.DestinationAddress = strings.TrimSpace(req.DestinationAddress)
	if req.DestinationAddress == "" {
		return nil, apperr.Validation("destination_address is required")
	}

	var order *models.Order
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()

		listing, err := tx.GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		if listing.Status != models.ListingAvailable {
			return apperr.InvalidState("listing %s is %s", listingID, listing.Status)
		}
		if listing.SellerID == buyerID {
			return apperr.Validation("cannot order your own listing")
		}

		available, err := tx.ListAvailableVolunteers(ctx)
		if err != nil {
			return fmt.Errorf("failed to list volunteers: %w", err)
		}
		if len(available) == 0 {
			return apperr.ErrNoVolunteerAvailable
		}
		volunteer := available[0]

		pickupCode, err := s.otp.Generate(otpDigits)
		if err != nil {
			return err
		}
		deliveryCode, err := s.otp.Generate(otpDigits)
		if err != nil {
			return err
		}

		volunteer.Status = models.VolunteerAssigned
		volunteer.UpdatedAt = now.Unix()
		if err := tx.UpdateVolunteer(ctx, &volunteer); err != nil {
			return err
		}

		listing.Status = models.ListingReserved
		listing.UpdatedAt = now.Unix()
		if err := tx.UpdateListing(ctx, listing); err != nil {
			return err
		}

		order = &models.Order{
			ID:                 uuid.New().String(),
			ListingID:          listing.ID,
			FirstUser:          listing.SellerID,
			EndUserID:          buyerID,
			VolunteerID:        volunteer.ID,
			AgencyID:           volunteer.AgencyID,
			PickupAddress:      listing.PickupAddress,
			DestinationAddress: req.DestinationAddress,
			Price:              listing.Price,
			Status:             models.OrderAssigned,
			OTP:                pickupCode,
			OTP2:               deliveryCode,
			CreatedAt:          now.Unix(),
			UpdatedAt:          now.Unix(),
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		notices := []messaging.Notice{
			{
				UserID: volunteer.ID,
				Type:   models.NotificationOrderAssigned,
				Title:  "New delivery assigned",
				Body:   fmt.Sprintf("Collect %s from %s", listing.Model, listing.PickupAddress),
				Data:   models.Payload{"order_id": order.ID},
			},
			{
				UserID: listing.SellerID,
				Type:   models.NotificationOrderOTP,
				Title:  "Your device has been sold",
				Body:   fmt.Sprintf("Share code %s with the volunteer at pickup", pickupCode),
				Data:   models.Payload{"order_id": order.ID, "otp": pickupCode},
			},
			{
				UserID: buyerID,
				Type:   models.NotificationOrderOTP,
				Title:  "Order confirmed",
				Body:   fmt.Sprintf("Share code %s with the volunteer at delivery", deliveryCode),
				Data:   models.Payload{"order_id": order.ID, "otp": deliveryCode},
			},
		}
		return notifyAll(ctx, tx, now, notices)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Order %s created, volunteer %s reserved", order.ID, order.VolunteerID)
	return order, nil
}

// VerifyPickup checks the seller's code and marks the device collected.
func (s *Service) VerifyPickup(ctx context.Context, orderID, volunteerID, code string) (*models.Order, error) {
	return s.transition(ctx, orderID, volunteerID, func(ctx context.Context, tx store.Tx, now time.Time, o *models.Order) error {
		if o.Status != models.OrderAssigned {
			return apperr.InvalidState("order %s is %s", o.ID, o.Status)
		}
		if err := s.checkCode(ctx, tx, now, o, o.OTP, code); err != nil {
			return err
		}
		o.Status = models.OrderPickedUp
		return notifyParties(ctx, tx, now, o, models.NotificationOrderPickedUp, "Device picked up", "The volunteer collected the device")
	})
}

// DeviceCheck records the volunteer's inspection. A failed check cancels the order
// and releases the volunteer and the listing.
func (s *Service) DeviceCheck(ctx context.Context, orderID, volunteerID string, ok bool) (*models.Order, error) {
	return s.transition(ctx, orderID, volunteerID, func(ctx context.Context, tx store.Tx, now time.Time, o *models.Order) error {
		if o.Status != models.OrderPickedUp {
			return apperr.InvalidState("order %s is %s, the device must be picked up first", o.ID, o.Status)
		}
		if o.DeviceOK != nil {
			return apperr.InvalidState("order %s was already checked", o.ID)
		}
		o.DeviceOK = &ok
		if ok {
			return nil
		}

		o.Status = models.OrderCancelled
		if err := s.release(ctx, tx, now, o, models.ListingAvailable); err != nil {
			return err
		}
		return notifyParties(ctx, tx, now, o, models.NotificationOrderCancelled, "Order cancelled", "The device did not pass inspection")
	})
}

// VerifyDelivery checks the buyer's code.
func (s *Service) VerifyDelivery(ctx context.Context, orderID, volunteerID, code string) (*models.Order, error) {
	return s.transition(ctx, orderID, volunteerID, func(ctx context.Context, tx store.Tx, now time.Time, o *models.Order) error {
		if o.Status != models.OrderPickedUp {
			return apperr.InvalidState("order %s is %s", o.ID, o.Status)
		}
		if o.DeviceOK == nil || !*o.DeviceOK {
			return apperr.InvalidState("order %s has no passed device check", o.ID)
		}
		if o.DeliveredAt != nil {
			return apperr.InvalidState("order %s was already delivered", o.ID)
		}
		if err := s.checkCode(ctx, tx, now, o, o.OTP2, code); err != nil {
			return err
		}
		at := now.Unix()
		o.DeliveredAt = &at
		return notifyParties(ctx, tx, now, o, models.NotificationOrderDelivered, "Device delivered", "The device reached the buyer")
	})
}

// ConfirmPayment closes a delivered order.
func (s *Service) ConfirmPayment(ctx context.Context, orderID, volunteerID string) (*models.Order, error) {
	return s.transition(ctx, orderID, volunteerID, func(ctx context.Context, tx store.Tx, now time.Time, o *models.Order) error {
		if o.Status != models.OrderPickedUp || o.DeliveredAt == nil {
			return apperr.InvalidState("order %s is not delivered yet", o.ID)
		}
		o.Status = models.OrderCompleted
		if err := s.release(ctx, tx, now, o, models.ListingSold); err != nil {
			return err
		}
		return notifyParties(ctx, tx, now, o, models.NotificationOrderCompleted, "Order completed", fmt.Sprintf("Payment of ₹%.2f confirmed", o.Price))
	})
}

// checkCode compares a submitted OTP. A miss is counted on the order and kept even
// though the call fails; the last allowed miss cancels the order.
func (s *Service) checkCode(ctx context.Context, tx store.Tx, now time.Time, o *models.Order, expected, submitted string) error {
	if otp.Equal(expected, submitted) {
		return nil
	}
	o.OTPFailures++
	if o.OTPFailures < MaxOTPFailures {
		return commitThenFail{apperr.ErrInvalidOTP}
	}

	log.Printf("🔒 Order %s cancelled after %d invalid OTPs", o.ID, o.OTPFailures)
	o.Status = models.OrderCancelled
	if err := s.release(ctx, tx, now, o, models.ListingAvailable); err != nil {
		return err
	}
	if err := notifyParties(ctx, tx, now, o, models.NotificationOrderCancelled, "Order cancelled", "Too many invalid codes were entered"); err != nil {
		return err
	}
	return commitThenFail{apperr.ErrTooManyOTPAttempts}
}

// commitThenFail is returned by an orderStep whose changes must be saved although the
// caller gets an error.
type commitThenFail struct{ err error }

func (e commitThenFail) Error() string { return e.err.Error() }
func (e commitThenFail) Unwrap() error { return e.err }

type orderStep func(ctx context.Context, tx store.Tx, now time.Time, o *models.Order) error

// transition loads the order under lock, checks the caller is its volunteer, applies
// step and saves the result.
func (s *Service) transition(ctx context.Context, orderID, volunteerID string, step orderStep) (*models.Order, error) {
	var (
		order  *models.Order
		failed error
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()

		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.VolunteerID != volunteerID {
			return apperr.Forbidden("order %s is assigned to another volunteer", orderID)
		}
		if err := step(ctx, tx, now, o); err != nil {
			var keep commitThenFail
			if !errors.As(err, &keep) {
				return err
			}
			failed = keep.err
		}
		o.UpdatedAt = now.Unix()
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	if failed != nil {
		return nil, failed
	}

	log.Printf("📦 Order %s is now %s", order.ID, order.Status)
	return order, nil
}

// release closes the order, returns the volunteer to whatever their other work
// implies and moves the listing to the given status. o.Status must already be final.
func (s *Service) release(ctx context.Context, tx store.Tx, now time.Time, o *models.Order, listingStatus models.ListingStatus) error {
	o.UpdatedAt = now.Unix()
	if err := tx.UpdateOrder(ctx, o); err != nil {
		return err
	}

	v, err := tx.GetVolunteer(ctx, o.VolunteerID)
	if err != nil {
		return err
	}
	if v.Status != models.VolunteerUnavailable {
		w, err := tx.VolunteerWorkload(ctx, v.ID)
		if err != nil {
			return err
		}
		v.Status = w.Status()
	}
	v.UpdatedAt = now.Unix()
	if err := tx.UpdateVolunteer(ctx, v); err != nil {
		return err
	}

	listing, err := tx.GetListing(ctx, o.ListingID)
	if err != nil {
		return err
	}
	listing.Status = listingStatus
	listing.UpdatedAt = now.Unix()
	return tx.UpdateListing(ctx, listing)
}

func notifyParties(ctx context.Context, tx store.Tx, now time.Time, o *models.Order, typ, title, body string) error {
	data := models.Payload{"order_id": o.ID, "status": string(o.Status)}
	return notifyAll(ctx, tx, now, []messaging.Notice{
		{UserID: o.FirstUser, Type: typ, Title: title, Body: body, Data: data},
		{UserID: o.EndUserID, Type: typ, Title: title, Body: body, Data: data},
	})
}

func notifyAll(ctx context.Context, tx store.Tx, now time.Time, notices []messaging.Notice) error {
	for _, n := range notices {
		if _, err := messaging.Notify(ctx, tx, now, n); err != nil {
			return err
		}
	}
	return nil
}
