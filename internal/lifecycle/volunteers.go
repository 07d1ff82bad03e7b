package lifecycle

import (
	"context"
	"fmt"
	"log"
	"math"

	"ewaste-backend/internal/apperr"
	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store"
)

// Roster lists an agency's volunteers with stale quotas shown as reset.
func (s *Service) Roster(ctx context.Context, agencyID string) ([]models.Volunteer, error) {
	volunteers, err := s.store.ListVolunteersByAgency(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list volunteers: %w", err)
	}
	now := s.now()
	for i := range volunteers {
		volunteers[i].ResetQuotaIfStale(now)
	}
	return volunteers, nil
}

// UpdateLocation stores a volunteer's latest position.
func (s *Service) UpdateLocation(ctx context.Context, volunteerID string, u models.VolunteerLocationUpdate) (*models.Volunteer, error) {
	if math.Abs(u.Latitude) > 90 || math.Abs(u.Longitude) > 180 {
		return nil, apperr.Validation("coordinates out of range")
	}

	var v *models.Volunteer
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		v, err = tx.GetVolunteer(ctx, volunteerID)
		if err != nil {
			return err
		}
		lat, lng := u.Latitude, u.Longitude
		v.Latitude = &lat
		v.Longitude = &lng
		if u.Address != "" {
			v.Address = u.Address
		}
		v.UpdatedAt = s.now().Unix()
		return tx.UpdateVolunteer(ctx, v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ResetQuotas zeroes every pickup counter not yet reset today.
func (s *Service) ResetQuotas(ctx context.Context) (int64, error) {
	day := s.now().Format(models.DateLayout)
	n, err := s.store.ResetPickupQuotas(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("failed to reset pickup quotas: %w", err)
	}
	log.Printf("🔄 Reset pickup quota for %d volunteer(s) (%s)", n, day)
	return n, nil
}
