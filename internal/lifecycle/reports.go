package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"ewaste-backend/internal/apperr"
	"ewaste-backend/internal/ledger"
	"ewaste-backend/internal/messaging"
	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store"

	"github.com/google/uuid"
)

// SubmitReport screens the photo, stores the report and credits the citizen's
// report reward and streak.
func (s *Service) SubmitReport(ctx context.Context, citizenID string, req models.CreateReportRequest, img Image) (*models.Report, error) {
	req.Location = strings.TrimSpace(req.Location)
	if req.Location == "" {
		return nil, apperr.Validation("location is required")
	}
	if req.Amount < 0 {
		return nil, apperr.Validation("amount must not be negative")
	}

	verdict, err := s.screenImage(ctx, img)
	if err != nil {
		return nil, err
	}
	url, err := s.upload(ctx, "reports/"+citizenID, img)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(verdict)
	if err != nil {
		return nil, fmt.Errorf("failed to encode verification result: %w", err)
	}

	report := &models.Report{
		ID:                 uuid.New().String(),
		UserID:             citizenID,
		Location:           req.Location,
		WasteType:          req.WasteType,
		Amount:             req.Amount,
		ImageURL:           url,
		ImageHash:          img.Hash(),
		VerificationResult: raw,
		Status:             models.ReportStatusPending,
	}
	if report.WasteType == "" {
		report.WasteType = verdict.WasteType
	}
	if report.Amount == 0 {
		report.Amount = verdict.Amount
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()
		report.CreatedAt = now.Unix()

		if err := tx.RegisterImageHash(ctx, report.ImageHash, citizenID); err != nil {
			return err
		}
		if err := tx.CreateReport(ctx, report); err != nil {
			return err
		}

		citizen, err := tx.GetCitizen(ctx, citizenID)
		if err != nil {
			return err
		}
		citizen.RecordReport(now)
		grant := s.cfg.Rewards.Report
		ledger.Award(&citizen.Standing, grant, s.cfg.Ranks)
		citizen.UpdatedAt = now.Unix()
		if err := tx.UpdateCitizen(ctx, citizen); err != nil {
			return err
		}

		err = tx.CreateTransaction(ctx, &models.Transaction{
			ID:          uuid.New().String(),
			UserID:      citizenID,
			Type:        models.TransactionEarnedReport,
			Amount:      grant.Points,
			Description: fmt.Sprintf("Report %s submitted", report.ID),
			CreatedAt:   now.Unix(),
		})
		if err != nil {
			return err
		}

		_, err = messaging.Notify(ctx, tx, now, messaging.Notice{
			UserID: citizenID,
			Type:   models.NotificationReportRewarded,
			Title:  "Report received",
			Body:   fmt.Sprintf("You earned %d points. Current streak: %d day(s)", grant.Points, citizen.Streak),
			Data:   models.Payload{"report_id": report.ID, "streak": fmt.Sprint(citizen.Streak)},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Report %s submitted by %s (%s, %.1f kg)", report.ID, citizenID, report.WasteType, report.Amount)
	return report, nil
}

func (s *Service) ListReports(ctx context.Context, f store.ReportFilter) ([]models.Report, error) {
	reports, err := s.store.ListReports(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}
