package lifecycle

import (
	"context"
	"fmt"

	"ewaste-backend/internal/apperr"
	"ewaste-backend/internal/ledger"
	"ewaste-backend/internal/messaging"
	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store"

	"github.com/google/uuid"
)

func (s *Service) ListRewards(ctx context.Context) ([]models.Reward, error) {
	return s.store.ListRewards(ctx)
}

// Redeem spends a citizen's points on a catalog reward.
func (s *Service) Redeem(ctx context.Context, citizenID, rewardID string) (*models.Citizen, error) {
	var citizen *models.Citizen
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()

		reward, err := tx.GetReward(ctx, rewardID)
		if err != nil {
			return err
		}
		if reward.Stock <= 0 {
			return apperr.ErrOutOfStock
		}

		citizen, err = tx.GetCitizen(ctx, citizenID)
		if err != nil {
			return err
		}
		if err := ledger.Redeem(&citizen.Standing, reward.PointsRequired); err != nil {
			return err
		}
		citizen.UpdatedAt = now.Unix()
		if err := tx.UpdateCitizen(ctx, citizen); err != nil {
			return err
		}

		reward.Stock--
		if err := tx.UpdateReward(ctx, reward); err != nil {
			return err
		}

		err = tx.CreateTransaction(ctx, &models.Transaction{
			ID:          uuid.New().String(),
			UserID:      citizenID,
			Type:        models.TransactionRedeemed,
			Amount:      -reward.PointsRequired,
			Description: fmt.Sprintf("Redeemed %s", reward.Name),
			CreatedAt:   now.Unix(),
		})
		if err != nil {
			return err
		}

		_, err = messaging.Notify(ctx, tx, now, messaging.Notice{
			UserID: citizenID,
			Type:   models.NotificationRewardRedeemed,
			Title:  "Reward redeemed",
			Body:   fmt.Sprintf("You redeemed %s for %d points", reward.Name, reward.PointsRequired),
			Data:   models.Payload{"reward_id": reward.ID},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return citizen, nil
}
