package cardkey

import (
	"fmt"

	"github.com/alcms-dev/alcms-server/internal/models"
)

// Reward is what a card grants. It is either VIPReward or PointsReward.
type Reward interface {
	isReward()
}

// VIPReward grants Level for Days days; Days == 0 is permanent.
type VIPReward struct {
	Level int
	Days  int
}

// PointsReward credits Amount points.
type PointsReward struct {
	Amount int64
}

func (VIPReward) isReward()    {}
func (PointsReward) isReward() {}

// RewardOf decodes the reward stored on a card.
func RewardOf(card *models.CardKey) (Reward, error) {
	switch card.Type {
	case models.CardKeyTypeVIP:
		return VIPReward{Level: card.VIPLevel, Days: card.VIPDays}, nil
	case models.CardKeyTypePoints:
		return PointsReward{Amount: card.Points}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidParams, card.Type)
	}
}
