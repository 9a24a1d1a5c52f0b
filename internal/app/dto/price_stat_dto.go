package dto

import (
	"time"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
)

// TriggerDTO is the JSON payload published on the trigger topic.
type TriggerDTO struct {
	Trigger   string    `json:"trigger"`
	Timestamp time.Time `json:"timestamp"`
}

// ToModel converts a TriggerDTO to a domain model
func (dto *TriggerDTO) ToModel() *model.UpdateTrigger {
	return &model.UpdateTrigger{
		Trigger:   dto.Trigger,
		Timestamp: dto.Timestamp,
	}
}

// TriggerFromModel creates a TriggerDTO from a domain model
func TriggerFromModel(trigger *model.UpdateTrigger) *TriggerDTO {
	return &TriggerDTO{
		Trigger:   trigger.Trigger,
		Timestamp: trigger.Timestamp.UTC(),
	}
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Price     float64 `json:"price"`
	MarketCap float64 `json:"marketCap"`
	Change24h float64 `json:"24hChange"`
}

func StatsFromModel(stat *model.PriceStat) *StatsResponse {
	return &StatsResponse{
		Price:     stat.Price,
		MarketCap: stat.MarketCap,
		Change24h: stat.Change24h,
	}
}

// DeviationResponse is the body of GET /deviation.
type DeviationResponse struct {
	Deviation float64 `json:"deviation"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// PriceStatDTO is what websocket subscribers receive for each stored record.
type PriceStatDTO struct {
	Coin      string    `json:"coin"`
	Price     float64   `json:"price"`
	MarketCap float64   `json:"marketCap"`
	Change24h float64   `json:"24hChange"`
	Timestamp time.Time `json:"timestamp"`
}

func PriceStatFromModel(stat *model.PriceStat) *PriceStatDTO {
	return &PriceStatDTO{
		Coin:      string(stat.Coin),
		Price:     stat.Price,
		MarketCap: stat.MarketCap,
		Change24h: stat.Change24h,
		Timestamp: stat.Timestamp.UTC(),
	}
}
