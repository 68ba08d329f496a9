package service

import (
	"math"

	"github.com/printlab/printlab-api/internal/models"
	"github.com/printlab/printlab-api/pkg/config"
)

// CostPolicy computes the price estimate for a print job. The rate table is
// deployment configuration, not code; swap implementations to change pricing.
type CostPolicy interface {
	Estimate(job *models.PrintJob) float64
}

// RateCardPolicy prices jobs as material weight times a per-gram rate plus
// print time at a flat hourly machine rate.
type RateCardPolicy struct {
	gramRates  map[models.Material]float64
	hourlyRate float64
}

// NewRateCardPolicy builds the policy from pricing configuration.
func NewRateCardPolicy(cfg config.PricingConfig) *RateCardPolicy {
	rates := make(map[models.Material]float64, len(cfg.GramRates))
	for material, rate := range cfg.GramRates {
		rates[models.Material(material)] = rate
	}
	return &RateCardPolicy{gramRates: rates, hourlyRate: cfg.HourlyRate}
}

// Estimate returns the job cost rounded to cents.
func (p *RateCardPolicy) Estimate(job *models.PrintJob) float64 {
	materialCost := job.MaterialWeightG * p.gramRates[job.Material]
	timeCost := job.EstimatedHours * p.hourlyRate
	return roundCents(materialCost + timeCost)
}

func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
