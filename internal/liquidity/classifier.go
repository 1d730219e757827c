// Package liquidity classifies option-market liquidity into discrete tiers.
package liquidity

import (
	"vrp-edge-lab/internal/config"
	"vrp-edge-lab/internal/domain"
)

// Assessment is the classifier output: the final tier plus the per-dimension
// tiers and underlying metrics for display and audit.
type Assessment struct {
	Final      domain.LiquidityTier
	OITier     domain.LiquidityTier
	SpreadTier domain.LiquidityTier

	OIRatio   float64
	SpreadPct float64
	Volume    int64
}

// Classifier maps a LiquiditySnapshot to a tier.
type Classifier struct {
	cfg config.LiquidityConfig
}

// NewClassifier creates a liquidity classifier.
func NewClassifier(cfg config.LiquidityConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify derives OI and spread tiers independently and combines them as the
// worse of the two. Missing data defaults to WARNING, never EXCELLENT: an
// optimistic default here has caused a real loss before.
func (c *Classifier) Classify(snap *domain.LiquiditySnapshot) Assessment {
	if snap == nil {
		return Assessment{
			Final:      domain.LiquidityWarning,
			OITier:     domain.LiquidityWarning,
			SpreadTier: domain.LiquidityWarning,
		}
	}

	oiRatio := float64(snap.OpenInterest) / float64(c.cfg.ContractsPerPosition)
	oiTier := c.oiTier(oiRatio, snap.OpenInterest)
	if snap.Volume >= 0 && snap.Volume < c.cfg.MinVolume {
		oiTier = domain.WorseTier(oiTier, domain.LiquidityWarning)
	}

	spreadTier := c.spreadTier(snap.BidAskSpreadPct)

	return Assessment{
		Final:      domain.WorseTier(oiTier, spreadTier),
		OITier:     oiTier,
		SpreadTier: spreadTier,
		OIRatio:    oiRatio,
		SpreadPct:  snap.BidAskSpreadPct,
		Volume:     snap.Volume,
	}
}

func (c *Classifier) oiTier(ratio float64, openInterest int64) domain.LiquidityTier {
	if openInterest <= 0 {
		// Zero reads as "unknown" more often than "truly empty book".
		return domain.LiquidityWarning
	}
	switch {
	case ratio >= c.cfg.OIExcellentMin:
		return domain.LiquidityExcellent
	case ratio >= c.cfg.OIGoodMin:
		return domain.LiquidityGood
	case ratio >= c.cfg.OIWarningMin:
		return domain.LiquidityWarning
	default:
		return domain.LiquidityReject
	}
}

func (c *Classifier) spreadTier(spreadPct float64) domain.LiquidityTier {
	if spreadPct <= 0 {
		// Missing or nonsensical spread: conservative default.
		return domain.LiquidityWarning
	}
	switch {
	case spreadPct <= c.cfg.SpreadExcellentMax:
		return domain.LiquidityExcellent
	case spreadPct <= c.cfg.SpreadGoodMax:
		return domain.LiquidityGood
	case spreadPct <= c.cfg.SpreadWarningMax:
		return domain.LiquidityWarning
	default:
		return domain.LiquidityReject
	}
}
