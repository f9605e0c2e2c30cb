// Package checkout turns a cart into a scored, persisted transaction.
package checkout

import (
	"context"
	"time"

	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/models"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/rng"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/views"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/internal/features"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/internal/scoring"
	"go.uber.org/zap"
)

const (
	TransactionTimeLayout = "2006-01-02 15:04:05"
	DefaultCityPop        = 10000
)

// State is a step of one Decide invocation.
type State string

const (
	StatePending  State = "pending"
	StateScored   State = "scored"
	StateFallback State = "fallback"
	StateReturned State = "returned"
)

// Decider is the scoring call with its fallback. *scoring.Adapter satisfies it.
type Decider interface {
	Decide(ctx context.Context, req scoring.FraudRequest) (views.RiskDecision, scoring.Outcome)
}

// TransactionContext is everything known about a checkout before scoring.
type TransactionContext struct {
	CardNumber int64
	Amount     float64
	Category   string
	Merchant   models.Merchant
	Profile    models.UserProfile
	UserLat    float64
	UserLon    float64
	At         time.Time
}

// Decision is the pipeline's answer together with the payload that was scored.
type Decision struct {
	Decision views.RiskDecision
	Request  scoring.FraudRequest
	Features features.TransactionFeatures
	States   []State
}

func (d Decision) Outcome() State {
	for _, s := range d.States {
		if s == StateScored || s == StateFallback {
			return s
		}
	}
	return StatePending
}

type Pipeline struct {
	logger  *zap.Logger
	decider Decider
	ids     rng.Source
}

func NewPipeline(logger *zap.Logger, decider Decider, ids rng.Source) *Pipeline {
	return &Pipeline{logger: logger, decider: decider, ids: ids}
}

// Decide derives features, assembles the scoring payload under a fresh transaction id and returns
// exactly one decision.
func (p *Pipeline) Decide(ctx context.Context, tc TransactionContext) Decision {
	states := []State{StatePending}
	at := tc.At.UTC()
	timestamp := at.Format(TransactionTimeLayout)

	f := features.Derive(features.Input{
		Amount:            tc.Amount,
		Merchant:          tc.Merchant.Name,
		MerchantLatitude:  tc.Merchant.Lat,
		MerchantLongitude: tc.Merchant.Long,
		UserLatitude:      tc.UserLat,
		UserLongitude:     tc.UserLon,
		Timestamp:         timestamp,
		Category:          tc.Category,
		JobTitle:          tc.Profile.Job,
	}, func() time.Time { return at })

	cityPop := tc.Merchant.CityPop
	if cityPop <= 0 {
		cityPop = DefaultCityPop
	}
	req := scoring.FraudRequest{
		TransDateTransTime: timestamp,
		CCNum:              tc.CardNumber,
		Merchant:           f.NormalizedMerchantName,
		Category:           tc.Category,
		Amount:             tc.Amount,
		First:              tc.Profile.FirstName,
		Last:               tc.Profile.LastName,
		Gender:             tc.Profile.Gender,
		Street:             tc.Profile.Street,
		City:               tc.Profile.City,
		State:              tc.Profile.State,
		Zip:                tc.Profile.Zip,
		Lat:                tc.Merchant.Lat,
		Long:               tc.Merchant.Long,
		CityPop:            cityPop,
		Job:                f.NormalizedJobTitle,
		DOB:                truncate(tc.Profile.DOB, 10),
		TransNum:           scoring.NewTransactionID(p.ids),
		UnixTime:           at.Unix(),
		UserLat:            tc.UserLat,
		UserLon:            tc.UserLon,
		Hour:               f.HourOfDay,
		DistanceKm:         f.DistanceKm,
		CategoryOneHot:     f.CategoryOneHot[:],
	}

	decision, outcome := p.decider.Decide(ctx, req)
	if outcome == scoring.OutcomeScored {
		states = append(states, StateScored)
	} else {
		states = append(states, StateFallback)
	}
	states = append(states, StateReturned)

	p.logger.Info("transaction_decided",
		zap.String(pkg.TransNum, req.TransNum),
		zap.String("outcome", string(outcome)),
		zap.String("label", string(decision.Label)),
		zap.Float64("distance_km", f.DistanceKm),
		zap.Int("hour", f.HourOfDay))

	return Decision{Decision: decision, Request: req, Features: f, States: states}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
