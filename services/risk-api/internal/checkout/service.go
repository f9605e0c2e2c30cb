package checkout

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/geo"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/models"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/utils"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/views"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/internal/features"
	"go.uber.org/zap"
)

// Profile defaults for users who never filled in their details.
var defaultProfile = models.UserProfile{
	FirstName: "John",
	LastName:  "Doe",
	Gender:    "M",
	Street:    "123 Main St",
	City:      "Colombo",
	State:     "Western",
	Zip:       "10000",
	Job:       features.DefaultJob,
	DOB:       "1990-01-01",
}

type ProfileStore interface {
	FindByUserID(ctx context.Context, userID string) (models.UserProfile, error)
}

type CartStore interface {
	FindByUserID(ctx context.Context, userID string) (models.Cart, error)
	Clear(ctx context.Context, userID string) error
}

type MerchantStore interface {
	FindByName(ctx context.Context, name string) (models.Merchant, bool, error)
}

type TransactionStore interface {
	Create(ctx context.Context, txn models.Transaction) error
}

// Payment is what the shopper submits at checkout.
type Payment struct {
	CardNumber string  `json:"ccNum" binding:"required"`
	Merchant   string  `json:"merchant" binding:"required"`
	Category   string  `json:"category" binding:"required"`
	Amount     float64 `json:"amt" binding:"gte=0"`
}

type Request struct {
	UserID   string
	ClientIP string // empty when no public address could be resolved
	Payment  Payment
}

type Result struct {
	TransNum string             `json:"transNum"`
	Decision views.RiskDecision `json:"decision"`
	Outcome  State              `json:"outcome"`
	Total    float64            `json:"total"`
	Cleared  bool               `json:"cartCleared"`
}

type ServiceConfig struct {
	Logger        *zap.Logger
	Pipeline      *Pipeline
	Profiles      ProfileStore
	Carts         CartStore
	Merchants     MerchantStore
	Transactions  TransactionStore
	Locator       geo.Locator
	EncryptionKey []byte
	Now           func() time.Time
}

type Service interface {
	ProcessCheckout(ctx context.Context, traceID string, req Request) (Result, error)
}

type ServiceImpl struct {
	ServiceConfig
}

func NewService(cfg ServiceConfig) Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ServiceImpl{ServiceConfig: cfg}
}

// ProcessCheckout checks the preconditions, scores the transaction, stores it and clears the cart
// unless the decision is Fraud.
func (s *ServiceImpl) ProcessCheckout(ctx context.Context, traceID string, req Request) (Result, error) {
	if utils.IsEmpty(req.UserID) {
		return Result{}, pkg.NewAppError(pkg.ErrUnauthorizedCode, "You must be logged in to checkout", nil)
	}

	profile, err := s.Profiles.FindByUserID(ctx, req.UserID)
	if err != nil {
		return Result{}, pkg.HandleSQLError(traceID, s.Logger, err)
	}
	profile = withDefaults(profile)

	cart, err := s.Carts.FindByUserID(ctx, req.UserID)
	if err != nil {
		return Result{}, pkg.HandleSQLError(traceID, s.Logger, err)
	}
	if cart.IsEmpty() {
		return Result{}, pkg.NewAppError(pkg.ErrEmptyCartCode, "Your cart is empty", nil)
	}

	merchant, found, err := s.Merchants.FindByName(ctx, strings.TrimSpace(req.Payment.Merchant))
	if err != nil {
		return Result{}, pkg.HandleSQLError(traceID, s.Logger, err)
	}
	if !found {
		return Result{}, pkg.NewAppError(pkg.ErrInvalidMerchantCode, "Invalid merchant selected", nil)
	}

	location, err := s.locate(ctx, req.ClientIP)
	if err != nil {
		s.Logger.Warn("user_location_failed", zap.String(pkg.TraceId, traceID), zap.Error(err))
		return Result{}, pkg.NewAppError(pkg.ErrLocationUnavailableCode, "Could not determine your location. Please try again.", err)
	}

	digits := strings.Join(strings.Fields(req.Payment.CardNumber), "")
	cardNumber, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return Result{}, pkg.NewAppError(pkg.ErrInvalidInputCode, "Invalid card number", err)
	}
	encrypted, err := utils.EncryptAES([]byte(digits), s.EncryptionKey)
	if err != nil {
		return Result{}, pkg.NewAppError(pkg.ErrServerCode, "failed to protect card number", err)
	}

	now := s.Now().UTC()
	amount := req.Payment.Amount
	if amount <= 0 {
		amount = cart.Total()
	}
	decided := s.Pipeline.Decide(ctx, TransactionContext{
		CardNumber: cardNumber,
		Amount:     amount,
		Category:   req.Payment.Category,
		Merchant:   merchant,
		Profile:    profile,
		UserLat:    location.Latitude,
		UserLon:    location.Longitude,
		At:         now,
	})

	payload := decided.Request
	txn := models.Transaction{
		TransNum:           payload.TransNum,
		UserID:             req.UserID,
		TransDateTransTime: payload.TransDateTransTime,
		UnixTime:           payload.UnixTime,
		CardEncrypted:      encrypted,
		CardMasked:         utils.MaskCardNumber(digits),
		Merchant:           payload.Merchant,
		Category:           payload.Category,
		Amount:             payload.Amount,
		FirstName:          payload.First,
		LastName:           payload.Last,
		Gender:             payload.Gender,
		Street:             payload.Street,
		City:               payload.City,
		State:              payload.State,
		Zip:                payload.Zip,
		Lat:                payload.Lat,
		Long:               payload.Long,
		CityPop:            payload.CityPop,
		Job:                payload.Job,
		DOB:                payload.DOB,
		UserLat:            payload.UserLat,
		UserLon:            payload.UserLon,
		Total:              cart.Total(),
		Items:              cart.Items,
		Decision:           decided.Decision,
		CreatedAt:          now,
	}
	if err = s.Transactions.Create(ctx, txn); err != nil {
		return Result{}, pkg.HandleSQLError(traceID, s.Logger, err)
	}

	result := Result{
		TransNum: payload.TransNum,
		Decision: decided.Decision,
		Outcome:  decided.Outcome(),
		Total:    txn.Total,
	}
	if !decided.Decision.IsFraud() {
		if err = s.Carts.Clear(ctx, req.UserID); err != nil {
			s.Logger.Error("cart_clear_failed",
				zap.String(pkg.TraceId, traceID),
				zap.String(pkg.UserId, req.UserID),
				zap.Error(err))
		} else {
			result.Cleared = true
		}
	}

	s.Logger.Info("checkout_processed",
		zap.String(pkg.TraceId, traceID),
		zap.String(pkg.UserId, req.UserID),
		zap.String(pkg.TransNum, payload.TransNum),
		zap.String("label", string(decided.Decision.Label)),
		zap.String("outcome", string(result.Outcome)))
	return result, nil
}

func (s *ServiceImpl) locate(ctx context.Context, ip string) (geo.Location, error) {
	if ip == "" {
		return geo.Location{}, geo.ErrNoPublicIP
	}
	if s.Locator == nil {
		return geo.Location{}, errors.New("no locator configured")
	}
	return s.Locator.Locate(ctx, ip)
}

func withDefaults(p models.UserProfile) models.UserProfile {
	fill := func(v *string, d string) {
		if utils.IsEmpty(*v) {
			*v = d
		}
	}
	fill(&p.FirstName, defaultProfile.FirstName)
	fill(&p.LastName, defaultProfile.LastName)
	fill(&p.Gender, defaultProfile.Gender)
	fill(&p.Street, defaultProfile.Street)
	fill(&p.City, defaultProfile.City)
	fill(&p.State, defaultProfile.State)
	fill(&p.Zip, defaultProfile.Zip)
	fill(&p.Job, defaultProfile.Job)
	fill(&p.DOB, defaultProfile.DOB)
	return p
}
