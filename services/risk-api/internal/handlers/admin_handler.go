package handlers

import (
	"context"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/models"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/internal/features"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/internal/scoring"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	maxListingLimit   = 100
	summaryWindow     = 100
	topSourcesLimit   = 5
	predictionWorkers = 4
	predictionFailed  = "Prediction failed"
)

type RequestLogLister interface {
	ListRecent(ctx context.Context, limit int) ([]models.RequestLog, error)
}

type TransactionLister interface {
	ListRecent(ctx context.Context, limit int) ([]models.Transaction, error)
}

// SourceTracker exposes the live request counter.
type SourceTracker interface {
	Sources() int
}

type AdminHandler struct {
	logger       *zap.Logger
	logs         RequestLogLister
	transactions TransactionLister
	predictor    scoring.Predictor
	tracker      SourceTracker
}

func NewAdminHandler(logger *zap.Logger, logs RequestLogLister, txns TransactionLister, predictor scoring.Predictor, tracker SourceTracker) *AdminHandler {
	return &AdminHandler{logger: logger, logs: logs, transactions: txns, predictor: predictor, tracker: tracker}
}

func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/request-logs", h.ListRequestLogs)
	r.GET("/traffic-summary", h.TrafficSummary)
	r.GET("/fraud-alerts", h.ListFraudAlerts)
}

// ListRequestLogs godoc
// @Summary  Latest request-log records
// @Tags     Admin
// @Produce  json
// @Param    limit  query     int  false  "Max records (default 10, max 100)"
// @Success  200    {object}  pkg.APIResponse
// @Failure  500    {object}  pkg.ErrorResponse
// @Router   /admin/request-logs [get]
func (h *AdminHandler) ListRequestLogs(c *gin.Context) {
	traceID, ok := traceIDOrAbort(c)
	if !ok {
		return
	}
	logs, err := h.logs.ListRecent(c.Request.Context(), listingLimit(c))
	if err != nil {
		writeError(c, h.logger, traceID, pkg.HandleSQLError(traceID, h.logger, err))
		return
	}
	c.JSON(http.StatusOK, pkg.APIResponse{
		TraceID: traceID,
		Data:    map[string]interface{}{"logs": logs},
	})
}

type SourceCount struct {
	Source   string `json:"source"`
	Requests int    `json:"requests"`
}

type TrafficSummary struct {
	Window         int                        `json:"window"`
	Classification map[pkg.Classification]int `json:"classification"`
	TopSources     []SourceCount              `json:"topSources"`
	TrackedSources int                        `json:"trackedSources"`
}

// TrafficSummary godoc
// @Summary  Classification counts and top sources over the latest request logs
// @Tags     Admin
// @Produce  json
// @Success  200  {object}  pkg.APIResponse
// @Failure  500  {object}  pkg.ErrorResponse
// @Router   /admin/traffic-summary [get]
func (h *AdminHandler) TrafficSummary(c *gin.Context) {
	traceID, ok := traceIDOrAbort(c)
	if !ok {
		return
	}
	logs, err := h.logs.ListRecent(c.Request.Context(), summaryWindow)
	if err != nil {
		writeError(c, h.logger, traceID, pkg.HandleSQLError(traceID, h.logger, err))
		return
	}
	summary := summarize(logs)
	if h.tracker != nil {
		summary.TrackedSources = h.tracker.Sources()
	}
	c.JSON(http.StatusOK, pkg.APIResponse{
		TraceID: traceID,
		Data:    map[string]interface{}{"summary": summary},
	})
}

func summarize(logs []models.RequestLog) TrafficSummary {
	s := TrafficSummary{
		Window: len(logs),
		Classification: map[pkg.Classification]int{
			pkg.ClassificationNormal:     0,
			pkg.ClassificationSuspicious: 0,
			pkg.ClassificationBlocked:    0,
		},
	}
	perSource := make(map[string]int)
	for _, l := range logs {
		s.Classification[l.Classification]++
		perSource[l.SourceIP]++
	}
	for src, n := range perSource {
		s.TopSources = append(s.TopSources, SourceCount{Source: src, Requests: n})
	}
	sort.Slice(s.TopSources, func(i, j int) bool {
		if s.TopSources[i].Requests != s.TopSources[j].Requests {
			return s.TopSources[i].Requests > s.TopSources[j].Requests
		}
		return s.TopSources[i].Source < s.TopSources[j].Source
	})
	if len(s.TopSources) > topSourcesLimit {
		s.TopSources = s.TopSources[:topSourcesLimit]
	}
	return s
}

type AlertDetails struct {
	CardNumber   string  `json:"card_number"`
	Merchant     string  `json:"merchant"`
	Category     string  `json:"category"`
	Amount       float64 `json:"amount"`
	CustomerName string  `json:"customer_name"`
	Gender       string  `json:"gender"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	Zip          string  `json:"zip"`
	Street       string  `json:"street"`
	Lat          float64 `json:"lat"`
	Long         float64 `json:"long"`
	CityPop      int     `json:"city_pop"`
	Job          string  `json:"job"`
	DOB          string  `json:"dob"`
	UserLat      float64 `json:"user_lat"`
	UserLon      float64 `json:"user_lon"`
}

type FraudAlert struct {
	ID                string              `json:"id"`
	Timestamp         string              `json:"timestamp"`
	ThresholdExceeded bool                `json:"threshold_exceeded"`
	AttackType        string              `json:"attack_type"`
	Confidence        float64             `json:"confidence"`
	Severity          string              `json:"severity"`
	Status            string              `json:"status"`
	Blocked           bool                `json:"blocked"`
	Reason            string              `json:"reason"`
	Details           AlertDetails        `json:"details"`
	Prediction        *scoring.Prediction `json:"prediction,omitempty"`
	PredictionError   string              `json:"prediction_error,omitempty"`
}

// ListFraudAlerts godoc
// @Summary  Latest transactions as fraud alerts with risk predictions
// @Tags     Admin
// @Produce  json
// @Param    limit  query     int  false  "Max alerts (default 10, max 100)"
// @Success  200    {object}  pkg.APIResponse
// @Failure  500    {object}  pkg.ErrorResponse
// @Router   /admin/fraud-alerts [get]
func (h *AdminHandler) ListFraudAlerts(c *gin.Context) {
	traceID, ok := traceIDOrAbort(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	txns, err := h.transactions.ListRecent(ctx, listingLimit(c))
	if err != nil {
		writeError(c, h.logger, traceID, pkg.HandleSQLError(traceID, h.logger, err))
		return
	}

	alerts := make([]FraudAlert, len(txns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(predictionWorkers)
	for i := range txns {
		alerts[i] = toAlert(txns[i])
		if h.predictor == nil {
			alerts[i].PredictionError = predictionFailed
			continue
		}
		g.Go(func() error {
			prediction, err := h.predictor.Predict(gctx, probabilityRequest(txns[i]))
			if err != nil {
				h.logger.Warn("risk_prediction_failed",
					zap.String(pkg.TraceId, traceID),
					zap.String(pkg.TransNum, txns[i].TransNum),
					zap.Error(err))
				alerts[i].PredictionError = predictionFailed
				return nil
			}
			alerts[i].Prediction = &prediction
			return nil
		})
	}
	_ = g.Wait()

	c.JSON(http.StatusOK, pkg.APIResponse{
		TraceID: traceID,
		Data:    map[string]interface{}{"alerts": alerts},
	})
}

func toAlert(t models.Transaction) FraudAlert {
	isFraud := t.Decision.IsFraud()
	confidence, _ := t.Decision.Confidence.Percent()
	alert := FraudAlert{
		ID:                t.TransNum,
		Timestamp:         t.TransDateTransTime,
		ThresholdExceeded: isFraud,
		AttackType:        string(pkg.RiskLabelNormal),
		Confidence:        confidence,
		Severity:          SeverityFor(confidence),
		Status:            "Clean",
		Blocked:           isFraud,
		Reason:            t.Decision.Reason,
		Details: AlertDetails{
			CardNumber:   t.CardMasked,
			Merchant:     t.Merchant,
			Category:     t.Category,
			Amount:       t.Amount,
			CustomerName: t.FirstName + " " + t.LastName,
			Gender:       t.Gender,
			City:         t.City,
			State:        t.State,
			Zip:          t.Zip,
			Street:       t.Street,
			Lat:          t.Lat,
			Long:         t.Long,
			CityPop:      t.CityPop,
			Job:          t.Job,
			DOB:          t.DOB,
			UserLat:      t.UserLat,
			UserLon:      t.UserLon,
		},
	}
	if isFraud {
		alert.AttackType = string(pkg.RiskLabelFraud)
		alert.Status = "Detected"
	}
	return alert
}

func probabilityRequest(t models.Transaction) scoring.ProbabilityRequest {
	hour, err := features.HourOfDay(t.TransDateTransTime)
	if err != nil {
		hour = t.CreatedAt.UTC().Hour()
	}
	return scoring.ProbabilityRequest{
		Amount:     t.Amount,
		CityPop:    t.CityPop,
		Hour:       hour,
		DistanceKm: features.DistanceKm(t.Lat, t.Long, t.UserLat, t.UserLon),
		Category:   features.CategoryColumn(t.Category),
	}
}

// SeverityFor grades a 0-100 confidence: 60 and above High, 40 and above Medium, otherwise Low.
func SeverityFor(confidence float64) string {
	switch {
	case confidence >= 60:
		return "High"
	case confidence >= 40:
		return "Medium"
	default:
		return "Low"
	}
}

func listingLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return pkg.DefaultListingLimit
	}
	if limit > maxListingLimit {
		return maxListingLimit
	}
	return limit
}
