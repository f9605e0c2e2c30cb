package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/geo"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/internal/checkout"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	logger  *zap.Logger
	service checkout.Service
}

func NewCheckoutHandler(logger *zap.Logger, svc checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{logger: logger, service: svc}
}

// RegisterRoutes registers checkout routes on the provided router group.
func (h *CheckoutHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/checkout", h.Checkout)
}

// Checkout godoc
// @Summary      Checkout the user's cart
// @Description  Scores the payment, persists the transaction and clears the cart unless it is flagged as fraud
// @Tags         Checkout
// @Accept       json
// @Produce      json
// @Param        X-User-Id  header  string            true  "User id"
// @Param        payment    body    checkout.Payment  true  "Payment details"
// @Success      201  {object}  pkg.APIResponse
// @Failure      400  {object}  pkg.ErrorResponse
// @Failure      401  {object}  pkg.ErrorResponse
// @Failure      422  {object}  pkg.ErrorResponse
// @Failure      429  {object}  map[string]string
// @Router       /api/v1/checkout [post]
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	traceID, ok := traceIDOrAbort(c)
	if !ok {
		return
	}

	var payment checkout.Payment
	if err := c.ShouldBindJSON(&payment); err != nil {
		writeError(c, h.logger, traceID, pkg.NewAppError(pkg.ErrInvalidInputCode, "invalid request body", err))
		return
	}

	// Unresolvable addresses are reported by the service as a location failure.
	clientIP, err := geo.ClientIP(c.Request.Header)
	if err != nil && geo.IsPublic(c.ClientIP()) {
		clientIP = c.ClientIP()
	}

	result, err := h.service.ProcessCheckout(c.Request.Context(), traceID, checkout.Request{
		UserID:   c.GetHeader(pkg.HeaderUserId),
		ClientIP: clientIP,
		Payment:  payment,
	})
	if err != nil {
		writeError(c, h.logger, traceID, err)
		return
	}

	c.JSON(http.StatusCreated, pkg.APIResponse{
		TraceID: traceID,
		Data: map[string]interface{}{
			"transaction": result,
		},
	})
}
