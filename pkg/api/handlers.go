package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rzzdr/option-greeks-engine/internal/risk"
	"github.com/rzzdr/option-greeks-engine/pkg/models"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/errors"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/logger"
)

// Feed names pushed to the Publisher
const (
	feedPrice      = "price"
	feedGreeks     = "greeks"
	feedComparison = "comparison"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	engines         Engines
	maxSimulations  int
	displayDecimals int
	publisher       Publisher
	started         time.Time
	log             *logger.Logger
}

// PriceResponse is the body of the price endpoints
type PriceResponse struct {
	Model          string              `json:"model"`
	Price          float64             `json:"price"`
	Params         models.OptionParams `json:"params"`
	NumSimulations int                 `json:"num_simulations,omitempty"`
}

// ImpliedVolatilityRequest is a parameter record plus the observed option price.
// The record's volatility is ignored.
type ImpliedVolatilityRequest struct {
	models.ParameterRecord
	MarketPrice float64 `json:"market_price"`
}

// ImpliedVolatilityResponse reports the solved volatility in percent, like the input record
type ImpliedVolatilityResponse struct {
	ImpliedVolatility float64 `json:"implied_volatility"`
	MarketPrice       float64 `json:"market_price"`
}

// NewHandlers creates new API handlers
func NewHandlers(engines Engines, maxSimulations, displayDecimals int) *Handlers {
	return &Handlers{
		engines:         engines,
		maxSimulations:  maxSimulations,
		displayDecimals: displayDecimals,
		started:         time.Now(),
		log:             logger.GetLogger("api.handlers"),
	}
}

// HealthCheckHandler handles health check requests
func (h *Handlers) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
	})
}

// PriceAnalyticHandler prices one option in closed form
func (h *Handlers) PriceAnalyticHandler(c *gin.Context) {
	_, p, ok := h.bindRecord(c)
	if !ok {
		return
	}

	price, err := h.engines.Pricer.Price(p)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := PriceResponse{Model: risk.ModelAnalytic, Price: price, Params: p}
	h.publish(feedPrice, resp)
	c.JSON(http.StatusOK, resp)
}

// PriceSimulatedHandler prices one option by path simulation
func (h *Handlers) PriceSimulatedHandler(c *gin.Context) {
	record, p, ok := h.bindRecord(c)
	if !ok {
		return
	}
	if !h.checkSimulations(c, record.NumSimulations) {
		return
	}

	price, err := h.engines.Simulator.Simulate(p, risk.SimulationConfig{NumSimulations: record.NumSimulations})
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := PriceResponse{Model: risk.ModelSimulated, Price: price, Params: p, NumSimulations: record.NumSimulations}
	h.publish(feedPrice, resp)
	c.JSON(http.StatusOK, resp)
}

// AnalyticGreeksHandler computes Greeks by bumping the closed-form price
func (h *Handlers) AnalyticGreeksHandler(c *gin.Context) {
	_, p, ok := h.bindRecord(c)
	if !ok {
		return
	}

	result, err := h.engines.Analytic.Calculate(c.Request.Context(), p)
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.publish(feedGreeks, result)
	c.JSON(http.StatusOK, result)
}

// SimulatedGreeksHandler computes Greeks by bumping the simulated price on one shared draw
func (h *Handlers) SimulatedGreeksHandler(c *gin.Context) {
	record, p, ok := h.bindRecord(c)
	if !ok {
		return
	}
	if !h.checkSimulations(c, record.NumSimulations) {
		return
	}

	result, err := h.engines.Simulated.Calculate(c.Request.Context(), p, record.NumSimulations)
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.publish(feedGreeks, result)
	c.JSON(http.StatusOK, result)
}

// CompareHandler runs both engines and returns the side-by-side table.
// The optional decimals query parameter overrides the display rounding; -1 disables it.
func (h *Handlers) CompareHandler(c *gin.Context) {
	decimals := h.displayDecimals
	if raw := c.Query("decimals"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d > 15 {
			abortWithError(c, errors.InvalidArgument("decimals must be an integer no greater than 15"))
			return
		}
		decimals = d
	}

	record, p, ok := h.bindRecord(c)
	if !ok {
		return
	}
	if !h.checkSimulations(c, record.NumSimulations) {
		return
	}

	comparison, err := h.engines.Comparator.Compare(c.Request.Context(), p, record.NumSimulations)
	if err != nil {
		abortWithError(c, err)
		return
	}

	rounded := comparison.Rounded(decimals)
	h.log.Debugf("Compared %s greeks over %d paths", p.Type, record.NumSimulations)
	h.publish(feedComparison, rounded)
	c.JSON(http.StatusOK, rounded)
}

// ImpliedVolatilityHandler solves for the volatility that reproduces market_price
func (h *Handlers) ImpliedVolatilityHandler(c *gin.Context) {
	req := ImpliedVolatilityRequest{ParameterRecord: models.DefaultParameterRecord()}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.InvalidArgument("invalid request body: " + err.Error()))
		return
	}

	p, err := req.ParameterRecord.OptionParams()
	if err != nil {
		abortWithError(c, err)
		return
	}

	sigma, err := h.engines.Pricer.ImpliedVolatility(p, req.MarketPrice)
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.log.Debugf("Implied volatility %.6f for market price %.4f", sigma, req.MarketPrice)
	c.JSON(http.StatusOK, ImpliedVolatilityResponse{
		ImpliedVolatility: sigma * 100,
		MarketPrice:       req.MarketPrice,
	})
}

// bindRecord decodes a parameter record over the form defaults, so omitted
// fields keep their default values, and converts it to pricer inputs
func (h *Handlers) bindRecord(c *gin.Context) (models.ParameterRecord, models.OptionParams, bool) {
	record := models.DefaultParameterRecord()
	if err := c.ShouldBindJSON(&record); err != nil {
		abortWithError(c, errors.InvalidArgument("invalid request body: " + err.Error()))
		return record, models.OptionParams{}, false
	}

	p, err := record.OptionParams()
	if err != nil {
		abortWithError(c, err)
		return record, models.OptionParams{}, false
	}
	return record, p, true
}

// checkSimulations rejects path counts above the configured cap. Non-positive
// counts are left to the engines, which reject them as invalid parameters.
func (h *Handlers) checkSimulations(c *gin.Context, n int) bool {
	if h.maxSimulations > 0 && n > h.maxSimulations {
		abortWithError(c, errors.InvalidArgument(
			"num_simulations "+strconv.Itoa(n)+" exceeds the limit of "+strconv.Itoa(h.maxSimulations)))
		return false
	}
	return true
}

func (h *Handlers) publish(feed string, payload interface{}) {
	if h.publisher != nil {
		h.publisher.Publish(feed, payload)
	}
}

// statusFor maps an error kind to an HTTP status
func statusFor(err error) int {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeInvalidArgument, errors.ErrorTypeInvalidParameter, errors.ErrorTypeInvalidOptionType:
		return http.StatusBadRequest
	case errors.ErrorTypeShapeMismatch:
		return http.StatusUnprocessableEntity
	case errors.ErrorTypeResourceExhausted:
		return http.StatusTooManyRequests
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case stderrors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.GetLogger("api.handlers").Errorf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}

	c.AbortWithStatusJSON(status, gin.H{
		"error": err.Error(),
		"kind":  errors.TypeOf(err).String(),
	})
}
