package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jmanzanog/trading-simulator/internal/application"
	"github.com/jmanzanog/trading-simulator/internal/domain"
)

// TradingService defines the operations the API exposes.
type TradingService interface {
	OpenSession(ctx context.Context, owner string) (*domain.PortfolioSnapshot, error)
	CloseSession(ctx context.Context, id string) error
	ListPortfolios(ctx context.Context) ([]domain.PortfolioSnapshot, error)
	Valuate(ctx context.Context, id string) (*domain.PortfolioValuation, error)
	ExecuteTrade(ctx context.Context, id string, cmd application.TradeCommand) (*domain.TradeReceipt, error)
	ExecuteTradesBatch(ctx context.Context, id string, cmds []application.TradeCommand) (*application.TradeBatchResult, error)
	ListTrades(ctx context.Context, id string) ([]domain.TradeReceipt, error)
	Assets(ctx context.Context) []application.AssetQuote
	RefreshPrices(ctx context.Context) error
}

type Handler struct {
	service TradingService
}

func NewHandler(service TradingService) *Handler {
	return &Handler{
		service: service,
	}
}

type OpenSessionRequest struct {
	Owner string `json:"owner"`
}

// TradeRequest is the body of a trade. Omitting price fills at the market price.
type TradeRequest struct {
	AssetID   string           `json:"asset_id" binding:"required"`
	AssetType domain.AssetType `json:"asset_type" binding:"required"`
	Symbol    string           `json:"symbol"`
	Name      string           `json:"name"`
	Side      domain.Side      `json:"side" binding:"required"`
	Quantity  domain.Decimal   `json:"quantity"`
	Price     *domain.Decimal  `json:"price"`
}

func (r TradeRequest) command() application.TradeCommand {
	return application.TradeCommand{
		AssetID:   r.AssetID,
		AssetType: r.AssetType,
		Symbol:    r.Symbol,
		Name:      r.Name,
		Side:      r.Side,
		Quantity:  r.Quantity,
		Price:     r.Price,
	}
}

type BatchTradeRequest struct {
	Trades []TradeRequest `json:"trades" binding:"required,min=1,dive"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, application.ErrInvalidTradeRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientCash),
		errors.Is(err, domain.ErrInsufficientHoldings):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPortfolioNotFound):
		return http.StatusNotFound
	case errors.Is(err, application.ErrQuoteUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, msg string, err error, attrs ...any) {
	status := statusFor(err)
	attrs = append(attrs, "status", status, "error", err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), msg, attrs...)
	} else {
		slog.WarnContext(c.Request.Context(), msg, attrs...)
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func (h *Handler) OpenSession(c *gin.Context) {
	var req OpenSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			slog.ErrorContext(c.Request.Context(), "Invalid request body", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}

	snap, err := h.service.OpenSession(c.Request.Context(), req.Owner)
	if err != nil {
		h.fail(c, "Failed to open session", err)
		return
	}

	c.JSON(http.StatusCreated, snap)
}

func (h *Handler) CloseSession(c *gin.Context) {
	id := c.Param("id")

	if err := h.service.CloseSession(c.Request.Context(), id); err != nil {
		h.fail(c, "Failed to close session", err, "portfolio_id", id)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ListPortfolios(c *gin.Context) {
	portfolios, err := h.service.ListPortfolios(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to list portfolios", err)
		return
	}

	c.JSON(http.StatusOK, portfolios)
}

func (h *Handler) GetPortfolio(c *gin.Context) {
	id := c.Param("id")

	valuation, err := h.service.Valuate(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to valuate portfolio", err, "portfolio_id", id)
		return
	}

	c.JSON(http.StatusOK, valuation)
}

func (h *Handler) ExecuteTrade(c *gin.Context) {
	id := c.Param("id")

	var req TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.ErrorContext(c.Request.Context(), "Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	receipt, err := h.service.ExecuteTrade(c.Request.Context(), id, req.command())
	if err != nil {
		h.fail(c, "Failed to execute trade", err, "portfolio_id", id, "asset_id", req.AssetID, "side", req.Side)
		return
	}

	c.JSON(http.StatusCreated, receipt)
}

func (h *Handler) ExecuteTradesBatch(c *gin.Context) {
	id := c.Param("id")

	var req BatchTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.ErrorContext(c.Request.Context(), "Invalid batch request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	cmds := make([]application.TradeCommand, len(req.Trades))
	for i, t := range req.Trades {
		cmds[i] = t.command()
	}

	result, err := h.service.ExecuteTradesBatch(c.Request.Context(), id, cmds)
	if err != nil {
		h.fail(c, "Failed to execute batch", err, "portfolio_id", id)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListTrades(c *gin.Context) {
	id := c.Param("id")

	trades, err := h.service.ListTrades(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to list trades", err, "portfolio_id", id)
		return
	}

	c.JSON(http.StatusOK, trades)
}

func (h *Handler) ListAssets(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Assets(c.Request.Context()))
}

// RefreshPrices reports upstream failures as 502; the quotes that did arrive are kept.
func (h *Handler) RefreshPrices(c *gin.Context) {
	if err := h.service.RefreshPrices(c.Request.Context()); err != nil {
		slog.ErrorContext(c.Request.Context(), "Failed to refresh prices", "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "prices refreshed successfully"})
}
