// Package api предоставляет тонкий HTTP слой поверх банковского
// фасада: биндинг запросов, маппинг доменных ошибок в статусы,
// никакой бизнес-логики.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/eventbank/ledger/bank"
	"github.com/eventbank/ledger/circuitbreaker"
	"github.com/eventbank/ledger/domain/account"
	"github.com/eventbank/ledger/domain/transfer"
)

// Router HTTP маршрутизатор сервиса
type Router struct {
	service *bank.Service
	logger  *slog.Logger
}

// NewRouter создает gin маршрутизатор с маршрутами сервиса
func NewRouter(service *bank.Service, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{service: service, logger: logger}

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	accounts := engine.Group("/accounts")
	{
		accounts.POST("", r.createAccount)
		accounts.GET("/:id", r.getAccount)
		accounts.GET("/:id/events", r.getAccountEvents)
		accounts.DELETE("/:id", r.deleteAccount)
		accounts.POST("/:id/deposit", r.deposit)
		accounts.POST("/:id/debit", r.debit)
		accounts.POST("/:id/transfer", r.transferOut)
		accounts.POST("/:id/recipients", r.registerRecipient)
		accounts.POST("/:id/daily-debit-limit", r.limitDailyDebits)
		accounts.POST("/:id/lock", r.lockCard)
		accounts.POST("/:id/unlock", r.unlockCard)
		accounts.POST("/:id/close", r.closeAccount)
		accounts.GET("/:id/watch", r.watchAccount)
	}

	engine.GET("/breakers/:service", r.breakerState)
	engine.GET("/breakers-watch", r.watchBreakers)

	return engine
}

func (r *Router) createAccount(c *gin.Context) {
	var req struct {
		FirstName string          `json:"firstName"`
		LastName  string          `json:"lastName"`
		Currency  string          `json:"currency"`
		Balance   decimal.Decimal `json:"balance"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := r.service.CreateAccount(c.Request.Context(), bank.CreateAccountRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Currency:  req.Currency,
		Balance:   req.Balance,
	})
	if err != nil {
		r.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id.String()})
}

func (r *Router) getAccount(c *gin.Context) {
	id, ok := r.accountID(c)
	if !ok {
		return
	}
	state, err := r.service.GetState(c.Request.Context(), id)
	if err != nil {
		r.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (r *Router) getAccountEvents(c *gin.Context) {
	id, ok := r.accountID(c)
	if !ok {
		return
	}
	events, err := r.service.GetHistory(c.Request.Context(), id)
	if err != nil {
		r.renderError(c, err)
		return
	}

	result := make([]gin.H, 0, len(events))
	for _, evt := range events {
		result = append(result, gin.H{
			"eventType":  evt.EventType(),
			"occurredAt": evt.OccurredAt(),
			"payload":    evt,
		})
	}
	c.JSON(http.StatusOK, result)
}

func (r *Router) deleteAccount(c *gin.Context) {
	id, ok := r.accountID(c)
	if !ok {
		return
	}
	if err := r.service.Delete(c.Request.Context(), id); err != nil {
		r.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Router) deposit(c *gin.Context) {
	id, ok := r.accountID(c)
	if !ok {
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Origin string          `json:"origin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := account.DepositCommand{
		BaseCommand: account.NewBaseCommand(id),
		Amount:      req.Amount,
		Origin:      req.Origin,
	}
	r.submit(c, id, cmd)
}

func (r *Router) debit(c *gin.Context) {
	id, ok := r.accountID(c)
	if !ok {
		return
	}
	var req struct {
		Amount    decimal.Decimal `json:"amount"`
		Origin    string          `json:"origin"`
		Reference string          `json:"reference"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := account.DebitCommand{
		BaseCommand: account.NewBaseCommand(id),
		Amount:      req.Amount,
		Origin:      req.Origin,
		Reference:   req.Reference,
	}
	r.submit(c, id, cmd)
}

func (r *Router) transferOut(c *gin.Context) {
	id, ok := r.accountID(c)
	if !ok {
		return
	}
	var req struct {
		Recipient transfer.Recipient `json:"recipient"`
		Amount    decimal.Decimal    `json:"amount"`
		Reference string             `json:"reference"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	transferID := uuid.New()
	cmd := account.TransferCommand{
		BaseCommand: account.NewBaseCommand(id),
		TransferID:  transferID,
		Recipient:   req.Recipient,
		Amount:      req.Amount,
		Reference:   req.Reference,
	}
	if err := r.service.Submit(c.Request.Context(), id, cmd); err != nil {
		r.renderError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"transferId": transferID.String()})
}

func (r *Router) registerRecipient(c *gin.Context) {
	id, ok := r.accountID(c)
	if !ok {
		return
	}
	var req transfer.Recipient
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := account.RegisterTransferRecipientCommand{
		BaseCommand: account.NewBaseCommand(id),
		Recipient:   req,
	}
	r.submit(c, id, cmd)
}

func (r *Router) limitDailyDebits(c *gin.Context) {
	id, ok := r.accountID(c)
	if !ok {
		return
	}
	var req struct {
		Limit decimal.Decimal `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := account.LimitDailyDebitsCommand{
		BaseCommand: account.NewBaseCommand(id),
		DebitLimit:  req.Limit,
	}
	r.submit(c, id, cmd)
}

func (r *Router) lockCard(c *gin.Context) {
	id, ok := r.accountID(c)
	if !ok {
		return
	}
	req := r.referenceBody(c)
	cmd := account.LockCardCommand{
		BaseCommand: account.NewBaseCommand(id),
		Reference:   req,
	}
	r.submit(c, id, cmd)
}

func (r *Router) unlockCard(c *gin.Context) {
	id, ok := r.accountID(c)
	if !ok {
		return
	}
	req := r.referenceBody(c)
	cmd := account.UnlockCardCommand{
		BaseCommand: account.NewBaseCommand(id),
		Reference:   req,
	}
	r.submit(c, id, cmd)
}

func (r *Router) closeAccount(c *gin.Context) {
	id, ok := r.accountID(c)
	if !ok {
		return
	}
	req := r.referenceBody(c)
	cmd := account.CloseAccountCommand{
		BaseCommand: account.NewBaseCommand(id),
		Reference:   req,
	}
	r.submit(c, id, cmd)
}

func (r *Router) breakerState(c *gin.Context) {
	service := c.Param("service")
	state := r.service.BreakerState(service)
	if state == circuitbreaker.StateUnknown {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown service"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"service": service, "state": state})
}

func (r *Router) accountID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return uuid.Nil, false
	}
	return id, true
}

// referenceBody читает опциональное тело {"reference": "..."}
func (r *Router) referenceBody(c *gin.Context) string {
	var req struct {
		Reference string `json:"reference"`
	}
	_ = c.ShouldBindJSON(&req)
	return req.Reference
}

func (r *Router) submit(c *gin.Context, id uuid.UUID, cmd account.Command) {
	if err := r.service.Submit(c.Request.Context(), id, cmd); err != nil {
		r.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// renderError отображает доменные ошибки в HTTP статусы
func (r *Router) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, bank.ErrUnknownAccountID):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, account.ErrInsufficientBalance),
		errors.Is(err, account.ErrExceededDailyDebitLimit),
		errors.Is(err, account.ErrAccountCardLocked),
		errors.Is(err, account.ErrAccountNotActive),
		errors.Is(err, account.ErrRecipientRegistrationRequired):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, account.ErrRecipientAlreadyRegistered),
		errors.Is(err, account.ErrCardAlreadyLocked),
		errors.Is(err, account.ErrCardAlreadyUnlocked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, account.ErrInvalidDepositAmount),
		errors.Is(err, account.ErrInvalidDebitAmount),
		errors.Is(err, account.ErrInvalidDailyDebitLimit):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		r.logger.Error("request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
