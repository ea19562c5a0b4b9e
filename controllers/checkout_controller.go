package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"payment-reconciler/gateway"
	"payment-reconciler/middleware"
	"payment-reconciler/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CheckoutController struct {
	Sessions *services.SessionManager
	Logger   *zap.Logger
}

type openCheckoutRequest struct {
	OrderID    string `json:"order_id" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,min=1"`
	TerminalID string `json:"terminal_id" binding:"required"`
}

// OpenCheckout requests a fresh PaymentIntent from the backend and opens a
// reconciliation session for it. The response carries everything the terminal
// UI needs to mount the widget.
func (cc *CheckoutController) OpenCheckout(c *gin.Context) {
	var req openCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	creds := middleware.GetCredentials(c)
	session, err := cc.Sessions.Open(c.Request.Context(), creds, req.TerminalID, req.OrderID, req.Amount)
	if err != nil {
		if errors.Is(err, gateway.ErrTerminalBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		cc.Logger.Error("Failed to open checkout session",
			zap.String("order_id", req.OrderID),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create payment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"payment":    session.Intent,
		"script_url": gateway.ScriptURL(session.Intent.ClientKey),
		"production": gateway.IsProduction(session.Intent.ClientKey),
	})
}

type signalRequest struct {
	Event   string          `json:"event" binding:"required"`
	Message string          `json:"message"`
	Payload json.RawMessage `json:"payload"`
}

// SubmitSignal ingests one widget callback forwarded by the terminal UI.
func (cc *CheckoutController) SubmitSignal(c *gin.Context) {
	var req signalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind, err := gateway.ParseSignalKind(req.Event)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sig := gateway.Signal{Kind: kind, Message: req.Message, Raw: req.Payload}
	if err := cc.Sessions.Signal(c.Request.Context(), c.Param("session_id"), sig); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	state, result := cc.sessionState(c.Param("session_id"))
	c.JSON(http.StatusOK, gin.H{"state": state, "result": result})
}

// CheckoutStatus reports the session's reconciliation state. The terminal UI
// drives its spinner/confirmation/error screens off this.
func (cc *CheckoutController) CheckoutStatus(c *gin.Context) {
	session, ok := cc.Sessions.Get(c.Param("session_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": services.ErrSessionNotFound.Error()})
		return
	}
	state, result := session.State()
	c.JSON(http.StatusOK, gin.H{"state": state, "result": result})
}

// CloseCheckout abandons the session: the poller stops, no further
// transitions are accepted and the terminal's interaction lease is released.
func (cc *CheckoutController) CloseCheckout(c *gin.Context) {
	if err := cc.Sessions.Close(c.Param("session_id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

func (cc *CheckoutController) sessionState(sessionID string) (interface{}, interface{}) {
	session, ok := cc.Sessions.Get(sessionID)
	if !ok {
		return nil, nil
	}
	state, result := session.State()
	return state, result
}
