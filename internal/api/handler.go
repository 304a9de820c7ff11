package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ismailopm12/gamesbazar.net/internal/models"
	"github.com/ismailopm12/gamesbazar.net/internal/service"
	"github.com/ismailopm12/gamesbazar.net/internal/store"
	"github.com/ismailopm12/gamesbazar.net/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const userIDKey = "userID"

// Handler contains HTTP handlers
type Handler struct {
	checkout    *service.CheckoutService
	fulfillment *service.FulfillmentService
	wallet      *service.WalletService
	inventory   *service.InventoryService
	store       *store.Store
}

// NewHandler creates a new HTTP handler
func NewHandler(
	checkout *service.CheckoutService,
	fulfillment *service.FulfillmentService,
	wallet *service.WalletService,
	inventory *service.InventoryService,
	store *store.Store,
) *Handler {
	return &Handler{
		checkout:    checkout,
		fulfillment: fulfillment,
		wallet:      wallet,
		inventory:   inventory,
		store:       store,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		// the gateway calls back without user identity
		v1.POST("/webhooks/payment", h.paymentWebhook)

		v1.GET("/variants/:id/stock", h.variantStock)

		authed := v1.Group("")
		authed.Use(h.requireUser())
		{
			authed.POST("/checkout", h.createCheckout)
			authed.POST("/topup", h.createTopUp)
			authed.POST("/money-requests", h.createMoneyRequest)
			authed.GET("/wallet", h.walletBalance)
			authed.GET("/orders", h.listMyOrders)
			authed.GET("/orders/:id", h.getOrder)
			authed.GET("/orders/:id/codes", h.getOrderCodes)
		}

		admin := v1.Group("/admin")
		admin.Use(h.requireUser(), h.requireAdmin())
		{
			admin.PATCH("/orders/:id/status", h.adminSetOrderStatus)
			admin.POST("/money-requests/:id/approve", h.adminApproveMoneyRequest)
			admin.POST("/money-requests/:id/reject", h.adminRejectMoneyRequest)
			admin.POST("/variants/:id/codes", h.adminRestockVariant)
		}
	}
}

// requireUser trusts the identity injected by the auth proxy in front of
// this service; authentication itself happens upstream.
func (h *Handler) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing user identity"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// requireAdmin allows only role-table admins through; there are no
// special-cased identities anywhere in code.
func (h *Handler) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(userIDKey)
		isAdmin, err := h.store.HasRole(c.Request.Context(), userID, models.RoleAdmin)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to check role"})
			return
		}
		if !isAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin role required"})
			return
		}
		c.Next()
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Unix()})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready", "time": time.Now().Unix()})
}

// createCheckout handles purchase submissions for all payment methods
func (h *Handler) createCheckout(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	req.UserID = c.GetString(userIDKey)

	resp, err := h.checkout.Checkout(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrVariantUnavailable),
			errors.Is(err, service.ErrMissingTransactionID):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrOutOfStock):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, store.ErrInsufficientBalance):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient wallet balance"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process checkout", "details": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

type topUpRequest struct {
	Amount int64 `json:"amount" binding:"required,min=1"`
}

// createTopUp opens a gateway session for a wallet top-up
func (h *Handler) createTopUp(c *gin.Context) {
	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	session, err := h.checkout.InitiateTopUp(c.Request.Context(), c.GetString(userIDKey), req.Amount)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to initiate top-up", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment_url": session.PaymentURL, "invoice_id": session.InvoiceID})
}

// paymentWebhook is the gateway's asynchronous callback. Validation
// failures get a 400 so misdirected payloads are never acknowledged;
// replays get a 200 so the gateway stops retrying.
func (h *Handler) paymentWebhook(c *gin.Context) {
	var payload service.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook data format"})
		return
	}

	err := h.fulfillment.HandleWebhook(c.Request.Context(), &payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPayload),
			errors.Is(err, service.ErrUnknownInvoice),
			errors.Is(err, service.ErrAmountMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process webhook"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type moneyRequestBody struct {
	Amount        int64  `json:"amount" binding:"required,min=1"`
	PaymentMethod string `json:"payment_method" binding:"required"`
	TransactionID string `json:"transaction_id"`
}

func (h *Handler) createMoneyRequest(c *gin.Context) {
	var body moneyRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	req, err := h.wallet.RequestTopUp(c.Request.Context(), c.GetString(userIDKey),
		body.Amount, body.PaymentMethod, body.TransactionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit request", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, req)
}

func (h *Handler) walletBalance(c *gin.Context) {
	balance, err := h.wallet.Balance(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (h *Handler) listMyOrders(c *gin.Context) {
	orders, err := h.store.GetOrdersByUserID(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// loadOwnOrder fetches an order and enforces that the caller owns it or is
// an admin. Returns nil after writing the error response.
func (h *Handler) loadOwnOrder(c *gin.Context) *models.Order {
	order, err := h.store.GetOrderByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return nil
	}

	userID := c.GetString(userIDKey)
	if order.UserID.Valid && order.UserID.String == userID {
		return order
	}
	if isAdmin, err := h.store.HasRole(c.Request.Context(), userID, models.RoleAdmin); err == nil && isAdmin {
		return order
	}

	c.JSON(http.StatusForbidden, gin.H{"error": "Not your order"})
	return nil
}

func (h *Handler) getOrder(c *gin.Context) {
	order := h.loadOwnOrder(c)
	if order == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *Handler) getOrderCodes(c *gin.Context) {
	order := h.loadOwnOrder(c)
	if order == nil {
		return
	}

	codes, err := h.store.GetCodesByOrderID(c.Request.Context(), order.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load codes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"codes": codes})
}

func (h *Handler) variantStock(c *gin.Context) {
	available, err := h.inventory.AvailableStock(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read stock"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": available})
}

type statusUpdateBody struct {
	Status string `json:"status" binding:"required"`
}

// adminSetOrderStatus drives the order state machine from the back office;
// moving to completed runs the same assign-and-decrement as the webhook.
func (h *Handler) adminSetOrderStatus(c *gin.Context) {
	var body statusUpdateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	err := h.fulfillment.AdminSetStatus(c.Request.Context(), c.Param("id"), body.Status)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		case errors.Is(err, store.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order", "details": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type adminNoteBody struct {
	Note string `json:"note"`
}

func (h *Handler) adminApproveMoneyRequest(c *gin.Context) {
	var body adminNoteBody
	_ = c.ShouldBindJSON(&body)

	err := h.wallet.ApproveMoneyRequest(c.Request.Context(), c.Param("id"), body.Note)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Money request not found"})
		case errors.Is(err, store.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "Request already processed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to approve request", "details": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) adminRejectMoneyRequest(c *gin.Context) {
	var body adminNoteBody
	_ = c.ShouldBindJSON(&body)

	err := h.wallet.RejectMoneyRequest(c.Request.Context(), c.Param("id"), body.Note)
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": "Request already processed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reject request"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type restockBody struct {
	Codes []string `json:"codes" binding:"required,min=1"`
}

func (h *Handler) adminRestockVariant(c *gin.Context) {
	var body restockBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.inventory.Restock(c.Request.Context(), c.Param("id"), body.Codes); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add codes", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"added": len(body.Codes)})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
