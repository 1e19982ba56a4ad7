package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"goride/internal/middleware"
	"goride/internal/service"
)

// PaymentHandler handles checkout and gateway callbacks.
type PaymentHandler struct {
	paymentService *service.PaymentService
	resultURL      string
	logger         *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler. When resultURL is set, gateway callbacks
// redirect the browser to <resultURL>/payment/<outcome> instead of answering with JSON.
func NewPaymentHandler(paymentService *service.PaymentService, resultURL string, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		resultURL:      strings.TrimRight(resultURL, "/"),
		logger:         logger,
	}
}

// InitPaymentResponse is the checkout session handed to the rider.
type InitPaymentResponse struct {
	TransactionID string `json:"transactionId"`
	PaymentURL    string `json:"paymentUrl"`
}

// SettlementResponse is the result of a gateway callback.
type SettlementResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Payment *PaymentResponse `json:"payment,omitempty"`
	Ride    *RideResponse    `json:"ride,omitempty"`
}

// InvoiceResponse points at a stored invoice.
type InvoiceResponse struct {
	InvoiceURL string `json:"invoiceUrl"`
}

// InitPayment handles POST /v1/payments/init/:rideId
func (h *PaymentHandler) InitPayment(c *gin.Context) {
	session, err := h.paymentService.Initiate(c.Request.Context(), c.Param("rideId"), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusCreated, InitPaymentResponse{
		TransactionID: session.TransactionID,
		PaymentURL:    session.PaymentURL,
	})
}

// Success handles the gateway success callback.
func (h *PaymentHandler) Success(c *gin.Context) {
	h.settle(c, "success", h.paymentService.SettleSuccess)
}

// Fail handles the gateway failure callback.
func (h *PaymentHandler) Fail(c *gin.Context) {
	h.settle(c, "fail", h.paymentService.SettleFailure)
}

// Cancel handles the gateway cancel callback.
func (h *PaymentHandler) Cancel(c *gin.Context) {
	h.settle(c, "cancel", h.paymentService.SettleCancel)
}

// GetInvoice handles GET /v1/payments/invoice/:paymentId
func (h *PaymentHandler) GetInvoice(c *gin.Context) {
	locator, err := h.paymentService.GetInvoiceLocator(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusOK, InvoiceResponse{InvoiceURL: locator})
}

func (h *PaymentHandler) settle(
	c *gin.Context,
	outcome string,
	fn func(context.Context, string) (*service.SettlementOutcome, error),
) {
	transactionID := c.Query("transactionId")
	if transactionID == "" {
		// SSLCommerz also posts the id back as tran_id.
		transactionID = c.PostForm("tran_id")
	}
	if transactionID == "" {
		badRequest(c, "transactionId is required")
		return
	}

	result, err := fn(c.Request.Context(), transactionID)
	if err != nil {
		if h.resultURL != "" && mapErrorToHTTPStatus(err) != http.StatusInternalServerError {
			h.redirect(c, "fail", transactionID, err.Error())
			return
		}
		respondError(c, h.logger, err)
		return
	}

	if h.resultURL != "" {
		h.redirect(c, outcome, transactionID, result.Message)
		return
	}

	resp := SettlementResponse{
		Success: result.Success,
		Message: result.Message,
		Payment: paymentResponse(result.Payment),
	}
	if result.Ride != nil {
		ride := rideResponse(result.Ride)
		resp.Ride = &ride
	}
	respondJSON(c, http.StatusOK, resp)
}

func (h *PaymentHandler) redirect(c *gin.Context, outcome, transactionID, message string) {
	q := url.Values{}
	q.Set("transactionId", transactionID)
	q.Set("message", message)
	c.Redirect(http.StatusSeeOther, h.resultURL+"/payment/"+outcome+"?"+q.Encode())
}
