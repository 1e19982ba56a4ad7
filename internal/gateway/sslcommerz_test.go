package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goride/internal/service"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) (*SSLCommerz, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g := NewSSLCommerz(Config{
		BaseURL:       srv.URL,
		StoreID:       "store",
		StorePassword: "secret",
		SuccessURL:    "https://api.example.com/v1/payments/success",
		FailURL:       "https://api.example.com/v1/payments/fail",
		CancelURL:     "https://api.example.com/v1/payments/cancel",
	}, srv.Client(), zap.NewNop())
	return g, srv
}

func TestInitPayment_Success(t *testing.T) {
	var form url.Values
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, initPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"SUCCESS","sessionkey":"abc","GatewayPageURL":"https://pay.example.com/abc"}`))
	})

	session, err := g.InitPayment(context.Background(), service.GatewayRequest{
		Name:          "Rahim",
		Email:         "rahim@example.com",
		Amount:        decimal.RequireFromString("250.5"),
		TransactionID: "RIDE-1-ABCDEFGH-123456",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://pay.example.com/abc", session.PaymentURL)
	assert.Equal(t, "RIDE-1-ABCDEFGH-123456", session.TransactionID)
	assert.JSONEq(t, `{"status":"SUCCESS","sessionkey":"abc","GatewayPageURL":"https://pay.example.com/abc"}`, string(session.Raw))

	assert.Equal(t, "250.50", form.Get("total_amount"))
	assert.Equal(t, "BDT", form.Get("currency"))
	assert.Equal(t, "RIDE-1-ABCDEFGH-123456", form.Get("tran_id"))
	assert.Equal(t, "Dhaka, Bangladesh", form.Get("cus_add1"))
	assert.Equal(t, "01700000000", form.Get("cus_phone"))

	success, err := url.Parse(form.Get("success_url"))
	require.NoError(t, err)
	assert.Equal(t, "RIDE-1-ABCDEFGH-123456", success.Query().Get("transactionId"))
	assert.Equal(t, "success", success.Query().Get("status"))
}

func TestInitPayment_Rejected(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"FAILED","failedreason":"Store Credential Error"}`))
	})

	_, err := g.InitPayment(context.Background(), service.GatewayRequest{TransactionID: "t", Amount: decimal.NewFromInt(10)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionRejected)
	assert.Contains(t, err.Error(), "Store Credential Error")
}

func TestInitPayment_HTTPError(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := g.InitPayment(context.Background(), service.GatewayRequest{TransactionID: "t", Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, ErrSessionRejected)
}

func TestCallbackURL_AppendsToExistingQuery(t *testing.T) {
	got := callbackURL("https://x.test/cb?src=app", "T1", "1.00", "fail")
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "app", u.Query().Get("src"))
	assert.Equal(t, "T1", u.Query().Get("transactionId"))
}
