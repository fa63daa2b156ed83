package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/laggedout/storefront-backend/internal/cart"
	"github.com/laggedout/storefront-backend/internal/catalog"
	"github.com/laggedout/storefront-backend/internal/orders"
	"github.com/laggedout/storefront-backend/internal/payments"
	"github.com/laggedout/storefront-backend/internal/purchases"
	"github.com/laggedout/storefront-backend/pkg/config"
	"github.com/laggedout/storefront-backend/pkg/db"
	"github.com/laggedout/storefront-backend/pkg/db/dbtest"
	"github.com/laggedout/storefront-backend/pkg/db/models"
	"github.com/laggedout/storefront-backend/pkg/enums"
	"github.com/laggedout/storefront-backend/pkg/gateway"
	"github.com/laggedout/storefront-backend/pkg/logger"
	"github.com/laggedout/storefront-backend/pkg/outbox"
)

type sandboxStore struct {
	handler http.Handler
	conn    *gorm.DB
	signer  *gateway.Signer
}

func newSandboxStore(t *testing.T, cfg *config.Config, withConfirm bool) sandboxStore {
	t.Helper()
	conn := dbtest.Open(t)
	tx := db.NewFromConn(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logger.Nop())

	cat, err := catalog.NewService(catalog.NewRepository(conn), "USD")
	require.NoError(t, err)
	cartRepo := cart.NewRepository(conn)
	cartSvc, err := cart.NewService(cart.Deps{Repo: cartRepo, Tx: tx, Catalog: cat, Outbox: emitter, Logger: logger.Nop()})
	require.NoError(t, err)

	ordersRepo := orders.NewRepository(conn)
	ordersSvc, err := orders.NewService(orders.Deps{
		Repo:     ordersRepo,
		CartRepo: cartRepo,
		Tx:       tx,
		Catalog:  cat,
		Gateway:  gateway.SandboxGateway{},
		Outbox:   emitter,
		Logger:   logger.Nop(),
		OrderTTL: 30 * time.Minute,
	})
	require.NoError(t, err)

	signer, err := gateway.NewSigner("sandbox-secret")
	require.NoError(t, err)
	paymentsSvc, err := payments.NewService(payments.Deps{
		Orders:    ordersRepo,
		Cart:      cartRepo,
		Purchases: purchases.NewRepository(conn),
		Tx:        tx,
		Signer:    signer,
		Outbox:    emitter,
		Logger:    logger.Nop(),
	})
	require.NoError(t, err)

	deps := Deps{
		DB:       stubPinger{},
		Store:    newFakeStore(),
		Catalog:  cat,
		Cart:     cartSvc,
		Orders:   ordersSvc,
		Payments: paymentsSvc,
	}
	if withConfirm {
		confirmer, err := payments.NewSandboxConfirmer(ordersRepo, signer)
		require.NoError(t, err)
		deps.Sandbox = confirmer
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	return sandboxStore{handler: NewRouter(cfg, logg, deps), conn: conn, signer: signer}
}

func postJSON(t *testing.T, h http.Handler, token, path, body string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp := serve(h, req)
	if out != nil && resp.Code < http.StatusBadRequest {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope), resp.Body.String())
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return resp.Code
}

type orderResponse struct {
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
}

type confirmResponse struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

type verifyResponse struct {
	Status    enums.OrderStatus `json:"status"`
	Purchases []json.RawMessage `json:"purchases"`
}

func TestSandboxCheckoutSettlesThroughVerifyPayment(t *testing.T) {
	cfg := testConfig()
	store := newSandboxStore(t, cfg, true)
	token := buildToken(t, cfg, enums.RoleCustomer)
	game := dbtest.SeedGame(t, store.conn, "Hollow Orbit", 1999)

	require.Equal(t, http.StatusCreated, postJSON(t, store.handler, token, "/api/cart/add", `{"game_id":"`+game.ID.String()+`"}`, nil))

	var order orderResponse
	require.Equal(t, http.StatusCreated, postJSON(t, store.handler, token, "/api/cart/create-order", "", &order))
	assert.Equal(t, int64(1999), order.AmountCents)

	var conf confirmResponse
	require.Equal(t, http.StatusOK, postJSON(t, store.handler, token, "/api/sandbox/confirm", `{"order_id":"`+order.OrderID+`"}`, &conf))
	assert.Equal(t, order.OrderID, conf.OrderID)
	assert.Equal(t, store.signer.Sign(conf.OrderID, conf.PaymentID), conf.Signature)

	body, err := json.Marshal(conf)
	require.NoError(t, err)
	var result verifyResponse
	require.Equal(t, http.StatusOK, postJSON(t, store.handler, token, "/api/cart/verify-payment", string(body), &result))
	assert.Equal(t, enums.OrderStatusVerified, result.Status)
	assert.Len(t, result.Purchases, 1)

	var owned int64
	require.NoError(t, store.conn.Model(&models.Purchase{}).Where("game_id = ?", game.ID).Count(&owned).Error)
	assert.Equal(t, int64(1), owned)
}

func TestSignedCallbackSettlesSingleItemOrder(t *testing.T) {
	cfg := testConfig()
	store := newSandboxStore(t, cfg, false)
	token := buildToken(t, cfg, enums.RoleCustomer)
	game := dbtest.SeedGame(t, store.conn, "Solo", 500)

	var order orderResponse
	require.Equal(t, http.StatusCreated, postJSON(t, store.handler, token, "/api/purchase/create-order", `{"game_id":"`+game.ID.String()+`"}`, &order))

	sig := store.signer.Sign(order.OrderID, "pay_1")
	body := `{"order_id":"` + order.OrderID + `","payment_id":"pay_1","signature":"` + sig + `"}`
	var result verifyResponse
	require.Equal(t, http.StatusOK, postJSON(t, store.handler, token, "/api/purchase/verify-payment", body, &result))
	assert.Equal(t, enums.OrderStatusVerified, result.Status)
}

func TestSandboxConfirmIsNotMountedWithoutSandbox(t *testing.T) {
	cfg := testConfig()
	store := newSandboxStore(t, cfg, false)
	token := buildToken(t, cfg, enums.RoleCustomer)

	code := postJSON(t, store.handler, token, "/api/sandbox/confirm", `{"order_id":"order_x"}`, nil)
	assert.Equal(t, http.StatusNotFound, code)
}
