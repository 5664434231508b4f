package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/kokirinetwork/shop/market"
	"github.com/kokirinetwork/shop/payment"
	"github.com/kokirinetwork/shop/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	testSecret  = "test-secret"
	testMinter  = "minter-key"
	testAdmin   = "admin-key"
	testIssuer  = "token-issuer"
	testAddress = "shop-address"
)

type apiEnv struct {
	router *gin.Engine
	token  *payment.Ledger
	assets *market.AssetLedger
	shop   *market.Marketplace
}

func testServer(t *testing.T) *apiEnv {
	gin.SetMode(gin.TestMode)

	db, err := store.OpenBadger(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	roles := market.NewAccessControl(db)
	require.NoError(t, roles.Bootstrap(testMinter, testAdmin))
	token := payment.NewLedger(db.Badger(), "GYA")
	require.NoError(t, token.Bootstrap(testIssuer))

	assets := market.NewAssetLedger(db, roles, nil)
	shop := market.NewMarketplace(testAddress, db, assets, token, roles, nil)
	srv := NewServer(assets, shop, token, db, testSecret, nil)
	return &apiEnv{router: srv.Router(), token: token, assets: assets, shop: shop}
}

func signToken(t *testing.T, subject string) string {
	tkn := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject})
	signed, err := tkn.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (env *apiEnv) do(t *testing.T, method, path, subject string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if subject != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, subject))
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func TestAPIAuthentication(t *testing.T) {
	require := require.New(t)
	env := testServer(t)

	w := env.do(t, "POST", "/assets", "", gin.H{"to": "alice", "uri": "u1"})
	require.Equal(http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest("POST", "/assets", bytes.NewBufferString("{}"))
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(http.StatusUnauthorized, w.Code)
}

func TestAPIMint(t *testing.T) {
	require := require.New(t)
	env := testServer(t)

	w := env.do(t, "POST", "/assets", "alice", gin.H{"to": "alice", "uri": "u1"})
	require.Equal(http.StatusForbidden, w.Code)

	w = env.do(t, "POST", "/assets", testMinter, gin.H{"to": "alice", "uri": "u1"})
	require.Equal(http.StatusCreated, w.Code)
	var created struct {
		Id uint64 `json:"id"`
	}
	require.NoError(json.Unmarshal(w.Body.Bytes(), &created))
	require.Equal(uint64(1), created.Id)

	w = env.do(t, "GET", "/assets/1", "", nil)
	require.Equal(http.StatusOK, w.Code)
	var view assetView
	require.NoError(json.Unmarshal(w.Body.Bytes(), &view))
	require.Equal("alice", view.Owner)
	require.Equal("u1", view.URI)

	w = env.do(t, "GET", "/assets/42", "", nil)
	require.Equal(http.StatusNotFound, w.Code)
}

func TestAPIPurchaseFlow(t *testing.T) {
	require := require.New(t)
	env := testServer(t)

	w := env.do(t, "POST", "/assets", testMinter, gin.H{"to": "seller", "uri": "u1"})
	require.Equal(http.StatusCreated, w.Code)

	w = env.do(t, "POST", "/assets/1/approve", "seller", gin.H{"operator": testAddress})
	require.Equal(http.StatusNoContent, w.Code)

	w = env.do(t, "POST", "/sales", "seller", gin.H{"asset_id": 1, "price": "30"})
	require.Equal(http.StatusCreated, w.Code)

	// listing re-offer conflicts
	w = env.do(t, "POST", "/sales", "seller", gin.H{"asset_id": 1, "price": "50"})
	require.Equal(http.StatusConflict, w.Code)

	w = env.do(t, "GET", "/sales", "", nil)
	require.Equal(http.StatusOK, w.Code)
	var sales struct {
		Sales []listingView `json:"sales"`
	}
	require.NoError(json.Unmarshal(w.Body.Bytes(), &sales))
	require.Len(sales.Sales, 1)
	require.Equal("30", sales.Sales[0].Price)

	// an unfunded buyer is rejected with payment required
	w = env.do(t, "POST", "/sales/1/purchase", "buyer", nil)
	require.Equal(http.StatusPaymentRequired, w.Code)

	require.NoError(env.token.Issue(testIssuer, "buyer", decimal.NewFromInt(100)))
	w = env.do(t, "POST", "/token/approve", "buyer", gin.H{"spender": testAddress, "amount": "100"})
	require.Equal(http.StatusNoContent, w.Code)

	w = env.do(t, "POST", "/sales/1/purchase", "buyer", nil)
	require.Equal(http.StatusNoContent, w.Code)

	w = env.do(t, "GET", "/assets/1", "", nil)
	require.Equal(http.StatusOK, w.Code)
	var view assetView
	require.NoError(json.Unmarshal(w.Body.Bytes(), &view))
	require.Equal("buyer", view.Owner)

	w = env.do(t, "GET", "/sales", "", nil)
	require.NoError(json.Unmarshal(w.Body.Bytes(), &sales))
	require.Empty(sales.Sales)

	w = env.do(t, "GET", "/token/balance/seller", "", nil)
	require.Equal(http.StatusOK, w.Code)
	var balance struct {
		Balance string `json:"balance"`
	}
	require.NoError(json.Unmarshal(w.Body.Bytes(), &balance))
	require.Equal("30", balance.Balance)

	w = env.do(t, "GET", "/events", "", nil)
	require.Equal(http.StatusOK, w.Code)
}

func TestAPIRemoveSale(t *testing.T) {
	require := require.New(t)
	env := testServer(t)

	w := env.do(t, "POST", "/assets", testMinter, gin.H{"to": "seller", "uri": "u1"})
	require.Equal(http.StatusCreated, w.Code)
	w = env.do(t, "POST", "/sales", "seller", gin.H{"asset_id": 1, "price": "30"})
	require.Equal(http.StatusCreated, w.Code)

	w = env.do(t, "DELETE", "/sales/1", "buyer", nil)
	require.Equal(http.StatusForbidden, w.Code)
	w = env.do(t, "DELETE", "/sales/1", "seller", nil)
	require.Equal(http.StatusNoContent, w.Code)
	w = env.do(t, "DELETE", "/sales/1", "seller", nil)
	require.Equal(http.StatusNotFound, w.Code)

	// the price record survives the delisting
	w = env.do(t, "GET", "/assets/1/price", "", nil)
	require.Equal(http.StatusOK, w.Code)
	var price struct {
		Price string `json:"price"`
	}
	require.NoError(json.Unmarshal(w.Body.Bytes(), &price))
	require.Equal("30", price.Price)
}
