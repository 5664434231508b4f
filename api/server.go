package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/kokirinetwork/shop/market"
	"github.com/kokirinetwork/shop/payment"
	"go.uber.org/zap"
)

// Server exposes every public operation of the shop over HTTP. The
// caller identity of mutating routes comes from the bearer token's
// subject claim.
type Server struct {
	assets *market.AssetLedger
	shop   *market.Marketplace
	token  *payment.Ledger
	store  market.Store
	secret []byte
	log    *zap.SugaredLogger
}

func NewServer(assets *market.AssetLedger, shop *market.Marketplace, token *payment.Ledger, store market.Store, secret string, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		assets: assets,
		shop:   shop,
		token:  token,
		store:  store,
		secret: []byte(secret),
		log:    log,
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/assets", s.listAssets)
	r.GET("/assets/:id", s.getAsset)
	r.GET("/assets/:id/price", s.getPrice)
	r.GET("/sales", s.listSales)
	r.GET("/events", s.listEvents)
	r.GET("/token/balance/:account", s.getBalance)

	auth := r.Group("/", s.authenticate)
	auth.POST("/assets", s.mintAsset)
	auth.POST("/assets/:id/transfer", s.transferAsset)
	auth.POST("/assets/:id/approve", s.approveAsset)
	auth.PUT("/assets/:id/price", s.setPrice)
	auth.POST("/sales", s.offerForSale)
	auth.DELETE("/sales/:id", s.removeSale)
	auth.POST("/sales/:id/purchase", s.purchase)
	auth.POST("/roles/minter", s.setMinter)
	auth.POST("/roles/admin", s.setAdmin)
	auth.POST("/token/transfer", s.transferToken)
	auth.POST("/token/approve", s.approveToken)
	return r
}

func (s *Server) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	tkn, err := jwt.Parse(header[7:], func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tkn.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	caller, err := tkn.Claims.GetSubject()
	if err != nil || caller == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing subject"})
		return
	}
	c.Set("caller", caller)
	c.Next()
}

func caller(c *gin.Context) string {
	return c.GetString("caller")
}

func abortError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusOf(err), gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, market.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, market.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, market.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, market.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, market.ErrRetryable):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
