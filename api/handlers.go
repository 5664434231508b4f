package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kokirinetwork/shop/market"
	"github.com/shopspring/decimal"
)

type assetView struct {
	Id    uint64 `json:"id"`
	Owner string `json:"owner"`
	URI   string `json:"uri"`
	Price string `json:"price,omitempty"`
}

type listingView struct {
	AssetId uint64 `json:"asset_id"`
	Seller  string `json:"seller"`
	Price   string `json:"price"`
}

func listingViews(listings []*market.Listing) []listingView {
	views := make([]listingView, len(listings))
	for i, l := range listings {
		views[i] = listingView{
			AssetId: l.AssetId,
			Seller:  l.Seller,
			Price:   l.Price.String(),
		}
	}
	return views
}

func assetId(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return 0, false
	}
	return id, true
}

func bindAmount(c *gin.Context, raw string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid amount " + raw})
		return decimal.Zero, false
	}
	return amount, true
}

func (s *Server) mintAsset(c *gin.Context) {
	var body struct {
		To  string `json:"to" binding:"required"`
		URI string `json:"uri" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.assets.Mint(caller(c), body.To, body.URI)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) getAsset(c *gin.Context) {
	id, ok := assetId(c)
	if !ok {
		return
	}
	owner, err := s.assets.OwnerOf(id)
	if err != nil {
		abortError(c, err)
		return
	}
	uri, err := s.assets.URIOf(id)
	if err != nil {
		abortError(c, err)
		return
	}
	view := assetView{Id: id, Owner: owner, URI: uri}
	if price, err := s.shop.PriceOf(id); err == nil {
		view.Price = price.String()
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) listAssets(c *gin.Context) {
	owner := c.Query("owner")
	if owner == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing owner"})
		return
	}
	ids, err := s.assets.OwnedBy(owner)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ids": ids})
}

func (s *Server) transferAsset(c *gin.Context) {
	id, ok := assetId(c)
	if !ok {
		return
	}
	var body struct {
		To string `json:"to" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.assets.Transfer(caller(c), body.To, id); err != nil {
		abortError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) approveAsset(c *gin.Context) {
	id, ok := assetId(c)
	if !ok {
		return
	}
	var body struct {
		Operator string `json:"operator"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.assets.Approve(caller(c), body.Operator, id); err != nil {
		abortError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) setPrice(c *gin.Context) {
	id, ok := assetId(c)
	if !ok {
		return
	}
	var body struct {
		Price string `json:"price" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	price, ok := bindAmount(c, body.Price)
	if !ok {
		return
	}
	if err := s.shop.SetPrice(caller(c), id, price); err != nil {
		abortError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getPrice(c *gin.Context) {
	id, ok := assetId(c)
	if !ok {
		return
	}
	price, err := s.shop.PriceOf(id)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset_id": id, "price": price.String()})
}

func (s *Server) offerForSale(c *gin.Context) {
	var body struct {
		AssetId uint64 `json:"asset_id" binding:"required"`
		Price   string `json:"price" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	price, ok := bindAmount(c, body.Price)
	if !ok {
		return
	}
	if err := s.shop.OfferForSale(caller(c), body.AssetId, price); err != nil {
		abortError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) removeSale(c *gin.Context) {
	id, ok := assetId(c)
	if !ok {
		return
	}
	if err := s.shop.RemoveSale(caller(c), id); err != nil {
		abortError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) purchase(c *gin.Context) {
	id, ok := assetId(c)
	if !ok {
		return
	}
	if err := s.shop.Purchase(caller(c), id); err != nil {
		abortError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listSales(c *gin.Context) {
	var listings []*market.Listing
	var err error
	if seller := c.Query("seller"); seller != "" {
		listings, err = s.shop.ListBy(seller)
	} else {
		listings, err = s.shop.ListAll()
	}
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": listingViews(listings)})
}

func (s *Server) listEvents(c *gin.Context) {
	limit := 100
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	events, err := s.store.ListEvents(limit)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) setMinter(c *gin.Context) {
	var body struct {
		Holder string `json:"holder" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.assets.SetMinter(caller(c), body.Holder); err != nil {
		abortError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) setAdmin(c *gin.Context) {
	var body struct {
		Holder string `json:"holder" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.shop.SetAdmin(caller(c), body.Holder); err != nil {
		abortError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) transferToken(c *gin.Context) {
	var body struct {
		To     string `json:"to" binding:"required"`
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, ok := bindAmount(c, body.Amount)
	if !ok {
		return
	}
	if err := s.token.Transfer(caller(c), body.To, amount); err != nil {
		abortError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) approveToken(c *gin.Context) {
	var body struct {
		Spender string `json:"spender" binding:"required"`
		Amount  string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, ok := bindAmount(c, body.Amount)
	if !ok {
		return
	}
	if err := s.token.Approve(caller(c), body.Spender, amount); err != nil {
		abortError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getBalance(c *gin.Context) {
	account := c.Param("account")
	balance, err := s.token.BalanceOf(account)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "balance": balance.String()})
}
