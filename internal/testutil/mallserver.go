package testutil

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/erp/mall-admin/internal/domain/pms"
	"github.com/erp/mall-admin/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

// Fake backend credentials and token settings
const (
	AdminUsername = "admin"
	AdminPassword = "macro123"
	TokenHead     = "Bearer "

	unauthorizedMessage = "暂未登录或token已经过期"
)

// Claims is the payload of tokens issued by the fake backend
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// RecordedRequest is what the fake backend saw of one request
type RecordedRequest struct {
	Query  url.Values
	Form   url.Values
	Header http.Header
	Body   []byte
}

type hold struct {
	arrived chan struct{}
	release chan struct{}
	once    sync.Once
}

func (h *hold) open() {
	h.once.Do(func() { close(h.release) })
}

// MallServer is an in-process mall-admin API with seeded catalog data.
// Requests are counted per "METHOD /path"; tests can hold, fail or replace
// the next request to a path.
type MallServer struct {
	URL string

	server   *httptest.Server
	secret   []byte
	tokenTTL time.Duration

	mu             sync.Mutex
	brands         []pms.Brand
	products       []pms.Product
	categories     []pms.ProductCategory
	attrCategories []pms.ProductAttrCategory
	attributes     []pms.ProductAttribute
	nextID         int64
	tokenSeq       int64
	revokedUpTo    int64

	hits      map[string]int
	last      map[string]RecordedRequest
	holds     map[string][]*hold
	allHolds  []*hold
	overrides map[string][]gin.HandlerFunc
}

// NewMallServer starts a fake backend seeded deterministically from seed.
// It is closed when the test ends.
func NewMallServer(t testing.TB, seed uint64) *MallServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &MallServer{
		secret:    []byte("mall-admin-test-secret"),
		tokenTTL:  time.Hour,
		nextID:    100,
		hits:      make(map[string]int),
		last:      make(map[string]RecordedRequest),
		holds:     make(map[string][]*hold),
		overrides: make(map[string][]gin.HandlerFunc),
	}
	s.seed(gofakeit.New(seed))

	s.server = httptest.NewServer(s.routes())
	s.URL = s.server.URL
	t.Cleanup(s.Close)
	return s
}

// Close stops the server and releases held requests
func (s *MallServer) Close() {
	s.mu.Lock()
	for _, h := range s.allHolds {
		h.open()
	}
	s.holds = make(map[string][]*hold)
	s.mu.Unlock()
	s.server.Close()
}

func (s *MallServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.record(), s.intercept())

	r.POST("/admin/login", s.login)

	api := r.Group("/", s.authenticate())
	api.GET("/admin/info", s.info)

	api.GET("/brand/list", s.listBrands)
	api.GET("/brand/:id", s.getBrand)
	api.POST("/brand/create", s.createBrand)
	api.POST("/brand/update/showStatus", s.brandStatus("showStatus"))
	api.POST("/brand/update/factoryStatus", s.brandStatus("factoryStatus"))
	api.POST("/brand/update/:id", s.updateBrand)
	api.GET("/brand/delete/:id", s.deleteBrand)

	api.GET("/product/list", s.listProducts)
	api.GET("/product/simpleList", s.simpleProducts)
	api.GET("/product/updateInfo/:id", s.getProduct)
	api.POST("/product/create", s.createProduct)
	for _, field := range []string{"deleteStatus", "newStatus", "recommendStatus", "publishStatus"} {
		api.POST("/product/update/"+field, s.productStatus(field))
	}
	api.POST("/product/update/:id", s.updateProduct)

	api.GET("/productCategory/list/withChildren", s.categoryTree)
	api.GET("/productCategory/list/:parentId", s.listCategories)
	api.GET("/productCategory/:id", s.getCategory)
	api.POST("/productCategory/create", s.createCategory)
	api.POST("/productCategory/update/showStatus", s.categoryStatus("showStatus"))
	api.POST("/productCategory/update/navStatus", s.categoryStatus("navStatus"))
	api.POST("/productCategory/update/:id", s.updateCategory)
	api.POST("/productCategory/delete/:id", s.deleteCategory)

	api.GET("/productAttribute/category/list", s.listAttrCategories)
	api.GET("/productAttribute/category/list/withAttr", s.attrCategoriesWithAttr)
	api.POST("/productAttribute/category/create", s.createAttrCategory)
	api.POST("/productAttribute/category/update/:id", s.updateAttrCategory)
	api.GET("/productAttribute/category/delete/:id", s.deleteAttrCategory)

	api.GET("/productAttribute/list/:cid", s.listAttributes)
	api.GET("/productAttribute/attrInfo/:pcid", s.attrInfo)
	api.GET("/productAttribute/:id", s.getAttribute)
	api.POST("/productAttribute/create", s.createAttribute)
	api.POST("/productAttribute/update/:id", s.updateAttribute)
	api.POST("/productAttribute/delete", s.deleteAttributes)

	return r
}

// ---------------------------------------------------------------------------
// Test hooks
// ---------------------------------------------------------------------------

// Hits returns how many requests reached method and path
func (s *MallServer) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

// TotalHits returns the number of requests received for any path
func (s *MallServer) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

// LastRequest returns the most recent request to method and path
func (s *MallServer) LastRequest(method, path string) (RecordedRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.last[method+" "+path]
	return r, ok
}

// HoldNext blocks the next request to method and path until release is
// called. arrived is closed once that request has reached the server.
func (s *MallServer) HoldNext(method, path string) (arrived <-chan struct{}, release func()) {
	h := &hold{arrived: make(chan struct{}), release: make(chan struct{})}
	key := method + " " + path

	s.mu.Lock()
	s.holds[key] = append(s.holds[key], h)
	s.allHolds = append(s.allHolds, h)
	s.mu.Unlock()

	return h.arrived, func() {
		s.mu.Lock()
		queue := s.holds[key]
		for i, q := range queue {
			if q == h {
				s.holds[key] = append(queue[:i], queue[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		h.open()
	}
}

// FailNext answers the next request to method and path with an error envelope
func (s *MallServer) FailNext(method, path string, code int, message string) {
	s.ReplyNext(method, path, func(c *gin.Context) {
		c.JSON(http.StatusOK, shared.Fail(code, message))
	})
}

// ReplyRawNext answers the next request to method and path with a raw body
func (s *MallServer) ReplyRawNext(method, path string, status int, body string) {
	s.ReplyNext(method, path, func(c *gin.Context) {
		c.Data(status, "application/json", []byte(body))
	})
}

// ReplyNext replaces the handler of the next request to method and path
func (s *MallServer) ReplyNext(method, path string, handler gin.HandlerFunc) {
	key := method + " " + path
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[key] = append(s.overrides[key], handler)
}

// ExpireTokens rejects every token issued so far
func (s *MallServer) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokedUpTo = s.tokenSeq
}

// IssueToken signs a token for username that expires after ttl. A negative
// ttl yields an already expired token.
func (s *MallServer) IssueToken(username string, ttl time.Duration) string {
	s.mu.Lock()
	s.tokenSeq++
	seq := s.tokenSeq
	s.mu.Unlock()

	now := time.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        strconv.FormatInt(seq, 10),
			Subject:   username,
			Issuer:    "mall-admin-fake",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("signing token: %v", err))
	}
	return token
}

// Brands returns the stored brands ordered by id
func (s *MallServer) Brands() []pms.Brand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pms.Brand(nil), s.brands...)
}

// Brand returns one stored brand
func (s *MallServer) Brand(id int64) (pms.Brand, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.brands {
		if b.ID == id {
			return b, true
		}
	}
	return pms.Brand{}, false
}

// AddBrand stores b under a fresh id and returns the id
func (s *MallServer) AddBrand(b pms.Brand) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.newID()
	s.brands = append(s.brands, b)
	return b.ID
}

// Product returns one stored product
func (s *MallServer) Product(id int64) (pms.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.products, id, func(p pms.Product) int64 { return p.ID })
	if i < 0 {
		return pms.Product{}, false
	}
	return s.products[i], true
}

// Category returns one stored category
func (s *MallServer) Category(id int64) (pms.ProductCategory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.categories, id, func(c pms.ProductCategory) int64 { return c.ID })
	if i < 0 {
		return pms.ProductCategory{}, false
	}
	return s.categories[i], true
}

// Attributes returns the stored attributes of attribute category cid
func (s *MallServer) Attributes(cid int64) []pms.ProductAttribute {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []pms.ProductAttribute
	for _, a := range s.attributes {
		if a.ProductAttributeCategoryID == cid {
			out = append(out, a)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func (s *MallServer) record() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}
		var form url.Values
		if strings.HasPrefix(c.ContentType(), "application/x-www-form-urlencoded") {
			form, _ = url.ParseQuery(string(body))
		}

		key := c.Request.Method + " " + c.Request.URL.Path
		s.mu.Lock()
		s.hits[key]++
		s.last[key] = RecordedRequest{
			Query:  c.Request.URL.Query(),
			Form:   form,
			Header: c.Request.Header.Clone(),
			Body:   body,
		}
		s.mu.Unlock()
		c.Next()
	}
}

func (s *MallServer) intercept() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Request.Method + " " + c.Request.URL.Path

		s.mu.Lock()
		var h *hold
		if queue := s.holds[key]; len(queue) > 0 {
			h = queue[0]
			s.holds[key] = queue[1:]
		}
		var override gin.HandlerFunc
		if queue := s.overrides[key]; len(queue) > 0 {
			override = queue[0]
			s.overrides[key] = queue[1:]
		}
		s.mu.Unlock()

		if h != nil {
			close(h.arrived)
			select {
			case <-h.release:
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		if override != nil {
			override(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// authenticate answers HTTP 200 with envelope code 401 for a missing,
// invalid, expired or revoked token, as the real backend does.
func (s *MallServer) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, TokenHead) {
			c.AbortWithStatusJSON(http.StatusOK, shared.Fail(http.StatusUnauthorized, unauthorizedMessage))
			return
		}

		claims := &Claims{}
		_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, TokenHead), claims,
			func(t *jwt.Token) (any, error) { return s.secret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusOK, shared.Fail(http.StatusUnauthorized, unauthorizedMessage))
			return
		}

		seq, _ := strconv.ParseInt(claims.ID, 10, 64)
		s.mu.Lock()
		revoked := seq <= s.revokedUpTo
		s.mu.Unlock()
		if revoked {
			c.AbortWithStatusJSON(http.StatusOK, shared.Fail(http.StatusUnauthorized, unauthorizedMessage))
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, shared.OK(data))
}

func fail(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, shared.Fail(code, message))
}

func (s *MallServer) login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusNotFound, "参数检验失败")
		return
	}
	if req.Username != AdminUsername || req.Password != AdminPassword {
		fail(c, http.StatusNotFound, "用户名或密码错误")
		return
	}
	ok(c, gin.H{"token": s.IssueToken(req.Username, s.tokenTTL), "tokenHead": TokenHead})
}

func (s *MallServer) info(c *gin.Context) {
	ok(c, gin.H{
		"id":       1,
		"username": c.GetString("username"),
		"nickName": "系统管理员",
		"icon":     "https://example.com/avatar.png",
		"roles":    []string{"超级管理员"},
		"menus":    []any{},
	})
}

func (s *MallServer) listBrands(c *gin.Context) {
	keyword := strings.ToLower(c.Query("keyword"))
	s.mu.Lock()
	var out []pms.Brand
	for _, b := range s.brands {
		if keyword == "" || strings.Contains(strings.ToLower(b.Name), keyword) {
			out = append(out, b)
		}
	}
	s.mu.Unlock()
	ok(c, paginate(c, out))
}

func (s *MallServer) getBrand(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.brands, pathID(c, "id"), func(b pms.Brand) int64 { return b.ID })
	if i < 0 {
		fail(c, http.StatusInternalServerError, "品牌不存在")
		return
	}
	ok(c, s.brands[i])
}

func (s *MallServer) createBrand(c *gin.Context) {
	var b pms.Brand
	if err := c.ShouldBindJSON(&b); err != nil || strings.TrimSpace(b.Name) == "" {
		fail(c, http.StatusNotFound, "参数检验失败")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.newID()
	s.brands = append(s.brands, b)
	ok(c, 1)
}

func (s *MallServer) updateBrand(c *gin.Context) {
	var b pms.Brand
	if err := c.ShouldBindJSON(&b); err != nil {
		fail(c, http.StatusNotFound, "参数检验失败")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(c, "id")
	i := indexOf(s.brands, id, func(b pms.Brand) int64 { return b.ID })
	if i < 0 {
		fail(c, http.StatusInternalServerError, "品牌不存在")
		return
	}
	b.ID = id
	s.brands[i] = b
	ok(c, 1)
}

func (s *MallServer) deleteBrand(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(c, "id")
	i := indexOf(s.brands, id, func(b pms.Brand) int64 { return b.ID })
	if i < 0 {
		fail(c, http.StatusInternalServerError, "品牌不存在")
		return
	}
	s.brands = append(s.brands[:i], s.brands[i+1:]...)
	ok(c, 1)
}

func (s *MallServer) brandStatus(field string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, value, valid := statusParams(c, field)
		if !valid {
			fail(c, http.StatusNotFound, "参数检验失败")
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		count := 0
		for i := range s.brands {
			if !ids[s.brands[i].ID] {
				continue
			}
			if field == "showStatus" {
				s.brands[i].ShowStatus = value
			} else {
				s.brands[i].FactoryStatus = value
			}
			count++
		}
		ok(c, count)
	}
}

func (s *MallServer) listProducts(c *gin.Context) {
	s.mu.Lock()
	out := s.filterProducts(c)
	s.mu.Unlock()
	ok(c, paginate(c, out))
}

func (s *MallServer) simpleProducts(c *gin.Context) {
	s.mu.Lock()
	out := s.filterProducts(c)
	s.mu.Unlock()
	if out == nil {
		out = []pms.Product{}
	}
	ok(c, out)
}

func (s *MallServer) filterProducts(c *gin.Context) []pms.Product {
	keyword := strings.ToLower(c.Query("keyword"))
	sn := c.Query("productSn")
	var out []pms.Product
	for _, p := range s.products {
		if p.DeleteStatus == 1 {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(p.Name), keyword) {
			continue
		}
		if sn != "" && p.ProductSn != sn {
			continue
		}
		if !matchInt64(c, "brandId", p.BrandID) || !matchInt64(c, "productCategoryId", p.ProductCategoryID) {
			continue
		}
		if !matchInt64(c, "publishStatus", int64(p.PublishStatus)) || !matchInt64(c, "verifyStatus", int64(p.VerifyStatus)) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *MallServer) getProduct(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.products, pathID(c, "id"), func(p pms.Product) int64 { return p.ID })
	if i < 0 {
		fail(c, http.StatusInternalServerError, "商品不存在")
		return
	}
	ok(c, s.products[i])
}

func (s *MallServer) createProduct(c *gin.Context) {
	var p pms.Product
	if err := c.ShouldBindJSON(&p); err != nil || strings.TrimSpace(p.Name) == "" {
		fail(c, http.StatusNotFound, "参数检验失败")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.newID()
	s.products = append(s.products, p)
	ok(c, 1)
}

func (s *MallServer) updateProduct(c *gin.Context) {
	var p pms.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusNotFound, "参数检验失败")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(c, "id")
	i := indexOf(s.products, id, func(p pms.Product) int64 { return p.ID })
	if i < 0 {
		fail(c, http.StatusInternalServerError, "商品不存在")
		return
	}
	p.ID = id
	s.products[i] = p
	ok(c, 1)
}

func (s *MallServer) productStatus(field string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, value, valid := statusParams(c, field)
		if !valid {
			fail(c, http.StatusNotFound, "参数检验失败")
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		count := 0
		for i := range s.products {
			p := &s.products[i]
			if !ids[p.ID] {
				continue
			}
			switch field {
			case "deleteStatus":
				p.DeleteStatus = value
			case "newStatus":
				p.NewStatus = value
			case "recommendStatus":
				p.RecommendStatus = value
			case "publishStatus":
				p.PublishStatus = value
			}
			count++
		}
		ok(c, count)
	}
}

func (s *MallServer) listCategories(c *gin.Context) {
	parentID := pathID(c, "parentId")
	s.mu.Lock()
	var out []pms.ProductCategory
	for _, cat := range s.categories {
		if cat.ParentID == parentID {
			out = append(out, cat)
		}
	}
	s.mu.Unlock()
	ok(c, paginate(c, out))
}

func (s *MallServer) categoryTree(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tree := []pms.ProductCategory{}
	for _, top := range s.categories {
		if top.ParentID != 0 {
			continue
		}
		node := top
		for _, child := range s.categories {
			if child.ParentID == top.ID {
				node.Children = append(node.Children, child)
			}
		}
		tree = append(tree, node)
	}
	ok(c, tree)
}

func (s *MallServer) getCategory(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.categories, pathID(c, "id"), func(cat pms.ProductCategory) int64 { return cat.ID })
	if i < 0 {
		fail(c, http.StatusInternalServerError, "分类不存在")
		return
	}
	ok(c, s.categories[i])
}

func (s *MallServer) createCategory(c *gin.Context) {
	var cat pms.ProductCategory
	if err := c.ShouldBindJSON(&cat); err != nil || strings.TrimSpace(cat.Name) == "" {
		fail(c, http.StatusNotFound, "参数检验失败")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cat.ID = s.newID()
	cat.Level = 0
	if cat.ParentID != 0 {
		cat.Level = 1
	}
	s.categories = append(s.categories, cat)
	ok(c, 1)
}

func (s *MallServer) updateCategory(c *gin.Context) {
	var cat pms.ProductCategory
	if err := c.ShouldBindJSON(&cat); err != nil {
		fail(c, http.StatusNotFound, "参数检验失败")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(c, "id")
	i := indexOf(s.categories, id, func(cat pms.ProductCategory) int64 { return cat.ID })
	if i < 0 {
		fail(c, http.StatusInternalServerError, "分类不存在")
		return
	}
	cat.ID = id
	cat.Children = nil
	s.categories[i] = cat
	ok(c, 1)
}

func (s *MallServer) deleteCategory(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(c, "id")
	i := indexOf(s.categories, id, func(cat pms.ProductCategory) int64 { return cat.ID })
	if i < 0 {
		fail(c, http.StatusInternalServerError, "分类不存在")
		return
	}
	for _, other := range s.categories {
		if other.ParentID == id {
			fail(c, http.StatusInternalServerError, "该分类下有子分类，无法删除")
			return
		}
	}
	s.categories = append(s.categories[:i], s.categories[i+1:]...)
	ok(c, 1)
}

func (s *MallServer) categoryStatus(field string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, value, valid := statusParams(c, field)
		if !valid {
			fail(c, http.StatusNotFound, "参数检验失败")
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		count := 0
		for i := range s.categories {
			if !ids[s.categories[i].ID] {
				continue
			}
			if field == "showStatus" {
				s.categories[i].ShowStatus = value
			} else {
				s.categories[i].NavStatus = value
			}
			count++
		}
		ok(c, count)
	}
}

func (s *MallServer) listAttrCategories(c *gin.Context) {
	s.mu.Lock()
	out := make([]pms.ProductAttrCategory, 0, len(s.attrCategories))
	for _, ac := range s.attrCategories {
		out = append(out, s.countAttributes(ac))
	}
	s.mu.Unlock()
	ok(c, paginate(c, out))
}

func (s *MallServer) attrCategoriesWithAttr(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pms.ProductAttrCategory, 0, len(s.attrCategories))
	for _, ac := range s.attrCategories {
		ac = s.countAttributes(ac)
		for _, a := range s.attributes {
			if a.ProductAttributeCategoryID == ac.ID && a.Type == pms.AttributeTypeSpec {
				ac.ProductAttributeList = append(ac.ProductAttributeList, a)
			}
		}
		out = append(out, ac)
	}
	ok(c, out)
}

func (s *MallServer) countAttributes(ac pms.ProductAttrCategory) pms.ProductAttrCategory {
	ac.AttributeCount, ac.ParamCount = 0, 0
	for _, a := range s.attributes {
		if a.ProductAttributeCategoryID != ac.ID {
			continue
		}
		if a.Type == pms.AttributeTypeSpec {
			ac.AttributeCount++
		} else {
			ac.ParamCount++
		}
	}
	return ac
}

func (s *MallServer) createAttrCategory(c *gin.Context) {
	var ac pms.ProductAttrCategory
	if err := c.ShouldBindJSON(&ac); err != nil || strings.TrimSpace(ac.Name) == "" {
		fail(c, http.StatusNotFound, "参数检验失败")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ac.ID = s.newID()
	s.attrCategories = append(s.attrCategories, ac)
	ok(c, 1)
}

func (s *MallServer) updateAttrCategory(c *gin.Context) {
	var ac pms.ProductAttrCategory
	if err := c.ShouldBindJSON(&ac); err != nil {
		fail(c, http.StatusNotFound, "参数检验失败")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(c, "id")
	i := indexOf(s.attrCategories, id, func(ac pms.ProductAttrCategory) int64 { return ac.ID })
	if i < 0 {
		fail(c, http.StatusInternalServerError, "属性分类不存在")
		return
	}
	s.attrCategories[i].Name = ac.Name
	ok(c, 1)
}

func (s *MallServer) deleteAttrCategory(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(c, "id")
	i := indexOf(s.attrCategories, id, func(ac pms.ProductAttrCategory) int64 { return ac.ID })
	if i < 0 {
		fail(c, http.StatusInternalServerError, "属性分类不存在")
		return
	}
	s.attrCategories = append(s.attrCategories[:i], s.attrCategories[i+1:]...)
	kept := s.attributes[:0]
	for _, a := range s.attributes {
		if a.ProductAttributeCategoryID != id {
			kept = append(kept, a)
		}
	}
	s.attributes = kept
	ok(c, 1)
}

func (s *MallServer) listAttributes(c *gin.Context) {
	cid := pathID(c, "cid")
	attrType, err := strconv.Atoi(c.DefaultQuery("type", "0"))
	if err != nil {
		fail(c, http.StatusNotFound, "参数检验失败")
		return
	}
	s.mu.Lock()
	var out []pms.ProductAttribute
	for _, a := range s.attributes {
		if a.ProductAttributeCategoryID == cid && a.Type == attrType {
			out = append(out, a)
		}
	}
	s.mu.Unlock()
	ok(c, paginate(c, out))
}

func (s *MallServer) attrInfo(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.categories, pathID(c, "pcid"), func(cat pms.ProductCategory) int64 { return cat.ID }) < 0 {
		fail(c, http.StatusInternalServerError, "分类不存在")
		return
	}
	info := pms.ProductAttrInfo{AttributeList: []pms.ProductAttribute{}}
	if len(s.attrCategories) > 0 {
		info.AttributeCategoryID = s.attrCategories[0].ID
		for _, a := range s.attributes {
			if a.ProductAttributeCategoryID == info.AttributeCategoryID {
				info.AttributeList = append(info.AttributeList, a)
			}
		}
	}
	ok(c, info)
}

func (s *MallServer) getAttribute(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.attributes, pathID(c, "id"), func(a pms.ProductAttribute) int64 { return a.ID })
	if i < 0 {
		fail(c, http.StatusInternalServerError, "属性不存在")
		return
	}
	ok(c, s.attributes[i])
}

func (s *MallServer) createAttribute(c *gin.Context) {
	var a pms.ProductAttribute
	if err := c.ShouldBindJSON(&a); err != nil || strings.TrimSpace(a.Name) == "" {
		fail(c, http.StatusNotFound, "参数检验失败")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.newID()
	s.attributes = append(s.attributes, a)
	ok(c, 1)
}

func (s *MallServer) updateAttribute(c *gin.Context) {
	var a pms.ProductAttribute
	if err := c.ShouldBindJSON(&a); err != nil {
		fail(c, http.StatusNotFound, "参数检验失败")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(c, "id")
	i := indexOf(s.attributes, id, func(a pms.ProductAttribute) int64 { return a.ID })
	if i < 0 {
		fail(c, http.StatusInternalServerError, "属性不存在")
		return
	}
	a.ID = id
	s.attributes[i] = a
	ok(c, 1)
}

func (s *MallServer) deleteAttributes(c *gin.Context) {
	var ids []int64
	if err := c.ShouldBindJSON(&ids); err != nil || len(ids) == 0 {
		fail(c, http.StatusNotFound, "参数检验失败")
		return
	}
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.attributes[:0]
	for _, a := range s.attributes {
		if !drop[a.ID] {
			kept = append(kept, a)
		}
	}
	count := len(s.attributes) - len(kept)
	s.attributes = kept
	ok(c, count)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *MallServer) newID() int64 {
	s.nextID++
	return s.nextID
}

func paginate[T any](c *gin.Context, items []T) shared.PageResult[T] {
	pageNum, err := strconv.Atoi(c.DefaultQuery("pageNum", "1"))
	if err != nil || pageNum < 1 {
		pageNum = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", "5"))
	if err != nil || pageSize < 1 {
		pageSize = 5
	}
	start := (pageNum - 1) * pageSize
	if start > len(items) {
		start = len(items)
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	page := append([]T(nil), items[start:end]...)
	return shared.NewPageResult(page, len(items), pageNum, pageSize)
}

func indexOf[T any](items []T, id int64, idOf func(T) int64) int {
	for i, item := range items {
		if idOf(item) == id {
			return i
		}
	}
	return -1
}

func pathID(c *gin.Context, name string) int64 {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return -1
	}
	return id
}

// param reads a form field, falling back to the query string
func param(c *gin.Context, name string) string {
	if v, ok := c.GetPostForm(name); ok {
		return v
	}
	return c.Query(name)
}

func statusParams(c *gin.Context, field string) (map[int64]bool, int, bool) {
	value, err := strconv.Atoi(param(c, field))
	if err != nil {
		return nil, 0, false
	}
	ids := make(map[int64]bool)
	for _, raw := range strings.Split(param(c, "ids"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, 0, false
		}
		ids[id] = true
	}
	return ids, value, len(ids) > 0
}

func matchInt64(c *gin.Context, name string, actual int64) bool {
	raw := c.Query(name)
	if raw == "" {
		return true
	}
	want, err := strconv.ParseInt(raw, 10, 64)
	return err == nil && want == actual
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

// Seeded fixture layout. Ids are fixed so that tests can address them.
//
//	brands            1..12
//	categories        21 Clothing {23 T-Shirts, 24 Jackets}, 22 Phones {25 Smartphones}
//	products          31..50, deleteStatus 0
//	attr categories   61 T-Shirt, 62 Phone
//	attributes        71.. (specs and params of 61 and 62)
const (
	SeedBrandCount   = 12
	SeedProductCount = 20
)

func (s *MallServer) seed(f *gofakeit.Faker) {
	for i := 1; i <= SeedBrandCount; i++ {
		name := f.Company()
		s.brands = append(s.brands, pms.Brand{
			ID:            int64(i),
			Name:          name,
			FirstLetter:   strings.ToUpper(name[:1]),
			Sort:          f.IntRange(0, 200),
			FactoryStatus: f.IntRange(0, 1),
			ShowStatus:    f.IntRange(0, 1),
			ProductCount:  f.IntRange(0, 500),
			Logo:          f.URL(),
			BrandStory:    f.Sentence(8),
		})
	}

	s.categories = []pms.ProductCategory{
		{ID: 21, Name: "Clothing", Level: 0, ShowStatus: 1, NavStatus: 1, ProductUnit: "件"},
		{ID: 22, Name: "Phones", Level: 0, ShowStatus: 1, NavStatus: 1, ProductUnit: "台"},
		{ID: 23, ParentID: 21, Name: "T-Shirts", Level: 1, ShowStatus: 1, ProductUnit: "件"},
		{ID: 24, ParentID: 21, Name: "Jackets", Level: 1, ShowStatus: 1, ProductUnit: "件"},
		{ID: 25, ParentID: 22, Name: "Smartphones", Level: 1, ShowStatus: 1, ProductUnit: "台"},
	}
	leaves := []int64{23, 24, 25}

	for i := 0; i < SeedProductCount; i++ {
		price := decimal.NewFromFloat(f.Price(10, 5000)).Round(2)
		s.products = append(s.products, pms.Product{
			ID:                int64(31 + i),
			BrandID:           int64(f.IntRange(1, SeedBrandCount)),
			ProductCategoryID: leaves[i%len(leaves)],
			Name:              f.ProductName(),
			Pic:               f.URL(),
			ProductSn:         fmt.Sprintf("SN%04d", i+1),
			PublishStatus:     f.IntRange(0, 1),
			NewStatus:         f.IntRange(0, 1),
			RecommendStatus:   f.IntRange(0, 1),
			VerifyStatus:      1,
			Sort:              f.IntRange(0, 100),
			Price:             price,
			OriginalPrice:     price.Add(decimal.NewFromInt(int64(f.IntRange(0, 100)))),
			Stock:             f.IntRange(0, 1000),
			LowStock:          10,
			Unit:              "件",
			Weight:            decimal.NewFromFloat(f.Float64Range(0.1, 5)).Round(2),
			SubTitle:          f.Sentence(6),
		})
	}

	s.attrCategories = []pms.ProductAttrCategory{
		{ID: 61, Name: "T-Shirt"},
		{ID: 62, Name: "Phone"},
	}
	attrs := []struct {
		cid       int64
		name      string
		attrType  int
		inputList string
	}{
		{61, "Color", pms.AttributeTypeSpec, "Black,White,Red"},
		{61, "Size", pms.AttributeTypeSpec, "S,M,L,XL"},
		{61, "Material", pms.AttributeTypeParam, ""},
		{62, "Storage", pms.AttributeTypeSpec, "128G,256G,512G"},
		{62, "Screen", pms.AttributeTypeParam, ""},
		{62, "Battery", pms.AttributeTypeParam, ""},
	}
	for i, a := range attrs {
		selectType := 0
		if a.inputList != "" {
			selectType = 1
		}
		s.attributes = append(s.attributes, pms.ProductAttribute{
			ID:                         int64(71 + i),
			ProductAttributeCategoryID: a.cid,
			Name:                       a.name,
			SelectType:                 selectType,
			InputType:                  selectType,
			InputList:                  a.inputList,
			Type:                       a.attrType,
		})
	}

	sort.Slice(s.brands, func(i, j int) bool { return s.brands[i].ID < s.brands[j].ID })
}
