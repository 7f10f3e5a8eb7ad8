package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"merodocs-http-service/internal/domain/models"
	"merodocs-http-service/internal/domain/services"
	"merodocs-http-service/internal/domain/services/container"
	"merodocs-http-service/internal/error/code"
	"merodocs-http-service/internal/infrastructure/config"
	"merodocs-http-service/internal/infrastructure/database"
)

type apiFixture struct {
	router *gin.Engine
	db     *gorm.DB
	jwt    services.InterfaceJWTService

	apartment models.Apartment
	f101      models.Flat
	f102      models.Flat
	alice     models.Client
	dave      models.Client
	guard     models.Guard
	courier   models.VisitProvider
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newAPI(t testing.TB) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		DBDriver:         "sqlite",
		DBName:           filepath.Join(t.TempDir(), "api.db"),
		DBLogLevel:       "silent",
		JWTSecretKey:     "api-test",
		PushProvider:     "log",
		StorageDriver:    "ftp",
		QueueWorkers:     1,
		QueueSize:        16,
		RateLimitRPS:     1e6,
		RateLimitBurst:   1e6,
		CORSAllowOrigins: []string{"*"},
		ExpiryInterval:   time.Hour,
	}
	pool, err := database.NewConnectionPool(cfg)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(pool.GetDB()))

	c, err := container.NewServiceContainer(pool.GetDB(), cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	t.Cleanup(func() {
		cancel()
		c.Close()
		_ = pool.Close()
	})

	fx := &apiFixture{
		router: SetupRouter(c, cfg),
		db:     pool.GetDB(),
		jwt:    c.GetService("jwt").(services.InterfaceJWTService),
	}
	fx.seed(t)
	return fx
}

func (fx *apiFixture) seed(t testing.TB) {
	create := func(v interface{}) { require.NoError(t, fx.db.Create(v).Error) }

	fx.apartment = models.Apartment{Name: "Sunrise"}
	create(&fx.apartment)
	block := models.Block{Name: "A", ApartmentID: fx.apartment.ID}
	create(&block)
	floor := models.Floor{Name: "1F", BlockID: block.ID}
	create(&floor)
	fx.f101 = models.Flat{Name: "101", ApartmentID: fx.apartment.ID, FloorID: floor.ID}
	create(&fx.f101)
	fx.f102 = models.Flat{Name: "102", ApartmentID: fx.apartment.ID, FloorID: floor.ID}
	create(&fx.f102)

	fx.alice = models.Client{Name: "Alice"}
	create(&fx.alice)
	fx.dave = models.Client{Name: "Dave"}
	create(&fx.dave)
	create(&models.FlatClient{FlatID: fx.f101.ID, ClientID: fx.alice.ID, ApartmentID: fx.apartment.ID, Type: models.ResidencyOwner})
	create(&models.FlatClient{FlatID: fx.f102.ID, ClientID: fx.dave.ID, ApartmentID: fx.apartment.ID, Type: models.ResidencyTenant})

	fx.guard = models.Guard{Name: "Gopal", ApartmentID: fx.apartment.ID}
	create(&fx.guard)
	fx.courier = models.VisitProvider{Name: "Daraz", Kind: models.VisitDelivery}
	create(&fx.courier)
}

func (fx *apiFixture) token(t testing.TB, p services.Principal) string {
	t.Helper()
	tok, err := fx.jwt.GenerateToken(p, time.Hour)
	require.NoError(t, err)
	return tok
}

func (fx *apiFixture) guardToken(t testing.TB) string {
	return fx.token(t, services.Guard(fx.guard.ID, fx.apartment.ID))
}

func (fx *apiFixture) clientToken(t testing.TB, c models.Client) string {
	return fx.token(t, services.Resident(c.ID, fx.apartment.ID))
}

func (fx *apiFixture) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func TestPingAndHealth(t *testing.T) {
	fx := newAPI(t)

	w, env := fx.do(t, http.MethodGet, "/api/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, code.ErrSuccess, env.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, _ = fx.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
}

func TestRoleGuards(t *testing.T) {
	fx := newAPI(t)

	w, env := fx.do(t, http.MethodGet, "/api/guard/visits/pending", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, code.ErrTokenInvalid, env.Code)

	w, env = fx.do(t, http.MethodGet, "/api/guard/visits/pending", fx.clientToken(t, fx.alice), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, code.ErrForbidden, env.Code)

	w, _ = fx.do(t, http.MethodGet, "/api/client/visits/pending", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = fx.do(t, http.MethodGet, "/api/guard/visits/pending", fx.guardToken(t), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestManualDeliveryApprovalFlow(t *testing.T) {
	fx := newAPI(t)
	guard := fx.guardToken(t)

	w, env := fx.do(t, http.MethodPost, "/api/guard/visits", guard, map[string]interface{}{
		"kind":        "delivery",
		"provider_id": fx.courier.ID,
		"flat_ids":    []uint{fx.f101.ID, fx.f102.ID},
		"name":        "Daraz rider",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		Visit models.VisitRequest `json:"visit"`
		Event *models.CheckInOut  `json:"event"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, models.OriginManual, result.Visit.Origin)
	require.NotNil(t, result.Event)

	var ticket models.CheckInOutRequest
	require.NoError(t, fx.db.Where("check_in_out_id = ? AND flat_id = ?", result.Event.ID, fx.f101.ID).First(&ticket).Error)

	// dave 不住 101，看不到这张审批单
	path := fmt.Sprintf("/api/client/tickets/%d/approve", ticket.ID)
	w, env = fx.do(t, http.MethodPost, path, fx.clientToken(t, fx.dave), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, code.ErrTicketNotFound, env.Code)

	w, _ = fx.do(t, http.MethodPost, path, fx.clientToken(t, fx.alice), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = fx.do(t, http.MethodPost, fmt.Sprintf("/api/client/tickets/%d/reject", ticket.ID), fx.clientToken(t, fx.alice), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, code.ErrTicketStateInvalid, env.Code)

	require.NoError(t, fx.db.First(&ticket, ticket.ID).Error)
	assert.Equal(t, models.TicketApproved, ticket.Status)
}

func TestCreateVisitValidation(t *testing.T) {
	fx := newAPI(t)
	guard := fx.guardToken(t)

	w, env := fx.do(t, http.MethodPost, "/api/guard/visits", guard, map[string]interface{}{
		"kind":     "plumber",
		"flat_ids": []uint{fx.f101.ID},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, code.ErrBind, env.Code)

	// 门岗登记访客必须有照片
	w, env = fx.do(t, http.MethodPost, "/api/guard/visits", guard, map[string]interface{}{
		"kind":     "guest",
		"flat_ids": []uint{fx.f101.ID},
		"name":     "Ramesh",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, code.ErrImageRequired, env.Code)

	w, _ = fx.do(t, http.MethodGet, "/api/guard/visits/abc", guard, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var n int64
	require.NoError(t, fx.db.Model(&models.VisitRequest{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestClientPreapprovedVisit(t *testing.T) {
	fx := newAPI(t)
	alice := fx.clientToken(t, fx.alice)

	w, _ := fx.do(t, http.MethodPost, "/api/client/visits", alice, map[string]interface{}{
		"kind":     "guest",
		"flat_ids": []uint{fx.f101.ID},
		"name":     "Sita",
		"details":  map[string]interface{}{"guest": map[string]interface{}{"total": 2}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 不能为别人的房屋预约
	w, _ = fx.do(t, http.MethodPost, "/api/client/visits", alice, map[string]interface{}{
		"kind":     "guest",
		"flat_ids": []uint{fx.f102.ID},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env := fx.do(t, http.MethodGet, "/api/client/visits/preapproved?pageSize=5", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items      []models.VisitRequest   `json:"items"`
		Pagination models.PaginationResult `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 1, page.Pagination.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Sita", page.Items[0].Name)

	w, env = fx.do(t, http.MethodGet, "/api/guard/visits/preapproved", fx.guardToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 1, page.Pagination.Total)
}

func TestProvidersAndDevices(t *testing.T) {
	fx := newAPI(t)
	guard := fx.guardToken(t)
	dave := fx.clientToken(t, fx.dave)

	w, _ := fx.do(t, http.MethodPost, "/api/guard/providers", guard, map[string]string{"name": "Pathao", "kind": "ride"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := fx.do(t, http.MethodPost, "/api/client/providers", dave, map[string]string{"name": "pathao", "kind": "ride"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, code.ErrProviderAlreadyExist, env.Code)

	w, env = fx.do(t, http.MethodGet, "/api/client/providers?kind=ride", dave, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var providers []models.VisitProvider
	require.NoError(t, json.Unmarshal(env.Data, &providers))
	require.Len(t, providers, 1)
	assert.Equal(t, "Pathao", providers[0].Name)

	w, _ = fx.do(t, http.MethodPost, "/api/client/devices", dave, map[string]string{"token": "tok-dave", "platform": "ios"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = fx.do(t, http.MethodPost, "/api/client/devices", dave, map[string]string{"token": "bad/#", "platform": "ios"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, code.ErrBind, env.Code)

	w, _ = fx.do(t, http.MethodDelete, "/api/client/devices/tok-dave", dave, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, env = fx.do(t, http.MethodDelete, "/api/client/devices/tok-dave", dave, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, code.ErrDeviceNotFound, env.Code)
}
