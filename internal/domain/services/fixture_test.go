package services

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"
	"gorm.io/gorm"

	"merodocs-http-service/internal/domain/models"
	"merodocs-http-service/internal/infrastructure/config"
	"merodocs-http-service/internal/infrastructure/database"
	"merodocs-http-service/internal/infrastructure/events"
	"merodocs-http-service/internal/infrastructure/metrics"
	"merodocs-http-service/internal/infrastructure/push"
	"merodocs-http-service/internal/infrastructure/storage"
)

// fixture 一个小区 Sunrise：
//
//	101 业主 alice，家属 carol，离线的 bob
//	102 租户 dave，家属 bob
//	103 已归档，业主 erin
//
// 另一个小区 Harbor 的 201 业主 frank
type fixture struct {
	db *gorm.DB

	apartment models.Apartment
	other     models.Apartment
	f101      models.Flat
	f102      models.Flat
	f103      models.Flat
	f201      models.Flat

	alice models.Client
	bob   models.Client
	carol models.Client
	dave  models.Client
	erin  models.Client
	frank models.Client

	guard      models.Guard
	otherGuard models.Guard
	gate       models.SurveillancePoint

	courier      models.VisitProvider // 全局快递
	taxi         models.VisitProvider // 本小区网约车
	alicePlumber models.VisitProvider // alice 私有的服务
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	pool, err := database.NewConnectionPool(&config.Config{
		DBDriver:   "sqlite",
		DBName:     filepath.Join(t.TempDir(), "gate.db"),
		DBLogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	require.NoError(t, database.AutoMigrate(pool.GetDB()))
	return pool.GetDB()
}

func seedFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	fx := &fixture{db: db}

	create := func(v interface{}) {
		require.NoError(t, db.Create(v).Error)
	}

	fx.apartment = models.Apartment{Name: "Sunrise"}
	create(&fx.apartment)
	fx.other = models.Apartment{Name: "Harbor"}
	create(&fx.other)

	block := models.Block{Name: "A", ApartmentID: fx.apartment.ID}
	create(&block)
	floor := models.Floor{Name: "1F", BlockID: block.ID}
	create(&floor)
	otherBlock := models.Block{Name: "B", ApartmentID: fx.other.ID}
	create(&otherBlock)
	otherFloor := models.Floor{Name: "2F", BlockID: otherBlock.ID}
	create(&otherFloor)

	fx.f101 = models.Flat{Name: "101", ApartmentID: fx.apartment.ID, FloorID: floor.ID}
	create(&fx.f101)
	fx.f102 = models.Flat{Name: "102", ApartmentID: fx.apartment.ID, FloorID: floor.ID}
	create(&fx.f102)
	fx.f103 = models.Flat{Name: "103", ApartmentID: fx.apartment.ID, FloorID: floor.ID}
	create(&fx.f103)
	require.NoError(t, db.Model(&fx.f103).Update("archive", true).Error)
	fx.f201 = models.Flat{Name: "201", ApartmentID: fx.other.ID, FloorID: otherFloor.ID}
	create(&fx.f201)

	fx.alice = models.Client{Name: "Alice", Phone: "9800000001", ImageURL: "https://cdn.test/alice.jpg"}
	fx.bob = models.Client{Name: "Bob", Phone: "9800000002"}
	fx.carol = models.Client{Name: "Carol", Phone: "9800000003"}
	fx.dave = models.Client{Name: "Dave", Phone: "9800000004"}
	fx.erin = models.Client{Name: "Erin", Phone: "9800000005"}
	fx.frank = models.Client{Name: "Frank", Phone: "9800000006"}
	for _, c := range []*models.Client{&fx.alice, &fx.bob, &fx.carol, &fx.dave, &fx.erin, &fx.frank} {
		create(c)
	}

	reside := func(flat models.Flat, c models.Client, typ models.ResidencyType, offline bool) {
		r := models.FlatClient{FlatID: flat.ID, ClientID: c.ID, ApartmentID: flat.ApartmentID, Type: typ}
		create(&r)
		if offline {
			require.NoError(t, db.Model(&r).Update("offline", true).Error)
		}
	}
	reside(fx.f101, fx.alice, models.ResidencyOwner, false)
	reside(fx.f101, fx.carol, models.ResidencyOwnerFamily, false)
	reside(fx.f101, fx.bob, models.ResidencyTenant, true)
	reside(fx.f102, fx.dave, models.ResidencyTenant, false)
	reside(fx.f102, fx.bob, models.ResidencyTenantFamily, false)
	reside(fx.f103, fx.erin, models.ResidencyOwner, false)
	reside(fx.f201, fx.frank, models.ResidencyOwner, false)

	device := func(c models.Client, token string) {
		create(&models.ClientDevice{ClientID: c.ID, Token: token, Platform: "android"})
	}
	device(fx.alice, "tok-alice-1")
	device(fx.alice, "tok-alice-2")
	device(fx.bob, "tok-bob")
	device(fx.carol, "tok-carol")
	device(fx.dave, "tok-dave")
	device(fx.frank, "tok-frank")

	fx.guard = models.Guard{Name: "Gopal", ApartmentID: fx.apartment.ID}
	create(&fx.guard)
	fx.otherGuard = models.Guard{Name: "Hari", ApartmentID: fx.other.ID}
	create(&fx.otherGuard)
	fx.gate = models.SurveillancePoint{Name: "Main gate", ApartmentID: fx.apartment.ID}
	create(&fx.gate)

	fx.courier = models.VisitProvider{Name: "Daraz", Kind: models.VisitDelivery}
	create(&fx.courier)
	fx.taxi = models.VisitProvider{Name: "Pathao", Kind: models.VisitRide, ApartmentID: null.IntFrom(int64(fx.apartment.ID))}
	create(&fx.taxi)
	fx.alicePlumber = models.VisitProvider{
		Name:              "Plumber",
		Kind:              models.VisitService,
		ApartmentID:       null.IntFrom(int64(fx.apartment.ID)),
		CreatedByClientID: null.IntFrom(int64(fx.alice.ID)),
	}
	create(&fx.alicePlumber)

	return fx
}

func (fx *fixture) guardOf() Principal { return Guard(fx.guard.ID, fx.apartment.ID) }
func (fx *fixture) residentOf(c models.Client) Principal { return Resident(c.ID, fx.apartment.ID) }

// harness 服务层依赖：sqlite、mock 存储、mock 推送、内存事件
type harness struct {
	*fixture
	now           time.Time
	store         *storage.MockStorage
	push          *push.MockProvider
	events        *events.MemoryPublisher
	recipients    InterfaceRecipientService
	notifications InterfaceNotificationService
	visits        *VisitService
	tickets       *TicketService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fx := seedFixture(t)
	h := &harness{
		fixture: fx,
		now:     time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		store:   new(storage.MockStorage),
		push:    new(push.MockProvider),
		events:  &events.MemoryPublisher{},
	}
	h.push.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	h.store.On("Upload", mock.Anything, mock.Anything).
		Return(storage.UploadedFile{URL: "https://cdn.test/gate.jpg", Name: "gate.jpg"}, nil).Maybe()
	h.store.On("Delete", mock.Anything, mock.Anything).Return(nil).Maybe()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	h.recipients = NewRecipientService(fx.db)
	groups := NewDBGroupGuard(fx.db, 24*time.Hour)
	groups.Now = func() time.Time { return h.now }
	h.notifications = NewNotificationService(fx.db, h.push, nil, groups, nil, m, 4)
	h.visits = NewVisitService(fx.db, h.store, NewSnapshotService(), h.recipients, h.notifications, h.events, m).(*VisitService)
	h.visits.Now = func() time.Time { return h.now }
	h.tickets = NewTicketService(fx.db, h.recipients, h.notifications, h.events, m).(*TicketService)
	h.tickets.Now = func() time.Time { return h.now }
	return h
}

func photo(name string) *storage.File {
	return &storage.File{Name: name, Reader: strings.NewReader("jpeg")}
}

func (h *harness) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := h.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func (h *harness) pushedTo() []string {
	var endpoints []string
	for _, call := range h.push.Calls {
		if call.Method == "Send" {
			endpoints = append(endpoints, call.Arguments.String(1))
		}
	}
	return endpoints
}
