package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"merodocs-http-service/internal/domain/models"
	"merodocs-http-service/internal/error/code"
	"merodocs-http-service/internal/infrastructure/events"
	"merodocs-http-service/internal/infrastructure/storage"
)

func (h *harness) guestAt(t *testing.T, flatIDs ...uint) *VisitResult {
	t.Helper()
	res, err := h.visits.CreateVisit(context.Background(), h.guardOf(), CreateVisitInput{
		Kind:    models.VisitGuest,
		FlatIDs: flatIDs,
		Photo:   photo("guest.jpg"),
	})
	require.NoError(t, err)
	return res
}

func (h *harness) parcelAt(t *testing.T, flatIDs ...uint) *VisitResult {
	t.Helper()
	courier := h.courier.ID
	res, err := h.visits.CreateVisit(context.Background(), h.guardOf(), CreateVisitInput{
		Kind:       models.VisitDelivery,
		ProviderID: &courier,
		FlatIDs:    flatIDs,
		Details:    models.VisitDetails{Delivery: &models.DeliveryDetails{LeaveAtGate: true}},
		Images:     []storage.File{*photo("box.jpg")},
	})
	require.NoError(t, err)
	return res
}

func (h *harness) visitStatus(t *testing.T, id uint) models.VisitStatus {
	t.Helper()
	var v models.VisitRequest
	require.NoError(t, h.db.First(&v, id).Error)
	return v.Status
}

func TestDecide_AnyApprovalApprovesVisit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.guestAt(t, h.f101.ID, h.f102.ID)
	t101 := ticketFor(t, h, res, h.f101.ID)
	t102 := ticketFor(t, h, res, h.f102.ID)

	// alice 不住 102
	_, err := h.tickets.Decide(ctx, h.residentOf(h.alice), t102.ID, false)
	assert.True(t, code.Is(err, code.ErrTicketNotFound))

	ticket, err := h.tickets.Decide(ctx, h.residentOf(h.alice), t101.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.TicketApproved, ticket.Status)
	assert.Equal(t, int64(h.alice.ID), ticket.ApprovedByClientID.Int64)
	assert.Equal(t, models.VisitApproved, h.visitStatus(t, res.Visit.ID))

	_, err = h.tickets.Decide(ctx, h.residentOf(h.dave), t102.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.VisitApproved, h.visitStatus(t, res.Visit.ID))

	// 终态不可再改
	_, err = h.tickets.Decide(ctx, h.residentOf(h.alice), t101.ID, false)
	assert.True(t, code.Is(err, code.ErrTicketStateInvalid))
	var reloaded models.CheckInOutRequest
	require.NoError(t, h.db.First(&reloaded, t101.ID).Error)
	assert.Equal(t, models.TicketApproved, reloaded.Status)

	assert.Contains(t, h.events.Subjects(), events.TicketApproved)
	assert.Contains(t, h.events.Subjects(), events.TicketRejected)
	assert.EqualValues(t, 2, h.count(t, &models.Notification{}, "recipient_type = ? AND recipient_id = ?", models.RecipientGuard, h.guard.ID))
}

func TestDecide_AllRejectedRejectsVisit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.guestAt(t, h.f101.ID, h.f102.ID)

	_, err := h.tickets.Decide(ctx, h.residentOf(h.carol), ticketFor(t, h, res, h.f101.ID).ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.VisitPending, h.visitStatus(t, res.Visit.ID))

	_, err = h.tickets.Decide(ctx, h.residentOf(h.bob), ticketFor(t, h, res, h.f102.ID).ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.VisitRejected, h.visitStatus(t, res.Visit.ID))
}

func TestDecide_OfflineResidentCannotDecide(t *testing.T) {
	h := newHarness(t)
	res := h.guestAt(t, h.f101.ID)

	_, err := h.tickets.Decide(context.Background(), h.residentOf(h.bob), ticketFor(t, h, res, h.f101.ID).ID, true)
	assert.True(t, code.Is(err, code.ErrTicketNotFound))
}

func TestParcel_ConfirmThenHandOver(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.parcelAt(t, h.f101.ID)
	ticket := ticketFor(t, h, res, h.f101.ID)
	require.Equal(t, models.TicketParcel, ticket.Type)

	confirmed, err := h.tickets.ConfirmCollected(ctx, h.residentOf(h.alice), ticket.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.HasUserConfirmed)

	_, err = h.tickets.ConfirmCollected(ctx, h.residentOf(h.carol), ticket.ID)
	assert.True(t, code.Is(err, code.ErrTicketAlreadyConfirmed))

	collected, err := h.tickets.HandOver(ctx, h.guardOf(), ticket.ID, h.alice.ID)
	require.NoError(t, err)
	assert.True(t, collected.IsCollected)
	assert.Equal(t, int64(h.alice.ID), collected.CollectedByClientID.Int64)
	assert.Equal(t, int64(h.guard.ID), collected.HandedOverByGuardID.Int64)

	var history []models.ParcelHistory
	require.NoError(t, h.db.Where("request_id = ?", ticket.ID).Find(&history).Error)
	require.Len(t, history, 1)
	assert.Equal(t, models.ParcelCollected, history[0].Status)
	assert.Equal(t, int64(h.alice.ID), history[0].ClientID.Int64)

	_, err = h.tickets.HandOver(ctx, h.guardOf(), ticket.ID, h.carol.ID)
	assert.True(t, code.Is(err, code.ErrParcelAlreadyCollected))

	var reloaded models.CheckInOutRequest
	require.NoError(t, h.db.First(&reloaded, ticket.ID).Error)
	assert.True(t, reloaded.IsCollected)
	assert.True(t, reloaded.HasUserConfirmed)
	assert.Equal(t, int64(h.alice.ID), reloaded.CollectedByClientID.Int64)
	assert.EqualValues(t, 1, h.count(t, &models.ParcelHistory{}, ""))
}

func TestHandOver_ResidentMustLiveInFlat(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.parcelAt(t, h.f101.ID)
	ticket := ticketFor(t, h, res, h.f101.ID)

	_, err := h.tickets.HandOver(ctx, h.guardOf(), ticket.ID, h.dave.ID)
	assert.True(t, code.Is(err, code.ErrResidentNotFound))

	_, err = h.tickets.HandOver(ctx, h.guardOf(), ticket.ID, h.bob.ID)
	assert.True(t, code.Is(err, code.ErrResidentNotFound))

	_, err = h.tickets.HandOver(ctx, Guard(h.otherGuard.ID, h.other.ID), ticket.ID, h.alice.ID)
	assert.True(t, code.Is(err, code.ErrTicketNotFound))

	assert.Zero(t, h.count(t, &models.ParcelHistory{}, ""))
}

func TestHandOver_GuestTicketIsNotADelivery(t *testing.T) {
	h := newHarness(t)
	res := h.guestAt(t, h.f101.ID)

	_, err := h.tickets.HandOver(context.Background(), h.guardOf(), ticketFor(t, h, res, h.f101.ID).ID, h.alice.ID)
	assert.True(t, code.Is(err, code.ErrDeliveryNotExist))
}

func TestConfirmAtGate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	parcel := h.parcelAt(t, h.f102.ID)
	ticket := ticketFor(t, h, parcel, h.f102.ID)

	confirmed, err := h.tickets.ConfirmAtGate(ctx, h.guardOf(), ticket.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.HasGuardCheckedIn)
	assert.False(t, confirmed.IsCollected)

	_, err = h.tickets.ConfirmAtGate(ctx, h.guardOf(), ticket.ID)
	assert.True(t, code.Is(err, code.ErrTicketAlreadyConfirmed))

	var history models.ParcelHistory
	require.NoError(t, h.db.Where("request_id = ?", ticket.ID).First(&history).Error)
	assert.Equal(t, models.ParcelConfirmed, history.Status)
	assert.False(t, history.ClientID.Valid)

	// 普通快递不是放在门岗的包裹
	courier := h.courier.ID
	handed, err := h.visits.CreateVisit(ctx, h.guardOf(), CreateVisitInput{
		Kind:       models.VisitDelivery,
		ProviderID: &courier,
		FlatIDs:    []uint{h.f101.ID},
	})
	require.NoError(t, err)
	_, err = h.tickets.ConfirmAtGate(ctx, h.guardOf(), ticketFor(t, h, handed, h.f101.ID).ID)
	assert.True(t, code.Is(err, code.ErrDeliveryNotExist))
}

func TestListParcelHistoryScope(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p101 := h.parcelAt(t, h.f101.ID)
	p102 := h.parcelAt(t, h.f102.ID)

	_, err := h.tickets.HandOver(ctx, h.guardOf(), ticketFor(t, h, p101, h.f101.ID).ID, h.alice.ID)
	require.NoError(t, err)
	_, err = h.tickets.ConfirmAtGate(ctx, h.guardOf(), ticketFor(t, h, p102, h.f102.ID).ID)
	require.NoError(t, err)

	items, page, err := h.tickets.ListParcelHistory(ctx, h.guardOf(), models.PaginationQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	require.Len(t, items, 2)
	assert.NotNil(t, items[0].Request)

	items, _, err = h.tickets.ListParcelHistory(ctx, h.residentOf(h.dave), models.PaginationQuery{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, h.f102.ID, items[0].FlatID)

	items, _, err = h.tickets.ListParcelHistory(ctx, Guard(h.otherGuard.ID, h.other.ID), models.PaginationQuery{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mockDB
}

// 条件更新没有命中行时视为被并发请求抢先
func TestConditionalUpdatesLoseRace(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		run  func(tx *gorm.DB) error
		code int
	}{
		{"decide", func(tx *gorm.DB) error { return markDecided(tx, 7, models.TicketApproved, 3, now) }, code.ErrTicketStateInvalid},
		{"user confirm", func(tx *gorm.DB) error { return markUserConfirmed(tx, 7, 3, now) }, code.ErrTicketAlreadyConfirmed},
		{"hand over", func(tx *gorm.DB) error { return markCollected(tx, 7, 3, 2, now) }, code.ErrParcelAlreadyCollected},
		{"gate confirm", func(tx *gorm.DB) error { return markGuardCheckedIn(tx, 7, 2, now) }, code.ErrTicketAlreadyConfirmed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mockDB := newMockDB(t)
			mockDB.ExpectExec("UPDATE `check_in_out_requests` SET").WillReturnResult(sqlmock.NewResult(0, 0))

			err := tc.run(db)
			assert.True(t, code.Is(err, tc.code), "got %v", err)
			require.NoError(t, mockDB.ExpectationsWereMet())
		})
	}
}

func TestMarkCollectedWinsRace(t *testing.T) {
	db, mockDB := newMockDB(t)
	mockDB.ExpectExec("UPDATE `check_in_out_requests` SET .*WHERE \\(?id = \\? AND is_collected = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, markCollected(db, 7, 3, 2, time.Now()))
	require.NoError(t, mockDB.ExpectationsWereMet())
}
