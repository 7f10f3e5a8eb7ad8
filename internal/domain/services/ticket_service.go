package services

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/guregu/null.v4"
	"gorm.io/gorm"

	"merodocs-http-service/internal/domain/models"
	"merodocs-http-service/internal/error/code"
	"merodocs-http-service/internal/infrastructure/events"
	"merodocs-http-service/internal/infrastructure/metrics"
	"merodocs-http-service/pkg/logger"
)

// InterfaceTicketService defines the approval/collection interface
type InterfaceTicketService interface {
	Decide(ctx context.Context, actor Principal, ticketID uint, approve bool) (*models.CheckInOutRequest, error)
	ConfirmCollected(ctx context.Context, actor Principal, ticketID uint) (*models.CheckInOutRequest, error)
	HandOver(ctx context.Context, actor Principal, ticketID, clientID uint) (*models.CheckInOutRequest, error)
	ConfirmAtGate(ctx context.Context, actor Principal, ticketID uint) (*models.CheckInOutRequest, error)
	ListParcelHistory(ctx context.Context, actor Principal, q models.PaginationQuery) ([]models.ParcelHistory, models.PaginationResult, error)
}

// TicketService 审批单状态机。所有状态变化都是带前置条件的更新，
// 并发请求只有一个能成功。
type TicketService struct {
	DB            *gorm.DB
	Recipients    InterfaceRecipientService
	Notifications InterfaceNotificationService
	Events        events.Publisher
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

// NewTicketService 创建审批单服务
func NewTicketService(
	db *gorm.DB,
	recipients InterfaceRecipientService,
	notifications InterfaceNotificationService,
	publisher events.Publisher,
	m *metrics.Metrics,
) InterfaceTicketService {
	return &TicketService{
		DB:            db,
		Recipients:    recipients,
		Notifications: notifications,
		Events:        publisher,
		Metrics:       m,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

// 1 Decide 住户同意或拒绝；只能从 pending 变为终态
func (s *TicketService) Decide(ctx context.Context, actor Principal, ticketID uint, approve bool) (*models.CheckInOutRequest, error) {
	ticket, err := s.ticketForClient(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != models.TicketPending {
		return nil, code.BadRequest(code.ErrTicketStateInvalid)
	}

	status := models.TicketRejected
	if approve {
		status = models.TicketApproved
	}
	now := s.Now()

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := markDecided(tx, ticket.ID, status, actor.ID, now); err != nil {
			return err
		}
		if ticket.CheckInOut != nil && ticket.CheckInOut.VisitRequestID != nil {
			return syncVisitStatus(tx, *ticket.CheckInOut.VisitRequestID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ticket.Status = status
	ticket.ApprovedByClientID = null.IntFrom(int64(actor.ID))
	ticket.DecidedAt = null.TimeFrom(now)

	subject := events.TicketRejected
	if approve {
		subject = events.TicketApproved
	}
	s.afterTransition(ctx, actor, ticket, subject, string(status))

	title := "Visitor rejected"
	if approve {
		title = "Visitor approved"
	}
	s.notifyGuards(ctx, ticket, NotificationPayload{
		Type:  "ticket." + string(status),
		Title: title,
		Body:  fmt.Sprintf("Flat %s %s the visitor", flatLabel(ticket), status),
	})
	return ticket, nil
}

// 2 ConfirmCollected 住户确认已拿到门岗代收的包裹，只能确认一次
func (s *TicketService) ConfirmCollected(ctx context.Context, actor Principal, ticketID uint) (*models.CheckInOutRequest, error) {
	ticket, err := s.ticketForClient(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if !isDelivery(ticket) {
		return nil, code.BadRequest(code.ErrDeliveryNotExist)
	}
	if ticket.HasUserConfirmed {
		return nil, code.BadRequest(code.ErrTicketAlreadyConfirmed)
	}

	now := s.Now()
	if err := markUserConfirmed(s.DB.WithContext(ctx), ticket.ID, actor.ID, now); err != nil {
		return nil, err
	}
	ticket.HasUserConfirmed = true
	ticket.ConfirmedByClientID = null.IntFrom(int64(actor.ID))
	ticket.ConfirmedAt = null.TimeFrom(now)

	s.afterTransition(ctx, actor, ticket, events.TicketConfirmed, "user_confirmed")
	s.notifyGuards(ctx, ticket, NotificationPayload{
		Type:  "parcel.user_confirmed",
		Title: "Parcel confirmed",
		Body:  fmt.Sprintf("Flat %s confirmed the parcel", flatLabel(ticket)),
	})
	return ticket, nil
}

// 3 HandOver 门岗把包裹交给指定住户，写入包裹流转记录
func (s *TicketService) HandOver(ctx context.Context, actor Principal, ticketID, clientID uint) (*models.CheckInOutRequest, error) {
	ticket, err := s.ticketForGuard(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if !isDelivery(ticket) {
		return nil, code.BadRequest(code.ErrDeliveryNotExist)
	}
	if ticket.Status == models.TicketRejected {
		return nil, code.BadRequest(code.ErrTicketStateInvalid)
	}
	if ticket.IsCollected {
		return nil, code.BadRequest(code.ErrParcelAlreadyCollected)
	}

	ok, err := s.Recipients.IsActiveResident(ctx, clientID, ticket.FlatID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, code.NotFound(code.ErrResidentNotFound)
	}

	now := s.Now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := markCollected(tx, ticket.ID, clientID, actor.ID, now); err != nil {
			return err
		}
		return tx.Create(&models.ParcelHistory{
			RequestID:   ticket.ID,
			FlatID:      ticket.FlatID,
			ApartmentID: actor.ApartmentID,
			Status:      models.ParcelCollected,
			GuardID:     null.IntFrom(int64(actor.ID)),
			ClientID:    null.IntFrom(int64(clientID)),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	ticket.IsCollected = true
	ticket.CollectedByClientID = null.IntFrom(int64(clientID))
	ticket.HandedOverByGuardID = null.IntFrom(int64(actor.ID))
	ticket.CollectedAt = null.TimeFrom(now)

	s.afterTransition(ctx, actor, ticket, events.ParcelCollected, string(models.ParcelCollected))
	notifyUnits(ctx, s.Recipients, s.Notifications, []uint{ticket.FlatID}, func(flatID uint) NotificationPayload {
		return NotificationPayload{
			Type:        "parcel.collected",
			Title:       "Parcel collected",
			Body:        "Your parcel has been handed over at the gate",
			Path:        fmt.Sprintf("/tickets/%d", ticket.ID),
			ApartmentID: actor.ApartmentID,
			FlatID:      flatID,
		}
	})
	return ticket, nil
}

// 4 ConfirmAtGate 放在门岗的快递由门岗确认收到，不指定住户
func (s *TicketService) ConfirmAtGate(ctx context.Context, actor Principal, ticketID uint) (*models.CheckInOutRequest, error) {
	ticket, err := s.ticketForGuard(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Type != models.TicketParcel || !isDelivery(ticket) {
		return nil, code.BadRequest(code.ErrDeliveryNotExist)
	}
	if ticket.HasGuardCheckedIn {
		return nil, code.BadRequest(code.ErrTicketAlreadyConfirmed)
	}

	now := s.Now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := markGuardCheckedIn(tx, ticket.ID, actor.ID, now); err != nil {
			return err
		}
		return tx.Create(&models.ParcelHistory{
			RequestID:   ticket.ID,
			FlatID:      ticket.FlatID,
			ApartmentID: actor.ApartmentID,
			Status:      models.ParcelConfirmed,
			GuardID:     null.IntFrom(int64(actor.ID)),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	ticket.HasGuardCheckedIn = true
	ticket.GuardCheckedInByID = null.IntFrom(int64(actor.ID))
	ticket.GuardCheckedInAt = null.TimeFrom(now)

	s.afterTransition(ctx, actor, ticket, events.ParcelConfirmed, string(models.ParcelConfirmed))
	notifyUnits(ctx, s.Recipients, s.Notifications, []uint{ticket.FlatID}, func(flatID uint) NotificationPayload {
		return NotificationPayload{
			Type:        "parcel.confirmed",
			Title:       "Parcel at the gate",
			Body:        "The gate has received a parcel for you",
			Path:        fmt.Sprintf("/tickets/%d", ticket.ID),
			ApartmentID: actor.ApartmentID,
			FlatID:      flatID,
			Sound:       true,
		}
	})
	return ticket, nil
}

// 5 ListParcelHistory 包裹流转记录。门岗看本小区，住户看自己的房屋。
func (s *TicketService) ListParcelHistory(ctx context.Context, actor Principal, q models.PaginationQuery) ([]models.ParcelHistory, models.PaginationResult, error) {
	q = q.Normalize()
	q.Desc = true

	query := s.DB.WithContext(ctx).Model(&models.ParcelHistory{}).Where("apartment_id = ?", actor.ApartmentID)
	if actor.IsClient() {
		flats, err := s.Recipients.ActiveFlatsOf(ctx, actor.ID)
		if err != nil {
			return nil, models.PaginationResult{}, err
		}
		if len(flats) == 0 {
			return []models.ParcelHistory{}, models.NewPaginationResult(0, q.PageNum, q.PageSize), nil
		}
		query = query.Where("flat_id IN ?", flats)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, models.PaginationResult{}, err
	}

	var items []models.ParcelHistory
	if err := query.Preload("Request").
		Order(q.Order("id")).
		Offset(q.Offset()).Limit(q.PageSize).
		Find(&items).Error; err != nil {
		return nil, models.PaginationResult{}, err
	}
	return items, models.NewPaginationResult(total, q.PageNum, q.PageSize), nil
}

// loadTicket 审批单必须属于本小区，否则视为不存在
func (s *TicketService) loadTicket(ctx context.Context, apartmentID, ticketID uint) (*models.CheckInOutRequest, error) {
	var ticket models.CheckInOutRequest
	if err := s.DB.WithContext(ctx).
		Preload("CheckInOut").
		Preload("Flat").
		First(&ticket, ticketID).Error; err != nil {
		if isNotFound(err) {
			return nil, code.NotFound(code.ErrTicketNotFound)
		}
		return nil, err
	}
	if ticket.CheckInOut == nil || ticket.CheckInOut.ApartmentID != apartmentID {
		return nil, code.NotFound(code.ErrTicketNotFound)
	}
	return &ticket, nil
}

func (s *TicketService) ticketForClient(ctx context.Context, actor Principal, ticketID uint) (*models.CheckInOutRequest, error) {
	if !actor.IsClient() {
		return nil, code.NotFound(code.ErrTicketNotFound)
	}
	ticket, err := s.loadTicket(ctx, actor.ApartmentID, ticketID)
	if err != nil {
		return nil, err
	}
	ok, err := s.Recipients.IsActiveResident(ctx, actor.ID, ticket.FlatID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, code.NotFound(code.ErrTicketNotFound)
	}
	return ticket, nil
}

func (s *TicketService) ticketForGuard(ctx context.Context, actor Principal, ticketID uint) (*models.CheckInOutRequest, error) {
	if !actor.IsGuard() {
		return nil, code.NotFound(code.ErrTicketNotFound)
	}
	return s.loadTicket(ctx, actor.ApartmentID, ticketID)
}

func (s *TicketService) afterTransition(ctx context.Context, actor Principal, ticket *models.CheckInOutRequest, subject, status string) {
	s.Metrics.TicketTransition(status)
	events.PublishLogged(ctx, s.Events, subject, events.TicketEvent{
		TicketID:    ticket.ID,
		ApartmentID: actor.ApartmentID,
		FlatID:      ticket.FlatID,
		Status:      status,
		ActorID:     actor.ID,
		ActorRole:   string(actor.Role),
		At:          s.Now(),
	})
}

// notifyGuards 保存门岗通知并推送到实时面板
func (s *TicketService) notifyGuards(ctx context.Context, ticket *models.CheckInOutRequest, payload NotificationPayload) {
	if s.Notifications == nil || ticket.CheckInOut == nil {
		return
	}
	apartmentID := ticket.CheckInOut.ApartmentID
	guards, err := s.Recipients.ResolveGuards(ctx, apartmentID)
	if err != nil {
		logger.WithError(err).Warn("resolve guards failed")
		return
	}
	payload.ApartmentID = apartmentID
	payload.FlatID = ticket.FlatID
	payload.Path = fmt.Sprintf("/tickets/%d", ticket.ID)
	payload.Data = map[string]interface{}{
		"ticket_id":        ticket.ID,
		"check_in_out_id":  ticket.CheckInOutID,
		"flat_id":          ticket.FlatID,
		"status":           ticket.Status,
		"is_collected":     ticket.IsCollected,
		"has_user_confirm": ticket.HasUserConfirmed,
	}
	if err := s.Notifications.NotifyGuards(ctx, payload, guards); err != nil {
		logger.WithError(err).Warn("notify guards failed")
	}
}

// markDecided pending -> approved/rejected
func markDecided(tx *gorm.DB, ticketID uint, status models.TicketStatus, clientID uint, now time.Time) error {
	res := tx.Model(&models.CheckInOutRequest{}).
		Where("id = ? AND status = ?", ticketID, models.TicketPending).
		Updates(map[string]interface{}{
			"status":                status,
			"approved_by_client_id": null.IntFrom(int64(clientID)),
			"decided_at":            null.TimeFrom(now),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return code.BadRequest(code.ErrTicketStateInvalid)
	}
	return nil
}

// markUserConfirmed has_user_confirmed false -> true
func markUserConfirmed(tx *gorm.DB, ticketID, clientID uint, now time.Time) error {
	res := tx.Model(&models.CheckInOutRequest{}).
		Where("id = ? AND has_user_confirmed = ?", ticketID, false).
		Updates(map[string]interface{}{
			"has_user_confirmed":     true,
			"confirmed_by_client_id": null.IntFrom(int64(clientID)),
			"confirmed_at":           null.TimeFrom(now),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return code.BadRequest(code.ErrTicketAlreadyConfirmed)
	}
	return nil
}

// markCollected is_collected false -> true
func markCollected(tx *gorm.DB, ticketID, clientID, guardID uint, now time.Time) error {
	res := tx.Model(&models.CheckInOutRequest{}).
		Where("id = ? AND is_collected = ?", ticketID, false).
		Updates(map[string]interface{}{
			"is_collected":            true,
			"collected_by_client_id":  null.IntFrom(int64(clientID)),
			"handed_over_by_guard_id": null.IntFrom(int64(guardID)),
			"collected_at":            null.TimeFrom(now),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return code.BadRequest(code.ErrParcelAlreadyCollected)
	}
	return nil
}

// markGuardCheckedIn has_guard_checked_in false -> true
func markGuardCheckedIn(tx *gorm.DB, ticketID, guardID uint, now time.Time) error {
	res := tx.Model(&models.CheckInOutRequest{}).
		Where("id = ? AND has_guard_checked_in = ?", ticketID, false).
		Updates(map[string]interface{}{
			"has_guard_checked_in":   true,
			"guard_checked_in_by_id": null.IntFrom(int64(guardID)),
			"guard_checked_in_at":    null.TimeFrom(now),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return code.BadRequest(code.ErrTicketAlreadyConfirmed)
	}
	return nil
}

// syncVisitStatus 任一户同意即 approved，全部拒绝才 rejected；已离开 pending 的不再改变
func syncVisitStatus(tx *gorm.DB, visitID uint) error {
	var statuses []string
	if err := tx.Model(&models.CheckInOutRequest{}).
		Joins("JOIN check_in_outs ON check_in_outs.id = check_in_out_requests.check_in_out_id").
		Where("check_in_outs.visit_request_id = ? AND check_in_outs.type = ?", visitID, models.GateCheckIn).
		Pluck("check_in_out_requests.status", &statuses).Error; err != nil {
		return err
	}
	if len(statuses) == 0 {
		return nil
	}

	next := models.VisitRejected
	for _, st := range statuses {
		switch models.TicketStatus(st) {
		case models.TicketApproved:
			next = models.VisitApproved
		case models.TicketPending:
			if next != models.VisitApproved {
				next = models.VisitPending
			}
		}
		if next == models.VisitApproved {
			break
		}
	}
	if next == models.VisitPending {
		return nil
	}

	return tx.Model(&models.VisitRequest{}).
		Where("id = ? AND status = ?", visitID, models.VisitPending).
		Update("status", next).Error
}

func isDelivery(ticket *models.CheckInOutRequest) bool {
	return ticket.CheckInOut != nil && ticket.CheckInOut.RequestType == models.RequestDelivery
}

func flatLabel(ticket *models.CheckInOutRequest) string {
	if ticket.Flat != nil && ticket.Flat.Name != "" {
		return ticket.Flat.Name
	}
	return fmt.Sprintf("#%d", ticket.FlatID)
}
