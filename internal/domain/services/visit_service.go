package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/guregu/null.v4"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"merodocs-http-service/internal/domain/models"
	"merodocs-http-service/internal/error/code"
	"merodocs-http-service/internal/infrastructure/events"
	"merodocs-http-service/internal/infrastructure/metrics"
	"merodocs-http-service/internal/infrastructure/storage"
	"merodocs-http-service/pkg/logger"
)

// CreateVisitInput 登记访客
type CreateVisitInput struct {
	Kind           models.VisitKind
	ProviderID     *uint
	FlatIDs        []uint
	Name           string
	Contact        string
	VehicleNumber  string
	GroupID        string
	SurveillanceID *uint
	FromDate       *time.Time
	ToDate         *time.Time
	Details        models.VisitDetails
	Photo          *storage.File
	Images         []storage.File
}

// GateInput 签到/签退时门岗提交的信息
type GateInput struct {
	VehicleNumber  string
	SurveillanceID *uint
	Photo          *storage.File
}

// VisitResult 登记结果；预约登记没有门岗事件
type VisitResult struct {
	Visit *models.VisitRequest `json:"visit"`
	Event *models.CheckInOut   `json:"event,omitempty"`
}

// InterfaceVisitService defines the visit service interface
type InterfaceVisitService interface {
	CreateVisit(ctx context.Context, actor Principal, in CreateVisitInput) (*VisitResult, error)
	CheckInPreapproved(ctx context.Context, actor Principal, visitID uint, in GateInput) (*VisitResult, error)
	CheckOut(ctx context.Context, actor Principal, visitID uint, in GateInput) (*models.CheckInOut, error)
	ListPending(ctx context.Context, actor Principal, q models.PaginationQuery) ([]models.VisitRequest, models.PaginationResult, error)
	ListPreapproved(ctx context.Context, actor Principal, q models.PaginationQuery) ([]models.VisitRequest, models.PaginationResult, error)
	GetVisit(ctx context.Context, actor Principal, id uint) (*models.VisitRequest, error)
	DeleteVisit(ctx context.Context, actor Principal, id uint) error
	ResendNotifications(ctx context.Context, actor Principal, visitIDs []uint) (int, error)
	ExpirePreapproved(ctx context.Context, now time.Time) (int64, error)
	RunExpiryLoop(ctx context.Context, interval time.Duration)
}

// VisitService 访客登记与门岗事件
type VisitService struct {
	DB            *gorm.DB
	Storage       storage.ObjectStorage
	Snapshots     InterfaceSnapshotService
	Recipients    InterfaceRecipientService
	Notifications InterfaceNotificationService
	Events        events.Publisher
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

// NewVisitService 创建访客服务
func NewVisitService(
	db *gorm.DB,
	store storage.ObjectStorage,
	snapshots InterfaceSnapshotService,
	recipients InterfaceRecipientService,
	notifications InterfaceNotificationService,
	publisher events.Publisher,
	m *metrics.Metrics,
) InterfaceVisitService {
	return &VisitService{
		DB:            db,
		Storage:       store,
		Snapshots:     snapshots,
		Recipients:    recipients,
		Notifications: notifications,
		Events:        publisher,
		Metrics:       m,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

// 1 CreateVisit 门岗现场登记或住户预约。
// 访客记录、照片、门岗事件、快照和每户一张审批单在同一事务中创建，任一失败全部回滚。
func (s *VisitService) CreateVisit(ctx context.Context, actor Principal, in CreateVisitInput) (*VisitResult, error) {
	origin := models.OriginManual
	if actor.IsClient() {
		origin = models.OriginPreapproved
	}

	if !in.Kind.Valid() {
		return nil, code.BadRequest(code.ErrVisitKindInvalid)
	}
	if !in.Details.MatchesKind(in.Kind) {
		return nil, code.BadRequest(code.ErrVisitDetailsInvalid)
	}
	flatIDs := uniqueUints(in.FlatIDs)
	if len(flatIDs) == 0 {
		return nil, code.New(code.ErrValidation, "至少选择一个房屋")
	}
	if !in.Kind.MultiFlat() && len(flatIDs) > 1 {
		return nil, code.BadRequest(code.ErrVisitSingleFlat)
	}
	if origin == models.OriginPreapproved && in.Photo != nil {
		// 预约登记没有门岗事件，照片无处保存
		return nil, code.New(code.ErrValidation, "预约登记不接收照片")
	}
	if origin == models.OriginManual && in.Kind == models.VisitGuest && in.Photo == nil {
		return nil, code.BadRequest(code.ErrImageRequired)
	}

	details := withKindDefaults(in.Kind, in.Details)
	if origin == models.OriginManual && details.LeaveAtGate() && len(in.Images) == 0 && in.Photo == nil {
		return nil, code.BadRequest(code.ErrImageRequired)
	}

	visit := &models.VisitRequest{
		ApartmentID:   actor.ApartmentID,
		Kind:          in.Kind,
		Origin:        origin,
		Status:        models.VisitPending,
		Name:          in.Name,
		Contact:       in.Contact,
		VehicleNumber: in.VehicleNumber,
		GroupID:       in.GroupID,
		ProviderID:    nil,
	}
	if actor.IsGuard() {
		visit.CreatedByGuardID = null.IntFrom(int64(actor.ID))
	} else {
		visit.CreatedByClientID = null.IntFrom(int64(actor.ID))
		from, to, err := s.window(in.FromDate, in.ToDate)
		if err != nil {
			return nil, err
		}
		visit.FromDate = null.TimeFrom(from)
		visit.ToDate = null.TimeFrom(to)

		// 住户只能为自己居住的房屋预约
		active, err := s.Recipients.ActiveFlatsOf(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		if !containsAll(active, flatIDs) {
			return nil, code.NotFound(code.ErrFlatNotFound)
		}
	}

	var uploaded []storage.UploadedFile
	result := &VisitResult{Visit: visit}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		provider, err := loadVisibleProvider(tx, actor, in.Kind, in.ProviderID)
		if err != nil {
			return err
		}
		if provider != nil {
			visit.ProviderID = &provider.ID
			visit.Provider = provider
		}

		flats, err := resolveFlats(tx, actor.ApartmentID, flatIDs)
		if err != nil {
			return err
		}
		visit.Flats = flats

		if len(in.Images) > 0 && details.Delivery != nil {
			files, err := storage.UploadMultiple(ctx, s.Storage, in.Images)
			if err != nil {
				return code.Wrap(code.ErrUploadFailed, err)
			}
			uploaded = append(uploaded, files...)
			for _, f := range files {
				details.Delivery.Images = append(details.Delivery.Images, f.URL)
			}
		}
		visit.Details = datatypes.NewJSONType(details)

		if err := tx.Omit("Flats.*", "Provider").Create(visit).Error; err != nil {
			return err
		}

		if origin == models.OriginManual {
			event, err := s.createGateEvent(ctx, tx, visit, actor, flats, GateInput{
				VehicleNumber:  in.VehicleNumber,
				SurveillanceID: in.SurveillanceID,
				Photo:          in.Photo,
			}, models.TicketPending, null.Int{}, &uploaded)
			if err != nil {
				return err
			}
			result.Event = event
		}
		return nil
	})
	if err != nil {
		storage.DeleteAll(context.Background(), s.Storage, uploaded)
		return nil, err
	}

	s.Metrics.VisitCreated(string(visit.Kind), string(visit.Origin))
	evt := events.VisitEvent{
		VisitID:     visit.ID,
		ApartmentID: visit.ApartmentID,
		Kind:        string(visit.Kind),
		Origin:      string(visit.Origin),
		FlatIDs:     flatIDs,
		At:          visit.CreatedAt,
	}
	if result.Event != nil {
		evt.GateEventID = result.Event.ID
	}
	events.PublishLogged(ctx, s.Events, events.VisitCreated, evt)

	if origin == models.OriginManual {
		s.notifyUnits(ctx, flatIDs, func(flatID uint) NotificationPayload {
			return arrivalPayload(visit, flatID, false)
		})
	}

	return result, nil
}

// createGateEvent 上传照片、冻结快照，并为每个房屋创建一张审批单
func (s *VisitService) createGateEvent(
	ctx context.Context,
	tx *gorm.DB,
	visit *models.VisitRequest,
	actor Principal,
	flats []models.Flat,
	in GateInput,
	status models.TicketStatus,
	approver null.Int,
	uploaded *[]storage.UploadedFile,
) (*models.CheckInOut, error) {
	surveillance, err := resolveSurveillance(tx, actor.ApartmentID, in.SurveillanceID)
	if err != nil {
		return nil, err
	}

	var imageURL string
	if in.Photo != nil {
		f, err := s.Storage.Upload(ctx, *in.Photo)
		if err != nil {
			return nil, code.Wrap(code.ErrUploadFailed, err)
		}
		*uploaded = append(*uploaded, f)
		imageURL = f.URL
	}

	flatIDs := make([]uint, 0, len(flats))
	for _, f := range flats {
		flatIDs = append(flatIDs, f.ID)
	}
	flatSnaps, parentSnaps, err := s.Snapshots.Capture(ctx, tx, flatIDs)
	if err != nil {
		return nil, err
	}

	ticketType := models.TicketCheckIn
	if visit.Details.Data().LeaveAtGate() {
		ticketType = models.TicketParcel
	}
	now := s.Now()
	tickets := make([]models.CheckInOutRequest, 0, len(flats))
	for _, f := range flats {
		t := models.CheckInOutRequest{FlatID: f.ID, Type: ticketType, Status: status}
		if status != models.TicketPending {
			t.ApprovedByClientID = approver
			t.DecidedAt = null.TimeFrom(now)
		}
		tickets = append(tickets, t)
	}

	vehicle := in.VehicleNumber
	if vehicle == "" {
		vehicle = visit.VehicleNumber
	}
	event := &models.CheckInOut{
		ApartmentID:    visit.ApartmentID,
		Type:           models.GateCheckIn,
		RequestType:    models.RequestTypeOf(visit.Kind),
		VisitRequestID: &visit.ID,
		CreatedByType:  models.CreatorGuard,
		GuardID:        null.IntFrom(int64(actor.ID)),
		VehicleNumber:  vehicle,
		ImageURL:       imageURL,
		SurveillanceID: surveillance,
		FlatJSON:       datatypes.NewJSONType(flatSnaps),
		ParentJSON:     datatypes.NewJSONType(parentSnaps),
		Flats:          flats,
		Requests:       tickets,
	}
	if err := tx.Omit("Flats.*").Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

// 2 CheckInPreapproved 预约访客到达，审批单直接为已同意
func (s *VisitService) CheckInPreapproved(ctx context.Context, actor Principal, visitID uint, in GateInput) (*VisitResult, error) {
	if !actor.IsGuard() {
		return nil, code.NotFound(code.ErrVisitNotFound)
	}

	var uploaded []storage.UploadedFile
	result := &VisitResult{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var visit models.VisitRequest
		if err := tx.Preload("Flats").
			Where("id = ? AND apartment_id = ? AND origin = ?", visitID, actor.ApartmentID, models.OriginPreapproved).
			First(&visit).Error; err != nil {
			if isNotFound(err) {
				return code.NotFound(code.ErrVisitNotFound)
			}
			return err
		}
		if visit.Status == models.VisitExpired || visit.Status == models.VisitRejected {
			return code.BadRequest(code.ErrVisitWindowClosed)
		}
		now := s.Now()
		if (visit.FromDate.Valid && now.Before(visit.FromDate.Time)) || (visit.ToDate.Valid && now.After(visit.ToDate.Time)) {
			return code.BadRequest(code.ErrVisitWindowClosed)
		}
		if len(visit.Flats) == 0 {
			return code.NotFound(code.ErrFlatNotFound)
		}

		event, err := s.createGateEvent(ctx, tx, &visit, actor, visit.Flats, in, models.TicketApproved, visit.CreatedByClientID, &uploaded)
		if err != nil {
			return err
		}

		if err := tx.Model(&models.VisitRequest{}).
			Where("id = ? AND status = ?", visit.ID, models.VisitPending).
			Update("status", models.VisitApproved).Error; err != nil {
			return err
		}
		visit.Status = models.VisitApproved

		result.Visit = &visit
		result.Event = event
		return nil
	})
	if err != nil {
		storage.DeleteAll(context.Background(), s.Storage, uploaded)
		return nil, err
	}

	visit := result.Visit
	events.PublishLogged(ctx, s.Events, events.VisitCheckedIn, events.VisitEvent{
		VisitID:     visit.ID,
		ApartmentID: visit.ApartmentID,
		Kind:        string(visit.Kind),
		Origin:      string(visit.Origin),
		FlatIDs:     visit.FlatIDs(),
		GateEventID: result.Event.ID,
		At:          result.Event.CreatedAt,
	})
	s.notifyUnits(ctx, visit.FlatIDs(), func(flatID uint) NotificationPayload {
		return arrivalPayload(visit, flatID, true)
	})
	return result, nil
}

// 3 CheckOut 已签到的访客离开
func (s *VisitService) CheckOut(ctx context.Context, actor Principal, visitID uint, in GateInput) (*models.CheckInOut, error) {
	if !actor.IsGuard() {
		return nil, code.NotFound(code.ErrVisitNotFound)
	}

	var uploaded []storage.UploadedFile
	var event *models.CheckInOut
	var visit models.VisitRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Flats").
			Where("id = ? AND apartment_id = ?", visitID, actor.ApartmentID).
			First(&visit).Error; err != nil {
			if isNotFound(err) {
				return code.NotFound(code.ErrVisitNotFound)
			}
			return err
		}

		var lastIn models.CheckInOut
		if err := tx.Where("visit_request_id = ? AND type = ?", visit.ID, models.GateCheckIn).
			Order("id DESC").First(&lastIn).Error; err != nil {
			if isNotFound(err) {
				return code.BadRequest(code.ErrVisitNotCheckedIn)
			}
			return err
		}
		var outs int64
		if err := tx.Model(&models.CheckInOut{}).
			Where("visit_request_id = ? AND type = ? AND id > ?", visit.ID, models.GateCheckOut, lastIn.ID).
			Count(&outs).Error; err != nil {
			return err
		}
		if outs > 0 {
			return code.BadRequest(code.ErrVisitNotCheckedIn)
		}

		surveillance, err := resolveSurveillance(tx, actor.ApartmentID, in.SurveillanceID)
		if err != nil {
			return err
		}
		var imageURL string
		if in.Photo != nil {
			f, err := s.Storage.Upload(ctx, *in.Photo)
			if err != nil {
				return code.Wrap(code.ErrUploadFailed, err)
			}
			uploaded = append(uploaded, f)
			imageURL = f.URL
		}

		vehicle := in.VehicleNumber
		if vehicle == "" {
			vehicle = lastIn.VehicleNumber
		}
		// 签退沿用签到时的快照
		event = &models.CheckInOut{
			ApartmentID:    visit.ApartmentID,
			Type:           models.GateCheckOut,
			RequestType:    lastIn.RequestType,
			VisitRequestID: &visit.ID,
			CreatedByType:  models.CreatorGuard,
			GuardID:        null.IntFrom(int64(actor.ID)),
			VehicleNumber:  vehicle,
			ImageURL:       imageURL,
			SurveillanceID: surveillance,
			FlatJSON:       lastIn.FlatJSON,
			ParentJSON:     lastIn.ParentJSON,
			Flats:          visit.Flats,
		}
		return tx.Omit("Flats.*").Create(event).Error
	})
	if err != nil {
		storage.DeleteAll(context.Background(), s.Storage, uploaded)
		return nil, err
	}

	events.PublishLogged(ctx, s.Events, events.VisitCheckedOut, events.VisitEvent{
		VisitID:     visit.ID,
		ApartmentID: visit.ApartmentID,
		Kind:        string(visit.Kind),
		Origin:      string(visit.Origin),
		FlatIDs:     visit.FlatIDs(),
		GateEventID: event.ID,
		At:          event.CreatedAt,
	})
	return event, nil
}

// 4 ListPending 待审批的现场登记。门岗看本小区，住户看自己房屋的。
func (s *VisitService) ListPending(ctx context.Context, actor Principal, q models.PaginationQuery) ([]models.VisitRequest, models.PaginationResult, error) {
	query := s.DB.WithContext(ctx).Model(&models.VisitRequest{}).
		Where("visit_requests.origin = ? AND visit_requests.status = ?", models.OriginManual, models.VisitPending)

	if actor.IsGuard() {
		query = query.Where("visit_requests.apartment_id = ?", actor.ApartmentID)
	} else {
		flats, err := s.Recipients.ActiveFlatsOf(ctx, actor.ID)
		if err != nil {
			return nil, models.PaginationResult{}, err
		}
		if len(flats) == 0 {
			q = q.Normalize()
			return []models.VisitRequest{}, models.NewPaginationResult(0, q.PageNum, q.PageSize), nil
		}
		query = query.Where("visit_requests.id IN (?)",
			s.DB.Table("visit_request_flats").Select("visit_request_id").Where("flat_id IN ?", flats))
	}
	return paginateVisits(query, q)
}

// 5 ListPreapproved 预约记录。住户看自己创建的，门岗看本小区仍有效的。
func (s *VisitService) ListPreapproved(ctx context.Context, actor Principal, q models.PaginationQuery) ([]models.VisitRequest, models.PaginationResult, error) {
	query := s.DB.WithContext(ctx).Model(&models.VisitRequest{}).
		Where("visit_requests.origin = ?", models.OriginPreapproved)

	if actor.IsClient() {
		query = query.Where("visit_requests.created_by_client_id = ?", actor.ID)
	} else {
		query = query.Where("visit_requests.apartment_id = ? AND visit_requests.status IN ? AND (visit_requests.to_date IS NULL OR visit_requests.to_date >= ?)",
			actor.ApartmentID, []models.VisitStatus{models.VisitPending, models.VisitApproved}, s.Now())
	}
	return paginateVisits(query, q)
}

func paginateVisits(query *gorm.DB, q models.PaginationQuery) ([]models.VisitRequest, models.PaginationResult, error) {
	q = q.Normalize()

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, models.PaginationResult{}, err
	}

	var visits []models.VisitRequest
	if err := query.Preload("Flats").Preload("Provider").
		Order("visit_requests.id DESC").
		Offset(q.Offset()).Limit(q.PageSize).
		Find(&visits).Error; err != nil {
		return nil, models.PaginationResult{}, err
	}
	return visits, models.NewPaginationResult(total, q.PageNum, q.PageSize), nil
}

// 6 GetVisit 访客详情，包含门岗事件与审批单
func (s *VisitService) GetVisit(ctx context.Context, actor Principal, id uint) (*models.VisitRequest, error) {
	var visit models.VisitRequest
	if err := s.DB.WithContext(ctx).
		Preload("Flats").
		Preload("Provider").
		Preload("CheckInOuts", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("CheckInOuts.Requests").
		Where("id = ? AND apartment_id = ?", id, actor.ApartmentID).
		First(&visit).Error; err != nil {
		if isNotFound(err) {
			return nil, code.NotFound(code.ErrVisitNotFound)
		}
		return nil, err
	}

	if actor.IsClient() {
		if visit.CreatedByClientID.Valid && uint(visit.CreatedByClientID.Int64) == actor.ID {
			return &visit, nil
		}
		flats, err := s.Recipients.ActiveFlatsOf(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		if !intersects(flats, visit.FlatIDs()) {
			return nil, code.NotFound(code.ErrVisitNotFound)
		}
	}
	return &visit, nil
}

// 7 DeleteVisit 只能删除未处理的现场登记，连同门岗事件和审批单。
// 审批单本是永久的审计记录；这里只删除从未被处理过的待审批单
// (status 为 pending 且三个收件标记都为 false)，有任何处理痕迹就拒绝删除。
func (s *VisitService) DeleteVisit(ctx context.Context, actor Principal, id uint) error {
	if !actor.IsGuard() {
		return code.NotFound(code.ErrVisitNotFound)
	}

	var images []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var visit models.VisitRequest
		if err := tx.Where("id = ? AND apartment_id = ?", id, actor.ApartmentID).First(&visit).Error; err != nil {
			if isNotFound(err) {
				return code.NotFound(code.ErrVisitNotFound)
			}
			return err
		}
		if visit.Origin != models.OriginManual || visit.Status != models.VisitPending {
			return code.BadRequest(code.ErrVisitNotDeletable)
		}

		var gateEvents []models.CheckInOut
		if err := tx.Select("id", "image_url").Where("visit_request_id = ?", visit.ID).Find(&gateEvents).Error; err != nil {
			return err
		}
		eventIDs := make([]uint, 0, len(gateEvents))
		for _, e := range gateEvents {
			eventIDs = append(eventIDs, e.ID)
			if e.ImageURL != "" {
				images = append(images, e.ImageURL)
			}
		}

		if len(eventIDs) > 0 {
			var touched int64
			if err := tx.Model(&models.CheckInOutRequest{}).
				Where("check_in_out_id IN ?", eventIDs).
				Where("status <> ? OR is_collected = ? OR has_user_confirmed = ? OR has_guard_checked_in = ?",
					models.TicketPending, true, true, true).
				Count(&touched).Error; err != nil {
				return err
			}
			if touched > 0 {
				return code.BadRequest(code.ErrVisitNotDeletable)
			}

			if err := tx.Where("check_in_out_id IN ?", eventIDs).Delete(&models.CheckInOutRequest{}).Error; err != nil {
				return err
			}
			if err := tx.Exec("DELETE FROM check_in_out_flats WHERE check_in_out_id IN ?", eventIDs).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", eventIDs).Delete(&models.CheckInOut{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Exec("DELETE FROM visit_request_flats WHERE visit_request_id = ?", visit.ID).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND status = ?", visit.ID, models.VisitPending).Delete(&models.VisitRequest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return code.BadRequest(code.ErrVisitNotDeletable)
		}

		if d := visit.Details.Data(); d.Delivery != nil {
			images = append(images, d.Delivery.Images...)
		}
		return nil
	})
	if err != nil {
		return err
	}

	files := make([]storage.UploadedFile, 0, len(images))
	for _, url := range images {
		files = append(files, storage.UploadedFile{URL: url})
	}
	storage.DeleteAll(context.Background(), s.Storage, files)

	events.PublishLogged(ctx, s.Events, events.VisitDeleted, events.VisitEvent{VisitID: id, ApartmentID: actor.ApartmentID, At: s.Now()})
	return nil
}

// 8 ResendNotifications 重新提醒住户处理待审批的访客；同一分组只提醒一次
func (s *VisitService) ResendNotifications(ctx context.Context, actor Principal, visitIDs []uint) (int, error) {
	if !actor.IsGuard() {
		return 0, code.NotFound(code.ErrVisitNotFound)
	}
	ids := uniqueUints(visitIDs)
	if len(ids) == 0 {
		return 0, code.NotFound(code.ErrVisitNotFound)
	}

	var visits []models.VisitRequest
	if err := s.DB.WithContext(ctx).Preload("Flats").
		Where("id IN ? AND apartment_id = ? AND kind = ? AND origin = ? AND status = ?",
			ids, actor.ApartmentID, models.VisitGuest, models.OriginManual, models.VisitPending).
		Order("id").
		Find(&visits).Error; err != nil {
		return 0, err
	}
	if len(visits) == 0 {
		return 0, code.NotFound(code.ErrVisitNotFound)
	}

	sent := make(map[string]struct{})
	count := 0
	for i := range visits {
		visit := &visits[i]
		var flatIDs []uint
		for _, flatID := range visit.FlatIDs() {
			key := groupKey(visit, flatID)
			if key == "" {
				key = fmt.Sprintf("visit:%d:%d", visit.ID, flatID)
			}
			if _, ok := sent[key]; ok {
				continue
			}
			sent[key] = struct{}{}
			flatIDs = append(flatIDs, flatID)
		}
		if len(flatIDs) == 0 {
			continue
		}
		count += len(flatIDs)
		s.notifyUnits(ctx, flatIDs, func(flatID uint) NotificationPayload {
			p := arrivalPayload(visit, flatID, false)
			p.Force = true
			return p
		})
	}
	return count, nil
}

// 9 ExpirePreapproved 过期的预约标记为 expired
func (s *VisitService) ExpirePreapproved(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.VisitRequest{}).
		Where("origin = ? AND status = ? AND to_date IS NOT NULL AND to_date < ?",
			models.OriginPreapproved, models.VisitPending, now.UTC()).
		Update("status", models.VisitExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		logger.Info("已过期的预约访客: %d", res.RowsAffected)
		events.PublishLogged(ctx, s.Events, events.VisitsExpired, map[string]interface{}{"count": res.RowsAffected, "at": now})
	}
	return res.RowsAffected, nil
}

// 10 RunExpiryLoop 定期清理过期预约，ctx 结束时返回
func (s *VisitService) RunExpiryLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ExpirePreapproved(ctx, s.Now()); err != nil {
				logger.Error("清理过期预约失败: %v", err)
			}
		}
	}
}

// notifyUnits 并发解析各房屋的接收人，再逐户异步发送
func (s *VisitService) notifyUnits(ctx context.Context, flatIDs []uint, build func(flatID uint) NotificationPayload) {
	notifyUnits(ctx, s.Recipients, s.Notifications, flatIDs, build)
}

func notifyUnits(ctx context.Context, recipients InterfaceRecipientService, notifications InterfaceNotificationService, flatIDs []uint, build func(flatID uint) NotificationPayload) {
	if recipients == nil || notifications == nil || len(flatIDs) == 0 {
		return
	}

	sets := make([]RecipientSet, len(flatIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, flatID := range flatIDs {
		i, flatID := i, flatID
		g.Go(func() error {
			set, err := recipients.ResolveForUnits(gctx, []uint{flatID})
			if err != nil {
				return err
			}
			sets[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("resolve recipients failed")
		return
	}

	for i, flatID := range flatIDs {
		if err := notifications.Dispatch(ctx, build(flatID), sets[i], false); err != nil {
			logger.WithFields(logger.Fields{"flat_id": flatID}).WithError(err).Warn("dispatch failed")
		}
	}
}

func (s *VisitService) window(from, to *time.Time) (time.Time, time.Time, error) {
	start := s.Now()
	if from != nil {
		start = from.UTC()
	}
	end := start.Add(24 * time.Hour)
	if to != nil {
		end = to.UTC()
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, code.New(code.ErrValidation, "结束时间必须晚于开始时间")
	}
	if end.Before(s.Now()) {
		return time.Time{}, time.Time{}, code.BadRequest(code.ErrVisitWindowClosed)
	}
	return start, end, nil
}

// resolveFlats 房屋必须属于本小区、未归档且至少有一位有效住户；数量不符时整体失败
func resolveFlats(tx *gorm.DB, apartmentID uint, flatIDs []uint) ([]models.Flat, error) {
	var flats []models.Flat
	if err := tx.Where("id IN ? AND apartment_id = ? AND archive = ?", flatIDs, apartmentID, false).
		Find(&flats).Error; err != nil {
		return nil, err
	}

	var occupied []uint
	if err := activeResidency(tx).
		Where("flat_clients.flat_id IN ?", flatIDs).
		Distinct().
		Pluck("flat_clients.flat_id", &occupied).Error; err != nil {
		return nil, err
	}
	hasResident := make(map[uint]bool, len(occupied))
	for _, id := range occupied {
		hasResident[id] = true
	}

	byID := make(map[uint]models.Flat, len(flats))
	for _, f := range flats {
		if hasResident[f.ID] {
			byID[f.ID] = f
		}
	}

	if len(byID) == 0 {
		return nil, code.NotFound(code.ErrFlatNotFound)
	}
	if len(byID) != len(flatIDs) {
		return nil, code.BadRequest(code.ErrFlatMismatch)
	}

	ordered := make([]models.Flat, 0, len(flatIDs))
	for _, id := range flatIDs {
		ordered = append(ordered, byID[id])
	}
	return ordered, nil
}

func resolveSurveillance(tx *gorm.DB, apartmentID uint, id *uint) (null.Int, error) {
	if id == nil || *id == 0 {
		return null.Int{}, nil
	}
	var count int64
	if err := tx.Model(&models.SurveillancePoint{}).
		Where("id = ? AND apartment_id = ?", *id, apartmentID).
		Count(&count).Error; err != nil {
		return null.Int{}, err
	}
	if count == 0 {
		return null.Int{}, code.New(code.ErrNotFound, "门岗不存在")
	}
	return null.IntFrom(int64(*id)), nil
}

// withKindDefaults 补全与类型对应的详情结构
func withKindDefaults(kind models.VisitKind, d models.VisitDetails) models.VisitDetails {
	switch kind {
	case models.VisitGuest:
		if d.Guest == nil {
			d.Guest = &models.GuestDetails{}
		}
		if d.Guest.Total <= 0 {
			d.Guest.Total = 1
		}
	case models.VisitDelivery:
		if d.Delivery == nil {
			d.Delivery = &models.DeliveryDetails{}
		}
		if d.Delivery.ParcelCount <= 0 {
			d.Delivery.ParcelCount = 1
		}
		d.Delivery.Images = append([]string(nil), d.Delivery.Images...)
	case models.VisitRide:
		if d.Ride == nil {
			d.Ride = &models.RideDetails{}
		}
	case models.VisitService:
		if d.Service == nil {
			d.Service = &models.ServiceDetails{}
		}
	}
	return d
}

// groupKey 同一分组访客到同一房屋只提醒一次
func groupKey(visit *models.VisitRequest, flatID uint) string {
	if visit.Kind != models.VisitGuest || visit.GroupID == "" {
		return ""
	}
	return fmt.Sprintf("guest:%d:%s:%d", visit.ApartmentID, visit.GroupID, flatID)
}

func arrivalPayload(visit *models.VisitRequest, flatID uint, preapproved bool) NotificationPayload {
	p := NotificationPayload{
		Type:        "visit." + string(visit.Kind),
		Path:        fmt.Sprintf("/visits/%d", visit.ID),
		ApartmentID: visit.ApartmentID,
		FlatID:      flatID,
		Sound:       true,
	}
	if !preapproved {
		p.GroupKey = groupKey(visit, flatID)
	}

	providerName := "Delivery"
	if visit.Provider != nil && visit.Provider.Name != "" {
		providerName = visit.Provider.Name
	}

	switch visit.Kind {
	case models.VisitGuest:
		p.Title = "Guest at the gate"
		p.Body = fmt.Sprintf("%s is waiting at the gate", displayName(visit.Name, "A guest"))
		p.Live = !preapproved
	case models.VisitDelivery:
		if visit.Details.Data().LeaveAtGate() {
			p.Title = "Parcel at the gate"
			p.Body = fmt.Sprintf("%s left a parcel at the gate for you", providerName)
		} else {
			p.Title = "Delivery at the gate"
			p.Body = fmt.Sprintf("%s delivery is waiting at the gate", providerName)
			p.Live = !preapproved
		}
	case models.VisitRide:
		p.Title = "Ride at the gate"
		p.Body = fmt.Sprintf("Your %s ride has arrived", displayName(providerName, "ride"))
	case models.VisitService:
		p.Title = "Service at the gate"
		p.Body = fmt.Sprintf("%s is at the gate", displayName(visit.Name, "Service staff"))
	}
	if preapproved {
		p.Type = "visit.arrived"
		p.Title = "Expected visitor arrived"
	}
	return p
}

func displayName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

func containsAll(set []uint, want []uint) bool {
	have := make(map[uint]struct{}, len(set))
	for _, v := range set {
		have[v] = struct{}{}
	}
	for _, v := range want {
		if _, ok := have[v]; !ok {
			return false
		}
	}
	return true
}

func intersects(a, b []uint) bool {
	have := make(map[uint]struct{}, len(a))
	for _, v := range a {
		have[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := have[v]; ok {
			return true
		}
	}
	return false
}
