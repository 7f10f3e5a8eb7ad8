package routes

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"merodocs-http-service/internal/domain/models"
)

// BenchmarkListPending 门岗面板最频繁的请求：待审批列表
func BenchmarkListPending(b *testing.B) {
	fx := newAPI(b)
	guard := fx.guardToken(b)

	for i := 0; i < 50; i++ {
		v := models.VisitRequest{
			ApartmentID: fx.apartment.ID,
			Kind:        models.VisitGuest,
			Origin:      models.OriginManual,
			Status:      models.VisitPending,
			Name:        fmt.Sprintf("guest-%d", i),
			Flats:       []models.Flat{fx.f101},
		}
		if err := fx.db.Omit("Flats.*").Create(&v).Error; err != nil {
			b.Fatal(err)
		}
	}

	var failures int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			req := httptest.NewRequest(http.MethodGet, "/api/guard/visits/pending?pageSize=20", nil)
			req.Header.Set("Authorization", "Bearer "+guard)
			w := httptest.NewRecorder()
			fx.router.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				atomic.AddInt64(&failures, 1)
			}
		}
	})
	b.StopTimer()
	if failures > 0 {
		b.Errorf("%d requests failed", failures)
	}
}
