package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merodocs-http-service/internal/domain/models"
	"merodocs-http-service/internal/error/code"
)

func TestCreateProvider_Conflict(t *testing.T) {
	fx := seedFixture(t)
	svc := NewProviderService(fx.db)
	ctx := context.Background()

	// 与全局服务商重名
	_, err := svc.CreateProvider(ctx, fx.guardOf(), CreateProviderInput{Name: " daraz ", Kind: models.VisitDelivery})
	assert.True(t, code.Is(err, code.ErrProviderAlreadyExist))
	assert.Equal(t, http.StatusConflict, code.StatusOf(err))

	p, err := svc.CreateProvider(ctx, fx.guardOf(), CreateProviderInput{Name: "InDrive", Kind: models.VisitRide})
	require.NoError(t, err)
	assert.Equal(t, int64(fx.apartment.ID), p.ApartmentID.Int64)
	assert.False(t, p.CreatedByClientID.Valid)

	_, err = svc.CreateProvider(ctx, fx.residentOf(fx.dave), CreateProviderInput{Name: "indrive", Kind: models.VisitRide})
	assert.True(t, code.Is(err, code.ErrProviderAlreadyExist))

	// 同名不同类型可以共存
	_, err = svc.CreateProvider(ctx, fx.guardOf(), CreateProviderInput{Name: "InDrive", Kind: models.VisitDelivery})
	require.NoError(t, err)

	// alice 的私有服务对 dave 不可见，不算重复
	mine, err := svc.CreateProvider(ctx, fx.residentOf(fx.dave), CreateProviderInput{Name: "Plumber", Kind: models.VisitService})
	require.NoError(t, err)
	assert.Equal(t, int64(fx.dave.ID), mine.CreatedByClientID.Int64)
}

func TestCreateProvider_Validation(t *testing.T) {
	fx := seedFixture(t)
	svc := NewProviderService(fx.db)

	_, err := svc.CreateProvider(context.Background(), fx.guardOf(), CreateProviderInput{Name: "Friend", Kind: models.VisitGuest})
	assert.True(t, code.Is(err, code.ErrVisitKindInvalid))

	_, err = svc.CreateProvider(context.Background(), fx.guardOf(), CreateProviderInput{Name: "  ", Kind: models.VisitRide})
	assert.True(t, code.Is(err, code.ErrValidation))
}

func TestListProviders_Visibility(t *testing.T) {
	fx := seedFixture(t)
	svc := NewProviderService(fx.db)
	ctx := context.Background()

	names := func(ps []models.VisitProvider) []string {
		out := make([]string, 0, len(ps))
		for _, p := range ps {
			out = append(out, p.Name)
		}
		return out
	}

	all, err := svc.ListProviders(ctx, fx.residentOf(fx.alice), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Daraz", "Pathao", "Plumber"}, names(all))

	all, err = svc.ListProviders(ctx, fx.residentOf(fx.dave), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Daraz", "Pathao"}, names(all))

	all, err = svc.ListProviders(ctx, fx.guardOf(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Daraz", "Pathao"}, names(all))

	rides, err := svc.ListProviders(ctx, Guard(fx.otherGuard.ID, fx.other.ID), models.VisitRide)
	require.NoError(t, err)
	assert.Empty(t, rides)
}
