package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merodocs-http-service/internal/domain/models"
	"merodocs-http-service/internal/error/code"
)

func TestRegisterDevice_IdempotentOnToken(t *testing.T) {
	fx := seedFixture(t)
	svc := NewDeviceService(fx.db)
	ctx := context.Background()

	first, err := svc.RegisterDevice(ctx, fx.residentOf(fx.dave), "tok-dave-ipad", "ios")
	require.NoError(t, err)
	again, err := svc.RegisterDevice(ctx, fx.residentOf(fx.dave), "tok-dave-ipad", "ios")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// 同一设备换账号登录
	moved, err := svc.RegisterDevice(ctx, fx.residentOf(fx.carol), "tok-dave-ipad", "ios")
	require.NoError(t, err)
	assert.Equal(t, first.ID, moved.ID)
	assert.Equal(t, fx.carol.ID, moved.ClientID)

	var n int64
	require.NoError(t, fx.db.Model(&models.ClientDevice{}).Where("token = ?", "tok-dave-ipad").Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestRegisterDevice_InvalidToken(t *testing.T) {
	fx := seedFixture(t)
	svc := NewDeviceService(fx.db)

	for _, token := range []string{"", "  ", "a/b", "tok#"} {
		_, err := svc.RegisterDevice(context.Background(), fx.residentOf(fx.dave), token, "android")
		assert.True(t, code.Is(err, code.ErrDeviceTokenInvalid), token)
	}

	_, err := svc.RegisterDevice(context.Background(), fx.guardOf(), "tok-guard", "android")
	assert.Error(t, err)
}

func TestRemoveDevice(t *testing.T) {
	fx := seedFixture(t)
	svc := NewDeviceService(fx.db)
	ctx := context.Background()

	err := svc.RemoveDevice(ctx, fx.residentOf(fx.dave), "tok-alice-1")
	assert.True(t, code.Is(err, code.ErrDeviceNotFound))

	require.NoError(t, svc.RemoveDevice(ctx, fx.residentOf(fx.alice), "tok-alice-1"))

	set, err := NewRecipientService(fx.db).ResolveForUnits(ctx, []uint{fx.f101.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tok-alice-2", "tok-carol"}, set.Endpoints)
}
