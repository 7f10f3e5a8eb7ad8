package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merodocs-http-service/internal/domain/models"
)

func residency(id uint, typ models.ResidencyType, name string) models.FlatClient {
	r := models.FlatClient{ClientID: id * 10, Type: typ, Client: &models.Client{Name: name}}
	r.ID = id
	return r
}

func TestCaptureParentSnapshot(t *testing.T) {
	cases := []struct {
		name        string
		residencies []models.FlatClient
		want        string
	}{
		{
			name: "owner beats tenant",
			residencies: []models.FlatClient{
				residency(1, models.ResidencyTenant, "Tenant"),
				residency(2, models.ResidencyOwner, "Owner"),
			},
			want: "Owner",
		},
		{
			name: "earliest owner",
			residencies: []models.FlatClient{
				residency(5, models.ResidencyOwner, "Later"),
				residency(3, models.ResidencyOwner, "Earlier"),
			},
			want: "Earlier",
		},
		{
			name: "family never becomes parent",
			residencies: []models.FlatClient{
				residency(1, models.ResidencyOwnerFamily, "Kid"),
				residency(2, models.ResidencyTenant, "Tenant"),
			},
			want: "Tenant",
		},
		{
			name: "only family",
			residencies: []models.FlatClient{
				residency(1, models.ResidencyOwnerFamily, "Kid"),
				residency(2, models.ResidencyTenantFamily, "Cousin"),
			},
		},
		{
			name: "offline owner skipped",
			residencies: []models.FlatClient{
				func() models.FlatClient {
					r := residency(1, models.ResidencyOwner, "Gone")
					r.Offline = true
					return r
				}(),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CaptureParentSnapshot(42, tc.residencies)
			if tc.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tc.want, got.Name)
			assert.Equal(t, uint(42), got.FlatID)
			assert.Equal(t, models.SnapshotVersion, got.Version)
		})
	}
}

func TestCaptureKeepsRequestedOrder(t *testing.T) {
	fx := seedFixture(t)

	flats, parents, err := NewSnapshotService().Capture(context.Background(), fx.db, []uint{fx.f102.ID, fx.f101.ID})
	require.NoError(t, err)
	require.Len(t, flats, 2)
	assert.Equal(t, "102", flats[0].Name)
	assert.Equal(t, "101", flats[1].Name)
	assert.Equal(t, "A", flats[0].Block)
	assert.Equal(t, "1F", flats[0].Floor)

	require.Len(t, parents, 2)
	assert.Equal(t, fx.dave.ID, parents[0].ClientID)
	assert.Equal(t, models.ResidencyTenant, parents[0].Type)
	assert.Equal(t, fx.alice.ID, parents[1].ClientID)
	assert.Equal(t, "9800000001", parents[1].Contact)
}
