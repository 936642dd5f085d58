package service

import (
	"context"
	"testing"

	"washly/internal/apierror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogService_WithoutCache(t *testing.T) {
	env := newTestEnv(t, false)
	catalog := NewCatalogService(fakeCatalogRepo{env.store}, nil, 0)

	clientID := env.seedClient(true)
	client, err := catalog.GetClient(context.Background(), clientID)
	require.NoError(t, err)
	assert.Equal(t, clientID.String(), client.ID)
	assert.True(t, client.Active)

	svcID := env.seedService("Lavado al seco", "18.90", true)
	svc, err := catalog.GetService(context.Background(), svcID)
	require.NoError(t, err)
	assertDec(t, "18.90", svc.UnitPrice)
	assert.Equal(t, "kg", svc.Unit)

	_, err = catalog.GetClient(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apierror.ErrNotFound)
	_, err = catalog.GetService(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apierror.ErrNotFound)
}
