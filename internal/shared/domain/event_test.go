package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lycebot/premium/internal/shared/domain"
)

type licenseEvent struct {
	domain.BaseEvent
	TenantID string `json:"tenant_id"`
}

func TestNewBaseEvent(t *testing.T) {
	aggregateID := uuid.New()
	at := time.Date(2026, 5, 1, 14, 0, 0, 0, time.FixedZone("CEST", 2*60*60))

	event := domain.NewBaseEvent(aggregateID, "license", "licensing.license.issued", at)

	assert.NotEqual(t, uuid.Nil, event.EventID())
	assert.Equal(t, aggregateID, event.AggregateID())
	assert.Equal(t, "license", event.AggregateType())
	assert.Equal(t, "licensing.license.issued", event.RoutingKey())
	assert.True(t, at.Equal(event.OccurredAt()))
	assert.Equal(t, time.UTC, event.OccurredAt().Location())
}

func TestNewBaseEvent_UniqueIDs(t *testing.T) {
	id := uuid.New()
	now := time.Now()
	a := domain.NewBaseEvent(id, "license", "licensing.license.revoked", now)
	b := domain.NewBaseEvent(id, "license", "licensing.license.revoked", now)
	assert.NotEqual(t, a.EventID(), b.EventID())
}

func TestBaseEvent_OnlyExportedFieldsEncode(t *testing.T) {
	event := licenseEvent{
		BaseEvent: domain.NewBaseEvent(uuid.New(), "license", "licensing.license.activated", time.Now()),
		TenantID:  "guild-1",
	}

	body, err := json.Marshal(event)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tenant_id":"guild-1"}`, string(body))

	var _ domain.DomainEvent = event
}
