package project

import (
	"context"
	"testing"
	"time"

	"github.com/chantier/backend/internal/domain/project"
	"github.com/chantier/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotInvalidationHandler(t *testing.T) {
	cache := newMemoryCache()
	h := NewSnapshotInvalidationHandler(cache, nil)
	projectID := uuid.New()

	assert.ElementsMatch(t, []string{
		project.EventTypeExpenseRecorded,
		project.EventTypePaymentRecorded,
		project.EventTypePaymentStatusChanged,
	}, h.EventTypes())

	cache.Set(context.Background(), &project.FinancialSnapshot{ProjectID: projectID}, 0)
	exp, err := project.NewExpense(projectID, valueobject.MustMoney("10"), time.Now(), "")
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), project.NewExpenseRecordedEvent(exp)))
	_, ok := cache.Get(context.Background(), projectID)
	assert.False(t, ok)
}
