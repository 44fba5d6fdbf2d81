package notify

import (
	"errors"
	"fmt"
	"testing"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/rayking12/celo-simple-donation/internal/chain"
	"github.com/stretchr/testify/require"
)

func TestBus_FillsDefaultsAndFansOut(t *testing.T) {
	b := NewBus(evbus.New(), 0)
	rec := NewRecorder(10)
	require.NoError(t, b.Subscribe(rec.Record))

	var seen []Notification
	require.NoError(t, b.Subscribe(func(n Notification) { seen = append(seen, n) }))

	b.Success("Donation successful")

	require.Len(t, seen, 1)
	n := seen[0]
	require.NotEmpty(t, n.ID)
	require.Equal(t, "Success", n.Title)
	require.Equal(t, "Donation successful", n.Description)
	require.Equal(t, StatusSuccess, n.Status)
	require.Equal(t, DefaultDuration, n.Duration)
	require.False(t, n.CreatedAt.IsZero())

	require.Equal(t, seen, rec.Recent())
}

func TestDescribe(t *testing.T) {
	require.Empty(t, Describe(nil))
	require.Equal(t, ConnectorMessage, Describe(fmt.Errorf("transact: %w", chain.ErrConnectorNotFound)))
	require.Equal(t, "execution reverted: cause is closed", Describe(errors.New("execution reverted: cause is closed")))
}

func TestBus_ErrorHandler(t *testing.T) {
	b := NewBus(evbus.New(), time.Second)
	rec := NewRecorder(10)
	require.NoError(t, b.Subscribe(rec.Record))

	b.ErrorHandler()("donate", errors.New("insufficient funds"))

	got := rec.Recent()
	require.Len(t, got, 1)
	require.Equal(t, "Error", got[0].Title)
	require.Equal(t, "insufficient funds", got[0].Description)
	require.Equal(t, StatusError, got[0].Status)
	require.Equal(t, time.Second, got[0].Duration)
}

func TestRecorder_LimitAndActive(t *testing.T) {
	rec := NewRecorder(2)
	now := time.Now()

	rec.Record(Notification{ID: "1", CreatedAt: now.Add(-time.Minute), Duration: time.Second})
	rec.Record(Notification{ID: "2", CreatedAt: now, Duration: time.Minute})
	rec.Record(Notification{ID: "3", CreatedAt: now, Duration: time.Minute})

	recent := rec.Recent()
	require.Len(t, recent, 2)
	require.Equal(t, "3", recent[0].ID)
	require.Equal(t, "2", recent[1].ID)

	rec.Record(Notification{ID: "4", CreatedAt: now.Add(-time.Hour), Duration: time.Second})
	active := rec.Active(now)
	require.Len(t, active, 1)
	require.Equal(t, "3", active[0].ID)
}
