package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rodasmf/loyalty/internal/ledger"
	"github.com/rodasmf/loyalty/internal/model"
	"github.com/rodasmf/loyalty/internal/notifier"
	"github.com/rodasmf/loyalty/internal/scheduler/config"
	"github.com/rodasmf/loyalty/internal/store"
)

type stubNotifier struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (n *stubNotifier) Notify(_ context.Context, event notifier.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()
	notif := &stubNotifier{}
	l := ledger.NewLedger(s, notif, zap.NewNop())

	today := time.Now().UTC().Truncate(24 * time.Hour)

	// клиент с почтой и двумя сгорающими лотами
	withMail, err := s.ClientCreate(ctx, model.Client{
		FirstName: "Maria", LastName: "Gonzalez",
		DocumentNumber: "4123456", Email: "maria@example.com",
	})
	require.NoError(t, err)
	for _, points := range []int{10, 20} {
		_, err = s.LotCreate(ctx, model.PointLot{
			ClientID:       withMail.ID,
			AssignedOn:     today.AddDate(0, 0, -30),
			ExpiresOn:      today.AddDate(0, 0, 2),
			PointsAssigned: points,
		})
		require.NoError(t, err)
	}

	// клиент без почты пропускается
	noMail, err := s.ClientCreate(ctx, model.Client{
		FirstName: "Juan", LastName: "Perez", DocumentNumber: "5123456",
	})
	require.NoError(t, err)
	_, err = s.LotCreate(ctx, model.PointLot{
		ClientID:       noMail.ID,
		AssignedOn:     today.AddDate(0, 0, -30),
		ExpiresOn:      today.AddDate(0, 0, 1),
		PointsAssigned: 5,
	})
	require.NoError(t, err)

	// лот за пределами окна
	_, err = s.LotCreate(ctx, model.PointLot{
		ClientID:       withMail.ID,
		AssignedOn:     today,
		ExpiresOn:      today.AddDate(0, 0, 60),
		PointsAssigned: 100,
	})
	require.NoError(t, err)

	sched := NewScheduler(config.Config{AlertDays: 3}, l, notif, zap.NewNop())
	sched.Sweep(ctx)

	// одно письмо на клиента со всеми его сгорающими лотами
	require.Len(t, notif.events, 1)
	event := notif.events[0]
	require.Equal(t, notifier.KindPointsExpiring, event.Kind)
	require.Equal(t, "maria@example.com", event.To)
	require.Len(t, event.Expiring, 2)
	require.Equal(t, 10, event.Expiring[0].Points)
	require.Equal(t, 20, event.Expiring[1].Points)
}

func TestStartDisabled(t *testing.T) {
	s := store.NewMemStore()
	notif := &stubNotifier{}
	l := ledger.NewLedger(s, notif, zap.NewNop())

	// выключенный планировщик не запускается, Stop безопасен
	sched := NewScheduler(config.Config{Enabled: false}, l, notif, zap.NewNop())
	sched.Start()
	sched.Stop()
}

func TestUntilNextRun(t *testing.T) {
	sched := NewScheduler(config.Config{AlertHour: 9, AlertMinute: 30}, nil, nil, zap.NewNop())

	now := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	require.Equal(t, 90*time.Minute, sched.untilNextRun(now))

	// время уже прошло — завтра
	now = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	require.Equal(t, 23*time.Hour+30*time.Minute, sched.untilNextRun(now))
}
