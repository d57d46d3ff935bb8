package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rodasmf/loyalty/internal/model"
	"github.com/rodasmf/loyalty/internal/notifier"
	"github.com/rodasmf/loyalty/internal/store"
)

// stubNotifier копит события вместо отправки писем
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

func (n *stubNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func day(value string) time.Time {
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return d
}

// newTestLedger — движок на хранилище в памяти с фиксированной датой
func newTestLedger(today string) (*Ledger, store.Store, *stubNotifier) {
	s := store.NewMemStore()
	notif := &stubNotifier{}
	l := NewLedger(s, notif, zap.NewNop())
	l.now = func() time.Time { return day(today) }
	return l, s, notif
}

func newTestClient(t *testing.T, s store.Store) model.Client {
	t.Helper()
	client, err := s.ClientCreate(context.Background(), model.Client{
		FirstName:      "Maria",
		LastName:       "Gonzalez",
		DocumentNumber: "4123456",
		Email:          "maria@example.com",
	})
	require.NoError(t, err)
	return client
}

func intp(v int) *int {
	return &v
}

func TestAssignPoints(t *testing.T) {
	ctx := context.Background()
	l, s, notif := newTestLedger("2025-06-15")
	client := newTestClient(t, s)

	_, err := s.RuleCreate(ctx, model.Rule{AmountPerPoint: 1000})
	require.NoError(t, err)
	_, err = s.ExpirationCreate(ctx, model.ExpirationPolicy{
		ValidFrom: day("2025-01-01"), DurationDays: 90,
	})
	require.NoError(t, err)

	receipt, err := l.AssignPoints(ctx, client.ID, 30500)
	require.NoError(t, err)
	require.Equal(t, 30, receipt.PointsAssigned)
	require.Equal(t, day("2025-09-13"), receipt.ExpiresOn)
	require.Equal(t, 30, receipt.TotalBalance)

	// начисление создает новый лот, старые не трогает
	receipt, err = l.AssignPoints(ctx, client.ID, 10000)
	require.NoError(t, err)
	require.Equal(t, 10, receipt.PointsAssigned)
	require.Equal(t, 40, receipt.TotalBalance)

	lots, err := s.LotList(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	require.Equal(t, 30, lots[0].Balance)
	require.Equal(t, 10, lots[1].Balance)

	// уведомление уходит асинхронно
	require.Eventually(t, func() bool { return notif.count() == 2 },
		time.Second, 10*time.Millisecond)
	require.Equal(t, notifier.KindPointsAssigned, notif.events[0].Kind)
}

func TestAssignPointsRangeRule(t *testing.T) {
	ctx := context.Background()
	l, s, _ := newTestLedger("2025-06-15")
	client := newTestClient(t, s)

	_, err := s.RuleCreate(ctx, model.Rule{
		LowerBound: intp(0), UpperBound: intp(100000), AmountPerPoint: 500,
	})
	require.NoError(t, err)
	_, err = s.RuleCreate(ctx, model.Rule{AmountPerPoint: 1000})
	require.NoError(t, err)
	_, err = s.ExpirationCreate(ctx, model.ExpirationPolicy{
		ValidFrom: day("2025-01-01"), DurationDays: 30,
	})
	require.NoError(t, err)

	// в диапазоне — первое правило
	receipt, err := l.AssignPoints(ctx, client.ID, 50000)
	require.NoError(t, err)
	require.Equal(t, 100, receipt.PointsAssigned)

	// вне диапазона — общее правило
	receipt, err = l.AssignPoints(ctx, client.ID, 200000)
	require.NoError(t, err)
	require.Equal(t, 200, receipt.PointsAssigned)
}

func TestAssignPointsConfigurationErrors(t *testing.T) {
	ctx := context.Background()
	l, s, _ := newTestLedger("2025-06-15")
	client := newTestClient(t, s)

	// нет правил начисления
	_, err := l.AssignPoints(ctx, client.ID, 10000)
	require.ErrorIs(t, err, ErrConfiguration)

	// есть правило, но нет политики сгорания
	_, err = s.RuleCreate(ctx, model.Rule{AmountPerPoint: 1000})
	require.NoError(t, err)
	_, err = l.AssignPoints(ctx, client.ID, 10000)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestAssignPointsBadInput(t *testing.T) {
	ctx := context.Background()
	l, s, _ := newTestLedger("2025-06-15")
	newTestClient(t, s)

	_, err := l.AssignPoints(ctx, 1, -100)
	require.ErrorIs(t, err, ErrAmountIncorrect)

	_, err = l.AssignPoints(ctx, 9999, 100)
	require.ErrorIs(t, err, ErrNotFound)
}

// seedLot создает лот напрямую, минуя правила начисления
func seedLot(t *testing.T, s store.Store, clientID int, assigned, expires string, points int) model.PointLot {
	t.Helper()
	lot, err := s.LotCreate(context.Background(), model.PointLot{
		ClientID:       clientID,
		AssignedOn:     day(assigned),
		ExpiresOn:      day(expires),
		PointsAssigned: points,
	})
	require.NoError(t, err)
	return lot
}

func seedConcept(t *testing.T, s store.Store, points int) model.Concept {
	t.Helper()
	concept, err := s.ConceptCreate(context.Background(), model.Concept{
		Description: "Vale de combustible", PointsRequired: points, Active: true,
	})
	require.NoError(t, err)
	return concept
}

func TestRedeemSingleLot(t *testing.T) {
	ctx := context.Background()
	l, s, notif := newTestLedger("2025-06-15")
	client := newTestClient(t, s)
	lot := seedLot(t, s, client.ID, "2025-01-01", "2026-01-01", 10)
	concept := seedConcept(t, s, 5)

	receipt, err := l.Redeem(ctx, client.ID, concept.ID)
	require.NoError(t, err)
	require.Equal(t, 5, receipt.Header.PointsUsed)
	require.Equal(t, day("2025-06-15"), receipt.Header.Date)
	require.Len(t, receipt.Items, 1)
	require.Equal(t, lot.ID, receipt.Items[0].LotID)
	require.Equal(t, 5, receipt.Items[0].Points)
	require.Equal(t, 5, receipt.RemainingBalance)

	require.Eventually(t, func() bool { return notif.count() == 1 },
		time.Second, 10*time.Millisecond)
	require.Equal(t, notifier.KindRedemptionReceipt, notif.events[0].Kind)
}

func TestRedeemFIFOAcrossLots(t *testing.T) {
	ctx := context.Background()
	l, s, _ := newTestLedger("2025-06-15")
	client := newTestClient(t, s)

	lot1 := seedLot(t, s, client.ID, "2025-01-01", "2026-01-01", 3)
	lot2 := seedLot(t, s, client.ID, "2025-02-01", "2026-01-01", 4)
	seedLot(t, s, client.ID, "2025-03-01", "2026-01-01", 10)
	concept := seedConcept(t, s, 6)

	receipt, err := l.Redeem(ctx, client.ID, concept.ID)
	require.NoError(t, err)

	// старый лот вычерпывается полностью, следующий — частично
	require.Len(t, receipt.Items, 2)
	require.Equal(t, lot1.ID, receipt.Items[0].LotID)
	require.Equal(t, 3, receipt.Items[0].Points)
	require.Equal(t, lot2.ID, receipt.Items[1].LotID)
	require.Equal(t, 3, receipt.Items[1].Points)
	require.Equal(t, 11, receipt.RemainingBalance)

	lots, err := s.LotList(ctx, client.ID)
	require.NoError(t, err)
	require.Equal(t, 0, lots[0].Balance)
	require.Equal(t, 1, lots[1].Balance)
	require.Equal(t, 10, lots[2].Balance)
}

func TestRedeemInsufficientPoints(t *testing.T) {
	ctx := context.Background()
	l, s, _ := newTestLedger("2025-06-15")
	client := newTestClient(t, s)
	seedLot(t, s, client.ID, "2025-01-01", "2026-01-01", 5)
	concept := seedConcept(t, s, 10)

	_, err := l.Redeem(ctx, client.ID, concept.ID)
	require.ErrorIs(t, err, ErrInsufficientPoints)

	// ничего не записано и не списано
	total, err := l.TotalBalance(ctx, client.ID, true)
	require.NoError(t, err)
	require.Equal(t, 5, total)

	redemptions, err := s.RedemptionList(ctx, client.ID)
	require.NoError(t, err)
	require.Empty(t, redemptions)
}

func TestRedeemIgnoresExpiredLots(t *testing.T) {
	ctx := context.Background()
	l, s, _ := newTestLedger("2025-06-15")
	client := newTestClient(t, s)

	// сгоревшие баллы не участвуют в списании
	seedLot(t, s, client.ID, "2024-01-01", "2025-01-01", 100)
	usable := seedLot(t, s, client.ID, "2025-05-01", "2026-01-01", 10)

	big := seedConcept(t, s, 50)
	_, err := l.Redeem(ctx, client.ID, big.ID)
	require.ErrorIs(t, err, ErrInsufficientPoints)

	small := seedConcept(t, s, 8)
	receipt, err := l.Redeem(ctx, client.ID, small.ID)
	require.NoError(t, err)
	require.Len(t, receipt.Items, 1)
	require.Equal(t, usable.ID, receipt.Items[0].LotID)
}

func TestRedeemInvalidConcept(t *testing.T) {
	ctx := context.Background()
	l, s, _ := newTestLedger("2025-06-15")
	client := newTestClient(t, s)
	seedLot(t, s, client.ID, "2025-01-01", "2026-01-01", 100)

	// неактивный концепт
	concept := seedConcept(t, s, 10)
	err := s.ConceptDeactivate(ctx, concept.ID)
	require.NoError(t, err)
	_, err = l.Redeem(ctx, client.ID, concept.ID)
	require.ErrorIs(t, err, ErrInvalidConcept)

	// нулевая стоимость
	zero, err := s.ConceptCreate(ctx, model.Concept{Description: "Gratis", Active: true})
	require.NoError(t, err)
	_, err = l.Redeem(ctx, client.ID, zero.ID)
	require.ErrorIs(t, err, ErrInvalidConcept)

	// несуществующий концепт
	_, err = l.Redeem(ctx, client.ID, 9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBalanceArithmetic(t *testing.T) {
	ctx := context.Background()
	l, s, _ := newTestLedger("2025-06-15")
	client := newTestClient(t, s)

	_, err := s.RuleCreate(ctx, model.Rule{AmountPerPoint: 100})
	require.NoError(t, err)
	_, err = s.ExpirationCreate(ctx, model.ExpirationPolicy{
		ValidFrom: day("2025-01-01"), DurationDays: 365,
	})
	require.NoError(t, err)

	// начислено 50 + 30, списано 60
	_, err = l.AssignPoints(ctx, client.ID, 5000)
	require.NoError(t, err)
	_, err = l.AssignPoints(ctx, client.ID, 3000)
	require.NoError(t, err)

	concept := seedConcept(t, s, 60)
	receipt, err := l.Redeem(ctx, client.ID, concept.ID)
	require.NoError(t, err)
	require.Equal(t, 20, receipt.RemainingBalance)

	// остаток = сумма начислений минус сумма списаний
	lots, err := s.LotList(ctx, client.ID)
	require.NoError(t, err)
	assigned, consumed := 0, 0
	for _, lot := range lots {
		assigned += lot.PointsAssigned
		consumed += lot.PointsConsumed
	}
	require.Equal(t, 80, assigned)
	require.Equal(t, 60, consumed)

	total, err := l.TotalBalance(ctx, client.ID, true)
	require.NoError(t, err)
	require.Equal(t, assigned-consumed, total)
}

func TestConcurrentRedeem(t *testing.T) {
	ctx := context.Background()
	l, s, _ := newTestLedger("2025-06-15")
	client := newTestClient(t, s)
	seedLot(t, s, client.ID, "2025-01-01", "2026-01-01", 10)
	concept := seedConcept(t, s, 10)

	// баллов хватает ровно на одно списание
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Redeem(ctx, client.ID, concept.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, ErrInsufficientPoints)
		}
	}
	require.Equal(t, 1, succeeded)

	total, err := l.TotalBalance(ctx, client.ID, false)
	require.NoError(t, err)
	require.Equal(t, 0, total)
}

func TestFindExpiring(t *testing.T) {
	ctx := context.Background()
	l, s, _ := newTestLedger("2025-06-15")

	first, err := s.ClientCreate(ctx, model.Client{
		FirstName: "Maria", LastName: "Gonzalez",
		DocumentNumber: "4123456", Email: "maria@example.com",
	})
	require.NoError(t, err)
	second, err := s.ClientCreate(ctx, model.Client{
		FirstName: "Juan", LastName: "Perez",
		DocumentNumber: "5123456", Email: "juan@example.com",
	})
	require.NoError(t, err)

	// два лота первого клиента в окне, один второго, один далеко
	seedLot(t, s, first.ID, "2025-01-01", "2025-06-16", 10)
	seedLot(t, s, first.ID, "2025-02-01", "2025-06-17", 20)
	seedLot(t, s, second.ID, "2025-03-01", "2025-06-18", 30)
	seedLot(t, s, second.ID, "2025-03-01", "2025-12-01", 40)

	result, err := l.FindExpiring(ctx, 3)
	require.NoError(t, err)
	require.Len(t, result, 2)

	require.Equal(t, first.ID, result[0].Client.ID)
	require.Len(t, result[0].Lots, 2)
	require.Equal(t, 10, result[0].Lots[0].Balance)

	require.Equal(t, second.ID, result[1].Client.ID)
	require.Len(t, result[1].Lots, 1)
	require.Equal(t, 30, result[1].Lots[0].Balance)
}
