// Package ledger — движок баллов: начисление лотов по правилам,
// FIFO-списание и запросы остатков
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rodasmf/loyalty/internal/expiry"
	"github.com/rodasmf/loyalty/internal/model"
	"github.com/rodasmf/loyalty/internal/notifier"
	"github.com/rodasmf/loyalty/internal/rules"
	"github.com/rodasmf/loyalty/internal/store"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrConfiguration          = errors.New("configuration error")
	ErrInvalidConcept         = errors.New("concept requires a positive points value")
	ErrInsufficientPoints     = errors.New("insufficient points")
	ErrInsufficientLotBalance = errors.New("insufficient lot balance")
	ErrAmountIncorrect        = errors.New("purchase amount is incorrect")
)

// AssignReceipt — результат начисления
type AssignReceipt struct {
	ClientID       int
	PointsAssigned int
	ExpiresOn      time.Time
	TotalBalance   int
}

// RedeemReceipt — результат списания: шапка, строки по лотам и новый остаток
type RedeemReceipt struct {
	Header           model.Redemption
	Items            []model.RedemptionItem
	RemainingBalance int
}

// ExpiringClient — лоты клиента, сгорающие в окне уведомления,
// по возрастанию даты сгорания
type ExpiringClient struct {
	Client model.Client
	Lots   []model.PointLot
}

type Ledger struct {
	store  store.Store
	notif  notifier.Notifier
	zaplog *zap.Logger
	now    func() time.Time

	// Блокировка на уровне клиента: чтение лотов, проверка достаточности
	// и списание должны наблюдаться как одно целое, иначе два
	// одновременных списания пройдут проверку по устаревшему остатку
	mu       sync.Mutex
	clientMu map[int]*sync.Mutex
}

func NewLedger(s store.Store, notif notifier.Notifier, zaplog *zap.Logger) *Ledger {
	return &Ledger{
		store:    s,
		notif:    notif,
		zaplog:   zaplog,
		now:      time.Now,
		clientMu: make(map[int]*sync.Mutex),
	}
}

func (l *Ledger) clientLock(clientID int) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.clientMu[clientID]
	if !ok {
		m = &sync.Mutex{}
		l.clientMu[clientID] = m
	}
	return m
}

// today — текущая дата (полночь UTC); лоты живут в днях, не в моментах
func (l *Ledger) today() time.Time {
	return l.now().UTC().Truncate(24 * time.Hour)
}

// AssignPoints начисляет баллы за покупку: подбирает правило, вычисляет
// дату сгорания и создаёт новый лот. Существующие лоты не изменяются
func (l *Ledger) AssignPoints(ctx context.Context, clientID int, purchaseAmount int) (AssignReceipt, error) {
	if purchaseAmount < 0 {
		return AssignReceipt{}, ErrAmountIncorrect
	}

	mutex := l.clientLock(clientID)
	mutex.Lock()
	defer mutex.Unlock()

	client, err := l.store.ClientGet(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return AssignReceipt{}, ErrNotFound
		}
		return AssignReceipt{}, err
	}

	ruleList, err := l.store.RuleList(ctx)
	if err != nil {
		return AssignReceipt{}, err
	}
	points, err := rules.Match(purchaseAmount, ruleList)
	if err != nil {
		return AssignReceipt{}, fmt.Errorf("%w: %s", ErrConfiguration, err)
	}

	today := l.today()
	policies, err := l.store.ExpirationList(ctx)
	if err != nil {
		return AssignReceipt{}, err
	}
	active, err := expiry.Active(policies, today)
	if err != nil {
		return AssignReceipt{}, fmt.Errorf("%w: %s", ErrConfiguration, err)
	}
	expiresOn := expiry.Compute(active, today)

	lot, err := l.store.LotCreate(ctx, model.PointLot{
		ClientID:       clientID,
		AssignedOn:     today,
		ExpiresOn:      expiresOn,
		PointsAssigned: points,
		PurchaseAmount: purchaseAmount,
	})
	if err != nil {
		return AssignReceipt{}, err
	}

	total, err := l.store.TotalBalance(ctx, clientID, today, true)
	if err != nil {
		return AssignReceipt{}, err
	}

	if client.Email != "" {
		event := notifier.NewEvent(notifier.KindPointsAssigned, client.Email, client.FullName())
		event.PointsAssigned = lot.PointsAssigned
		event.PurchaseAmount = purchaseAmount
		event.Balance = total
		event.ExpiresOn = expiresOn
		l.dispatch(event)
	}

	return AssignReceipt{
		ClientID:       clientID,
		PointsAssigned: points,
		ExpiresOn:      expiresOn,
		TotalBalance:   total,
	}, nil
}

// Redeem списывает баллы за концепт, разбирая годные лоты по FIFO.
// Операция атомарна: шапка, строки и списания либо записываются все,
// либо никакие
func (l *Ledger) Redeem(ctx context.Context, clientID int, conceptID int) (RedeemReceipt, error) {
	mutex := l.clientLock(clientID)
	mutex.Lock()
	defer mutex.Unlock()

	client, err := l.store.ClientGet(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return RedeemReceipt{}, ErrNotFound
		}
		return RedeemReceipt{}, err
	}

	concept, err := l.store.ConceptGet(ctx, conceptID)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return RedeemReceipt{}, ErrNotFound
		}
		return RedeemReceipt{}, err
	}
	if concept.PointsRequired <= 0 || !concept.Active {
		return RedeemReceipt{}, ErrInvalidConcept
	}
	required := concept.PointsRequired

	today := l.today()
	lots, err := l.store.UsableLots(ctx, clientID, today)
	if err != nil {
		return RedeemReceipt{}, err
	}

	// проверка достаточности до любых изменений
	available := 0
	for _, lot := range lots {
		available += lot.Balance
	}
	if len(lots) == 0 || available < required {
		return RedeemReceipt{}, ErrInsufficientPoints
	}

	// план FIFO-списания: от самого старого лота к новым
	remaining := required
	var items []model.RedemptionItem
	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		use := lot.Balance
		if remaining < use {
			use = remaining
		}
		items = append(items, model.RedemptionItem{LotID: lot.ID, Points: use})
		remaining -= use
	}
	if remaining != 0 {
		return RedeemReceipt{}, ErrInsufficientPoints
	}

	header, items, err := l.store.ApplyRedemption(ctx,
		model.Redemption{
			ClientID:   clientID,
			ConceptID:  conceptID,
			PointsUsed: required,
			Date:       today,
		},
		items)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientLotBalance) {
			// блокировка клиента должна была это исключить
			l.zaplog.Error("redeem lost a race despite client lock",
				zap.Int("client", clientID),
				zap.Int("concept", conceptID),
			)
			return RedeemReceipt{}, ErrInsufficientLotBalance
		}
		return RedeemReceipt{}, err
	}

	total, err := l.store.TotalBalance(ctx, clientID, today, true)
	if err != nil {
		return RedeemReceipt{}, err
	}

	if client.Email != "" {
		event := notifier.NewEvent(notifier.KindRedemptionReceipt, client.Email, client.FullName())
		event.Concept = concept.Description
		event.PointsUsed = required
		event.Date = today
		l.dispatch(event)
	}

	return RedeemReceipt{
		Header:           header,
		Items:            items,
		RemainingBalance: total,
	}, nil
}

// TotalBalance — суммарный остаток клиента на сегодня
func (l *Ledger) TotalBalance(ctx context.Context, clientID int, onlyUsable bool) (int, error) {
	if _, err := l.store.ClientGet(ctx, clientID); err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return l.store.TotalBalance(ctx, clientID, l.today(), onlyUsable)
}

// FindExpiring возвращает по клиентам лоты с положительным остатком,
// сгорающие в ближайшие windowDays дней. Только чтение
func (l *Ledger) FindExpiring(ctx context.Context, windowDays int) ([]ExpiringClient, error) {
	today := l.today()
	lots, err := l.store.ExpiringLots(ctx, today, today.AddDate(0, 0, windowDays))
	if err != nil {
		return nil, err
	}

	byClient := make(map[int][]model.PointLot)
	for _, lot := range lots {
		byClient[lot.ClientID] = append(byClient[lot.ClientID], lot)
	}

	var result []ExpiringClient
	for clientID, clientLots := range byClient {
		client, err := l.store.ClientGet(ctx, clientID)
		if err != nil {
			if errors.Is(err, store.ErrNoRows) {
				continue
			}
			return nil, err
		}
		result = append(result, ExpiringClient{Client: client, Lots: clientLots})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Client.ID < result[j].Client.ID })
	return result, nil
}

// dispatch отправляет уведомление асинхронно; ошибка доставки — только в лог
func (l *Ledger) dispatch(event notifier.Event) {
	go func() {
		if err := l.notif.Notify(context.Background(), event); err != nil {
			l.zaplog.Error("notification dispatch failed",
				zap.String("id", event.ID),
				zap.String("kind", event.Kind),
				zap.Error(err),
			)
		}
	}()
}
