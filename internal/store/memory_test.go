package store

import (
	"context"
	"testing"
	"time"

	"github.com/rodasmf/loyalty/internal/model"
	"github.com/stretchr/testify/require"
)

func testDay(value string) time.Time {
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return d
}

func TestStoreAuth(t *testing.T) {
	const (
		login    = "100001"
		password = "100001"
	)

	ctx := context.Background()
	store := NewMemStore()

	userCodeRegister, err := store.AuthRegister(ctx, login, password)
	require.NoError(t, err)

	userCodeLogin, err := store.AuthLogin(ctx, login, password)
	require.NoError(t, err)
	require.Equal(t, userCodeRegister, userCodeLogin)

	// повторная регистрация
	_, err = store.AuthRegister(ctx, login, password)
	require.ErrorIs(t, err, ErrAlreadyExists)

	// неверный пароль
	_, err = store.AuthLogin(ctx, login, "wrong")
	require.ErrorIs(t, err, ErrNoRows)
}

func TestStoreClient(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	client, err := store.ClientCreate(ctx, model.Client{
		FirstName:      "Maria",
		LastName:       "Gonzalez",
		DocumentNumber: "4123456",
		Email:          "maria@example.com",
		Phone:          "0981111111",
	})
	require.NoError(t, err)
	require.NotZero(t, client.ID)

	// дубликат документа
	_, err = store.ClientCreate(ctx, model.Client{
		FirstName:      "Otra",
		LastName:       "Persona",
		DocumentNumber: "4123456",
		Email:          "otra@example.com",
	})
	require.ErrorIs(t, err, ErrAlreadyExists)

	// дубликат почты без учета регистра
	_, err = store.ClientCreate(ctx, model.Client{
		FirstName:      "Otra",
		LastName:       "Persona",
		DocumentNumber: "5999999",
		Email:          "MARIA@example.com",
	})
	require.ErrorIs(t, err, ErrAlreadyExists)

	// чтение
	got, err := store.ClientGet(ctx, client.ID)
	require.NoError(t, err)
	require.Equal(t, client, got)

	got, err = store.ClientByDocument(ctx, "4123456")
	require.NoError(t, err)
	require.Equal(t, client.ID, got.ID)

	// поиск
	found, err := store.ClientFind(ctx, "", "maria@example.com", "")
	require.NoError(t, err)
	require.Len(t, found, 1)

	found, err = store.ClientList(ctx, "gonza")
	require.NoError(t, err)
	require.Len(t, found, 1)

	// обновление контактов
	phone := "0982222222"
	updated, err := store.ClientUpdate(ctx, client.ID, model.ClientPatch{Phone: &phone})
	require.NoError(t, err)
	require.Equal(t, phone, updated.Phone)

	// удаление
	err = store.ClientDelete(ctx, client.ID)
	require.NoError(t, err)
	_, err = store.ClientGet(ctx, client.ID)
	require.ErrorIs(t, err, ErrNoRows)
}

func TestStoreLotFIFOOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	client, err := store.ClientCreate(ctx, model.Client{
		FirstName: "Juan", LastName: "Perez",
		DocumentNumber: "1000001", Email: "juan@example.com",
	})
	require.NoError(t, err)

	// создаем лоты не по порядку дат
	dates := []string{"2025-03-01", "2025-01-01", "2025-02-01"}
	for _, d := range dates {
		_, err = store.LotCreate(ctx, model.PointLot{
			ClientID:       client.ID,
			AssignedOn:     testDay(d),
			ExpiresOn:      testDay("2026-01-01"),
			PointsAssigned: 10,
			PurchaseAmount: 10000,
		})
		require.NoError(t, err)
	}

	lots, err := store.UsableLots(ctx, client.ID, testDay("2025-06-01"))
	require.NoError(t, err)
	require.Len(t, lots, 3)

	// от старых к новым
	require.Equal(t, testDay("2025-01-01"), lots[0].AssignedOn)
	require.Equal(t, testDay("2025-02-01"), lots[1].AssignedOn)
	require.Equal(t, testDay("2025-03-01"), lots[2].AssignedOn)
}

func TestStoreUsableLots(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	client, err := store.ClientCreate(ctx, model.Client{
		FirstName: "Juan", LastName: "Perez",
		DocumentNumber: "1000001", Email: "juan@example.com",
	})
	require.NoError(t, err)

	// сгоревший лот
	expired, err := store.LotCreate(ctx, model.PointLot{
		ClientID: client.ID, AssignedOn: testDay("2024-01-01"),
		ExpiresOn: testDay("2024-12-31"), PointsAssigned: 100,
	})
	require.NoError(t, err)

	// годный лот
	_, err = store.LotCreate(ctx, model.PointLot{
		ClientID: client.ID, AssignedOn: testDay("2025-01-01"),
		ExpiresOn: testDay("2026-01-01"), PointsAssigned: 50,
	})
	require.NoError(t, err)

	// исчерпанный лот
	drained, err := store.LotCreate(ctx, model.PointLot{
		ClientID: client.ID, AssignedOn: testDay("2025-02-01"),
		ExpiresOn: testDay("2026-01-01"), PointsAssigned: 30,
	})
	require.NoError(t, err)
	err = store.ApplyConsumption(ctx, drained.ID, 30)
	require.NoError(t, err)

	asOf := testDay("2025-06-01")
	lots, err := store.UsableLots(ctx, client.ID, asOf)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	require.Equal(t, 50, lots[0].Balance)

	// годный остаток не включает сгоревшее
	total, err := store.TotalBalance(ctx, client.ID, asOf, true)
	require.NoError(t, err)
	require.Equal(t, 50, total)

	// полный остаток включает
	total, err = store.TotalBalance(ctx, client.ID, asOf, false)
	require.NoError(t, err)
	require.Equal(t, 150, total)

	// последний день действия лот еще годен
	require.True(t, expired.Usable(testDay("2024-12-31")))
}

func TestStoreApplyConsumption(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	lot, err := store.LotCreate(ctx, model.PointLot{
		ClientID: 1, AssignedOn: testDay("2025-01-01"),
		ExpiresOn: testDay("2026-01-01"), PointsAssigned: 10,
	})
	require.NoError(t, err)
	require.Equal(t, 10, lot.Balance)
	require.Equal(t, 0, lot.PointsConsumed)

	err = store.ApplyConsumption(ctx, lot.ID, 4)
	require.NoError(t, err)

	lots, err := store.LotList(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 6, lots[0].Balance)
	require.Equal(t, 4, lots[0].PointsConsumed)

	// списание сверх остатка отклоняется целиком
	err = store.ApplyConsumption(ctx, lot.ID, 7)
	require.ErrorIs(t, err, ErrInsufficientLotBalance)

	lots, err = store.LotList(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 6, lots[0].Balance)

	// неположительное количество
	err = store.ApplyConsumption(ctx, lot.ID, 0)
	require.ErrorIs(t, err, ErrPointsIncorrect)

	// несуществующий лот
	err = store.ApplyConsumption(ctx, 9999, 1)
	require.ErrorIs(t, err, ErrNoRows)
}

func TestStoreApplyRedemptionAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	lot1, err := store.LotCreate(ctx, model.PointLot{
		ClientID: 1, AssignedOn: testDay("2025-01-01"),
		ExpiresOn: testDay("2026-01-01"), PointsAssigned: 5,
	})
	require.NoError(t, err)
	lot2, err := store.LotCreate(ctx, model.PointLot{
		ClientID: 1, AssignedOn: testDay("2025-02-01"),
		ExpiresOn: testDay("2026-01-01"), PointsAssigned: 5,
	})
	require.NoError(t, err)

	// вторая строка превышает остаток лота — не должно измениться ничего
	_, _, err = store.ApplyRedemption(ctx,
		model.Redemption{ClientID: 1, ConceptID: 1, PointsUsed: 13, Date: testDay("2025-06-01")},
		[]model.RedemptionItem{
			{LotID: lot1.ID, Points: 5},
			{LotID: lot2.ID, Points: 8},
		})
	require.ErrorIs(t, err, ErrInsufficientLotBalance)

	total, err := store.TotalBalance(ctx, 1, testDay("2025-06-01"), false)
	require.NoError(t, err)
	require.Equal(t, 10, total)

	redemptions, err := store.RedemptionList(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, redemptions)

	// корректное списание по двум лотам
	header, items, err := store.ApplyRedemption(ctx,
		model.Redemption{ClientID: 1, ConceptID: 1, PointsUsed: 8, Date: testDay("2025-06-01")},
		[]model.RedemptionItem{
			{LotID: lot1.ID, Points: 5},
			{LotID: lot2.ID, Points: 3},
		})
	require.NoError(t, err)
	require.NotZero(t, header.ID)
	require.Len(t, items, 2)
	require.Equal(t, header.ID, items[0].RedemptionID)

	total, err = store.TotalBalance(ctx, 1, testDay("2025-06-01"), false)
	require.NoError(t, err)
	require.Equal(t, 2, total)

	saved, err := store.RedemptionItems(ctx, header.ID)
	require.NoError(t, err)
	require.Equal(t, items, saved)
}

func TestStoreExpiringLots(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	// сгорает внутри окна
	inWindow, err := store.LotCreate(ctx, model.PointLot{
		ClientID: 1, AssignedOn: testDay("2025-01-01"),
		ExpiresOn: testDay("2025-06-03"), PointsAssigned: 10,
	})
	require.NoError(t, err)

	// сгорает за окном
	_, err = store.LotCreate(ctx, model.PointLot{
		ClientID: 1, AssignedOn: testDay("2025-01-01"),
		ExpiresOn: testDay("2025-07-01"), PointsAssigned: 10,
	})
	require.NoError(t, err)

	// в окне, но остаток нулевой
	drained, err := store.LotCreate(ctx, model.PointLot{
		ClientID: 2, AssignedOn: testDay("2025-01-01"),
		ExpiresOn: testDay("2025-06-02"), PointsAssigned: 10,
	})
	require.NoError(t, err)
	err = store.ApplyConsumption(ctx, drained.ID, 10)
	require.NoError(t, err)

	lots, err := store.ExpiringLots(ctx, testDay("2025-06-01"), testDay("2025-06-04"))
	require.NoError(t, err)
	require.Len(t, lots, 1)
	require.Equal(t, inWindow.ID, lots[0].ID)
}

func TestStoreConcept(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	concept, err := store.ConceptCreate(ctx, model.Concept{
		Description: "Vale de combustible", PointsRequired: 100, Active: true,
	})
	require.NoError(t, err)

	err = store.ConceptDeactivate(ctx, concept.ID)
	require.NoError(t, err)

	got, err := store.ConceptGet(ctx, concept.ID)
	require.NoError(t, err)
	require.False(t, got.Active)

	points := 150
	got, err = store.ConceptUpdate(ctx, concept.ID, model.ConceptPatch{PointsRequired: &points})
	require.NoError(t, err)
	require.Equal(t, 150, got.PointsRequired)
}

func TestStoreLevelOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	_, err := store.LevelCreate(ctx, model.Level{Name: "Oro", MinPoints: 1000})
	require.NoError(t, err)
	_, err = store.LevelCreate(ctx, model.Level{Name: "Bronce", MinPoints: 0})
	require.NoError(t, err)
	_, err = store.LevelCreate(ctx, model.Level{Name: "Plata", MinPoints: 500})
	require.NoError(t, err)

	levels, err := store.LevelList(ctx)
	require.NoError(t, err)
	require.Len(t, levels, 3)

	// по возрастанию порога
	require.Equal(t, "Bronce", levels[0].Name)
	require.Equal(t, "Plata", levels[1].Name)
	require.Equal(t, "Oro", levels[2].Name)
}
