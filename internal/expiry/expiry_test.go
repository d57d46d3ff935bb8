package expiry

import (
	"testing"
	"time"

	"github.com/rodasmf/loyalty/internal/model"
	"github.com/stretchr/testify/require"
)

func day(value string) time.Time {
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return d
}

func dayp(value string) *time.Time {
	d := day(value)
	return &d
}

func TestActiveWindow(t *testing.T) {
	today := day("2025-06-15")
	policies := []model.ExpirationPolicy{
		{ID: 1, ValidFrom: day("2025-01-01"), ValidUntil: dayp("2025-03-31"), DurationDays: 90},
		{ID: 2, ValidFrom: day("2025-04-01"), DurationDays: 180},
	}

	active, err := Active(policies, today)
	require.NoError(t, err)
	require.Equal(t, 2, active.ID)
}

func TestActiveLatestFromWins(t *testing.T) {
	// оба окна покрывают дату — берётся более позднее начало
	today := day("2025-06-15")
	policies := []model.ExpirationPolicy{
		{ID: 1, ValidFrom: day("2025-01-01"), DurationDays: 90},
		{ID: 2, ValidFrom: day("2025-06-01"), DurationDays: 180},
	}

	active, err := Active(policies, today)
	require.NoError(t, err)
	require.Equal(t, 2, active.ID)
}

func TestActiveTieBreakByID(t *testing.T) {
	today := day("2025-06-15")
	policies := []model.ExpirationPolicy{
		{ID: 7, ValidFrom: day("2025-06-01"), DurationDays: 90},
		{ID: 9, ValidFrom: day("2025-06-01"), DurationDays: 180},
	}

	active, err := Active(policies, today)
	require.NoError(t, err)
	require.Equal(t, 9, active.ID)
}

func TestActiveFallbackLastCreated(t *testing.T) {
	// ни одно окно не покрывает дату — последняя созданная политика
	today := day("2025-06-15")
	policies := []model.ExpirationPolicy{
		{ID: 1, ValidFrom: day("2025-01-01"), ValidUntil: dayp("2025-01-31"), DurationDays: 30},
		{ID: 2, ValidFrom: day("2025-02-01"), ValidUntil: dayp("2025-02-28"), DurationDays: 60},
	}

	active, err := Active(policies, today)
	require.NoError(t, err)
	require.Equal(t, 2, active.ID)
}

func TestActiveNoPolicies(t *testing.T) {
	_, err := Active(nil, day("2025-06-15"))
	require.ErrorIs(t, err, ErrNoPolicy)
}

func TestActiveIncomplete(t *testing.T) {
	// ни длительности, ни даты окончания — ошибка конфигурации
	policies := []model.ExpirationPolicy{
		{ID: 1, ValidFrom: day("2025-01-01")},
	}

	_, err := Active(policies, day("2025-06-15"))
	require.ErrorIs(t, err, ErrIncompletePolicy)
}

func TestComputeDuration(t *testing.T) {
	policy := model.ExpirationPolicy{ID: 1, ValidFrom: day("2025-01-01"), DurationDays: 90}

	expires := Compute(policy, day("2025-01-10"))
	require.Equal(t, day("2025-04-10"), expires)
}

func TestComputeFixedDate(t *testing.T) {
	// без длительности дата сгорания фиксированная, общая для всех лотов
	policy := model.ExpirationPolicy{
		ID:         1,
		ValidFrom:  day("2025-01-01"),
		ValidUntil: dayp("2025-12-31"),
	}

	expires := Compute(policy, day("2025-01-10"))
	require.Equal(t, day("2025-12-31"), expires)

	expires = Compute(policy, day("2025-11-30"))
	require.Equal(t, day("2025-12-31"), expires)
}

func TestComputeDurationBeatsFixedDate(t *testing.T) {
	policy := model.ExpirationPolicy{
		ID:           1,
		ValidFrom:    day("2025-01-01"),
		ValidUntil:   dayp("2025-12-31"),
		DurationDays: 30,
	}

	expires := Compute(policy, day("2025-01-10"))
	require.Equal(t, day("2025-02-09"), expires)
}

func TestComputeDefault(t *testing.T) {
	policy := model.ExpirationPolicy{ID: 1, ValidFrom: day("2025-01-01")}

	expires := Compute(policy, day("2025-01-10"))
	require.Equal(t, day("2025-01-10").AddDate(0, 0, DefaultDays), expires)
}
