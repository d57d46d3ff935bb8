package expiry

import (
	"errors"
	"time"

	"github.com/rodasmf/loyalty/internal/model"
)

var (
	ErrNoPolicy         = errors.New("no expiration policy configured")
	ErrIncompletePolicy = errors.New("expiration policy has neither duration nor end date")
)

// DefaultDays — срок сгорания по умолчанию, если политика не задаёт ни
// длительность, ни дату окончания
const DefaultDays = 30

// Active выбирает действующую политику сгорания: среди политик, чьё окно
// покрывает today (ValidFrom <= today и ValidUntil не задана или >= today),
// берётся политика с самым поздним ValidFrom, при равенстве — с большим id.
// Если окно не покрывает ни одна, берётся последняя созданная.
func Active(policies []model.ExpirationPolicy, today time.Time) (model.ExpirationPolicy, error) {
	if len(policies) == 0 {
		return model.ExpirationPolicy{}, ErrNoPolicy
	}

	var active model.ExpirationPolicy
	found := false
	for _, p := range policies {
		if p.ValidFrom.After(today) {
			continue
		}
		if p.ValidUntil != nil && p.ValidUntil.Before(today) {
			continue
		}
		if !found || p.ValidFrom.After(active.ValidFrom) ||
			(p.ValidFrom.Equal(active.ValidFrom) && p.ID > active.ID) {
			active = p
			found = true
		}
	}
	if !found {
		// ни одно окно не действует — последняя созданная
		for _, p := range policies {
			if p.ID > active.ID {
				active = p
			}
		}
	}

	if active.DurationDays <= 0 && active.ValidUntil == nil {
		return model.ExpirationPolicy{}, ErrIncompletePolicy
	}
	return active, nil
}

// Compute вычисляет дату сгорания лота, созданного assignedOn.
// Если задана длительность — assignedOn + DurationDays;
// иначе фиксированная дата ValidUntil (одна на все лоты политики);
// иначе assignedOn + DefaultDays.
func Compute(p model.ExpirationPolicy, assignedOn time.Time) time.Time {
	if p.DurationDays > 0 {
		return assignedOn.AddDate(0, 0, p.DurationDays)
	}
	if p.ValidUntil != nil {
		return *p.ValidUntil
	}
	return assignedOn.AddDate(0, 0, DefaultDays)
}
