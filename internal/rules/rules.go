package rules

import (
	"errors"

	"github.com/rodasmf/loyalty/internal/model"
)

var (
	ErrNoRules        = errors.New("no rules configured")
	ErrZeroEquivalent = errors.New("rule equivalence amount is zero")
)

// Match подбирает правило начисления для суммы покупки и возвращает
// количество баллов (целочисленное деление amount / AmountPerPoint).
//
// Приоритет: первое правило с диапазоном, в который попадает сумма;
// иначе первое общее правило (без границ); иначе самое первое правило.
// Последний вариант унаследован от исходной конфигурации намеренно:
// система не должна отказывать в начислении, пока есть хоть одно правило.
func Match(amount int, rules []model.Rule) (int, error) {
	if len(rules) == 0 {
		return 0, ErrNoRules
	}

	for _, r := range rules {
		if !r.Unbounded() && r.Matches(amount) {
			return divide(amount, r)
		}
	}

	for _, r := range rules {
		if r.Unbounded() {
			return divide(amount, r)
		}
	}

	return divide(amount, rules[0])
}

func divide(amount int, r model.Rule) (int, error) {
	if r.AmountPerPoint <= 0 {
		return 0, ErrZeroEquivalent
	}
	return amount / r.AmountPerPoint, nil
}
