// Package card генерирует реферальные коды клиентов: девятизначный номер
// плюс контрольная цифра по алгоритму Луна.
package card

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/theplant/luhn"
)

const (
	base = 100000000 // минимальный девятизначный номер
	span = 900000000
)

// NewReferralCode возвращает новый десятизначный код с контрольной цифрой
func NewReferralCode() string {
	number := base + rand.Intn(span)
	return fmt.Sprintf("%d%d", number, luhn.CalculateLuhn(number))
}

// Valid проверяет код по алгоритму Луна
func Valid(code string) bool {
	number, err := strconv.Atoi(code)
	if err != nil {
		return false
	}
	return luhn.Valid(number)
}
