package model

import "time"

// Клиенты программы лояльности

type Client struct {
	ID             int
	FirstName      string
	LastName       string
	DocumentNumber string
	DocumentType   string
	Nationality    string
	Email          string
	Phone          string
	BirthDate      time.Time
	ReferralCode   string
	ReferredBy     int // id клиента-рекомендателя, 0 = нет
}

func (c Client) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// ClientPatch — изменяемые поля клиента. nil = не менять
type ClientPatch struct {
	Phone *string
	Email *string
}

// Правила начисления баллов

// Rule начисляет amount/AmountPerPoint баллов для покупок
// в диапазоне [LowerBound, UpperBound]. Правило без границ — общее
type Rule struct {
	ID             int
	LowerBound     *int
	UpperBound     *int
	AmountPerPoint int
}

func (r Rule) Bounded() bool {
	return r.LowerBound != nil && r.UpperBound != nil
}

func (r Rule) Unbounded() bool {
	return r.LowerBound == nil && r.UpperBound == nil
}

// Matches проверяет попадание суммы в диапазон правила.
// Отсутствующая граница трактуется как открытая
func (r Rule) Matches(amount int) bool {
	if r.LowerBound != nil && amount < *r.LowerBound {
		return false
	}
	if r.UpperBound != nil && amount > *r.UpperBound {
		return false
	}
	return true
}

// Параметры сгорания баллов

type ExpirationPolicy struct {
	ID           int
	ValidFrom    time.Time
	ValidUntil   *time.Time
	DurationDays int
}

// Лот баллов ("bolsa")

type PointLot struct {
	ID             int
	ClientID       int
	AssignedOn     time.Time
	ExpiresOn      time.Time
	PointsAssigned int
	PointsConsumed int
	Balance        int
	PurchaseAmount int
}

// Usable: лот ещё можно списывать на дату asOf
func (l PointLot) Usable(asOf time.Time) bool {
	return l.Balance > 0 && !l.ExpiresOn.Before(asOf)
}

// Концепты (призы) для обмена баллов

type Concept struct {
	ID             int
	Description    string
	PointsRequired int
	Active         bool
}

type ConceptPatch struct {
	Description    *string
	PointsRequired *int
	Active         *bool
}

// Журнал списаний: шапка + строки, только добавление

type Redemption struct {
	ID         int
	ClientID   int
	ConceptID  int
	PointsUsed int
	Date       time.Time
}

type RedemptionItem struct {
	ID           int
	RedemptionID int
	LotID        int
	Points       int
}

// Уровни лояльности

type Level struct {
	ID        int
	Name      string
	MinPoints int
}

type LevelPatch struct {
	Name      *string
	MinPoints *int
}
