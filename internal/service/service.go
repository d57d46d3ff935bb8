package service

import (
	"context"
	"errors"
	"time"

	"github.com/rodasmf/loyalty/internal/card"
	"github.com/rodasmf/loyalty/internal/expiry"
	"github.com/rodasmf/loyalty/internal/ledger"
	"github.com/rodasmf/loyalty/internal/model"
	"github.com/rodasmf/loyalty/internal/store"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
)

// ClientLevel — уровень лояльности клиента по текущему остатку
type ClientLevel struct {
	ClientID    int
	TotalPoints int
	Level       *model.Level
}

// ClientInfo — ответ интеграционного запроса по документу
type ClientInfo struct {
	Client      model.Client
	TotalPoints int
}

// ExpirationPatch — изменяемые поля параметра сгорания
type ExpirationPatch struct {
	ValidFrom    *time.Time
	DurationDays *int
}

type Service struct {
	store  store.Store
	ledger *ledger.Ledger
}

func NewService(s store.Store, l *ledger.Ledger) *Service {
	return &Service{store: s, ledger: l}
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return ErrAlreadyExists
	default:
		return err
	}
}

// Клиенты

func (s *Service) RegisterClient(ctx context.Context, client model.Client) (model.Client, error) {
	if client.FirstName == "" || client.LastName == "" ||
		client.DocumentNumber == "" || client.Email == "" {
		return model.Client{}, ErrInsufficientData
	}
	if client.ReferredBy != 0 {
		if _, err := s.store.ClientGet(ctx, client.ReferredBy); err != nil {
			return model.Client{}, mapStoreErr(err)
		}
	}
	client.ReferralCode = card.NewReferralCode()

	created, err := s.store.ClientCreate(ctx, client)
	if err != nil {
		return model.Client{}, mapStoreErr(err)
	}
	return created, nil
}

func (s *Service) GetClient(ctx context.Context, id int) (model.Client, error) {
	client, err := s.store.ClientGet(ctx, id)
	if err != nil {
		return model.Client{}, mapStoreErr(err)
	}
	return client, nil
}

func (s *Service) ListClients(ctx context.Context, query string) ([]model.Client, error) {
	return s.store.ClientList(ctx, query)
}

func (s *Service) FindClients(ctx context.Context, document, email, phone string) ([]model.Client, error) {
	return s.store.ClientFind(ctx, document, email, phone)
}

func (s *Service) UpdateClient(ctx context.Context, id int, patch model.ClientPatch) (model.Client, error) {
	client, err := s.store.ClientUpdate(ctx, id, patch)
	if err != nil {
		return model.Client{}, mapStoreErr(err)
	}
	return client, nil
}

func (s *Service) DeleteClient(ctx context.Context, id int) error {
	return mapStoreErr(s.store.ClientDelete(ctx, id))
}

// ClientByDocument — данные клиента с суммой баллов для внешних систем
func (s *Service) ClientByDocument(ctx context.Context, document string) (ClientInfo, error) {
	client, err := s.store.ClientByDocument(ctx, document)
	if err != nil {
		return ClientInfo{}, mapStoreErr(err)
	}
	total, err := s.ledger.TotalBalance(ctx, client.ID, true)
	if err != nil {
		return ClientInfo{}, err
	}
	return ClientInfo{Client: client, TotalPoints: total}, nil
}

// Правила начисления

func (s *Service) CreateRule(ctx context.Context, rule model.Rule) (model.Rule, error) {
	if rule.AmountPerPoint <= 0 {
		return model.Rule{}, ErrInsufficientData
	}
	if rule.Bounded() && *rule.LowerBound > *rule.UpperBound {
		return model.Rule{}, ErrInsufficientData
	}
	return s.store.RuleCreate(ctx, rule)
}

func (s *Service) ListRules(ctx context.Context) ([]model.Rule, error) {
	return s.store.RuleList(ctx)
}

func (s *Service) UpdateRule(ctx context.Context, rule model.Rule) (model.Rule, error) {
	if rule.AmountPerPoint <= 0 {
		return model.Rule{}, ErrInsufficientData
	}
	updated, err := s.store.RuleUpdate(ctx, rule)
	if err != nil {
		return model.Rule{}, mapStoreErr(err)
	}
	return updated, nil
}

func (s *Service) DeleteRule(ctx context.Context, id int) error {
	return mapStoreErr(s.store.RuleDelete(ctx, id))
}

// Параметры сгорания

func (s *Service) CreateExpiration(ctx context.Context, validFrom time.Time, durationDays int) (model.ExpirationPolicy, error) {
	if durationDays <= 0 || validFrom.IsZero() {
		return model.ExpirationPolicy{}, ErrInsufficientData
	}
	until := validFrom.AddDate(0, 0, durationDays)
	return s.store.ExpirationCreate(ctx, model.ExpirationPolicy{
		ValidFrom:    validFrom,
		ValidUntil:   &until,
		DurationDays: durationDays,
	})
}

func (s *Service) ListExpirations(ctx context.Context) ([]model.ExpirationPolicy, error) {
	return s.store.ExpirationList(ctx)
}

// CurrentExpiration — действующий на сегодня параметр сгорания
func (s *Service) CurrentExpiration(ctx context.Context) (model.ExpirationPolicy, error) {
	policies, err := s.store.ExpirationList(ctx)
	if err != nil {
		return model.ExpirationPolicy{}, err
	}
	active, err := expiry.Active(policies, time.Now().UTC().Truncate(24*time.Hour))
	if err != nil {
		return model.ExpirationPolicy{}, ErrNotFound
	}
	return active, nil
}

func (s *Service) UpdateExpiration(ctx context.Context, id int, patch ExpirationPatch) (model.ExpirationPolicy, error) {
	policies, err := s.store.ExpirationList(ctx)
	if err != nil {
		return model.ExpirationPolicy{}, err
	}
	var policy model.ExpirationPolicy
	found := false
	for _, p := range policies {
		if p.ID == id {
			policy = p
			found = true
			break
		}
	}
	if !found {
		return model.ExpirationPolicy{}, ErrNotFound
	}

	if patch.ValidFrom != nil {
		policy.ValidFrom = *patch.ValidFrom
	}
	if patch.DurationDays != nil {
		policy.DurationDays = *patch.DurationDays
	}
	if policy.DurationDays <= 0 || policy.ValidFrom.IsZero() {
		return model.ExpirationPolicy{}, ErrInsufficientData
	}
	until := policy.ValidFrom.AddDate(0, 0, policy.DurationDays)
	policy.ValidUntil = &until

	updated, err := s.store.ExpirationUpdate(ctx, policy)
	if err != nil {
		return model.ExpirationPolicy{}, mapStoreErr(err)
	}
	return updated, nil
}

func (s *Service) DeleteExpiration(ctx context.Context, id int) error {
	return mapStoreErr(s.store.ExpirationDelete(ctx, id))
}

// Концепты

func (s *Service) CreateConcept(ctx context.Context, concept model.Concept) (model.Concept, error) {
	if concept.Description == "" || concept.PointsRequired <= 0 {
		return model.Concept{}, ErrInsufficientData
	}
	concept.Active = true
	return s.store.ConceptCreate(ctx, concept)
}

func (s *Service) GetConcept(ctx context.Context, id int) (model.Concept, error) {
	concept, err := s.store.ConceptGet(ctx, id)
	if err != nil {
		return model.Concept{}, mapStoreErr(err)
	}
	return concept, nil
}

func (s *Service) ListConcepts(ctx context.Context) ([]model.Concept, error) {
	return s.store.ConceptList(ctx)
}

func (s *Service) UpdateConcept(ctx context.Context, id int, patch model.ConceptPatch) (model.Concept, error) {
	if patch.PointsRequired != nil && *patch.PointsRequired <= 0 {
		return model.Concept{}, ErrInsufficientData
	}
	concept, err := s.store.ConceptUpdate(ctx, id, patch)
	if err != nil {
		return model.Concept{}, mapStoreErr(err)
	}
	return concept, nil
}

// DeactivateConcept скрывает концепт из обмена; журнал списаний
// продолжает ссылаться на него
func (s *Service) DeactivateConcept(ctx context.Context, id int) error {
	return mapStoreErr(s.store.ConceptDeactivate(ctx, id))
}

// Уровни лояльности

func (s *Service) CreateLevel(ctx context.Context, level model.Level) (model.Level, error) {
	if level.Name == "" || level.MinPoints < 0 {
		return model.Level{}, ErrInsufficientData
	}
	return s.store.LevelCreate(ctx, level)
}

func (s *Service) ListLevels(ctx context.Context) ([]model.Level, error) {
	return s.store.LevelList(ctx)
}

func (s *Service) UpdateLevel(ctx context.Context, id int, patch model.LevelPatch) (model.Level, error) {
	level, err := s.store.LevelUpdate(ctx, id, patch)
	if err != nil {
		return model.Level{}, mapStoreErr(err)
	}
	return level, nil
}

func (s *Service) DeleteLevel(ctx context.Context, id int) error {
	return mapStoreErr(s.store.LevelDelete(ctx, id))
}

// GetClientLevel подбирает уровень с наибольшим порогом, не превышающим
// текущий остаток клиента
func (s *Service) GetClientLevel(ctx context.Context, clientID int) (ClientLevel, error) {
	total, err := s.ledger.TotalBalance(ctx, clientID, true)
	if err != nil {
		return ClientLevel{}, err
	}

	levels, err := s.store.LevelList(ctx)
	if err != nil {
		return ClientLevel{}, err
	}

	result := ClientLevel{ClientID: clientID, TotalPoints: total}
	for i := range levels {
		if levels[i].MinPoints <= total {
			level := levels[i]
			result.Level = &level
		}
	}
	return result, nil
}

// Движок баллов

func (s *Service) AssignPoints(ctx context.Context, clientID int, purchaseAmount int) (ledger.AssignReceipt, error) {
	return s.ledger.AssignPoints(ctx, clientID, purchaseAmount)
}

func (s *Service) Redeem(ctx context.Context, clientID int, conceptID int) (ledger.RedeemReceipt, error) {
	return s.ledger.Redeem(ctx, clientID, conceptID)
}

func (s *Service) Balance(ctx context.Context, clientID int, onlyUsable bool) (int, error) {
	return s.ledger.TotalBalance(ctx, clientID, onlyUsable)
}

func (s *Service) ListLots(ctx context.Context, clientID int) ([]model.PointLot, error) {
	return s.store.LotList(ctx, clientID)
}

func (s *Service) RedemptionHistory(ctx context.Context, clientID int) ([]model.Redemption, error) {
	return s.store.RedemptionList(ctx, clientID)
}

func (s *Service) RedemptionDetails(ctx context.Context, redemptionID int) ([]model.RedemptionItem, error) {
	return s.store.RedemptionItems(ctx, redemptionID)
}

func (s *Service) FindExpiring(ctx context.Context, windowDays int) ([]ledger.ExpiringClient, error) {
	return s.ledger.FindExpiring(ctx, windowDays)
}
