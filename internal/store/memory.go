package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rodasmf/loyalty/internal/model"
)

// memStore — хранилище в памяти с той же семантикой, что и Postgres-вариант.
// Используется в тестах и при запуске без базы
type memStore struct {
	mu sync.RWMutex

	authSeq    int
	auth       map[string]memAccount // login -> account
	clientSeq  int
	clients    map[int]model.Client
	ruleSeq    int
	rules      map[int]model.Rule
	expSeq     int
	policies   map[int]model.ExpirationPolicy
	conceptSeq int
	concepts   map[int]model.Concept
	levelSeq   int
	levels     map[int]model.Level
	lotSeq     int
	lots       map[int]*model.PointLot
	redSeq     int
	reds       map[int]model.Redemption
	itemSeq    int
	items      map[int]model.RedemptionItem
}

type memAccount struct {
	uuid     int
	password string
}

func NewMemStore() Store {
	return &memStore{
		auth:     make(map[string]memAccount),
		clients:  make(map[int]model.Client),
		rules:    make(map[int]model.Rule),
		policies: make(map[int]model.ExpirationPolicy),
		concepts: make(map[int]model.Concept),
		levels:   make(map[int]model.Level),
		lots:     make(map[int]*model.PointLot),
		reds:     make(map[int]model.Redemption),
		items:    make(map[int]model.RedemptionItem),
	}
}

func (store *memStore) AuthRegister(_ context.Context, login string, password string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.auth[login]; ok {
		return "", ErrAlreadyExists
	}
	store.authSeq++
	store.auth[login] = memAccount{uuid: store.authSeq, password: password}
	return strconv.Itoa(store.authSeq), nil
}

func (store *memStore) AuthLogin(_ context.Context, login string, password string) (string, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	account, ok := store.auth[login]
	if !ok || account.password != password {
		return "", ErrNoRows
	}
	return strconv.Itoa(account.uuid), nil
}

func (store *memStore) ClientCreate(_ context.Context, client model.Client) (model.Client, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, c := range store.clients {
		if c.DocumentNumber == client.DocumentNumber || strings.EqualFold(c.Email, client.Email) {
			return model.Client{}, ErrAlreadyExists
		}
	}
	store.clientSeq++
	client.ID = store.clientSeq
	store.clients[client.ID] = client
	return client, nil
}

func (store *memStore) ClientGet(_ context.Context, id int) (model.Client, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	client, ok := store.clients[id]
	if !ok {
		return model.Client{}, ErrNoRows
	}
	return client, nil
}

func (store *memStore) ClientByDocument(_ context.Context, document string) (model.Client, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	for _, client := range store.clients {
		if client.DocumentNumber == document {
			return client, nil
		}
	}
	return model.Client{}, ErrNoRows
}

func (store *memStore) ClientList(_ context.Context, query string) ([]model.Client, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	q := strings.ToLower(query)
	var clients []model.Client
	for _, client := range store.clients {
		if q != "" &&
			!strings.Contains(strings.ToLower(client.FirstName), q) &&
			!strings.Contains(strings.ToLower(client.LastName), q) {
			continue
		}
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].ID < clients[j].ID })
	return clients, nil
}

func (store *memStore) ClientFind(_ context.Context, document, email, phone string) ([]model.Client, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var clients []model.Client
	for _, client := range store.clients {
		if document != "" && client.DocumentNumber != document {
			continue
		}
		if email != "" && !strings.EqualFold(client.Email, email) {
			continue
		}
		if phone != "" && client.Phone != phone {
			continue
		}
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].ID < clients[j].ID })
	return clients, nil
}

func (store *memStore) ClientUpdate(_ context.Context, id int, patch model.ClientPatch) (model.Client, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	client, ok := store.clients[id]
	if !ok {
		return model.Client{}, ErrNoRows
	}
	if patch.Phone != nil {
		client.Phone = *patch.Phone
	}
	if patch.Email != nil {
		for otherID, other := range store.clients {
			if otherID != id && strings.EqualFold(other.Email, *patch.Email) {
				return model.Client{}, ErrAlreadyExists
			}
		}
		client.Email = *patch.Email
	}
	store.clients[id] = client
	return client, nil
}

func (store *memStore) ClientDelete(_ context.Context, id int) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.clients[id]; !ok {
		return ErrNoRows
	}
	delete(store.clients, id)
	return nil
}

func (store *memStore) RuleCreate(_ context.Context, rule model.Rule) (model.Rule, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.ruleSeq++
	rule.ID = store.ruleSeq
	store.rules[rule.ID] = rule
	return rule, nil
}

func (store *memStore) RuleList(_ context.Context) ([]model.Rule, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var rules []model.Rule
	for _, rule := range store.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

func (store *memStore) RuleUpdate(_ context.Context, rule model.Rule) (model.Rule, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.rules[rule.ID]; !ok {
		return model.Rule{}, ErrNoRows
	}
	store.rules[rule.ID] = rule
	return rule, nil
}

func (store *memStore) RuleDelete(_ context.Context, id int) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.rules[id]; !ok {
		return ErrNoRows
	}
	delete(store.rules, id)
	return nil
}

func (store *memStore) ExpirationCreate(_ context.Context, policy model.ExpirationPolicy) (model.ExpirationPolicy, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.expSeq++
	policy.ID = store.expSeq
	store.policies[policy.ID] = policy
	return policy, nil
}

func (store *memStore) ExpirationList(_ context.Context) ([]model.ExpirationPolicy, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var policies []model.ExpirationPolicy
	for _, policy := range store.policies {
		policies = append(policies, policy)
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].ID < policies[j].ID })
	return policies, nil
}

func (store *memStore) ExpirationUpdate(_ context.Context, policy model.ExpirationPolicy) (model.ExpirationPolicy, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.policies[policy.ID]; !ok {
		return model.ExpirationPolicy{}, ErrNoRows
	}
	store.policies[policy.ID] = policy
	return policy, nil
}

func (store *memStore) ExpirationDelete(_ context.Context, id int) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.policies[id]; !ok {
		return ErrNoRows
	}
	delete(store.policies, id)
	return nil
}

func (store *memStore) ConceptCreate(_ context.Context, concept model.Concept) (model.Concept, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.conceptSeq++
	concept.ID = store.conceptSeq
	store.concepts[concept.ID] = concept
	return concept, nil
}

func (store *memStore) ConceptGet(_ context.Context, id int) (model.Concept, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	concept, ok := store.concepts[id]
	if !ok {
		return model.Concept{}, ErrNoRows
	}
	return concept, nil
}

func (store *memStore) ConceptList(_ context.Context) ([]model.Concept, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var concepts []model.Concept
	for _, concept := range store.concepts {
		concepts = append(concepts, concept)
	}
	sort.Slice(concepts, func(i, j int) bool { return concepts[i].ID < concepts[j].ID })
	return concepts, nil
}

func (store *memStore) ConceptUpdate(_ context.Context, id int, patch model.ConceptPatch) (model.Concept, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	concept, ok := store.concepts[id]
	if !ok {
		return model.Concept{}, ErrNoRows
	}
	if patch.Description != nil {
		concept.Description = *patch.Description
	}
	if patch.PointsRequired != nil {
		concept.PointsRequired = *patch.PointsRequired
	}
	if patch.Active != nil {
		concept.Active = *patch.Active
	}
	store.concepts[id] = concept
	return concept, nil
}

func (store *memStore) ConceptDeactivate(_ context.Context, id int) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	concept, ok := store.concepts[id]
	if !ok {
		return ErrNoRows
	}
	concept.Active = false
	store.concepts[id] = concept
	return nil
}

func (store *memStore) LevelCreate(_ context.Context, level model.Level) (model.Level, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.levelSeq++
	level.ID = store.levelSeq
	store.levels[level.ID] = level
	return level, nil
}

func (store *memStore) LevelList(_ context.Context) ([]model.Level, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var levels []model.Level
	for _, level := range store.levels {
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, j int) bool {
		if levels[i].MinPoints != levels[j].MinPoints {
			return levels[i].MinPoints < levels[j].MinPoints
		}
		return levels[i].ID < levels[j].ID
	})
	return levels, nil
}

func (store *memStore) LevelUpdate(_ context.Context, id int, patch model.LevelPatch) (model.Level, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	level, ok := store.levels[id]
	if !ok {
		return model.Level{}, ErrNoRows
	}
	if patch.Name != nil {
		level.Name = *patch.Name
	}
	if patch.MinPoints != nil {
		level.MinPoints = *patch.MinPoints
	}
	store.levels[id] = level
	return level, nil
}

func (store *memStore) LevelDelete(_ context.Context, id int) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.levels[id]; !ok {
		return ErrNoRows
	}
	delete(store.levels, id)
	return nil
}

func (store *memStore) LotCreate(_ context.Context, lot model.PointLot) (model.PointLot, error) {
	if lot.PointsAssigned < 0 {
		return model.PointLot{}, ErrPointsIncorrect
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	store.lotSeq++
	lot.ID = store.lotSeq
	lot.PointsConsumed = 0
	lot.Balance = lot.PointsAssigned
	stored := lot
	store.lots[lot.ID] = &stored
	return lot, nil
}

func fifoOrder(lots []model.PointLot) {
	sort.Slice(lots, func(i, j int) bool {
		if !lots[i].AssignedOn.Equal(lots[j].AssignedOn) {
			return lots[i].AssignedOn.Before(lots[j].AssignedOn)
		}
		return lots[i].ID < lots[j].ID
	})
}

func (store *memStore) LotList(_ context.Context, clientID int) ([]model.PointLot, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var lots []model.PointLot
	for _, lot := range store.lots {
		if clientID != 0 && lot.ClientID != clientID {
			continue
		}
		lots = append(lots, *lot)
	}
	fifoOrder(lots)
	return lots, nil
}

func (store *memStore) UsableLots(_ context.Context, clientID int, asOf time.Time) ([]model.PointLot, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var lots []model.PointLot
	for _, lot := range store.lots {
		if lot.ClientID != clientID || !lot.Usable(asOf) {
			continue
		}
		lots = append(lots, *lot)
	}
	fifoOrder(lots)
	return lots, nil
}

func (store *memStore) TotalBalance(_ context.Context, clientID int, asOf time.Time, onlyUsable bool) (int, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	total := 0
	for _, lot := range store.lots {
		if lot.ClientID != clientID {
			continue
		}
		if onlyUsable && !lot.Usable(asOf) {
			continue
		}
		total += lot.Balance
	}
	return total, nil
}

func (store *memStore) ExpiringLots(_ context.Context, from time.Time, to time.Time) ([]model.PointLot, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var lots []model.PointLot
	for _, lot := range store.lots {
		if lot.Balance <= 0 || lot.ExpiresOn.Before(from) || lot.ExpiresOn.After(to) {
			continue
		}
		lots = append(lots, *lot)
	}
	sort.Slice(lots, func(i, j int) bool {
		if !lots[i].ExpiresOn.Equal(lots[j].ExpiresOn) {
			return lots[i].ExpiresOn.Before(lots[j].ExpiresOn)
		}
		return lots[i].ID < lots[j].ID
	})
	return lots, nil
}

func (store *memStore) ApplyConsumption(_ context.Context, lotID int, points int) error {
	if points <= 0 {
		return ErrPointsIncorrect
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	return store.consumeLocked(lotID, points)
}

func (store *memStore) consumeLocked(lotID int, points int) error {
	lot, ok := store.lots[lotID]
	if !ok {
		return ErrNoRows
	}
	if lot.Balance < points {
		return ErrInsufficientLotBalance
	}
	lot.Balance -= points
	lot.PointsConsumed += points
	return nil
}

func (store *memStore) ApplyRedemption(_ context.Context, header model.Redemption, items []model.RedemptionItem) (model.Redemption, []model.RedemptionItem, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	// проверка до любых изменений: либо всё, либо ничего
	for _, item := range items {
		lot, ok := store.lots[item.LotID]
		if !ok {
			return model.Redemption{}, nil, ErrNoRows
		}
		if lot.Balance < item.Points {
			return model.Redemption{}, nil, ErrInsufficientLotBalance
		}
	}

	store.redSeq++
	header.ID = store.redSeq
	store.reds[header.ID] = header

	saved := make([]model.RedemptionItem, 0, len(items))
	for _, item := range items {
		if err := store.consumeLocked(item.LotID, item.Points); err != nil {
			return model.Redemption{}, nil, err
		}
		store.itemSeq++
		item.ID = store.itemSeq
		item.RedemptionID = header.ID
		store.items[item.ID] = item
		saved = append(saved, item)
	}
	return header, saved, nil
}

func (store *memStore) RedemptionList(_ context.Context, clientID int) ([]model.Redemption, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var redemptions []model.Redemption
	for _, r := range store.reds {
		if clientID != 0 && r.ClientID != clientID {
			continue
		}
		redemptions = append(redemptions, r)
	}
	sort.Slice(redemptions, func(i, j int) bool {
		if !redemptions[i].Date.Equal(redemptions[j].Date) {
			return redemptions[i].Date.After(redemptions[j].Date)
		}
		return redemptions[i].ID > redemptions[j].ID
	})
	return redemptions, nil
}

func (store *memStore) RedemptionItems(_ context.Context, redemptionID int) ([]model.RedemptionItem, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var items []model.RedemptionItem
	for _, item := range store.items {
		if item.RedemptionID != redemptionID {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}
