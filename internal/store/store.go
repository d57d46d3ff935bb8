package store

import (
	"context"
	"errors"
	"time"

	"github.com/rodasmf/loyalty/internal/model"
	"github.com/rodasmf/loyalty/internal/store/config"
)

type Store interface {
	// Учетные записи сотрудников
	AuthRegister(ctx context.Context, login string, password string) (string, error)
	AuthLogin(ctx context.Context, login string, password string) (string, error)

	// Клиенты
	ClientCreate(ctx context.Context, client model.Client) (model.Client, error)
	ClientGet(ctx context.Context, id int) (model.Client, error)
	ClientByDocument(ctx context.Context, document string) (model.Client, error)
	ClientList(ctx context.Context, query string) ([]model.Client, error)
	ClientFind(ctx context.Context, document, email, phone string) ([]model.Client, error)
	ClientUpdate(ctx context.Context, id int, patch model.ClientPatch) (model.Client, error)
	ClientDelete(ctx context.Context, id int) error

	// Правила начисления
	RuleCreate(ctx context.Context, rule model.Rule) (model.Rule, error)
	RuleList(ctx context.Context) ([]model.Rule, error)
	RuleUpdate(ctx context.Context, rule model.Rule) (model.Rule, error)
	RuleDelete(ctx context.Context, id int) error

	// Параметры сгорания
	ExpirationCreate(ctx context.Context, policy model.ExpirationPolicy) (model.ExpirationPolicy, error)
	ExpirationList(ctx context.Context) ([]model.ExpirationPolicy, error)
	ExpirationUpdate(ctx context.Context, policy model.ExpirationPolicy) (model.ExpirationPolicy, error)
	ExpirationDelete(ctx context.Context, id int) error

	// Концепты
	ConceptCreate(ctx context.Context, concept model.Concept) (model.Concept, error)
	ConceptGet(ctx context.Context, id int) (model.Concept, error)
	ConceptList(ctx context.Context) ([]model.Concept, error)
	ConceptUpdate(ctx context.Context, id int, patch model.ConceptPatch) (model.Concept, error)
	ConceptDeactivate(ctx context.Context, id int) error

	// Уровни лояльности
	LevelCreate(ctx context.Context, level model.Level) (model.Level, error)
	LevelList(ctx context.Context) ([]model.Level, error)
	LevelUpdate(ctx context.Context, id int, patch model.LevelPatch) (model.Level, error)
	LevelDelete(ctx context.Context, id int) error

	// Лоты баллов
	LotCreate(ctx context.Context, lot model.PointLot) (model.PointLot, error)
	LotList(ctx context.Context, clientID int) ([]model.PointLot, error)
	UsableLots(ctx context.Context, clientID int, asOf time.Time) ([]model.PointLot, error)
	TotalBalance(ctx context.Context, clientID int, asOf time.Time, onlyUsable bool) (int, error)
	ExpiringLots(ctx context.Context, from time.Time, to time.Time) ([]model.PointLot, error)
	ApplyConsumption(ctx context.Context, lotID int, points int) error

	// Списания
	ApplyRedemption(ctx context.Context, header model.Redemption, items []model.RedemptionItem) (model.Redemption, []model.RedemptionItem, error)
	RedemptionList(ctx context.Context, clientID int) ([]model.Redemption, error)
	RedemptionItems(ctx context.Context, redemptionID int) ([]model.RedemptionItem, error)
}

var (
	ErrNoRows                 = errors.New("no rows")
	ErrAlreadyExists          = errors.New("already exists")
	ErrPointsIncorrect        = errors.New("points value is incorrect")
	ErrInsufficientLotBalance = errors.New("insufficient lot balance")
)

// NewStore возвращает Postgres-хранилище; при пустом DSN — хранилище
// в памяти (для разработки и тестов)
func NewStore(cfg config.Config) (Store, error) {
	if cfg.DatabaseDSN == "" {
		return NewMemStore(), nil
	}
	return NewPgStore(cfg.DatabaseDSN)
}
