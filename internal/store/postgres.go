package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rodasmf/loyalty/internal/model"
)

const pgUniqueViolation = "23505"

type pgStore struct {
	database *sql.DB
}

func NewPgStore(dsn string) (Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	// Таблица учетных записей сотрудников
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS auth (" +
			" login VARCHAR (40) PRIMARY KEY," +
			" uuid SERIAL UNIQUE," +
			" password VARCHAR (64) NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	// Таблица клиентов. Документ и email уникальны
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS clients (" +
			" id SERIAL PRIMARY KEY," +
			" first_name VARCHAR (100) NOT NULL," +
			" last_name VARCHAR (100) NOT NULL," +
			" document_number VARCHAR (30) NOT NULL UNIQUE," +
			" document_type VARCHAR (20) NOT NULL," +
			" nationality VARCHAR (40) NOT NULL," +
			" email VARCHAR (100) NOT NULL UNIQUE," +
			" phone VARCHAR (30) NOT NULL," +
			" birth_date DATE NOT NULL," +
			" referral_code VARCHAR (12) NOT NULL," +
			" referred_by INTEGER NOT NULL DEFAULT 0" +
			" );")
	if err != nil {
		return nil, err
	}

	// Таблица правил начисления
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS rules (" +
			" id SERIAL PRIMARY KEY," +
			" lower_bound INTEGER," +
			" upper_bound INTEGER," +
			" amount_per_point INTEGER NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	// Таблица параметров сгорания
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS expirations (" +
			" id SERIAL PRIMARY KEY," +
			" valid_from DATE NOT NULL," +
			" valid_until DATE," +
			" duration_days INTEGER NOT NULL DEFAULT 0" +
			" );")
	if err != nil {
		return nil, err
	}

	// Таблица концептов
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS concepts (" +
			" id SERIAL PRIMARY KEY," +
			" description VARCHAR (200) NOT NULL," +
			" points_required INTEGER NOT NULL," +
			" active BOOLEAN NOT NULL DEFAULT TRUE" +
			" );")
	if err != nil {
		return nil, err
	}

	// Таблица уровней лояльности
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS levels (" +
			" id SERIAL PRIMARY KEY," +
			" name VARCHAR (60) NOT NULL," +
			" min_points INTEGER NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	// Таблица лотов баллов. Инвариант balance = points_assigned - points_consumed
	// поддерживается кодом: лоты создаются начислением и изменяются
	// только условным списанием ApplyConsumption/ApplyRedemption
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS point_lots (" +
			" id SERIAL PRIMARY KEY," +
			" client_id INTEGER NOT NULL," +
			" assigned_on DATE NOT NULL," +
			" expires_on DATE NOT NULL," +
			" points_assigned INTEGER NOT NULL," +
			" points_consumed INTEGER NOT NULL DEFAULT 0," +
			" balance INTEGER NOT NULL," +
			" purchase_amount INTEGER NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	// Журнал списаний: шапки и строки. Записи не редактируются
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS redemptions (" +
			" id SERIAL PRIMARY KEY," +
			" client_id INTEGER NOT NULL," +
			" concept_id INTEGER NOT NULL," +
			" points_used INTEGER NOT NULL," +
			" used_on DATE NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS redemption_items (" +
			" id SERIAL PRIMARY KEY," +
			" redemption_id INTEGER NOT NULL," +
			" lot_id INTEGER NOT NULL," +
			" points INTEGER NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	return &pgStore{database: db}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (store *pgStore) AuthRegister(ctx context.Context, login string, password string) (string, error) {
	row := store.database.QueryRowContext(ctx,
		"INSERT INTO auth (login, password)"+
			" VALUES ($1, $2)"+
			" RETURNING uuid",
		login,
		password)

	var uuid int
	err := row.Scan(&uuid)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrAlreadyExists
		}
		return "", err
	}

	return strconv.Itoa(uuid), nil
}

func (store *pgStore) AuthLogin(ctx context.Context, login string, password string) (string, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT uuid FROM auth"+
			" WHERE login = $1"+
			"   AND password = $2",
		login,
		password)
	var uuid int
	err := row.Scan(&uuid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoRows
		}
		return "", err
	}

	return strconv.Itoa(uuid), nil
}

const clientColumns = "id, first_name, last_name, document_number, document_type," +
	" nationality, email, phone, birth_date, referral_code, referred_by"

func scanClient(row interface{ Scan(...any) error }) (model.Client, error) {
	var c model.Client
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.DocumentNumber, &c.DocumentType,
		&c.Nationality, &c.Email, &c.Phone, &c.BirthDate, &c.ReferralCode, &c.ReferredBy)
	return c, err
}

func (store *pgStore) ClientCreate(ctx context.Context, client model.Client) (model.Client, error) {
	row := store.database.QueryRowContext(ctx,
		"INSERT INTO clients (first_name, last_name, document_number, document_type,"+
			" nationality, email, phone, birth_date, referral_code, referred_by)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)"+
			" RETURNING id",
		client.FirstName,
		client.LastName,
		client.DocumentNumber,
		client.DocumentType,
		client.Nationality,
		client.Email,
		client.Phone,
		client.BirthDate,
		client.ReferralCode,
		client.ReferredBy)
	err := row.Scan(&client.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Client{}, ErrAlreadyExists
		}
		return model.Client{}, err
	}
	return client, nil
}

func (store *pgStore) ClientGet(ctx context.Context, id int) (model.Client, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+clientColumns+" FROM clients"+
			" WHERE id = $1",
		id)
	client, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Client{}, ErrNoRows
		}
		return model.Client{}, err
	}
	return client, nil
}

func (store *pgStore) ClientByDocument(ctx context.Context, document string) (model.Client, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+clientColumns+" FROM clients"+
			" WHERE document_number = $1",
		document)
	client, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Client{}, ErrNoRows
		}
		return model.Client{}, err
	}
	return client, nil
}

func (store *pgStore) ClientList(ctx context.Context, query string) ([]model.Client, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT "+clientColumns+" FROM clients"+
			" WHERE $1 = ''"+
			"    OR first_name ILIKE '%' || $1 || '%'"+
			"    OR last_name ILIKE '%' || $1 || '%'"+
			" ORDER BY id",
		query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func (store *pgStore) ClientFind(ctx context.Context, document, email, phone string) ([]model.Client, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT "+clientColumns+" FROM clients"+
			" WHERE ($1 = '' OR document_number = $1)"+
			"   AND ($2 = '' OR LOWER(email) = LOWER($2))"+
			"   AND ($3 = '' OR phone = $3)"+
			" ORDER BY id",
		document, email, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func (store *pgStore) ClientUpdate(ctx context.Context, id int, patch model.ClientPatch) (model.Client, error) {
	client, err := store.ClientGet(ctx, id)
	if err != nil {
		return model.Client{}, err
	}
	if patch.Phone != nil {
		client.Phone = *patch.Phone
	}
	if patch.Email != nil {
		client.Email = *patch.Email
	}

	_, err = store.database.ExecContext(ctx,
		"UPDATE clients"+
			" SET phone = $1, email = $2"+
			" WHERE id = $3",
		client.Phone,
		client.Email,
		id)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Client{}, ErrAlreadyExists
		}
		return model.Client{}, err
	}
	return client, nil
}

func (store *pgStore) ClientDelete(ctx context.Context, id int) error {
	res, err := store.database.ExecContext(ctx,
		"DELETE FROM clients WHERE id = $1",
		id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoRows
	}
	return nil
}

func (store *pgStore) RuleCreate(ctx context.Context, rule model.Rule) (model.Rule, error) {
	row := store.database.QueryRowContext(ctx,
		"INSERT INTO rules (lower_bound, upper_bound, amount_per_point)"+
			" VALUES ($1, $2, $3)"+
			" RETURNING id",
		rule.LowerBound,
		rule.UpperBound,
		rule.AmountPerPoint)
	if err := row.Scan(&rule.ID); err != nil {
		return model.Rule{}, err
	}
	return rule, nil
}

func (store *pgStore) RuleList(ctx context.Context) ([]model.Rule, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT id, lower_bound, upper_bound, amount_per_point"+
			" FROM rules"+
			" ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.Rule
	for rows.Next() {
		var rule model.Rule
		var lower, upper sql.NullInt64
		if err := rows.Scan(&rule.ID, &lower, &upper, &rule.AmountPerPoint); err != nil {
			return nil, err
		}
		if lower.Valid {
			v := int(lower.Int64)
			rule.LowerBound = &v
		}
		if upper.Valid {
			v := int(upper.Int64)
			rule.UpperBound = &v
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (store *pgStore) RuleUpdate(ctx context.Context, rule model.Rule) (model.Rule, error) {
	res, err := store.database.ExecContext(ctx,
		"UPDATE rules"+
			" SET lower_bound = $1, upper_bound = $2, amount_per_point = $3"+
			" WHERE id = $4",
		rule.LowerBound,
		rule.UpperBound,
		rule.AmountPerPoint,
		rule.ID)
	if err != nil {
		return model.Rule{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.Rule{}, err
	}
	if affected == 0 {
		return model.Rule{}, ErrNoRows
	}
	return rule, nil
}

func (store *pgStore) RuleDelete(ctx context.Context, id int) error {
	res, err := store.database.ExecContext(ctx,
		"DELETE FROM rules WHERE id = $1",
		id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoRows
	}
	return nil
}

func (store *pgStore) ExpirationCreate(ctx context.Context, policy model.ExpirationPolicy) (model.ExpirationPolicy, error) {
	row := store.database.QueryRowContext(ctx,
		"INSERT INTO expirations (valid_from, valid_until, duration_days)"+
			" VALUES ($1, $2, $3)"+
			" RETURNING id",
		policy.ValidFrom,
		policy.ValidUntil,
		policy.DurationDays)
	if err := row.Scan(&policy.ID); err != nil {
		return model.ExpirationPolicy{}, err
	}
	return policy, nil
}

func (store *pgStore) ExpirationList(ctx context.Context) ([]model.ExpirationPolicy, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT id, valid_from, valid_until, duration_days"+
			" FROM expirations"+
			" ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []model.ExpirationPolicy
	for rows.Next() {
		var policy model.ExpirationPolicy
		var until sql.NullTime
		if err := rows.Scan(&policy.ID, &policy.ValidFrom, &until, &policy.DurationDays); err != nil {
			return nil, err
		}
		if until.Valid {
			v := until.Time
			policy.ValidUntil = &v
		}
		policies = append(policies, policy)
	}
	return policies, rows.Err()
}

func (store *pgStore) ExpirationUpdate(ctx context.Context, policy model.ExpirationPolicy) (model.ExpirationPolicy, error) {
	res, err := store.database.ExecContext(ctx,
		"UPDATE expirations"+
			" SET valid_from = $1, valid_until = $2, duration_days = $3"+
			" WHERE id = $4",
		policy.ValidFrom,
		policy.ValidUntil,
		policy.DurationDays,
		policy.ID)
	if err != nil {
		return model.ExpirationPolicy{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.ExpirationPolicy{}, err
	}
	if affected == 0 {
		return model.ExpirationPolicy{}, ErrNoRows
	}
	return policy, nil
}

func (store *pgStore) ExpirationDelete(ctx context.Context, id int) error {
	res, err := store.database.ExecContext(ctx,
		"DELETE FROM expirations WHERE id = $1",
		id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoRows
	}
	return nil
}

func (store *pgStore) ConceptCreate(ctx context.Context, concept model.Concept) (model.Concept, error) {
	row := store.database.QueryRowContext(ctx,
		"INSERT INTO concepts (description, points_required, active)"+
			" VALUES ($1, $2, $3)"+
			" RETURNING id",
		concept.Description,
		concept.PointsRequired,
		concept.Active)
	if err := row.Scan(&concept.ID); err != nil {
		return model.Concept{}, err
	}
	return concept, nil
}

func (store *pgStore) ConceptGet(ctx context.Context, id int) (model.Concept, error) {
	var concept model.Concept
	row := store.database.QueryRowContext(ctx,
		"SELECT id, description, points_required, active"+
			" FROM concepts"+
			" WHERE id = $1",
		id)
	err := row.Scan(&concept.ID, &concept.Description, &concept.PointsRequired, &concept.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Concept{}, ErrNoRows
		}
		return model.Concept{}, err
	}
	return concept, nil
}

func (store *pgStore) ConceptList(ctx context.Context) ([]model.Concept, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT id, description, points_required, active"+
			" FROM concepts"+
			" ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var concepts []model.Concept
	for rows.Next() {
		var concept model.Concept
		if err := rows.Scan(&concept.ID, &concept.Description, &concept.PointsRequired, &concept.Active); err != nil {
			return nil, err
		}
		concepts = append(concepts, concept)
	}
	return concepts, rows.Err()
}

func (store *pgStore) ConceptUpdate(ctx context.Context, id int, patch model.ConceptPatch) (model.Concept, error) {
	concept, err := store.ConceptGet(ctx, id)
	if err != nil {
		return model.Concept{}, err
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

	_, err = store.database.ExecContext(ctx,
		"UPDATE concepts"+
			" SET description = $1, points_required = $2, active = $3"+
			" WHERE id = $4",
		concept.Description,
		concept.PointsRequired,
		concept.Active,
		id)
	if err != nil {
		return model.Concept{}, err
	}
	return concept, nil
}

func (store *pgStore) ConceptDeactivate(ctx context.Context, id int) error {
	res, err := store.database.ExecContext(ctx,
		"UPDATE concepts SET active = FALSE WHERE id = $1",
		id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoRows
	}
	return nil
}

func (store *pgStore) LevelCreate(ctx context.Context, level model.Level) (model.Level, error) {
	row := store.database.QueryRowContext(ctx,
		"INSERT INTO levels (name, min_points)"+
			" VALUES ($1, $2)"+
			" RETURNING id",
		level.Name,
		level.MinPoints)
	if err := row.Scan(&level.ID); err != nil {
		return model.Level{}, err
	}
	return level, nil
}

func (store *pgStore) LevelList(ctx context.Context) ([]model.Level, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT id, name, min_points"+
			" FROM levels"+
			" ORDER BY min_points, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []model.Level
	for rows.Next() {
		var level model.Level
		if err := rows.Scan(&level.ID, &level.Name, &level.MinPoints); err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, rows.Err()
}

func (store *pgStore) LevelUpdate(ctx context.Context, id int, patch model.LevelPatch) (model.Level, error) {
	var level model.Level
	row := store.database.QueryRowContext(ctx,
		"SELECT id, name, min_points FROM levels WHERE id = $1",
		id)
	err := row.Scan(&level.ID, &level.Name, &level.MinPoints)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Level{}, ErrNoRows
		}
		return model.Level{}, err
	}
	if patch.Name != nil {
		level.Name = *patch.Name
	}
	if patch.MinPoints != nil {
		level.MinPoints = *patch.MinPoints
	}

	_, err = store.database.ExecContext(ctx,
		"UPDATE levels SET name = $1, min_points = $2 WHERE id = $3",
		level.Name,
		level.MinPoints,
		id)
	if err != nil {
		return model.Level{}, err
	}
	return level, nil
}

func (store *pgStore) LevelDelete(ctx context.Context, id int) error {
	res, err := store.database.ExecContext(ctx,
		"DELETE FROM levels WHERE id = $1",
		id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoRows
	}
	return nil
}

const lotColumns = "id, client_id, assigned_on, expires_on," +
	" points_assigned, points_consumed, balance, purchase_amount"

func scanLot(row interface{ Scan(...any) error }) (model.PointLot, error) {
	var l model.PointLot
	err := row.Scan(&l.ID, &l.ClientID, &l.AssignedOn, &l.ExpiresOn,
		&l.PointsAssigned, &l.PointsConsumed, &l.Balance, &l.PurchaseAmount)
	return l, err
}

func (store *pgStore) LotCreate(ctx context.Context, lot model.PointLot) (model.PointLot, error) {
	if lot.PointsAssigned < 0 {
		return model.PointLot{}, ErrPointsIncorrect
	}
	lot.PointsConsumed = 0
	lot.Balance = lot.PointsAssigned

	row := store.database.QueryRowContext(ctx,
		"INSERT INTO point_lots (client_id, assigned_on, expires_on,"+
			" points_assigned, points_consumed, balance, purchase_amount)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7)"+
			" RETURNING id",
		lot.ClientID,
		lot.AssignedOn,
		lot.ExpiresOn,
		lot.PointsAssigned,
		lot.PointsConsumed,
		lot.Balance,
		lot.PurchaseAmount)
	if err := row.Scan(&lot.ID); err != nil {
		return model.PointLot{}, err
	}
	return lot, nil
}

func (store *pgStore) LotList(ctx context.Context, clientID int) ([]model.PointLot, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT "+lotColumns+" FROM point_lots"+
			" WHERE $1 = 0 OR client_id = $1"+
			" ORDER BY assigned_on, id",
		clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []model.PointLot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

// UsableLots возвращает лоты с положительным остатком и не истёкшим сроком,
// от старых к новым. Этот порядок — контракт FIFO-списания
func (store *pgStore) UsableLots(ctx context.Context, clientID int, asOf time.Time) ([]model.PointLot, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT "+lotColumns+" FROM point_lots"+
			" WHERE client_id = $1"+
			"   AND balance > 0"+
			"   AND expires_on >= $2"+
			" ORDER BY assigned_on, id",
		clientID,
		asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []model.PointLot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func (store *pgStore) TotalBalance(ctx context.Context, clientID int, asOf time.Time, onlyUsable bool) (int, error) {
	var total sql.NullInt64
	row := store.database.QueryRowContext(ctx,
		"SELECT SUM(balance) FROM point_lots"+
			" WHERE client_id = $1"+
			"   AND (NOT $3 OR (balance > 0 AND expires_on >= $2))",
		clientID,
		asOf,
		onlyUsable)
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return int(total.Int64), nil
}

func (store *pgStore) ExpiringLots(ctx context.Context, from time.Time, to time.Time) ([]model.PointLot, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT "+lotColumns+" FROM point_lots"+
			" WHERE balance > 0"+
			"   AND expires_on >= $1"+
			"   AND expires_on <= $2"+
			" ORDER BY expires_on, id",
		from,
		to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []model.PointLot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

// ApplyConsumption атомарно списывает points с лота. Условие balance >= points
// прямо в UPDATE: при гонке списание не уйдёт в минус, а вернёт
// ErrInsufficientLotBalance
func (store *pgStore) ApplyConsumption(ctx context.Context, lotID int, points int) error {
	if points <= 0 {
		return ErrPointsIncorrect
	}
	return applyConsumption(ctx, store.database, lotID, points)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func applyConsumption(ctx context.Context, db execer, lotID int, points int) error {
	res, err := db.ExecContext(ctx,
		"UPDATE point_lots"+
			" SET balance = balance - $2,"+
			"     points_consumed = points_consumed + $2"+
			" WHERE id = $1"+
			"   AND balance >= $2",
		lotID,
		points)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		row := db.QueryRowContext(ctx,
			"SELECT id FROM point_lots WHERE id = $1",
			lotID)
		var id int
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNoRows
			}
			return err
		}
		return ErrInsufficientLotBalance
	}
	return nil
}

// ApplyRedemption записывает шапку, строки и списания с лотов одной
// транзакцией: либо всё, либо ничего
func (store *pgStore) ApplyRedemption(ctx context.Context, header model.Redemption, items []model.RedemptionItem) (model.Redemption, []model.RedemptionItem, error) {
	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return model.Redemption{}, nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"INSERT INTO redemptions (client_id, concept_id, points_used, used_on)"+
			" VALUES ($1, $2, $3, $4)"+
			" RETURNING id",
		header.ClientID,
		header.ConceptID,
		header.PointsUsed,
		header.Date)
	if err := row.Scan(&header.ID); err != nil {
		return model.Redemption{}, nil, err
	}

	saved := make([]model.RedemptionItem, 0, len(items))
	for _, item := range items {
		if err := applyConsumption(ctx, tx, item.LotID, item.Points); err != nil {
			return model.Redemption{}, nil, err
		}

		item.RedemptionID = header.ID
		row := tx.QueryRowContext(ctx,
			"INSERT INTO redemption_items (redemption_id, lot_id, points)"+
				" VALUES ($1, $2, $3)"+
				" RETURNING id",
			item.RedemptionID,
			item.LotID,
			item.Points)
		if err := row.Scan(&item.ID); err != nil {
			return model.Redemption{}, nil, err
		}
		saved = append(saved, item)
	}

	if err := tx.Commit(); err != nil {
		return model.Redemption{}, nil, err
	}
	return header, saved, nil
}

func (store *pgStore) RedemptionList(ctx context.Context, clientID int) ([]model.Redemption, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT id, client_id, concept_id, points_used, used_on"+
			" FROM redemptions"+
			" WHERE $1 = 0 OR client_id = $1"+
			" ORDER BY used_on DESC, id DESC",
		clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var redemptions []model.Redemption
	for rows.Next() {
		var r model.Redemption
		if err := rows.Scan(&r.ID, &r.ClientID, &r.ConceptID, &r.PointsUsed, &r.Date); err != nil {
			return nil, err
		}
		redemptions = append(redemptions, r)
	}
	return redemptions, rows.Err()
}

func (store *pgStore) RedemptionItems(ctx context.Context, redemptionID int) ([]model.RedemptionItem, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT id, redemption_id, lot_id, points"+
			" FROM redemption_items"+
			" WHERE redemption_id = $1"+
			" ORDER BY id",
		redemptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.RedemptionItem
	for rows.Next() {
		var item model.RedemptionItem
		if err := rows.Scan(&item.ID, &item.RedemptionID, &item.LotID, &item.Points); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
