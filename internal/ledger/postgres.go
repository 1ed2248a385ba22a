package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/congo_points/internal/account"
	"github.com/congo-pay/congo_points/internal/points"
)

// advisoryLockKey serializes every mutating call across all API replicas.
const advisoryLockKey int64 = 0x706f696e7473

// PostgresLedger persists the ledger partitions and the event log in
// PostgreSQL. Each call runs in its own transaction.
type PostgresLedger struct {
	db       *pgxpool.Pool
	feedSize int
}

// NewPostgresLedger constructs a Postgres-backed host.
func NewPostgresLedger(db *pgxpool.Pool, feedSize int) *PostgresLedger {
	if feedSize <= 0 {
		feedSize = DefaultFeedSize
	}
	return &PostgresLedger{db: db, feedSize: feedSize}
}

// Deploy inserts the singleton metadata row and constructs the ledger.
func (l *PostgresLedger) Deploy(ctx context.Context, caller account.ID, initial uint256.Int) (Receipt, error) {
	tx, err := l.begin(ctx)
	if err != nil {
		return Receipt{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	cmd, err := tx.Exec(ctx, `INSERT INTO ledger_meta (id, owner_points, deployer_id, initial_supply, deployed_at)
        VALUES (1, 0, $1, $2::text::numeric, $3) ON CONFLICT (id) DO NOTHING`,
		caller.Bytes(), initial.Dec(), time.Now().UTC())
	if err != nil {
		return Receipt{}, fmt.Errorf("insert ledger meta: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return Receipt{}, ErrAlreadyDeployed
	}

	events := &points.Collector{}
	if err := points.New(&pgState{tx: tx}, events).Construct(ctx, caller, initial); err != nil {
		return Receipt{}, err
	}

	res := Receipt{
		CallID:    uuid.NewString(),
		Caller:    caller,
		Operation: OpConstruct,
		Events:    events.Events(),
		At:        time.Now().UTC(),
	}
	if err := insertEvents(ctx, tx, res); err != nil {
		return Receipt{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Receipt{}, fmt.Errorf("commit construct: %w", err)
	}
	return res, nil
}

// Execute runs fn inside a serialized transaction. Dry runs roll back.
func (l *PostgresLedger) Execute(ctx context.Context, call Call, fn func(context.Context, *points.Ledger) error) (res Receipt, err error) {
	tx, err := l.begin(ctx)
	if err != nil {
		return Receipt{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck
	defer trapOverflow(&err)

	if err := ensureDeployed(ctx, tx); err != nil {
		return Receipt{}, err
	}

	events := &points.Collector{}
	if err := fn(ctx, points.New(&pgState{tx: tx}, events)); err != nil {
		return Receipt{}, err
	}

	res = Receipt{
		CallID:    uuid.NewString(),
		Caller:    call.Caller,
		Operation: call.Operation,
		Events:    events.Events(),
		DryRun:    call.DryRun,
		At:        time.Now().UTC(),
	}
	if call.DryRun {
		return res, nil
	}

	if err := insertEvents(ctx, tx, res); err != nil {
		return Receipt{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Receipt{}, fmt.Errorf("commit %s: %w", call.Operation, err)
	}
	return res, nil
}

// View runs fn in a read-only transaction.
func (l *PostgresLedger) View(ctx context.Context, fn func(context.Context, *points.Ledger) error) error {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin view: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := ensureDeployed(ctx, tx); err != nil {
		return err
	}
	return fn(ctx, points.New(&pgState{tx: tx}, nil))
}

// Events returns the newest entries of the event log.
func (l *PostgresLedger) Events(ctx context.Context, filter EventFilter) ([]EventEntry, error) {
	var accountArg []byte
	if filter.Account != nil {
		accountArg = filter.Account.Bytes()
	}
	const query = `
        SELECT seq, call_id, operation, caller_id, event_type, owner_id, store_id, user_id,
               value::text, auth, kind, created_at
        FROM ledger_events
        WHERE $1::bytea IS NULL OR owner_id = $1 OR store_id = $1 OR user_id = $1
        ORDER BY seq DESC
        LIMIT $2`
	rows, err := l.db.Query(ctx, query, accountArg, feedLimit(filter.Limit, l.feedSize))
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []EventEntry
	for rows.Next() {
		var (
			row    eventRow
			callID uuid.UUID
		)
		if err := rows.Scan(&row.seq, &callID, &row.operation, &row.caller, &row.eventType,
			&row.owner, &row.store, &row.user, &row.value, &row.auth, &row.kind, &row.at); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		entry, err := row.entry()
		if err != nil {
			return nil, err
		}
		entry.CallID = callID.String()
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Deployment reads the singleton metadata row.
func (l *PostgresLedger) Deployment(ctx context.Context) (Deployment, error) {
	var (
		deployer []byte
		initial  string
		at       time.Time
	)
	err := l.db.QueryRow(ctx, `SELECT deployer_id, initial_supply::text, deployed_at FROM ledger_meta WHERE id = 1`).
		Scan(&deployer, &initial, &at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Deployment{}, ErrNotDeployed
		}
		return Deployment{}, err
	}
	id, err := account.FromBytes(deployer)
	if err != nil {
		return Deployment{}, err
	}
	supply, err := points.ParseAmount(initial)
	if err != nil {
		return Deployment{}, err
	}
	return Deployment{Deployer: id, InitialSupply: supply, At: at.UTC()}, nil
}

func (l *PostgresLedger) begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryLockKey); err != nil {
		tx.Rollback(ctx) // nolint:errcheck
		return nil, fmt.Errorf("acquire ledger lock: %w", err)
	}
	return tx, nil
}

func ensureDeployed(ctx context.Context, tx pgx.Tx) error {
	var one int
	if err := tx.QueryRow(ctx, `SELECT 1 FROM ledger_meta WHERE id = 1`).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotDeployed
		}
		return err
	}
	return nil
}

func insertEvents(ctx context.Context, tx pgx.Tx, res Receipt) error {
	callID, err := uuid.Parse(res.CallID)
	if err != nil {
		return err
	}
	const stmt = `INSERT INTO ledger_events
        (id, call_id, operation, caller_id, event_type, owner_id, store_id, user_id, value, auth, kind, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::text::numeric, $10, $11, $12)`
	for _, e := range res.Events {
		row := newEventRow(e)
		if _, err := tx.Exec(ctx, stmt, uuid.New(), callID, res.Operation, res.Caller.Bytes(), row.eventType,
			row.owner, row.store, row.user, row.value, row.auth, row.kind, res.At); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return nil
}

// eventRow is the nullable column layout of ledger_events.
type eventRow struct {
	seq       int64
	operation string
	caller    []byte
	eventType string
	owner     []byte
	store     []byte
	user      []byte
	value     *string
	auth      *bool
	kind      *string
	at        time.Time
}

func newEventRow(e points.Event) eventRow {
	row := eventRow{eventType: e.EventType()}
	switch ev := e.(type) {
	case points.Issuance:
		value := ev.Value.Dec()
		row.owner = ev.Owner.Bytes()
		row.value = &value
	case points.Authority:
		auth := ev.Auth
		row.owner = ev.Owner.Bytes()
		row.store = ev.Store.Bytes()
		row.auth = &auth
	case points.UserPoints:
		value := ev.Value.Dec()
		kind := string(ev.Kind)
		row.store = ev.Store.Bytes()
		row.user = ev.User.Bytes()
		row.value = &value
		row.kind = &kind
	}
	return row
}

func (r eventRow) entry() (EventEntry, error) {
	caller, err := account.FromBytes(r.caller)
	if err != nil {
		return EventEntry{}, err
	}
	entry := EventEntry{Seq: r.seq, Caller: caller, Operation: r.operation, At: r.at.UTC()}

	var value uint256.Int
	if r.value != nil {
		if value, err = points.ParseAmount(*r.value); err != nil {
			return EventEntry{}, err
		}
	}

	switch r.eventType {
	case points.TypeIssuance:
		owner, err := account.FromBytes(r.owner)
		if err != nil {
			return EventEntry{}, err
		}
		entry.Event = points.Issuance{Owner: owner, Value: value}
	case points.TypeAuthority:
		owner, err := account.FromBytes(r.owner)
		if err != nil {
			return EventEntry{}, err
		}
		store, err := account.FromBytes(r.store)
		if err != nil {
			return EventEntry{}, err
		}
		entry.Event = points.Authority{Owner: owner, Store: store, Auth: r.auth != nil && *r.auth}
	case points.TypeUserPoints:
		store, err := account.FromBytes(r.store)
		if err != nil {
			return EventEntry{}, err
		}
		user, err := account.FromBytes(r.user)
		if err != nil {
			return EventEntry{}, err
		}
		var kind points.UserPointsKind
		if r.kind != nil {
			kind = points.UserPointsKind(*r.kind)
		}
		entry.Event = points.UserPoints{Store: store, User: user, Value: value, Kind: kind}
	default:
		return EventEntry{}, fmt.Errorf("unknown event type %q", r.eventType)
	}
	return entry, nil
}

// pgState implements points.State over one transaction.
type pgState struct {
	tx pgx.Tx
}

func (s *pgState) OwnerPoints(ctx context.Context) (uint256.Int, error) {
	return s.amount(ctx, `SELECT owner_points::text FROM ledger_meta WHERE id = 1`)
}

func (s *pgState) SetOwnerPoints(ctx context.Context, v uint256.Int) error {
	_, err := s.tx.Exec(ctx, `UPDATE ledger_meta SET owner_points = $1::text::numeric WHERE id = 1`, v.Dec())
	return err
}

func (s *pgState) Authority(ctx context.Context, store account.ID) (bool, error) {
	var auth bool
	err := s.tx.QueryRow(ctx, `SELECT authorized FROM store_authority WHERE store_id = $1`, store.Bytes()).Scan(&auth)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return auth, nil
}

func (s *pgState) SetAuthority(ctx context.Context, store account.ID, auth bool) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO store_authority (store_id, authorized, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (store_id) DO UPDATE SET authorized = EXCLUDED.authorized, updated_at = EXCLUDED.updated_at`,
		store.Bytes(), auth)
	return err
}

func (s *pgState) StorePoints(ctx context.Context, store account.ID) (uint256.Int, error) {
	return s.amount(ctx, `SELECT points::text FROM store_points WHERE store_id = $1`, store.Bytes())
}

func (s *pgState) SetStorePoints(ctx context.Context, store account.ID, v uint256.Int) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO store_points (store_id, points) VALUES ($1, $2::text::numeric)
        ON CONFLICT (store_id) DO UPDATE SET points = EXCLUDED.points`, store.Bytes(), v.Dec())
	return err
}

func (s *pgState) StoreUserPoints(ctx context.Context, key points.GrantKey) (uint256.Int, error) {
	return s.amount(ctx, `SELECT points::text FROM store_user_points WHERE store_id = $1 AND user_id = $2`,
		key.Store.Bytes(), key.User.Bytes())
}

func (s *pgState) SetStoreUserPoints(ctx context.Context, key points.GrantKey, v uint256.Int) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO store_user_points (store_id, user_id, points) VALUES ($1, $2, $3::text::numeric)
        ON CONFLICT (store_id, user_id) DO UPDATE SET points = EXCLUDED.points`,
		key.Store.Bytes(), key.User.Bytes(), v.Dec())
	return err
}

func (s *pgState) UserPoints(ctx context.Context, user account.ID) (uint256.Int, error) {
	return s.amount(ctx, `SELECT points::text FROM user_points WHERE user_id = $1`, user.Bytes())
}

func (s *pgState) SetUserPoints(ctx context.Context, user account.ID, v uint256.Int) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO user_points (user_id, points) VALUES ($1, $2::text::numeric)
        ON CONFLICT (user_id) DO UPDATE SET points = EXCLUDED.points`, user.Bytes(), v.Dec())
	return err
}

// amount reads a single numeric column, defaulting to zero when the row is
// missing.
func (s *pgState) amount(ctx context.Context, query string, args ...any) (uint256.Int, error) {
	var raw string
	if err := s.tx.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uint256.Int{}, nil
		}
		return uint256.Int{}, err
	}
	return points.ParseAmount(raw)
}
