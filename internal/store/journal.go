package store

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// journal is an append-only record of every balance movement. The in-memory
// maps are authoritative; the journal lives as long as the process (the
// default DSN is an in-memory database) and backs per-user statistics. A file
// DSN is emptied on open.
type journal struct {
	db *sql.DB
}

// entry is one row of the transactions table. Void entries carry no user.
type entry struct {
	userID   string
	marketID string
	betID    string
	kind     TransactionType
	amount   decimal.Decimal
	before   decimal.Decimal
	after    decimal.Decimal
}

func openJournal(dsn string) (*journal, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &InternalError{Message: "Can't open journal", Err: err}
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(DropTables); err != nil {
		db.Close()
		return nil, &InternalError{Message: "Can't reset journal", Err: err}
	}
	if _, err = db.Exec(CreateTables); err != nil {
		db.Close()
		return nil, &InternalError{Message: "Can't create tables", Err: err}
	}
	if _, err = db.Exec(CreateIndexes); err != nil {
		db.Close()
		return nil, &InternalError{Message: "Can't create indexes", Err: err}
	}
	return &journal{db: db}, nil
}

func (j *journal) close() error {
	return j.db.Close()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func insertEntry(tx *sql.Tx, e entry, at time.Time) error {
	var before, after interface{}
	if e.kind != VoidTx {
		before, after = e.before.String(), e.after.String()
	}
	_, err := tx.Exec(
		`INSERT INTO transactions(userId, marketId, betId, type, amount, balanceBefore, balanceAfter, date) values(?, ?, ?, ?, ?, ?, ?, ?)`,
		nullable(e.userID), nullable(e.marketID), nullable(e.betID), string(e.kind), e.amount.String(), before, after, at.UnixMilli(),
	)
	return err
}

// commit runs fn in a database transaction. Nothing is written unless fn
// succeeds.
func (j *journal) commit(fn func(tx *sql.Tx) error) error {
	tx, err := j.db.Begin()
	if err != nil {
		return &InternalError{Message: "Error when starting journal transaction", Err: err}
	}
	if err = fn(tx); err != nil {
		tx.Rollback()
		return &TransactionError{Err: err}
	}
	if err = tx.Commit(); err != nil {
		return &TransactionError{Err: err}
	}
	return nil
}

func (j *journal) recordUser(u *User, grant entry) error {
	return j.commit(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO users(id, username, createdAt) values(?, ?, ?)`, u.ID, u.Username, u.CreatedAt.UnixMilli()); err != nil {
			return err
		}
		return insertEntry(tx, grant, u.CreatedAt)
	})
}

func (j *journal) recordMarket(m *Market) error {
	return j.commit(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO markets(id, creatorId, question, createdAt, closeAt) values(?, ?, ?, ?, ?)`,
			m.ID, m.CreatorID, m.Question, m.CreatedAt.UnixMilli(), m.CloseAt.UnixMilli())
		return err
	})
}

func (j *journal) recordBet(debit entry, at time.Time) error {
	return j.commit(func(tx *sql.Tx) error {
		return insertEntry(tx, debit, at)
	})
}

func (j *journal) recordResolution(m *Market, entries []entry) error {
	return j.commit(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`UPDATE markets SET outcome = ?, resolvedAt = ? WHERE id = ?`,
			string(m.Outcome), m.ResolvedAt.UnixMilli(), m.ID); err != nil {
			return err
		}
		for _, e := range entries {
			if err := insertEntry(tx, e, m.ResolvedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (j *journal) statistic(userID string) (Statistic, error) {
	stat := Statistic{UserID: userID, BetSum: decimal.Zero, WinSum: decimal.Zero}
	rows, err := j.db.Query(`SELECT type, amount FROM transactions WHERE userId = ?`, userID)
	if err != nil {
		return stat, &InternalError{Message: "Can't read transactions", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var kind TransactionType
		var raw string
		if err = rows.Scan(&kind, &raw); err != nil {
			return stat, &InternalError{Message: "Can't read transactions", Err: err}
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return stat, &InternalError{Message: "Corrupt transaction amount", Err: err}
		}
		switch kind {
		case BetTx:
			stat.BetCount++
			stat.BetSum = stat.BetSum.Add(amount)
		case WinTx:
			stat.WinCount++
			stat.WinSum = stat.WinSum.Add(amount)
		}
	}
	if err = rows.Err(); err != nil {
		return stat, &InternalError{Message: "Can't read transactions", Err: err}
	}
	return stat, nil
}

// Summary counts journal rows.
type Summary struct {
	Users        int
	Markets      int
	Transactions int
	Forfeited    decimal.Decimal
}

func (j *journal) summary() (Summary, error) {
	sum := Summary{Forfeited: decimal.Zero}
	for _, q := range []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM users`, &sum.Users},
		{`SELECT COUNT(*) FROM markets`, &sum.Markets},
		{`SELECT COUNT(*) FROM transactions`, &sum.Transactions},
	} {
		if err := j.db.QueryRow(q.query).Scan(q.dest); err != nil {
			return sum, &InternalError{Message: "Can't count journal rows", Err: err}
		}
	}
	rows, err := j.db.Query(`SELECT amount FROM transactions WHERE type = ?`, string(VoidTx))
	if err != nil {
		return sum, &InternalError{Message: "Can't read voids", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err = rows.Scan(&raw); err != nil {
			return sum, &InternalError{Message: "Can't read voids", Err: err}
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return sum, &InternalError{Message: "Corrupt transaction amount", Err: err}
		}
		sum.Forfeited = sum.Forfeited.Add(amount)
	}
	return sum, rows.Err()
}
