package ticketstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/emberchat/push-relay/internal/model"
)

// sqliteStore keeps tickets in a local sqlite database so a restart does
// not lose tickets that still await receipts.
type sqliteStore struct {
	db *sqlx.DB
}

func NewSqlite(path string) (*sqliteStore, error) {
	db, err := sqlx.Connect("sqlite3", "file:"+path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &sqliteStore{db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return store, nil
}

func (s *sqliteStore) init() error {
	_, err := s.db.Exec(`create table if not exists delivery_ticket(
		Seq     integer primary key autoincrement,
		ID      text not null,
		Status  text not null,
		Message text not null default ''
	)`)
	return err
}

func (s *sqliteStore) Append(ctx context.Context, tickets []model.DeliveryTicket) error {
	if len(tickets) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ticket := range tickets {
		if _, err := tx.NamedExec(`insert into delivery_ticket
			(ID, Status, Message) values(:ID, :Status, :Message)`, ticket); err != nil {
			return fmt.Errorf("inserting ticket: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tickets: %w", err)
	}
	return nil
}

func (s *sqliteStore) Partition(ctx context.Context) ([]model.DeliveryTicket, []model.DeliveryTicket, error) {
	var tickets []model.DeliveryTicket
	err := s.db.SelectContext(ctx, &tickets, `select ID, Status, Message from delivery_ticket order by Seq`)
	if err != nil {
		return nil, nil, fmt.Errorf("listing tickets: %w", err)
	}

	ok, failed := partition(tickets)
	return ok, failed, nil
}

func (s *sqliteStore) Remove(ctx context.Context, ids []model.TicketID) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`delete from delivery_ticket where ID in (?)`, ids)
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting tickets: %w", err)
	}
	return nil
}

func (s *sqliteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
