package store

import (
	"context"
	"time"

	"finassist/internal/db"
)

type TransferStore struct {
	db      DB
	dialect db.Dialect
}

// TransferLink is one row of the transfers table: the outbound and inbound
// legs of a single transfer.
type TransferLink struct {
	ID         string    `db:"id"`
	OutboundID string    `db:"outbound_id"`
	InboundID  string    `db:"inbound_id"`
	CreatedAt  time.Time `db:"created_at"`
}

func NewTransferStore(conn DB, dialect db.Dialect) *TransferStore {
	return &TransferStore{db: conn, dialect: dialect}
}

func (s *TransferStore) Create(ctx context.Context, tx Execer, link TransferLink) error {
	_, err := tx.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO transfers (id, outbound_id, inbound_id, created_at)
		VALUES (?, ?, ?, ?)
	`), link.ID, link.OutboundID, link.InboundID, link.CreatedAt)
	return err
}

// GetByTransaction finds the link that either leg belongs to.
func (s *TransferStore) GetByTransaction(ctx context.Context, q Getter, transactionID string) (TransferLink, error) {
	var row TransferLink
	err := q.GetContext(ctx, &row, s.dialect.Rebind(`
		SELECT id, outbound_id, inbound_id, created_at
		FROM transfers
		WHERE outbound_id = ? OR inbound_id = ?
	`), transactionID, transactionID)
	if err != nil {
		return TransferLink{}, err
	}
	return row, nil
}
