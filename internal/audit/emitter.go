package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"finassist/internal/db"
	"finassist/internal/models"
	"finassist/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

const softFailureKind = "audit"

var errNoTransaction = errors.New("audit: mutation outside a transaction")

type Store interface {
	Insert(ctx context.Context, tx store.Execer, entry models.AuditLog) error
}

// Mutation describes one create, update or delete of a ledger entity. Before
// is nil on create and After is nil on delete.
type Mutation struct {
	ObjectType string
	ObjectID   string
	Action     models.AuditAction
	Actor      *string
	Before     any
	After      any
	Reason     string
}

// Emitter writes audit rows. Audit is observability: every failure goes
// through the soft-failure path and is never returned to the caller.
type Emitter struct {
	store Store
	soft  *db.SoftFailer
	now   func() time.Time
}

func NewEmitter(store Store, soft *db.SoftFailer, now func() time.Time) *Emitter {
	if now == nil {
		now = time.Now
	}
	if soft == nil {
		soft = db.NewSoftFailer(zerolog.Nop())
	}
	return &Emitter{store: store, soft: soft, now: now}
}

// OnMutation records m inside a savepoint of tx.
func (e *Emitter) OnMutation(ctx context.Context, tx *sqlx.Tx, m Mutation) {
	e.soft.Run(ctx, tx, softFailureKind, func() error {
		before, err := encodeState(m.Before)
		if err != nil {
			return err
		}
		after, err := encodeState(m.After)
		if err != nil {
			return err
		}
		entry := models.AuditLog{
			ID:         uuid.NewString(),
			ObjectType: m.ObjectType,
			ObjectID:   m.ObjectID,
			Action:     m.Action,
			ActorID:    m.Actor,
			Before:     before,
			After:      after,
			Reason:     m.Reason,
			CreatedAt:  e.now().UTC(),
		}
		if tx == nil {
			return errNoTransaction
		}
		return e.store.Insert(ctx, tx, entry)
	})
}

func encodeState(state any) (models.JSON, error) {
	if state == nil {
		return nil, nil
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return models.JSON(payload), nil
}
