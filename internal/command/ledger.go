package command

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Evildoersudo/back-end/internal/infrastructure/database"
)

// Ledger owns the command lifecycle: submission with conflict checks,
// ack application and the lazy timeout sweep.
//
// Timeouts are swept on the paths that observe records (submit and state
// reads), not by a background ticker, so a record can sit expired in the
// pending state until something looks at it.
type Ledger struct {
	db         *database.DB
	cmdTimeout time.Duration

	// now is injectable for tests.
	now func() time.Time
}

// NewLedger creates a Ledger over db. cmdTimeout is how long a submitted
// command may wait for an ack before it times out.
func NewLedger(db *database.DB, cmdTimeout time.Duration) *Ledger {
	return &Ledger{db: db, cmdTimeout: cmdTimeout, now: time.Now}
}

// SetClock overrides the wall clock. Tests only.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Submit records a new pending command for the device.
//
// Stale pending records are swept first, then the conflict rule applies:
// a device-wide submission is blocked by any pending record, and a
// socket-specific one only by pending records for the same socket.
// Conflicts return ErrCommandConflict. The whole check
// runs in one transaction so concurrent submissions cannot both pass.
func (l *Ledger) Submit(ctx context.Context, deviceID string, socket *int, action, payloadJSON string) (*Record, error) {
	now := l.now()
	rec := &Record{
		CmdID:       NewID(now),
		DeviceID:    deviceID,
		Socket:      socket,
		Action:      action,
		PayloadJSON: payloadJSON,
		State:       StatePending,
		CreatedAt:   now.Unix(),
		UpdatedAt:   now.Unix(),
		ExpiresAt:   now.Add(l.cmdTimeout).Unix(),
	}

	err := l.db.WithTx(ctx, func(tx *sql.Tx) error {
		repo := NewSQLiteRepository(tx)

		if _, err := repo.ExpirePending(ctx, now.Unix()); err != nil {
			return err
		}

		conflict, err := repo.HasPendingConflict(ctx, deviceID, socket)
		if err != nil {
			return err
		}
		if conflict {
			return ErrCommandConflict
		}

		return repo.Insert(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// SweepTimeouts expires every pending record past its deadline and
// returns how many changed state.
func (l *Ledger) SweepTimeouts(ctx context.Context) (int, error) {
	return NewSQLiteRepository(l.db).ExpirePending(ctx, l.now().Unix())
}

// ApplyAck resolves a pending record from a device acknowledgement: the
// "success" status completes it, anything else fails it. The ack's
// message and execution time are stored either way.
//
// Acks for unknown ids return ErrCommandNotFound. Records already in a
// terminal state are left untouched, so a late ack cannot overwrite a
// swept timeout.
func (l *Ledger) ApplyAck(ctx context.Context, cmdID, status, message string, durationMs *int) (*Record, error) {
	return ResolveAck(ctx, NewSQLiteRepository(l.db), cmdID, status, message, durationMs, l.now())
}

// ResolveAck is ApplyAck over an explicit repository, so callers that
// already hold a transaction can resolve the ack inside it.
func ResolveAck(ctx context.Context, repo Repository, cmdID, status, message string, durationMs *int, now time.Time) (*Record, error) {
	rec, err := repo.GetByID(ctx, cmdID)
	if err != nil {
		return nil, err
	}
	if rec.Terminal() {
		return rec, nil
	}

	if status == StateSuccess {
		rec.State = StateSuccess
	} else {
		rec.State = StateFailed
	}
	rec.Message = message
	rec.DurationMs = durationMs
	rec.UpdatedAt = now.Unix()

	if err := repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Fail moves a pending record straight to failed with the given message.
// Used when the command never reached the bus.
func (l *Ledger) Fail(ctx context.Context, cmdID, message string) (*Record, error) {
	repo := NewSQLiteRepository(l.db)

	rec, err := repo.GetByID(ctx, cmdID)
	if err != nil {
		return nil, err
	}
	if rec.Terminal() {
		return rec, nil
	}

	rec.State = StateFailed
	rec.Message = message
	rec.UpdatedAt = l.now().Unix()

	if err := repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// State sweeps timeouts and returns the record's current state.
func (l *Ledger) State(ctx context.Context, cmdID string) (*Record, error) {
	if _, err := l.SweepTimeouts(ctx); err != nil {
		return nil, fmt.Errorf("sweeping timeouts: %w", err)
	}
	return NewSQLiteRepository(l.db).GetByID(ctx, cmdID)
}

// History sweeps timeouts and returns a device's recent records, newest
// first.
func (l *Ledger) History(ctx context.Context, deviceID string, limit int) ([]Record, error) {
	if _, err := l.SweepTimeouts(ctx); err != nil {
		return nil, fmt.Errorf("sweeping timeouts: %w", err)
	}
	return NewSQLiteRepository(l.db).ListByDevice(ctx, deviceID, limit)
}
