package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/schoolhub/discipline-core/internal/domain/incident"
)

// UnitOfWork implements incident.UnitOfWork on a pgx transaction. The
// repositories it hands out run against the transaction, so the
// incident mutation and its audit row commit or roll back together.
type UnitOfWork struct {
	tx   pgx.Tx
	done bool
	mu   sync.Mutex

	incidents  *IncidentRepository
	statusLogs *StatusLogRepository
}

// Incidents returns the transactional incident repository.
func (u *UnitOfWork) Incidents() incident.Repository {
	return u.incidents
}

// StatusLogs returns the transactional status log repository.
func (u *UnitOfWork) StatusLogs() incident.StatusLogRepository {
	return u.statusLogs
}

// Commit makes all writes in this scope visible atomically.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return fmt.Errorf("postgres: unit of work already finished")
	}
	u.done = true

	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	return nil
}

// Rollback discards all writes in this scope. Safe to defer: after a
// successful Commit it is a no-op.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return nil
	}
	u.done = true

	if err := u.tx.Rollback(ctx); err != nil {
		return fmt.Errorf("postgres: rollback: %w", err)
	}
	return nil
}

// UnitOfWorkFactory implements incident.UnitOfWorkFactory.
type UnitOfWorkFactory struct {
	conn *Connection
}

// NewUnitOfWorkFactory creates a factory on the given connection.
func NewUnitOfWorkFactory(conn *Connection) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{conn: conn}
}

// Begin opens a transactional scope.
func (f *UnitOfWorkFactory) Begin(ctx context.Context) (incident.UnitOfWork, error) {
	tx, err := f.conn.BeginTx(ctx, DefaultTxOptions())
	if err != nil {
		return nil, err
	}

	return &UnitOfWork{
		tx:         tx,
		incidents:  NewIncidentRepository(tx),
		statusLogs: NewStatusLogRepository(tx),
	}, nil
}
