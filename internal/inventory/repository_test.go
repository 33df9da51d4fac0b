package inventory

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	markProcessedSQL = regexp.QuoteMeta(`INSERT INTO processed_events`)
	upsertResvSQL    = regexp.QuoteMeta(`SET quantity = stock_reservations.quantity + EXCLUDED.quantity`)
	decrementSQL     = regexp.QuoteMeta(`WHERE product_id = $1 AND available >= $2`)
	selectAvailSQL   = regexp.QuoteMeta(`SELECT available FROM inventory WHERE product_id=$1`)
	releaseResvSQL   = regexp.QuoteMeta(`SET released = true, updated_at = now()`)
	incrementSQL     = regexp.QuoteMeta(`SET available = available + $2`)
)

const consumer = "inventory-service"

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestPostgresRepository_Get(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT product_id, available FROM inventory`)).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"product_id", "available"}).AddRow(int64(1), 7))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT product_id, available FROM inventory`)).
		WithArgs(int64(9)).
		WillReturnError(pgx.ErrNoRows)

	rec, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, Record{ProductID: 1, Available: 7}, rec)

	_, err = repo.Get(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_SetAvailable(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO inventory(product_id, available)`)).
		WithArgs(int64(1), 10).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewPostgresRepository(mock).SetAvailable(context.Background(), 1, 10))
	require.NoError(t, mock.ExpectationsWereMet())
}

func reserveChange(qty int) Change {
	return Change{Consumer: consumer, EventID: "evt-1", OrderID: "order-1", ProductID: 1, Quantity: qty}
}

func TestPostgresRepository_Reserve(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(markProcessedSQL).WithArgs(consumer, "evt-1").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(upsertResvSQL).
		WithArgs("order-1", int64(1), 2).
		WillReturnRows(pgxmock.NewRows([]string{"quantity"}).AddRow(2))
	mock.ExpectQuery(decrementSQL).
		WithArgs(int64(1), 2).
		WillReturnRows(pgxmock.NewRows([]string{"available"}).AddRow(3))
	mock.ExpectCommit()

	res, err := NewPostgresRepository(mock).Reserve(context.Background(), reserveChange(2))
	require.NoError(t, err)
	assert.Equal(t, Result{Outcome: Applied, Available: 3}, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ReserveInsufficient(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(markProcessedSQL).WithArgs(consumer, "evt-1").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(upsertResvSQL).
		WithArgs("order-1", int64(1), 5).
		WillReturnRows(pgxmock.NewRows([]string{"quantity"}).AddRow(5))
	mock.ExpectQuery(decrementSQL).WithArgs(int64(1), 5).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(selectAvailSQL).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"available"}).AddRow(2))
	mock.ExpectRollback()

	_, err := NewPostgresRepository(mock).Reserve(context.Background(), reserveChange(5))
	var short *InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, InsufficientStockError{ProductID: 1, Available: 2, Requested: 5}, *short)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ReserveUnknownProduct(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(markProcessedSQL).WithArgs(consumer, "evt-1").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(upsertResvSQL).
		WithArgs("order-1", int64(1), 1).
		WillReturnRows(pgxmock.NewRows([]string{"quantity"}).AddRow(1))
	mock.ExpectQuery(decrementSQL).WithArgs(int64(1), 1).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(selectAvailSQL).WithArgs(int64(1)).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := NewPostgresRepository(mock).Reserve(context.Background(), reserveChange(1))
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ReserveDuplicate(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(markProcessedSQL).WithArgs(consumer, "evt-1").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	res, err := NewPostgresRepository(mock).Reserve(context.Background(), reserveChange(2))
	require.NoError(t, err)
	assert.Equal(t, Duplicate, res.Outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ReserveFenced(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(markProcessedSQL).WithArgs(consumer, "evt-1").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(upsertResvSQL).WithArgs("order-1", int64(1), 2).WillReturnError(pgx.ErrNoRows)
	mock.ExpectCommit()

	res, err := NewPostgresRepository(mock).Reserve(context.Background(), reserveChange(2))
	require.NoError(t, err)
	assert.Equal(t, Fenced, res.Outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_RollbackReleasesReservation(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(markProcessedSQL).WithArgs(consumer, "evt-2").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(releaseResvSQL).
		WithArgs("order-1", int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"quantity"}).AddRow(2))
	mock.ExpectQuery(incrementSQL).
		WithArgs(int64(1), 2).
		WillReturnRows(pgxmock.NewRows([]string{"available"}).AddRow(5))
	mock.ExpectCommit()

	// the message quantity is ignored in favour of what was reserved
	res, err := NewPostgresRepository(mock).Rollback(context.Background(),
		Change{Consumer: consumer, EventID: "evt-2", OrderID: "order-1", ProductID: 1, Quantity: 9})
	require.NoError(t, err)
	assert.Equal(t, Result{Outcome: Applied, Available: 5, Returned: 2}, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_RollbackWithoutReservation(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(markProcessedSQL).WithArgs(consumer, "evt-3").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(releaseResvSQL).
		WithArgs("order-1", int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"quantity"}).AddRow(0))
	mock.ExpectCommit()

	res, err := NewPostgresRepository(mock).Rollback(context.Background(),
		Change{Consumer: consumer, EventID: "evt-3", OrderID: "order-1", ProductID: 1, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, NothingReserved, res.Outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_RollbackAlreadyReleased(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(markProcessedSQL).WithArgs(consumer, "evt-4").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(releaseResvSQL).WithArgs("order-1", int64(1)).WillReturnError(pgx.ErrNoRows)
	mock.ExpectCommit()

	res, err := NewPostgresRepository(mock).Rollback(context.Background(),
		Change{Consumer: consumer, EventID: "evt-4", OrderID: "order-1", ProductID: 1, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, NothingReserved, res.Outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_RollbackByQuantity(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(markProcessedSQL).WithArgs(consumer, "evt-5").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(incrementSQL).WithArgs(int64(3), 4).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := NewPostgresRepository(mock).Rollback(context.Background(),
		Change{Consumer: consumer, EventID: "evt-5", ProductID: 3, Quantity: 4})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_BeginFails(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	_, err := NewPostgresRepository(mock).Reserve(context.Background(), reserveChange(1))
	require.ErrorContains(t, err, "too many connections")
	require.NoError(t, mock.ExpectationsWereMet())
}
