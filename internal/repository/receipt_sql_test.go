package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var receiptColumns = []string{"id", "booking_id", "user_id", "movie_id", "show_date", "showtime", "seats",
	"total_amount", "payment_method", "status", "confirmed_at", "cancelled_at"}

func newMockRepo(t *testing.T) (*ReceiptRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewReceiptRepo(db), mock
}

func TestReceiptRepo_CreateKeepsFirstRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	insert := regexp.QuoteMeta("INSERT INTO receipts")
	show := time.Date(2026, 10, 20, 18, 30, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		// a duplicate booking id reports the existing id via LAST_INSERT_ID(id)
		mock.ExpectExec(insert).
			WithArgs("bk-1", "u-1", "m1", show, "7:30 PM", "A1,D3", 500, "UPI", ReceiptConfirmed, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(7, int64(i+1)))
	}

	first := &Receipt{BookingID: "bk-1", UserID: "u-1", MovieID: "m1", ShowDate: show, Showtime: "7:30 PM",
		Seats: []string{"A1", "D3"}, TotalAmount: 500, PaymentMethod: "UPI", ConfirmedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), first))
	assert.Equal(t, uint64(7), first.ID)
	assert.Equal(t, ReceiptConfirmed, first.Status)

	again := *first
	again.ID = 0
	require.NoError(t, repo.Create(context.Background(), &again))
	assert.Equal(t, first.ID, again.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptRepo_ListByUser(t *testing.T) {
	repo, mock := newMockRepo(t)
	confirmed := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	cancelled := confirmed.Add(time.Hour)
	show := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(receiptColumns).
		AddRow(int64(2), "bk-2", "u-1", "m1", show, "9:00 PM", "G1", 150, "Wallet", ReceiptCancelled, confirmed, cancelled).
		AddRow(int64(1), "bk-1", "u-1", "m1", show, "7:30 PM", "A1,D3", 500, "UPI", ReceiptConfirmed, confirmed, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM receipts WHERE user_id = ?")).
		WithArgs("u-1", 50).
		WillReturnRows(rows)

	list, err := repo.ListByUser(context.Background(), "u-1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint64(2), list[0].ID)
	require.NotNil(t, list[0].CancelledAt)
	assert.Equal(t, cancelled, *list[0].CancelledAt)
	assert.Equal(t, []string{"A1", "D3"}, list[1].Seats)
	assert.Nil(t, list[1].CancelledAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptRepo_MarkCancelled(t *testing.T) {
	update := regexp.QuoteMeta("UPDATE receipts SET status = 'CANCELLED'")
	lookup := regexp.QuoteMeta("FROM receipts WHERE booking_id = ?")
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	owned := func() *sqlmock.Rows {
		return sqlmock.NewRows(receiptColumns).
			AddRow(int64(1), "bk-1", "u-1", "m1", now, "7:30 PM", "A1", 300, "UPI", ReceiptCancelled, now, now)
	}

	cases := []struct {
		name   string
		user   string
		rows   *sqlmock.Rows // nil when the update matches
		expect error
	}{
		{name: "owner", user: "u-1"},
		{name: "other user", user: "u-2", rows: owned(), expect: ErrForbidden},
		{name: "already cancelled", user: "u-1", rows: owned(), expect: ErrConflict},
		{name: "missing", user: "u-1", rows: sqlmock.NewRows(receiptColumns), expect: ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			affected := int64(1)
			if tc.rows != nil {
				affected = 0
			}
			mock.ExpectExec(update).
				WithArgs(now, "bk-1", tc.user).
				WillReturnResult(sqlmock.NewResult(0, affected))
			if tc.rows != nil {
				mock.ExpectQuery(lookup).WithArgs("bk-1").WillReturnRows(tc.rows)
			}

			err := repo.MarkCancelled(context.Background(), tc.user, "bk-1", now)
			if tc.expect == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.expect)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
