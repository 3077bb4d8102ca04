package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"
)

// Receipt statuses.
const (
    ReceiptConfirmed = "CONFIRMED"
    ReceiptCancelled = "CANCELLED"
)

// ReceiptRepo stores receipts in MySQL.  All timestamps are UTC.
type ReceiptRepo struct {
    db *sql.DB
}

// NewReceiptRepo returns a ReceiptRepo bound to db.
func NewReceiptRepo(db *sql.DB) *ReceiptRepo { return &ReceiptRepo{db: db} }

// Receipt mirrors the receipts table.  Seats are stored as a comma
// separated list of seat identifiers.
type Receipt struct {
    ID            uint64     `json:"id"`
    BookingID     string     `json:"booking_id"`
    UserID        string     `json:"user_id"`
    MovieID       string     `json:"movie_id"`
    ShowDate      time.Time  `json:"show_date"`
    Showtime      string     `json:"showtime"`
    Seats         []string   `json:"seats"`
    TotalAmount   int        `json:"total_amount"`
    PaymentMethod string     `json:"payment_method"`
    Status        string     `json:"status"`
    ConfirmedAt   time.Time  `json:"confirmed_at"`
    CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
}

const receiptSchema = `CREATE TABLE IF NOT EXISTS receipts (
    id             BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    booking_id     VARCHAR(64)  NOT NULL,
    user_id        VARCHAR(64)  NOT NULL,
    movie_id       VARCHAR(64)  NOT NULL,
    show_date      DATETIME     NOT NULL,
    showtime       VARCHAR(32)  NOT NULL,
    seats          VARCHAR(512) NOT NULL,
    total_amount   INT          NOT NULL,
    payment_method VARCHAR(32)  NOT NULL,
    status         ENUM('CONFIRMED','CANCELLED') NOT NULL DEFAULT 'CONFIRMED',
    confirmed_at   DATETIME     NOT NULL,
    cancelled_at   DATETIME     NULL,
    UNIQUE KEY uq_receipts_booking (booking_id),
    KEY idx_receipts_user (user_id, confirmed_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// EnsureSchema creates the receipts table when it does not exist.
func (r *ReceiptRepo) EnsureSchema(ctx context.Context) error {
    _, err := r.db.ExecContext(ctx, receiptSchema)
    return err
}

// Create inserts rec and fills its ID.  Inserting the same booking twice
// keeps the first row.
func (r *ReceiptRepo) Create(ctx context.Context, rec *Receipt) error {
    if rec.Status == "" {
        rec.Status = ReceiptConfirmed
    }
    const q = `INSERT INTO receipts
        (booking_id, user_id, movie_id, show_date, showtime, seats, total_amount, payment_method, status, confirmed_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`
    res, err := r.db.ExecContext(ctx, q,
        rec.BookingID, rec.UserID, rec.MovieID, rec.ShowDate.UTC(), rec.Showtime,
        strings.Join(rec.Seats, ","), rec.TotalAmount, rec.PaymentMethod, rec.Status, rec.ConfirmedAt.UTC())
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    rec.ID = uint64(id)
    return nil
}

// ListByUser returns the user's receipts, newest first.
func (r *ReceiptRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Receipt, error) {
    if limit <= 0 || limit > 200 {
        limit = 50
    }
    const q = `SELECT id, booking_id, user_id, movie_id, show_date, showtime, seats, total_amount,
        payment_method, status, confirmed_at, cancelled_at
        FROM receipts WHERE user_id = ? ORDER BY confirmed_at DESC, id DESC LIMIT ?`
    rows, err := r.db.QueryContext(ctx, q, userID, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    out := []Receipt{}
    for rows.Next() {
        rec, err := scanReceipt(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, rec)
    }
    return out, rows.Err()
}

// GetByBookingID returns one receipt.
func (r *ReceiptRepo) GetByBookingID(ctx context.Context, bookingID string) (*Receipt, error) {
    const q = `SELECT id, booking_id, user_id, movie_id, show_date, showtime, seats, total_amount,
        payment_method, status, confirmed_at, cancelled_at
        FROM receipts WHERE booking_id = ? LIMIT 1`
    rec, err := scanReceipt(r.db.QueryRowContext(ctx, q, bookingID))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    return &rec, nil
}

// MarkCancelled flags the receipt of bookingID as cancelled.  It returns
// ErrNotFound, ErrForbidden when userID does not own it, or ErrConflict
// when it is already cancelled.
func (r *ReceiptRepo) MarkCancelled(ctx context.Context, userID, bookingID string, at time.Time) error {
    const q = `UPDATE receipts SET status = 'CANCELLED', cancelled_at = ?
        WHERE booking_id = ? AND user_id = ? AND status = 'CONFIRMED'`
    res, err := r.db.ExecContext(ctx, q, at.UTC(), bookingID, userID)
    if err != nil {
        return err
    }
    if n, err := res.RowsAffected(); err != nil || n > 0 {
        return err
    }
    // Nothing updated: find out why.
    rec, err := r.GetByBookingID(ctx, bookingID)
    if err != nil {
        return err
    }
    if rec.UserID != userID {
        return ErrForbidden
    }
    return ErrConflict
}

type rowScanner interface {
    Scan(dest ...any) error
}

func scanReceipt(s rowScanner) (Receipt, error) {
    var (
        rec       Receipt
        seats     string
        cancelled sql.NullTime
    )
    err := s.Scan(&rec.ID, &rec.BookingID, &rec.UserID, &rec.MovieID, &rec.ShowDate, &rec.Showtime,
        &seats, &rec.TotalAmount, &rec.PaymentMethod, &rec.Status, &rec.ConfirmedAt, &cancelled)
    if err != nil {
        return Receipt{}, err
    }
    rec.Seats = splitSeats(seats)
    if cancelled.Valid {
        t := cancelled.Time
        rec.CancelledAt = &t
    }
    return rec, nil
}

func splitSeats(s string) []string {
    out := []string{}
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}
