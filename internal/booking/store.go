// internal/booking/store.go
package booking

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so the same queries run
// inside and outside transactions.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store runs the engine's SQL. It holds no state beyond the connection.
type Store struct {
	db DBTX
}

func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// WithTx creates a new Store bound to the given transaction
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx}
}

const facilityColumns = `id, name, description, price_per_hour, image_url, timezone, created_at`

func (s *Store) GetFacility(ctx context.Context, id int64) (*Facility, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE id = ?`, id)
	return scanFacility(row)
}

func (s *Store) ListFacilities(ctx context.Context) ([]Facility, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+facilityColumns+` FROM facilities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facilities []Facility
	for rows.Next() {
		facility, err := scanFacility(rows)
		if err != nil {
			return nil, err
		}
		facilities = append(facilities, *facility)
	}
	return facilities, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFacility(row rowScanner) (*Facility, error) {
	var f Facility
	if err := row.Scan(&f.ID, &f.Name, &f.Description, &f.PricePerHour,
		&f.ImageURL, &f.Timezone, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetOperatingWindow returns the window for the facility and weekday,
// preferring a facility-specific row over the shared default row. Returns
// sql.ErrNoRows when neither exists.
func (s *Store) GetOperatingWindow(ctx context.Context, facilityID int64, day time.Weekday) (*OperatingWindow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, facility_id, day_of_week, open_time, close_time, is_open
		FROM operating_hours
		WHERE day_of_week = ? AND (facility_id = ? OR facility_id IS NULL)
		ORDER BY facility_id IS NULL
		LIMIT 1`, int(day), facilityID)

	var w OperatingWindow
	var facility sql.NullInt64
	var dayOfWeek int
	if err := row.Scan(&w.ID, &facility, &dayOfWeek, &w.OpenTime, &w.CloseTime, &w.IsOpen); err != nil {
		return nil, err
	}
	if facility.Valid {
		w.FacilityID = &facility.Int64
	}
	w.DayOfWeek = time.Weekday(dayOfWeek)
	return &w, nil
}

const bookingColumns = `id, facility_id, user_id, start_time, end_time, status,
	total_price, payment_method_id, customer_name, customer_email,
	customer_phone, is_guest_booking, guest_reference, created_at`

// ListActiveBookings returns the non-cancelled bookings for a facility that
// intersect [from, to), ordered by start time.
func (s *Store) ListActiveBookings(ctx context.Context, facilityID int64, from, to time.Time) ([]Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE facility_id = ? AND status != 'cancelled'
			AND start_time < ? AND end_time > ?
		ORDER BY start_time`,
		facilityID, to.UTC(), from.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// CountActiveOverlapping counts non-cancelled bookings for a facility whose
// interval intersects [start, end). This is the guard's commit-time check
// and must run inside the commit transaction.
func (s *Store) CountActiveOverlapping(ctx context.Context, facilityID int64, start, end time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM bookings
		WHERE facility_id = ? AND status != 'cancelled'
			AND start_time < ? AND end_time > ?`,
		facilityID, end.UTC(), start.UTC()).Scan(&count)
	return count, err
}

func (s *Store) InsertBooking(ctx context.Context, b *Booking) (int64, error) {
	var userID, paymentMethodID sql.NullInt64
	if b.UserID != nil {
		userID = sql.NullInt64{Int64: *b.UserID, Valid: true}
	}
	if b.PaymentMethodID != nil {
		paymentMethodID = sql.NullInt64{Int64: *b.PaymentMethodID, Valid: true}
	}
	var reference sql.NullString
	if b.GuestReference != "" {
		reference = sql.NullString{String: b.GuestReference, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO bookings (
			facility_id, user_id, start_time, end_time, status, total_price,
			payment_method_id, customer_name, customer_email, customer_phone,
			is_guest_booking, guest_reference, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.FacilityID, userID, b.StartTime.UTC(), b.EndTime.UTC(), string(b.Status),
		b.TotalPrice, paymentMethodID, b.CustomerName, b.CustomerEmail,
		b.CustomerPhone, b.IsGuestBooking, reference, b.CreatedAt.UTC())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	return scanBooking(row)
}

// GetGuestBooking requires both halves of the lookup pair to match.
func (s *Store) GetGuestBooking(ctx context.Context, reference, email string) (*Booking, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE is_guest_booking = 1 AND guest_reference = ? AND customer_email = ?`,
		reference, email)
	return scanBooking(row)
}

func (s *Store) ListBookingsForUser(ctx context.Context, userID int64) ([]Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE user_id = ?
		ORDER BY start_time DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListBookingsForFacilityRange returns every booking, cancelled included,
// intersecting [from, to) for the facility. Feeds the admin dashboard.
func (s *Store) ListBookingsForFacilityRange(ctx context.Context, facilityID int64, from, to time.Time) ([]Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE facility_id = ? AND start_time < ? AND end_time > ?
		ORDER BY start_time`,
		facilityID, to.UTC(), from.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// UpdateBookingStatus transitions a booking from one status to another and
// reports how many rows changed. The status guard in the WHERE clause keeps
// concurrent transitions from clobbering each other.
func (s *Store) UpdateBookingStatus(ctx context.Context, id int64, from, to Status) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListStalePending returns pending bookings whose start time is before the
// cutoff. Used by the expiry job.
func (s *Store) ListStalePending(ctx context.Context, cutoff time.Time) ([]Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status = 'pending' AND start_time < ?
		ORDER BY start_time`, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (s *Store) GetPaymentMethod(ctx context.Context, id int64) (*PaymentMethod, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, bank_name, account_number, account_name, is_active
		FROM payment_methods WHERE id = ?`, id)
	var m PaymentMethod
	if err := row.Scan(&m.ID, &m.BankName, &m.AccountNumber, &m.AccountName, &m.IsActive); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListActivePaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bank_name, account_number, account_name, is_active
		FROM payment_methods
		WHERE is_active = 1
		ORDER BY bank_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var methods []PaymentMethod
	for rows.Next() {
		var m PaymentMethod
		if err := rows.Scan(&m.ID, &m.BankName, &m.AccountNumber, &m.AccountName, &m.IsActive); err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

func scanBooking(row rowScanner) (*Booking, error) {
	var b Booking
	var userID, paymentMethodID sql.NullInt64
	var reference sql.NullString
	var status string
	if err := row.Scan(&b.ID, &b.FacilityID, &userID, &b.StartTime, &b.EndTime,
		&status, &b.TotalPrice, &paymentMethodID, &b.CustomerName,
		&b.CustomerEmail, &b.CustomerPhone, &b.IsGuestBooking, &reference,
		&b.CreatedAt); err != nil {
		return nil, err
	}
	if userID.Valid {
		b.UserID = &userID.Int64
	}
	if paymentMethodID.Valid {
		b.PaymentMethodID = &paymentMethodID.Int64
	}
	b.GuestReference = reference.String
	b.Status = Status(status)
	b.StartTime = b.StartTime.UTC()
	b.EndTime = b.EndTime.UTC()
	return &b, nil
}

func collectBookings(rows *sql.Rows) ([]Booking, error) {
	var bookings []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}
