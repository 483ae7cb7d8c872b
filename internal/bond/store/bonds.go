package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/structpricer/internal/database/repositories"
	"github.com/quantfold/structpricer/internal/payoff"
)

// ScheduleSpec is the persisted, JSON-serializable form of a bond's
// schedule conventions. Dates use YYYY-MM-DD.
type ScheduleSpec struct {
	EffectiveDate         string `json:"effective_date"`
	TerminationDate       string `json:"termination_date"`
	TenorLength           int    `json:"tenor_length"`
	TenorUnit             string `json:"tenor_unit"`
	Rule                  string `json:"rule"`
	InArrears             bool   `json:"in_arrears"`
	NoticeDays            int    `json:"notice_days"`
	DayCount              string `json:"day_count"`
	CalendarConvention    string `json:"calendar_convention"`
	PaymentConvention     string `json:"payment_convention"`
	TerminationConvention string `json:"termination_convention"`
	FirstDate             string `json:"first_date,omitempty"`
	NextToLastDate        string `json:"next_to_last_date,omitempty"`
	Redemption            bool   `json:"redemption"`
	MaturityNoticeDays    int    `json:"maturity_notice_days"`
	// CallDates marks Bermudan early-termination rights; each entry
	// must match a coupon period's event date.
	CallDates []string `json:"call_dates,omitempty"`
}

// Bond is a persisted bond definition.
type Bond struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Currency    string        `json:"currency"`
	LegCurrency string        `json:"leg_currency"`
	Model       string        `json:"model"`
	Schedule    ScheduleSpec  `json:"schedule"`
	Payoffs     []payoff.Spec `json:"payoffs"`
	CreatedAt   time.Time     `json:"created_at"`
}

// BondRepository handles bond definition persistence.
type BondRepository struct {
	*repositories.BaseRepository
}

// NewBondRepository creates a new bond repository.
func NewBondRepository(db *sql.DB, log zerolog.Logger) *BondRepository {
	return &BondRepository{
		BaseRepository: repositories.NewBase(db, log.With().Str("repo", "bonds").Logger()),
	}
}

// Create inserts a bond definition.
func (r *BondRepository) Create(b *Bond) error {
	scheduleJSON, err := json.Marshal(b.Schedule)
	if err != nil {
		return fmt.Errorf("failed to encode schedule: %w", err)
	}
	payoffsJSON, err := json.Marshal(b.Payoffs)
	if err != nil {
		return fmt.Errorf("failed to encode payoffs: %w", err)
	}

	query := `
		INSERT INTO bonds (id, name, currency, leg_currency, model, schedule_json, payoffs_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.DB().Exec(
		query,
		b.ID,
		b.Name,
		b.Currency,
		b.LegCurrency,
		b.Model,
		string(scheduleJSON),
		string(payoffsJSON),
		time.Now().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return fmt.Errorf("failed to insert bond: %w", err)
	}
	return nil
}

// GetByID loads one bond definition.
func (r *BondRepository) GetByID(id string) (*Bond, error) {
	query := `
		SELECT id, name, currency, leg_currency, model, schedule_json, payoffs_json, created_at
		FROM bonds WHERE id = ?
	`
	return r.scanBond(r.DB().QueryRow(query, id))
}

// List loads all bond definitions ordered by creation time.
func (r *BondRepository) List() ([]*Bond, error) {
	query := `
		SELECT id, name, currency, leg_currency, model, schedule_json, payoffs_json, created_at
		FROM bonds ORDER BY created_at
	`
	rows, err := r.DB().Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query bonds: %w", err)
	}
	defer rows.Close()

	var out []*Bond
	for rows.Next() {
		b, err := r.scanBond(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *BondRepository) scanBond(row rowScanner) (*Bond, error) {
	var b Bond
	var scheduleJSON, payoffsJSON, createdAt string
	err := row.Scan(&b.ID, &b.Name, &b.Currency, &b.LegCurrency, &b.Model, &scheduleJSON, &payoffsJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bond not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan bond: %w", err)
	}
	if err := json.Unmarshal([]byte(scheduleJSON), &b.Schedule); err != nil {
		return nil, fmt.Errorf("failed to decode schedule for bond %s: %w", b.ID, err)
	}
	if err := json.Unmarshal([]byte(payoffsJSON), &b.Payoffs); err != nil {
		return nil, fmt.Errorf("failed to decode payoffs for bond %s: %w", b.ID, err)
	}
	if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
		b.CreatedAt = t
	}
	return &b, nil
}
