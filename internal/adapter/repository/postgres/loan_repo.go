package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

const loanColumns = `id, account_id, principal, annual_rate, tenor_months, frequency, method,
	start_date, balloon_amount, currency, interest_category, extra_principal_paid,
	version, created_at, updated_at`

const createLoan = `INSERT INTO loans (` + loanColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

const getLoanByID = `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`

const getLoanByIDForUpdate = getLoanByID + ` FOR UPDATE`

const updateLoan = `UPDATE loans
SET principal = $3, extra_principal_paid = $4, updated_at = $5, version = version + 1
WHERE id = $1 AND version = $2`

// LoanRepository implements usecase.LoanRepository.
type LoanRepository struct {
	db dbtx
}

// NewLoanRepository creates a new LoanRepository.
func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{db: pool}
}

// Create creates a new loan.
func (r *LoanRepository) Create(ctx context.Context, tx usecase.Transaction, loan *domain.Loan) error {
	_, err := queriesFor(r.db, tx).Exec(ctx, createLoan,
		loan.ID,
		loan.AccountID,
		decimalToNumeric(loan.Principal),
		decimalToNumeric(loan.AnnualRate),
		int32(loan.TenorMonths),
		string(loan.Frequency),
		string(loan.Method),
		timeToPgDate(loan.StartDate),
		decimalToNumeric(loan.BalloonAmount),
		loan.Currency,
		loan.InterestCategory,
		decimalToNumeric(loan.ExtraPrincipalPaid),
		loan.Version,
		timeToPgTimestamptz(loan.CreatedAt),
		timeToPgTimestamptz(loan.UpdatedAt),
	)
	return err
}

// GetByID retrieves a loan by ID.
func (r *LoanRepository) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	return scanLoan(r.db.QueryRow(ctx, getLoanByID, id))
}

// GetByIDForUpdate retrieves a loan with a FOR UPDATE lock.
func (r *LoanRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Loan, error) {
	return scanLoan(queriesFor(r.db, tx).QueryRow(ctx, getLoanByIDForUpdate, id))
}

// Update stores the loan's mutable amounts. It fails with
// domain.ErrOptimisticLock when the row changed since it was read.
func (r *LoanRepository) Update(ctx context.Context, tx usecase.Transaction, loan *domain.Loan) error {
	tag, err := queriesFor(r.db, tx).Exec(ctx, updateLoan,
		loan.ID,
		loan.Version,
		decimalToNumeric(loan.Principal),
		decimalToNumeric(loan.ExtraPrincipalPaid),
		timeToPgTimestamptz(loan.UpdatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOptimisticLock
	}
	loan.Version++
	return nil
}

func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var (
		l                                   domain.Loan
		principal, rate, balloon, extraPaid pgtype.Numeric
		tenor                               int32
		frequency, method                   string
		startDate                           pgtype.Date
	)

	err := row.Scan(
		&l.ID, &l.AccountID, &principal, &rate, &tenor, &frequency, &method,
		&startDate, &balloon, &l.Currency, &l.InterestCategory, &extraPaid,
		&l.Version, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}

	l.Principal = numericToDecimal(principal)
	l.AnnualRate = numericToDecimal(rate)
	l.TenorMonths = int(tenor)
	l.Frequency = domain.Frequency(frequency)
	l.Method = domain.ScheduleMethod(method)
	l.StartDate = pgDateToTime(startDate)
	l.BalloonAmount = numericToDecimal(balloon)
	l.ExtraPrincipalPaid = numericToDecimal(extraPaid)

	return &l, nil
}
