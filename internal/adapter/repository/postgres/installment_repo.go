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

const installmentColumns = `id, loan_id, account_id, installment_no, due_date, principal_amount,
	interest_amount, fee_amount, total_amount, status, transfer_id, paid_on,
	version, created_at, updated_at`

var installmentTable = pgx.Identifier{"loan_installments"}

var installmentCopyColumns = []string{
	"id", "loan_id", "account_id", "installment_no", "due_date", "principal_amount",
	"interest_amount", "fee_amount", "total_amount", "status", "transfer_id", "paid_on",
	"version", "created_at", "updated_at",
}

const getInstallmentByID = `SELECT ` + installmentColumns + ` FROM loan_installments WHERE id = $1`

const getInstallmentByIDForUpdate = getInstallmentByID + ` FOR UPDATE`

const listInstallmentsByLoan = `SELECT ` + installmentColumns + ` FROM loan_installments
WHERE loan_id = $1 ORDER BY installment_no`

const listInstallmentsByLoanForUpdate = listInstallmentsByLoan + ` FOR UPDATE`

const updateInstallment = `UPDATE loan_installments
SET principal_amount = $3, interest_amount = $4, fee_amount = $5, total_amount = $6,
	status = $7, transfer_id = $8, paid_on = $9, updated_at = $10, version = version + 1
WHERE id = $1 AND version = $2`

// InstallmentRepository implements usecase.InstallmentRepository.
type InstallmentRepository struct {
	db dbtx
}

// NewInstallmentRepository creates a new InstallmentRepository.
func NewInstallmentRepository(pool *pgxpool.Pool) *InstallmentRepository {
	return &InstallmentRepository{db: pool}
}

// CreateBatch stores a generated plan with a single COPY.
func (r *InstallmentRepository) CreateBatch(ctx context.Context, tx usecase.Transaction, installments []*domain.LoanInstallment) error {
	if len(installments) == 0 {
		return nil
	}

	_, err := queriesFor(r.db, tx).CopyFrom(ctx, installmentTable, installmentCopyColumns,
		pgx.CopyFromSlice(len(installments), func(i int) ([]any, error) {
			inst := installments[i]
			return []any{
				inst.ID,
				inst.LoanID,
				inst.AccountID,
				int32(inst.InstallmentNo),
				timeToPgDate(inst.DueDate),
				decimalToNumeric(inst.PrincipalAmount),
				decimalToNumeric(inst.InterestAmount),
				decimalToNumeric(inst.FeeAmount),
				decimalToNumeric(inst.TotalAmount),
				string(inst.Status),
				stringPtrToText(inst.TransferID),
				timePtrToPgDate(inst.PaidOn),
				inst.Version,
				timeToPgTimestamptz(inst.CreatedAt),
				timeToPgTimestamptz(inst.UpdatedAt),
			}, nil
		}))

	return err
}

// GetByID retrieves an installment by ID.
func (r *InstallmentRepository) GetByID(ctx context.Context, id string) (*domain.LoanInstallment, error) {
	return scanInstallment(r.db.QueryRow(ctx, getInstallmentByID, id))
}

// GetByIDForUpdate retrieves an installment with a FOR UPDATE lock.
func (r *InstallmentRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LoanInstallment, error) {
	return scanInstallment(queriesFor(r.db, tx).QueryRow(ctx, getInstallmentByIDForUpdate, id))
}

// ListByLoan returns the loan's installments ordered by number.
func (r *InstallmentRepository) ListByLoan(ctx context.Context, loanID string) ([]*domain.LoanInstallment, error) {
	rows, err := r.db.Query(ctx, listInstallmentsByLoan, loanID)
	if err != nil {
		return nil, err
	}
	return collectInstallments(rows)
}

// ListByLoanForUpdate locks and returns the loan's installments.
func (r *InstallmentRepository) ListByLoanForUpdate(ctx context.Context, tx usecase.Transaction, loanID string) ([]*domain.LoanInstallment, error) {
	rows, err := queriesFor(r.db, tx).Query(ctx, listInstallmentsByLoanForUpdate, loanID)
	if err != nil {
		return nil, err
	}
	return collectInstallments(rows)
}

// Update stores amounts, status and settlement of an installment.
func (r *InstallmentRepository) Update(ctx context.Context, tx usecase.Transaction, installment *domain.LoanInstallment) error {
	tag, err := queriesFor(r.db, tx).Exec(ctx, updateInstallment,
		installment.ID,
		installment.Version,
		decimalToNumeric(installment.PrincipalAmount),
		decimalToNumeric(installment.InterestAmount),
		decimalToNumeric(installment.FeeAmount),
		decimalToNumeric(installment.TotalAmount),
		string(installment.Status),
		stringPtrToText(installment.TransferID),
		timePtrToPgDate(installment.PaidOn),
		timeToPgTimestamptz(installment.UpdatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOptimisticLock
	}
	installment.Version++
	return nil
}

func collectInstallments(rows pgx.Rows) ([]*domain.LoanInstallment, error) {
	defer rows.Close()

	var installments []*domain.LoanInstallment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		installments = append(installments, inst)
	}

	return installments, rows.Err()
}

func scanInstallment(row pgx.Row) (*domain.LoanInstallment, error) {
	var (
		i                               domain.LoanInstallment
		no                              int32
		dueDate, paidOn                 pgtype.Date
		principal, interest, fee, total pgtype.Numeric
		status                          string
		transferID                      pgtype.Text
	)

	err := row.Scan(
		&i.ID, &i.LoanID, &i.AccountID, &no, &dueDate, &principal,
		&interest, &fee, &total, &status, &transferID, &paidOn,
		&i.Version, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInstallmentNotFound
		}
		return nil, err
	}

	i.InstallmentNo = int(no)
	i.DueDate = pgDateToTime(dueDate)
	i.PrincipalAmount = numericToDecimal(principal)
	i.InterestAmount = numericToDecimal(interest)
	i.FeeAmount = numericToDecimal(fee)
	i.TotalAmount = numericToDecimal(total)
	i.Status = domain.InstallmentStatus(status)
	i.TransferID = textToStringPtr(transferID)
	i.PaidOn = pgDateToTimePtr(paidOn)

	return &i, nil
}
