package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/ledgerbook/internal/adapter/http/dto"
	"github.com/iho/ledgerbook/internal/domain"
)

func scheduleCmd() *cobra.Command {
	var req dto.ScheduleRequest
	var output string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print an amortization schedule without touching the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := req.ToScheduleParams()
			if err != nil {
				return err
			}
			rows, err := domain.GenerateSchedule(params)
			if err != nil {
				return err
			}

			switch output {
			case "json":
				return printJSON(cmd.OutOrStdout(), dto.ScheduleFromRows(rows))
			case "table":
				return printSchedule(cmd.OutOrStdout(), rows, params.Currency)
			}
			return fmt.Errorf("unknown output format %q", output)
		},
	}

	cmd.Flags().StringVar(&req.Principal, "principal", "", "Loan principal")
	cmd.Flags().StringVar(&req.AnnualRate, "rate", "0", "Annual interest rate as a fraction (0.12 for 12%)")
	cmd.Flags().IntVar(&req.TenorMonths, "tenor", 12, "Loan tenor in months")
	cmd.Flags().StringVar(&req.Frequency, "frequency", "monthly", "Payment frequency")
	cmd.Flags().StringVar(&req.Method, "method", "annuity", "Schedule method: annuity, flat or effective")
	cmd.Flags().StringVar(&req.StartDate, "start", "", "Disbursement date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.Balloon, "balloon", "", "Balloon amount due with the last installment")
	cmd.Flags().StringVar(&req.Currency, "currency", "USD", "Loan currency")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table or json")
	_ = cmd.MarkFlagRequired("principal")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func printSchedule(w io.Writer, rows []domain.ScheduleRow, currency string) error {
	places := domain.MinorUnits(currency)
	var interest, total decimal.Decimal

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "NO\tDUE DATE\tPRINCIPAL\tINTEREST\tTOTAL\tOUTSTANDING\t")
	for _, row := range rows {
		interest = interest.Add(row.Interest)
		total = total.Add(row.Total)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t\n",
			row.InstallmentNo,
			domain.FormatDate(row.DueDate),
			row.Principal.StringFixed(places),
			row.Interest.StringFixed(places),
			row.Total.StringFixed(places),
			row.Outstanding.StringFixed(places),
		)
	}
	fmt.Fprintf(tw, "\tTOTAL\t%s\t%s\t%s\t\t\n",
		domain.SumPrincipal(rows).StringFixed(places),
		interest.StringFixed(places),
		total.StringFixed(places),
	)
	return tw.Flush()
}
