package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"horseregistry/ledger"
	"horseregistry/registry"
)

// NewReceiptCommand creates the receipt command.
func NewReceiptCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "receipt <tx-id>",
		Short: "Show the receipt of a committed transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withLedger(func(l *ledger.Ledger) error {
				receipt, err := l.Receipt(args[0])
				if errors.Is(err, ledger.ErrReceiptNotFound) {
					return fmt.Errorf("%w: %w", registry.ErrNotFound, err)
				}
				if err != nil {
					return err
				}
				return opts.output(cmd).Success(receipt)
			})
		},
	}
}

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Limit  int
	Newest bool
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List committed transactions in commit order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withLedger(func(l *ledger.Ledger) error {
				receipts, err := l.Receipts(opts.Limit, opts.Newest)
				if err != nil {
					return err
				}
				return opts.output(cmd).Success(receipts)
			})
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "maximum number of receipts (0 lists all)")
	cmd.Flags().BoolVar(&opts.Newest, "newest", false, "list newest first")

	return cmd
}
