package cli

import (
	"fmt"
	"strings"

	"github.com/hyperledger/fabric/common/flogging"
	"github.com/spf13/cobra"

	"horseregistry/config"
	"horseregistry/ledger"
	"horseregistry/registry"
)

var logger = flogging.MustGetLogger("horseregistry.cli")

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	As         string
	Format     string // "json" | "text"
	EnvFiles   []string

	cfg config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"json", "text"}

// NewRootCommand creates the root command of registryctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registryctl",
		Short: "Operate a local horse registry ledger",
		Long: `registryctl drives a horse registry on a local, totally ordered ledger.

Every mutating command is one transaction: it commits completely and prints
its receipt, or it is rejected and changes nothing. The acting account is
taken from --as, REGISTRY_ACCOUNT or Registry.Account in the config file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to the YAML config (default $"+config.EnvConfigPath+")")
	cmd.PersistentFlags().StringVar(&opts.As, "as", "", "account submitting the transaction (default $"+config.EnvAccount+")")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "json", "output format (json|text)")
	cmd.PersistentFlags().StringSliceVar(&opts.EnvFiles, "env-file", nil, "dotenv files to load (default ./.env)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewRoleCommand(opts))
	cmd.AddCommand(NewPauseCommand(opts))
	cmd.AddCommand(NewUnpauseCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewAnchorCommand(opts))
	cmd.AddCommand(NewMintCommand(opts))
	cmd.AddCommand(NewTokenOfCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewUpdateURICommand(opts))
	cmd.AddCommand(NewTransferCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewReceiptCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))

	return cmd
}

func (o *RootOptions) load() error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}
	if err := config.LoadDotEnv(o.EnvFiles...); err != nil {
		return WrapExitError(ExitCommandError, "failed to load environment", err)
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if err := flogging.Global.ActivateSpec(cfg.Logging.Spec); err != nil {
		return WrapExitError(ExitCommandError, "invalid Logging.Spec", err)
	}
	o.cfg = cfg
	return nil
}

// caller returns the account transactions are submitted as.
func (o *RootOptions) caller() (string, error) {
	account := strings.TrimSpace(o.As)
	if account == "" {
		account = strings.TrimSpace(o.cfg.Registry.Account)
	}
	if account == "" {
		return "", NewExitError(ExitCommandError, "no account: pass --as or set "+config.EnvAccount)
	}
	return account, nil
}

// withLedger opens the configured ledger for the duration of fn.
func (o *RootOptions) withLedger(fn func(l *ledger.Ledger) error) (err error) {
	store, err := ledger.NewStore(o.cfg.Ledger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open ledger store", err)
	}
	l, err := ledger.Open(store, ledger.WithErrorClassifier(registry.Code))
	if err != nil {
		store.Close()
		return WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	defer func() {
		if cerr := l.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close ledger: %w", cerr)
		}
	}()
	return fn(l)
}

// TxResult is printed by every mutating command.
type TxResult struct {
	Receipt *ledger.Receipt `json:"receipt"`
	Result  any             `json:"result,omitempty"`
}

// submit runs fn as one transaction of the caller and prints its receipt
// and result.
func (o *RootOptions) submit(cmd *cobra.Command, fn func(c *registry.Core, caller string) (any, error)) error {
	caller, err := o.caller()
	if err != nil {
		return err
	}
	return o.withLedger(func(l *ledger.Ledger) error {
		var result any
		receipt, err := l.Submit(cmd.Context(), caller, func(tx *ledger.Tx) error {
			var err error
			result, err = fn(registry.NewCore(tx), caller)
			return err
		})
		if err != nil {
			return err
		}
		return o.output(cmd).Success(TxResult{Receipt: receipt, Result: result})
	})
}

// query runs fn against committed state and prints its result.
func (o *RootOptions) query(cmd *cobra.Command, fn func(c *registry.Core) (any, error)) error {
	return o.withLedger(func(l *ledger.Ledger) error {
		var result any
		err := l.Query(func(tx *ledger.Tx) error {
			var err error
			result, err = fn(registry.NewCore(tx))
			return err
		})
		if err != nil {
			return err
		}
		return o.output(cmd).Success(result)
	})
}

func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
