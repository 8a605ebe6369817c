package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"horseregistry/anchor"
	"horseregistry/registry"
)

// AnchorOutput is what the anchor command derives from a record.
type AnchorOutput struct {
	Schema          string `json:"schema"`
	Canonical       string `json:"canonical"`
	ContentHash     string `json:"contentHash"`
	SecretFieldHash string `json:"secretFieldHash"`
}

func readDocument(path string) (anchor.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read record", err)
	}
	doc, err := anchor.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", registry.ErrInvalidInput, path, err)
	}
	return doc, nil
}

func parseTokenID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: token id must be a positive integer, got %q", registry.ErrInvalidInput, s)
	}
	return id, nil
}

func anchorOutput(a *anchor.Anchors) AnchorOutput {
	return AnchorOutput{
		Schema:          a.Schema,
		Canonical:       string(a.Canonical),
		ContentHash:     a.ContentHash.Hex(),
		SecretFieldHash: a.SecretFieldHash.Hex(),
	}
}

// AnchorOptions holds flags for the anchor command.
type AnchorOptions struct {
	*RootOptions
	SchemaVersion string
}

// NewAnchorCommand creates the anchor command. It touches no ledger.
func NewAnchorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnchorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "anchor <record.json>",
		Short: "Compute the canonical form and fingerprints of a horse record",
		Long: `Compute the canonical form, contentHash and secretFieldHash of a horse
record without touching the ledger. Use it to prepare a CreateToken call
against a Fabric network.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := opts.SchemaVersion
			if version == "" {
				version = opts.cfg.Registry.SchemaVersion
			}
			schema, err := anchor.LookupSchema(version)
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown schema", err)
			}
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			anchors, err := anchor.Anchor(schema, doc)
			if err != nil {
				return fmt.Errorf("%w: %w", registry.ErrInvalidInput, err)
			}
			return opts.output(cmd).Success(anchorOutput(anchors))
		},
	}

	cmd.Flags().StringVar(&opts.SchemaVersion, "schema", "", "anchor schema version (default Registry.SchemaVersion)")

	return cmd
}

// MintOptions holds flags for the mint command.
type MintOptions struct {
	*RootOptions
	ExternalID  string
	Owner       string
	MetadataURI string
}

// MintResult pairs the created token with the anchors derived for it.
type MintResult struct {
	Token   any          `json:"token"`
	Anchors AnchorOutput `json:"anchors"`
}

// NewMintCommand creates the mint command.
func NewMintCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MintOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mint <record.json>",
		Short: "Anchor a horse record and create its token (REGISTRAR_ROLE)",
		Long: `Anchor a horse record under the registry's schema and create the token
bound to its external id, all in one transaction.

Example:
  registryctl mint horse.json --as 0xRegistrar --external-id HR-1001 --owner 0xOwner --uri ipfs://meta`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			return opts.submit(cmd, func(c *registry.Core, caller string) (any, error) {
				settings, err := c.Settings()
				if err != nil {
					return nil, err
				}
				schema, err := anchor.LookupSchema(settings.SchemaVersion)
				if err != nil {
					return nil, err
				}
				anchors, err := anchor.Anchor(schema, doc)
				if err != nil {
					return nil, fmt.Errorf("%w: %w", registry.ErrInvalidInput, err)
				}
				token, err := c.Create(caller, registry.CreateRequest{
					Owner:           opts.Owner,
					ExternalID:      opts.ExternalID,
					ContentHash:     anchors.ContentHash,
					SecretFieldHash: anchors.SecretFieldHash,
					MetadataURI:     opts.MetadataURI,
				})
				if err != nil {
					return nil, err
				}
				return MintResult{Token: token, Anchors: anchorOutput(anchors)}, nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.ExternalID, "external-id", "", "primary key of the off-ledger record (required)")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "account receiving the token (required)")
	cmd.Flags().StringVar(&opts.MetadataURI, "uri", "", "metadata URI")
	_ = cmd.MarkFlagRequired("external-id")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

// NewTokenOfCommand creates the token-of command.
func NewTokenOfCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token-of <external-id>",
		Short: "Resolve an external record id to its token id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.query(cmd, func(c *registry.Core) (any, error) {
				id, err := c.TokenOf(args[0])
				if err != nil {
					return nil, err
				}
				return map[string]any{"externalId": args[0], "tokenId": id}, nil
			})
		},
	}
}

// NewTokenCommand creates the token command.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token <token-id>",
		Short: "Show a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			return opts.query(cmd, func(c *registry.Core) (any, error) {
				return c.Token(id)
			})
		},
	}
}

// NewUpdateURICommand creates the update-uri command.
func NewUpdateURICommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update-uri <token-id> <uri>",
		Short: "Replace a token's metadata URI, subject to the metadata policy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			return opts.submit(cmd, func(c *registry.Core, caller string) (any, error) {
				return c.UpdateMetadataURI(caller, id, args[1])
			})
		},
	}
}

// NewTransferCommand creates the transfer command.
func NewTransferCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <token-id> <to>",
		Short: "Transfer a token owned by the caller",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			return opts.submit(cmd, func(c *registry.Core, caller string) (any, error) {
				return c.Transfer(caller, id, args[1])
			})
		},
	}
}

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Secrets []string
}

// NewVerifyCommand creates the verify command. A mismatch is a result, not
// an error; the exit code stays 0.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <token-id> [record.json]",
		Short: "Check a record, or its sensitive values, against a token's anchors",
		Long: `Check a full record against the token's contentHash, or with --secret
check only the sensitive values, in schema order, against its secretFieldHash.

Examples:
  registryctl verify 1 horse.json
  registryctl verify 1 --secret 985112000123456`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			if len(opts.Secrets) > 0 {
				if len(args) == 2 {
					return NewExitError(ExitCommandError, "pass either a record or --secret, not both")
				}
				return opts.query(cmd, func(c *registry.Core) (any, error) {
					return c.VerifySecretField(id, opts.Secrets...)
				})
			}
			if len(args) != 2 {
				return NewExitError(ExitCommandError, "a record file or --secret is required")
			}
			doc, err := readDocument(args[1])
			if err != nil {
				return err
			}
			return opts.query(cmd, func(c *registry.Core) (any, error) {
				return c.Verify(id, doc)
			})
		},
	}

	cmd.Flags().StringArrayVar(&opts.Secrets, "secret", nil, "sensitive field value; repeat in schema order")

	return cmd
}
