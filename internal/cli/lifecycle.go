package cli

import (
	"github.com/spf13/cobra"

	"horseregistry/ledger"
	"horseregistry/model"
	"horseregistry/registry"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Admin          string
	MetadataPolicy string
	SchemaVersion  string
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the registry and appoint the default admin",
		Long: `Initialize the registry once. The admin receives DEFAULT_ADMIN_ROLE;
registrar and pauser roles start empty. Flags override the Registry section
of the config file.

Example:
  registryctl init --as 0xDeployer --admin 0xAdmin --policy registrar`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := opts.cfg.Registry.Settings()
			if opts.Admin != "" {
				settings.Admin = opts.Admin
			}
			if opts.MetadataPolicy != "" {
				settings.MetadataPolicy = model.MetadataPolicy(opts.MetadataPolicy)
			}
			if opts.SchemaVersion != "" {
				settings.SchemaVersion = opts.SchemaVersion
			}
			return opts.submit(cmd, func(c *registry.Core, caller string) (any, error) {
				return c.Initialize(caller, settings)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Admin, "admin", "", "default admin account (default: the caller)")
	cmd.Flags().StringVar(&opts.MetadataPolicy, "policy", "", "metadata update policy (registrar|owner|registrar-or-owner)")
	cmd.Flags().StringVar(&opts.SchemaVersion, "schema", "", "anchor schema version")

	return cmd
}

// NewPauseCommand creates the pause command.
func NewPauseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Halt token creation, metadata updates and transfers (PAUSER_ROLE)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.submit(cmd, func(c *registry.Core, caller string) (any, error) {
				return c.Pause.Pause(caller)
			})
		},
	}
}

// NewUnpauseCommand creates the unpause command.
func NewUnpauseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unpause",
		Short: "Resume a paused registry (PAUSER_ROLE)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.submit(cmd, func(c *registry.Core, caller string) (any, error) {
				return c.Pause.Unpause(caller)
			})
		},
	}
}

// Status summarizes the registry.
type Status struct {
	Height      uint64                  `json:"height"`
	Initialized bool                    `json:"initialized"`
	Settings    *model.RegistrySettings `json:"settings,omitempty"`
	Paused      bool                    `json:"paused"`
	TotalSupply uint64                  `json:"totalSupply"`
	Roles       []model.RoleInfo        `json:"roles"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show ledger height, settings, pause state and role counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withLedger(func(l *ledger.Ledger) error {
				status := Status{Height: l.Height(), Roles: []model.RoleInfo{}}
				err := l.Query(func(tx *ledger.Tx) error {
					c := registry.NewCore(tx)
					settings, err := c.Settings()
					switch {
					case registry.IsNotFound(err):
					case err != nil:
						return err
					default:
						status.Initialized = true
						status.Settings = settings
					}
					if status.Paused, err = c.Pause.Paused(); err != nil {
						return err
					}
					if status.TotalSupply, err = c.TotalSupply(); err != nil {
						return err
					}
					for _, r := range registry.Roles {
						info, err := c.Roles.Info(r)
						if err != nil {
							return err
						}
						status.Roles = append(status.Roles, *info)
					}
					return nil
				})
				if err != nil {
					return err
				}
				return opts.output(cmd).Success(status)
			})
		},
	}
}
