package cli

import (
	"github.com/spf13/cobra"

	"horseregistry/model"
	"horseregistry/registry"
)

// RoleChange reports the outcome of an idempotent role operation.
type RoleChange struct {
	Role    string `json:"role"`
	RoleID  string `json:"roleId"`
	Account string `json:"account"`
	Changed bool   `json:"changed"` // False when the membership already was as requested
}

// NewRoleCommand creates the role command group.
func NewRoleCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Grant, revoke and inspect roles",
		Long: `Grant, revoke and inspect roles. Roles are named DEFAULT_ADMIN_ROLE,
REGISTRAR_ROLE and PAUSER_ROLE; short names (admin, registrar, pauser) and
0x-hex role ids are accepted too.`,
	}
	cmd.AddCommand(newRoleGrantCommand(opts))
	cmd.AddCommand(newRoleRevokeCommand(opts))
	cmd.AddCommand(newRoleRenounceCommand(opts))
	cmd.AddCommand(newRoleHasCommand(opts))
	cmd.AddCommand(newRoleAdminCommand(opts))
	cmd.AddCommand(newRoleSetAdminCommand(opts))
	cmd.AddCommand(newRoleListCommand(opts))
	return cmd
}

func newRoleGrantCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "grant <role> <account>",
		Short: "Grant a role; reports changed=false when it was already held",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := registry.ParseRole(args[0])
			if err != nil {
				return err
			}
			return opts.submit(cmd, func(c *registry.Core, caller string) (any, error) {
				changed, err := c.Roles.GrantRole(caller, role, args[1])
				if err != nil {
					return nil, err
				}
				if !changed {
					logger.Infof("'%s' already holds %s", args[1], role)
				}
				return RoleChange{Role: role.Name(), RoleID: role.Hex(), Account: args[1], Changed: changed}, nil
			})
		},
	}
}

func newRoleRevokeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <role> <account>",
		Short: "Revoke a role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := registry.ParseRole(args[0])
			if err != nil {
				return err
			}
			return opts.submit(cmd, func(c *registry.Core, caller string) (any, error) {
				changed, err := c.Roles.RevokeRole(caller, role, args[1])
				if err != nil {
					return nil, err
				}
				return RoleChange{Role: role.Name(), RoleID: role.Hex(), Account: args[1], Changed: changed}, nil
			})
		},
	}
}

func newRoleRenounceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "renounce <role>",
		Short: "Give up a role held by the caller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := registry.ParseRole(args[0])
			if err != nil {
				return err
			}
			return opts.submit(cmd, func(c *registry.Core, caller string) (any, error) {
				changed, err := c.Roles.RenounceRole(caller, role)
				if err != nil {
					return nil, err
				}
				return RoleChange{Role: role.Name(), RoleID: role.Hex(), Account: caller, Changed: changed}, nil
			})
		},
	}
}

func newRoleHasCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "has <role> <account>",
		Short: "Report whether an account holds a role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := registry.ParseRole(args[0])
			if err != nil {
				return err
			}
			return opts.query(cmd, func(c *registry.Core) (any, error) {
				has, err := c.Roles.HasRole(role, args[1])
				if err != nil {
					return nil, err
				}
				return map[string]any{"role": role.Name(), "account": args[1], "hasRole": has}, nil
			})
		},
	}
}

func newRoleAdminCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "admin <role>",
		Short: "Show the role that administers a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := registry.ParseRole(args[0])
			if err != nil {
				return err
			}
			return opts.query(cmd, func(c *registry.Core) (any, error) {
				return c.Roles.Info(role)
			})
		},
	}
}

func newRoleSetAdminCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-admin <role> <admin-role>",
		Short: "Change the role that administers a role (DEFAULT_ADMIN_ROLE)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := registry.ParseRole(args[0])
			if err != nil {
				return err
			}
			admin, err := registry.ParseRole(args[1])
			if err != nil {
				return err
			}
			return opts.submit(cmd, func(c *registry.Core, caller string) (any, error) {
				return c.Roles.SetRoleAdmin(caller, role, admin)
			})
		},
	}
}

func newRoleListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [account]",
		Short: "List every role, or the roles an account holds",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.query(cmd, func(c *registry.Core) (any, error) {
				if len(args) == 1 {
					held, err := c.Roles.RolesOf(args[0])
					if err != nil {
						return nil, err
					}
					names := make([]string, 0, len(held))
					for _, r := range held {
						names = append(names, r.Name())
					}
					return model.AccountRoles{Account: args[0], Roles: names}, nil
				}
				infos := []model.RoleInfo{}
				for _, r := range registry.Roles {
					info, err := c.Roles.Info(r)
					if err != nil {
						return nil, err
					}
					infos = append(infos, *info)
				}
				return infos, nil
			})
		},
	}
}
