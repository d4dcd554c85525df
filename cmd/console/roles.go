package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *cli) rolesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Inspect roles",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List roles with their permissions and menus",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			roles, err := c.app.Client().Roles(ctx)
			if err != nil {
				return describe(err)
			}

			w := tabwriter.NewWriter(c.env.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tFLAGS\tMENUS\tPERMISSIONS")
			for _, role := range roles {
				var flags []string
				if role.IsDefault {
					flags = append(flags, "default")
				}
				if role.IsSystem {
					flags = append(flags, "system")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
					role.ID, role.Name, dash(strings.Join(flags, ",")), len(role.MenuIDs), dash(strings.Join(role.PermissionIDs, ",")))
			}
			return w.Flush()
		},
	})
	return cmd
}

func (c *cli) permissionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Inspect the permission catalogue",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List permissions grouped by module",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			groups, err := c.app.Client().PermissionGroups(ctx)
			if err != nil {
				return describe(err)
			}

			modules := make([]string, 0, len(groups))
			for module := range groups {
				modules = append(modules, module)
			}
			sort.Strings(modules)

			eval := c.app.Evaluator()
			for _, module := range modules {
				c.printf("%s\n", module)
				for _, perm := range groups[module] {
					mark := " "
					if eval.HasPermission(perm.ID) {
						mark = "*"
					}
					c.printf("  %s %-22s %s\n", mark, perm.ID, perm.Description)
				}
			}
			return nil
		},
	})
	return cmd
}
