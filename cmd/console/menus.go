package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/charlesng35/hrconsole/internal/client"
	"github.com/charlesng35/hrconsole/internal/forms"
	"github.com/charlesng35/hrconsole/internal/menutree"
)

func (c *cli) menusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "menus",
		Short: "Inspect and edit the menu hierarchy",
	}
	cmd.AddCommand(
		c.menusTreeCommand(),
		c.menusListCommand(),
		c.menusCreateCommand(),
		c.menusUpdateCommand(),
		c.menusDeleteCommand(),
		c.menusAccessCommand(),
		c.menusRoleAccessCommand("grant", true),
		c.menusRoleAccessCommand("revoke", false),
		c.menusParentsCommand(),
	)
	return cmd
}

func (c *cli) menusTreeCommand() *cobra.Command {
	var (
		search   string
		inactive bool
		visible  bool
	)
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the menu tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			var (
				forest menutree.Forest
				report menutree.Report
				err    error
			)
			if visible {
				forest, err = c.app.Client().VisibleMenus(ctx)
				forest = menutree.Filter(forest, search, true)
			} else {
				forest, report, err = c.app.Client().MenuTree(ctx, client.MenuQuery{Search: search, IncludeInactive: inactive})
			}
			if err != nil {
				return describe(err)
			}

			if len(forest) == 0 {
				c.printf("no menus\n")
				return nil
			}
			c.printTree(forest)
			if !report.Clean() {
				c.printf("\nrepaired: orphans=%v self_parents=%v cycles=%v duplicates=%v\n",
					report.Orphans, report.SelfParents, report.Cycles, report.Duplicates)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "keep menus whose name, label or url contains the text")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "include inactive menus")
	cmd.Flags().BoolVar(&visible, "visible", false, "only the menus the signed in user may open")
	return cmd
}

func (c *cli) printTree(forest menutree.Forest) {
	forest.Walk(func(n *menutree.Node) bool {
		state := ""
		if !n.Active {
			state = " (inactive)"
		}
		c.printf("%s%s [%d] %s%s\n", strings.Repeat("  ", n.Level), n.Label, n.ID, n.URL, state)
		return true
	})
}

func (c *cli) menusListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List menus with their grants",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			menus, err := c.app.Client().Menus(ctx, client.MenuQuery{WithRoles: true, WithPermissions: true})
			if err != nil {
				return describe(err)
			}

			w := tabwriter.NewWriter(c.env.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tLABEL\tPARENT\tORDER\tACTIVE\tROLES\tPERMISSIONS")
			for _, menu := range menus {
				parent := "-"
				if menu.ParentID != nil {
					parent = strconv.FormatUint(uint64(*menu.ParentID), 10)
				}
				roles := make([]string, 0, len(menu.Roles))
				for _, role := range menu.Roles {
					roles = append(roles, role.Name)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%t\t%s\t%s\n",
					menu.ID, menu.Name, menu.Label, parent, menu.Order, menu.Active,
					dash(strings.Join(roles, ",")), dash(strings.Join(menu.PermissionIDs, ",")))
			}
			return w.Flush()
		},
	}
	return cmd
}

// menuFlags binds the editable fields of a menu. Only flags the user set are applied.
type menuFlags struct {
	name, label, url, icon string
	parent                 uint
	root                   bool
	order                  int
	active                 bool
	roles                  []uint
	permissions            []string
}

func (f *menuFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.name, "name", "", "unique system name")
	flags.StringVar(&f.label, "label", "", "display label")
	flags.StringVar(&f.url, "url", "", "route, e.g. /reports")
	flags.StringVar(&f.icon, "icon", "", "icon reference")
	flags.UintVar(&f.parent, "parent", 0, "parent menu id")
	flags.BoolVar(&f.root, "root", false, "move the menu to the top level")
	flags.IntVar(&f.order, "order", 0, "position among siblings")
	flags.BoolVar(&f.active, "active", true, "whether the menu is shown")
	flags.UintSliceVar(&f.roles, "roles", nil, "role ids granted access (replaces the current set)")
	flags.StringSliceVar(&f.permissions, "permissions", nil, "permission ids granted access (replaces the current set)")
}

// apply folds the set flags into the form state, one Change per field.
func (f *menuFlags) apply(cmd *cobra.Command, state forms.State[forms.MenuValues]) forms.State[forms.MenuValues] {
	changed := cmd.Flags().Changed
	set := func(field string, update func(forms.MenuValues) forms.MenuValues) {
		state = forms.Reduce(state, forms.Change[forms.MenuValues]{Field: field, Update: update})
	}

	if changed("name") {
		set("name", func(v forms.MenuValues) forms.MenuValues { v.Name = f.name; return v })
	}
	if changed("label") {
		set("label", func(v forms.MenuValues) forms.MenuValues { v.Label = f.label; return v })
	}
	if changed("url") {
		set("url", func(v forms.MenuValues) forms.MenuValues { v.URL = f.url; return v })
	}
	if changed("icon") {
		set("icon", func(v forms.MenuValues) forms.MenuValues { v.Icon = f.icon; return v })
	}
	if changed("parent") {
		parent := f.parent
		set("parent_id", func(v forms.MenuValues) forms.MenuValues { v.ParentID = &parent; return v })
	}
	if changed("root") && f.root {
		set("parent_id", func(v forms.MenuValues) forms.MenuValues { v.ParentID = nil; return v })
	}
	if changed("order") {
		set("menu_order", func(v forms.MenuValues) forms.MenuValues { v.MenuOrder = f.order; return v })
	}
	if changed("active") {
		set("is_active", func(v forms.MenuValues) forms.MenuValues { v.IsActive = f.active; return v })
	}
	if changed("roles") {
		roles := append([]uint{}, f.roles...)
		set("role_ids", func(v forms.MenuValues) forms.MenuValues { v.RoleIDs = roles; return v })
	}
	if changed("permissions") {
		perms := append([]string{}, f.permissions...)
		set("permission_ids", func(v forms.MenuValues) forms.MenuValues { v.PermissionIDs = perms; return v })
	}
	return state
}

// submitMenu runs the form submit cycle around save and prints the result.
func (c *cli) submitMenu(state forms.State[forms.MenuValues], save func(client.MenuInput) (*client.Menu, error)) error {
	state = forms.Reduce(state, forms.SubmitStarted[forms.MenuValues]{})
	if !state.Submitting {
		return fmt.Errorf("invalid menu: %s", formatErrors(state.Errors))
	}

	menu, err := save(state.Values.Input())
	if err != nil {
		state = forms.Reduce(state, forms.SubmitFailed[forms.MenuValues]{Err: err})
		if len(state.Errors) > 0 {
			return fmt.Errorf("invalid menu: %s: %w", formatErrors(state.Errors), describe(err))
		}
		return describe(err)
	}
	saved := forms.MenuValuesFrom(*menu)
	state = forms.Reduce(state, forms.SubmitSucceeded[forms.MenuValues]{Saved: &saved})
	c.printf("saved menu %d %s\n", menu.ID, state.Values.Name)
	return nil
}

func (c *cli) menusCreateCommand() *cobra.Command {
	var f menuFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a menu",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			state := f.apply(cmd, forms.New(forms.NewMenuValues()))
			return c.submitMenu(state, func(input client.MenuInput) (*client.Menu, error) {
				return c.app.Client().CreateMenu(ctx, input)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func (c *cli) menusUpdateCommand() *cobra.Command {
	var f menuFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a menu; unset flags keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			current, err := c.app.Client().Menu(ctx, id)
			if err != nil {
				return describe(err)
			}
			state := f.apply(cmd, forms.New(forms.MenuValuesFrom(*current)))
			if !state.Dirty() {
				c.printf("nothing to change\n")
				return nil
			}
			return c.submitMenu(state, func(input client.MenuInput) (*client.Menu, error) {
				return c.app.Client().UpdateMenu(ctx, id, input)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func (c *cli) menusDeleteCommand() *cobra.Command {
	var policy string
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a menu",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			result, err := c.app.Client().DeleteMenu(ctx, id, policy)
			if err != nil {
				if client.IsKind(err, client.KindConflict) {
					return fmt.Errorf("%w (use --policy orphan, reassign or cascade)", describe(err))
				}
				return describe(err)
			}
			c.printf("deleted %v (policy %s)", result.Deleted, result.Policy)
			if len(result.Moved) > 0 {
				c.printf(", moved %v", result.Moved)
			}
			c.printf("\n")
			return nil
		},
	}
	cmd.Flags().StringVar(&policy, "policy", "", "children handling: reject, orphan, reassign or cascade")
	return cmd
}

func (c *cli) menusAccessCommand() *cobra.Command {
	var (
		roles, addRoles, removeRoles []uint
		perms, addPerms, removePerms []string
	)
	cmd := &cobra.Command{
		Use:   "access <menu-id>",
		Short: "Show or replace the roles and permissions that unlock a menu",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			menu, err := c.app.Client().Menu(ctx, id)
			if err != nil {
				return describe(err)
			}

			values := forms.MenuValuesFrom(*menu)
			flags := cmd.Flags()
			if flags.Changed("roles") {
				values.RoleIDs = append([]uint{}, roles...)
			}
			if flags.Changed("permissions") {
				values.PermissionIDs = append([]string{}, perms...)
			}
			for _, roleID := range addRoles {
				values.RoleIDs = forms.SetMember(values.RoleIDs, roleID, true)
			}
			for _, roleID := range removeRoles {
				values.RoleIDs = forms.SetMember(values.RoleIDs, roleID, false)
			}
			for _, perm := range addPerms {
				values.PermissionIDs = forms.SetMember(values.PermissionIDs, perm, true)
			}
			for _, perm := range removePerms {
				values.PermissionIDs = forms.SetMember(values.PermissionIDs, perm, false)
			}

			edited := false
			for _, name := range []string{"roles", "permissions", "add-role", "remove-role", "add-permission", "remove-permission"} {
				edited = edited || flags.Changed(name)
			}
			if edited {
				menu, err = c.app.Client().SaveMenuAccess(ctx, id, values.RoleIDs, values.PermissionIDs)
				if err != nil {
					return describe(err)
				}
			}

			roleNames := make([]string, 0, len(menu.Roles))
			for _, role := range menu.Roles {
				roleNames = append(roleNames, fmt.Sprintf("%s(%d)", role.Name, role.ID))
			}
			c.printf("menu:        %s [%d]\n", menu.Name, menu.ID)
			c.printf("roles:       %s\n", dash(strings.Join(roleNames, ", ")))
			c.printf("permissions: %s\n", dash(strings.Join(menu.PermissionIDs, ", ")))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.UintSliceVar(&roles, "roles", nil, "replace the role set")
	flags.UintSliceVar(&addRoles, "add-role", nil, "add a role id")
	flags.UintSliceVar(&removeRoles, "remove-role", nil, "remove a role id")
	flags.StringSliceVar(&perms, "permissions", nil, "replace the permission set")
	flags.StringSliceVar(&addPerms, "add-permission", nil, "add a permission id")
	flags.StringSliceVar(&removePerms, "remove-permission", nil, "remove a permission id")
	return cmd
}

func (c *cli) menusRoleAccessCommand(use string, granted bool) *cobra.Command {
	short, done := "Grant a role access to a menu", "granted"
	if !granted {
		short, done = "Revoke a role's access to a menu", "revoked"
	}
	return &cobra.Command{
		Use:   use + " <role-id> <menu-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			roleID, err := parseID(args[0])
			if err != nil {
				return err
			}
			menuID, err := parseID(args[1])
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			result, err := c.app.Client().SetRoleMenuAccess(ctx, roleID, menuID, granted)
			if err != nil {
				return describe(err)
			}
			if !result.Changed {
				c.printf("unchanged\n")
				return nil
			}
			c.printf("role %d %s on menu %d\n", roleID, done, menuID)
			return nil
		},
	}
}

func (c *cli) menusParentsCommand() *cobra.Command {
	var exclude uint
	cmd := &cobra.Command{
		Use:   "parents",
		Short: "List menus that may be chosen as parent",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			parents, err := c.app.Client().Parents(ctx, exclude)
			if err != nil {
				return describe(err)
			}
			for _, node := range parents {
				c.printf("%s%s [%d]\n", strings.Repeat("  ", node.Level), node.Label, node.ID)
			}
			return nil
		},
	}
	cmd.Flags().UintVar(&exclude, "exclude", 0, "menu being moved; it and its subtree are left out")
	return cmd
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatErrors(errs map[string]string) string {
	parts := make([]string, 0, len(errs))
	for _, msg := range errs {
		parts = append(parts, msg)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
