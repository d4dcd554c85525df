package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/charlesng35/hrconsole/internal/app"
	"github.com/charlesng35/hrconsole/internal/auditctx"
	iauth "github.com/charlesng35/hrconsole/internal/auth"
	"github.com/charlesng35/hrconsole/internal/models"
	"github.com/charlesng35/hrconsole/internal/services"
	"github.com/charlesng35/hrconsole/pkg/crypto"
	"github.com/charlesng35/hrconsole/pkg/logger"
)

// operatorActor marks audit entries written from the server command line.
var operatorActor = auditctx.Actor{Username: "hrconsole-server", UserAgent: "cli"}

// withUsers opens the database and runs fn against a user service.
func withUsers(ctx context.Context, cfg *app.Config, fn func(context.Context, *services.UserService) error) error {
	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, logger.WithModule("database"))

	audit, err := services.NewAuditService(db)
	if err != nil {
		return err
	}
	sessions, err := iauth.NewSessionService(db, nil, iauth.SessionConfig{})
	if err != nil {
		return err
	}
	users, err := services.NewUserService(db, audit, services.WithSessionRevoker(sessions))
	if err != nil {
		return err
	}
	return fn(auditctx.WithActor(ctx, operatorActor), users)
}

func usersCommand(load func() (*app.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage console accounts directly in the database",
	}

	type action func(ctx context.Context, users *services.UserService, out io.Writer, args []string) error
	run := func(fn action) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return withUsers(cmd.Context(), cfg, func(ctx context.Context, users *services.UserService) error {
				return fn(ctx, users, cmd.OutOrStdout(), args)
			})
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List accounts with their roles",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, users *services.UserService, out io.Writer, _ []string) error {
			list, err := users.List(ctx)
			if err != nil {
				return err
			}
			return printUsers(out, list)
		}),
	})

	var add services.CreateUserInput
	var addRoles []string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account; a password is generated when none is given",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, users *services.UserService, out io.Writer, _ []string) error {
			input := add
			generated := input.Password == ""
			if generated {
				password, err := crypto.GenerateToken(12)
				if err != nil {
					return err
				}
				input.Password = password
			}
			ids, err := users.RoleIDs(ctx, addRoles...)
			if err != nil {
				return fmt.Errorf("roles: %w", err)
			}
			input.RoleIDs = ids

			user, err := users.Create(ctx, input)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "created %s (%s)\n", user.Username, user.ID)
			if generated {
				fmt.Fprintf(out, "password: %s\n", input.Password)
			}
			return nil
		}),
	}
	flags := addCmd.Flags()
	flags.StringVar(&add.Username, "username", "", "login name")
	flags.StringVar(&add.Email, "email", "", "email address")
	flags.StringVar(&add.Password, "password", "", "initial password")
	flags.StringVar(&add.FirstName, "first-name", "", "")
	flags.StringVar(&add.LastName, "last-name", "", "")
	flags.BoolVar(&add.IsRoot, "root", false, "bypass every permission check")
	flags.StringSliceVar(&addRoles, "role", nil, "role name, repeatable (default role when omitted)")
	cmd.AddCommand(addCmd)

	var setRoles []string
	rolesCmd := &cobra.Command{
		Use:   "roles <username|email>",
		Short: "Replace the roles of an account",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, users *services.UserService, out io.Writer, args []string) error {
			user, err := users.Find(ctx, args[0])
			if err != nil {
				return err
			}
			ids, err := users.RoleIDs(ctx, setRoles...)
			if err != nil {
				return fmt.Errorf("roles: %w", err)
			}
			user, err = users.SetRoles(ctx, user.ID, ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %s\n", user.Username, dash(strings.Join(roleNames(user), ", ")))
			return nil
		}),
	}
	rolesCmd.Flags().StringSliceVar(&setRoles, "role", nil, "role name, repeatable; none clears every role")
	cmd.AddCommand(rolesCmd)

	for _, active := range []bool{true, false} {
		use, verb := "enable", "enabled"
		if !active {
			use, verb = "disable", "disabled"
		}
		cmd.AddCommand(&cobra.Command{
			Use:   use + " <username|email>",
			Short: strings.ToUpper(use[:1]) + use[1:] + " an account",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, users *services.UserService, out io.Writer, args []string) error {
				user, err := users.Find(ctx, args[0])
				if err != nil {
					return err
				}
				if err := users.SetActive(ctx, user.ID, active); err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s\n", user.Username, verb)
				return nil
			}),
		})
	}
	return cmd
}

func printUsers(out io.Writer, users []models.User) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tEMAIL\tSTATE\tROLES")
	for i := range users {
		user := &users[i]
		state := "active"
		switch {
		case user.IsRoot:
			state = "root"
		case !user.IsActive:
			state = "disabled"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", user.Username, user.Email, state, dash(strings.Join(roleNames(user), ", ")))
	}
	return w.Flush()
}

func roleNames(user *models.User) []string {
	names := make([]string, len(user.Roles))
	for i, role := range user.Roles {
		names[i] = role.Name
	}
	return names
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
