package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/charlesng35/hrconsole/internal/app"
	"github.com/charlesng35/hrconsole/internal/client"
	"github.com/charlesng35/hrconsole/internal/console"
	"github.com/charlesng35/hrconsole/pkg/logger"
)

// environment carries the process edges so commands can run against buffers in tests.
type environment struct {
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	sessions func(path string) console.SessionStore
}

func defaultEnvironment() environment {
	return environment{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		sessions: func(path string) console.SessionStore {
			return console.NewFileSessionStore(path)
		},
	}
}

type cli struct {
	env environment

	configDir   string
	server      string
	sessionFile string
	verbose     bool

	app *console.App
}

func newRootCommand(env environment) *cobra.Command {
	c := &cli{env: env}

	root := &cobra.Command{
		Use:           "hrconsole",
		Short:         "hrconsole manages the HR console menus, roles and permissions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.SetIn(env.in)
	root.SetOut(env.out)
	root.SetErr(env.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&c.configDir, "config", "", "directory containing config.yaml")
	flags.StringVar(&c.server, "server", "", "API base URL, e.g. http://127.0.0.1:8000/api")
	flags.StringVar(&c.sessionFile, "session", "", "session file (default ~/.hrconsole/session.json)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log requests to stderr")

	root.AddCommand(
		c.loginCommand(),
		c.logoutCommand(),
		c.whoamiCommand(),
		c.canCommand(),
		c.menusCommand(),
		c.rolesCommand(),
		c.permissionsCommand(),
	)
	return root
}

// init loads configuration, builds the application context and restores the saved session.
func (c *cli) init(ctx context.Context) error {
	level := "warn"
	if c.verbose {
		level = "debug"
	}
	logger.Replace(logger.NewConsole(level))

	var paths []string
	if c.configDir != "" {
		paths = append(paths, c.configDir)
	}
	cfg, err := app.LoadConfig(paths...)
	if err != nil {
		return err
	}

	settings := cfg.Console
	if c.server != "" {
		settings.BaseURL = c.server
	}
	if c.sessionFile != "" {
		settings.SessionFile = c.sessionFile
	}
	if strings.TrimSpace(settings.SessionFile) == "" {
		settings.SessionFile = console.DefaultSessionPath()
	}

	a, err := console.New(clientConfig(settings), c.env.sessions(settings.SessionFile))
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := a.Init(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	c.app = a
	return nil
}

func clientConfig(settings app.ConsoleConfig) client.Config {
	return client.Config{
		BaseURL:     settings.BaseURL,
		Timeout:     settings.Timeout,
		ReadRetries: settings.ReadRetries,
		CacheTTL:    settings.CacheTTL,
		UserAgent:   "hrconsole-cli/1.0",
	}
}

// requireSession fails fast when no session is held.
func (c *cli) requireSession() error {
	if !c.app.Authenticated() {
		return console.ErrNotSignedIn
	}
	return nil
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.env.out, format, args...)
}

func (c *cli) loginCommand() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return errors.New("--username is required")
			}
			if password == "" {
				password = os.Getenv("HRCONSOLE_PASSWORD")
			}
			if password == "" {
				line, err := c.readLine("Password: ")
				if err != nil {
					return err
				}
				password = line
			}
			if password == "" {
				return errors.New("password is required")
			}

			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			identity, err := c.app.Login(ctx, username, password)
			if err != nil {
				return describe(err)
			}
			c.printf("signed in as %s (%s)\n", identity.Username, strings.Join(roleNames(identity), ", "))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username or email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (or HRCONSOLE_PASSWORD, or prompt)")
	return cmd
}

func (c *cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Logout(cmd.Context()); err != nil {
				return err
			}
			c.printf("signed out\n")
			return nil
		},
	}
}

func (c *cli) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user, roles and permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			identity := c.app.Identity()
			if identity == nil {
				return console.ErrNotSignedIn
			}

			c.printf("user:        %s <%s>\n", identity.Username, identity.Email)
			if identity.DisplayName != "" && identity.DisplayName != identity.Username {
				c.printf("name:        %s\n", identity.DisplayName)
			}
			if identity.IsRoot {
				c.printf("root:        yes\n")
			}
			c.printf("roles:       %s\n", strings.Join(roleNames(identity), ", "))
			c.printf("permissions: %s\n", strings.Join(c.app.Evaluator().Permissions(), ", "))
			return nil
		},
	}
}

func (c *cli) canCommand() *cobra.Command {
	var anyOf bool
	cmd := &cobra.Command{
		Use:   "can <permission>...",
		Short: "Check permissions of the signed in user",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			eval := c.app.Evaluator()

			if anyOf {
				if !eval.HasAnyPermission(args...) {
					return fmt.Errorf("none of %s granted", strings.Join(args, ", "))
				}
				c.printf("yes\n")
				return nil
			}

			denied := 0
			for _, perm := range args {
				answer := "yes"
				if !eval.HasPermission(perm) {
					answer = "no"
					denied++
				}
				c.printf("%-24s %s\n", perm, answer)
			}
			if denied > 0 {
				return fmt.Errorf("%d of %d permissions denied", denied, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&anyOf, "any", false, "succeed when any permission is granted")
	return cmd
}

func (c *cli) readLine(prompt string) (string, error) {
	fmt.Fprint(c.env.errOut, prompt)
	line, err := bufio.NewReader(c.env.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func roleNames(identity *client.Identity) []string {
	names := make([]string, 0, len(identity.Roles))
	for _, role := range identity.Roles {
		names = append(names, role.Name)
	}
	return names
}

// describe turns API errors into the messages the console prints.
func describe(err error) error {
	var apiErr *client.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Kind {
	case client.KindNetwork:
		return fmt.Errorf("server unreachable, retry later: %w", err)
	case client.KindUnauthorized:
		if apiErr.Code == "UNAUTHORIZED" {
			return fmt.Errorf("session expired, sign in again: %w", err)
		}
	case client.KindForbidden:
		return fmt.Errorf("permission denied: %s", apiErr.Message)
	case client.KindServer:
		return fmt.Errorf("server error, retry later: %w", err)
	}
	return err
}

const requestTimeout = 30 * time.Second

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, requestTimeout)
}
