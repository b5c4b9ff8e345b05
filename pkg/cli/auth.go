package cli

import (
	"bufio"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/sso"
)

func newLoginCommand(app *App) *Command {
	cmd := newGroup(app, "ssoadmin login", "Log in and store the session")
	cmd.Subcommands["email"] = newLoginEmailCommand(app)
	cmd.Subcommands["firebase"] = newLoginFirebaseCommand(app)
	cmd.Subcommands["google"] = newLoginGoogleCommand(app)
	return cmd
}

func newLoginEmailCommand(app *App) *Command {
	cmd := newLeaf(app, "email", "Log in with email and password")
	email := cmd.Flags.String("email", "", "Account email")
	password := cmd.Flags.String("password", "", "Password (read from stdin when empty)")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *email == "" {
			return fmt.Errorf("email required. Usage: ssoadmin login email --email <email>")
		}
		pw := *password
		if pw == "" {
			fmt.Fprint(app.Err, "Password: ")
			line, err := readLine(app)
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			pw = line
		}

		resp, err := app.Session.LoginWithEmail(app.ctx, *email, pw)
		if err != nil {
			return err
		}
		app.Log.WithField("user_id", resp.User.ID).Debug("logged in with email")
		printWelcome(app.Out, resp)
		return nil
	}
	return cmd
}

func newLoginFirebaseCommand(app *App) *Command {
	cmd := newLeaf(app, "firebase", "Log in with a Firebase ID token")
	token := cmd.Flags.String("token", "", "Firebase ID token")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *token == "" {
			return fmt.Errorf("token required. Usage: ssoadmin login firebase --token <id-token>")
		}
		resp, err := app.Session.LoginWithFirebase(app.ctx, *token)
		if err != nil {
			return err
		}
		app.Log.WithField("user_id", resp.User.ID).Debug("logged in with firebase")
		printWelcome(app.Out, resp)
		return nil
	}
	return cmd
}

func newLoginGoogleCommand(app *App) *Command {
	cmd := newLeaf(app, "google", "Log in with Google in the browser")
	listen := cmd.Flags.String("listen", "127.0.0.1:0", "Callback listener address")
	timeout := cmd.Flags.Duration("timeout", 0, "How long to wait for the browser (default 5m)")
	noBrowser := cmd.Flags.Bool("no-browser", false, "Print the login URL instead of opening it")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		flow := sso.NewGoogleFlow(app.Session, sso.GoogleFlowConfig{
			ListenAddr: *listen,
			Timeout:    *timeout,
			Logger:     app.Logger,
			OpenBrowser: func(authURL string) error {
				fmt.Fprintf(app.Err, "Buka URL berikut untuk login:\n  %s\n", authURL)
				if *noBrowser {
					return nil
				}
				return app.OpenBrowser(authURL)
			},
		})
		resp, err := flow.Login(app.ctx)
		if err != nil {
			return err
		}
		app.Log.WithField("user_id", resp.User.ID).Debug("logged in with google")
		printWelcome(app.Out, resp)
		return nil
	}
	return cmd
}

func newExchangeCommand(app *App) *Command {
	cmd := newLeaf(app, "exchange", "Exchange an SSO token for a session")
	token := cmd.Flags.String("token", "", "SSO token (defaults to the stored one)")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		ssoToken := *token
		if ssoToken == "" {
			ssoToken = app.Store.GetState().SSOToken
		}
		if ssoToken == "" {
			return fmt.Errorf("no SSO token. Usage: ssoadmin exchange --token <sso-token>")
		}
		resp, err := app.Session.ExchangeSSOToken(app.ctx, ssoToken)
		if err != nil {
			return err
		}
		printWelcome(app.Out, resp)
		return nil
	}
	return cmd
}

func newLogoutCommand(app *App) *Command {
	cmd := newLeaf(app, "logout", "Log out everywhere, or from one client")
	clientID := cmd.Flags.String("client", "", "Only log out of this client application")
	thisDevice := cmd.Flags.Bool("this-device", false, "With --client, only log out this device")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *clientID != "" {
			if err := app.Session.LogoutFromClient(app.ctx, *clientID, *thisDevice); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Logout dari %s berhasil\n", *clientID)
			return nil
		}
		if err := app.Session.Logout(app.ctx); err != nil {
			// The local session is gone either way.
			app.Log.WithError(err).Warn("server logout failed")
		}
		fmt.Fprintln(app.Out, "Logout berhasil")
		return nil
	}
	return cmd
}

func newRefreshCommand(app *App) *Command {
	cmd := newLeaf(app, "refresh", "Rotate the stored token pair")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		resp, err := app.Session.Refresh(app.ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "Token diperbarui (berlaku %d detik)\n", resp.ExpiresIn)
		return nil
	}
	return cmd
}

// statusReport is the JSON form of the status command.
type statusReport struct {
	Authenticated bool                   `json:"authenticated"`
	DeviceID      string                 `json:"device_id,omitempty"`
	ExpiresAt     *time.Time             `json:"expires_at,omitempty"`
	User          *api.UserData          `json:"user,omitempty"`
	Apps          []api.AllowedAppDetail `json:"apps,omitempty"`
	Sessions      int                    `json:"sessions,omitempty"`
}

func newStatusCommand(app *App) *Command {
	cmd := newLeaf(app, "status", "Show the stored session")
	remote := cmd.Flags.Bool("remote", false, "Validate the session against the server")
	outputJSON := cmd.Flags.Bool("json", false, "Output in JSON format")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		state := app.Store.GetState()
		report := statusReport{
			Authenticated: state.IsAuthenticated,
			DeviceID:      state.DeviceID,
			User:          state.User,
		}

		if *remote {
			if !state.IsAuthenticated {
				return fmt.Errorf("not logged in")
			}
			if err := fetchRemoteStatus(app, &report); err != nil {
				return err
			}
		}
		if tok, err := app.Store.TokenSource().Token(); err == nil && !tok.Expiry.IsZero() {
			report.ExpiresAt = &tok.Expiry
		}

		if *outputJSON {
			return writeJSON(app.Out, report)
		}
		printStatus(app, report, *remote)
		return nil
	}
	return cmd
}

// fetchRemoteStatus validates the token and loads the dashboard data
// concurrently.
func fetchRemoteStatus(app *App, report *statusReport) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	p := pool.New().WithMaxGoroutines(3)
	p.Go(func() {
		user, err := app.Session.Validate(app.ctx)
		if err != nil {
			record(fmt.Errorf("validate: %w", err))
			return
		}
		mu.Lock()
		report.User = user
		mu.Unlock()
	})
	p.Go(func() {
		apps, err := app.Apps.MyApps(app.ctx)
		if err != nil {
			record(fmt.Errorf("my apps: %w", err))
			return
		}
		mu.Lock()
		report.Apps = apps
		mu.Unlock()
	})
	p.Go(func() {
		sessions, err := app.Session.Sessions(app.ctx)
		if err != nil {
			record(fmt.Errorf("sessions: %w", err))
			return
		}
		mu.Lock()
		report.Sessions = sessions.TotalSessions
		mu.Unlock()
	})
	p.Wait()

	report.Authenticated = app.Store.GetState().IsAuthenticated
	return errors.Join(errs...)
}

func printStatus(app *App, report statusReport, remote bool) {
	if !report.Authenticated {
		fmt.Fprintln(app.Out, "Belum login")
		if report.User == nil {
			return
		}
	}
	if user := report.User; user != nil {
		fmt.Fprintf(app.Out, "Pengguna:   %s [%s]\n", orDash(user.Name), Initials(user.Name))
		fmt.Fprintf(app.Out, "Email:      %s\n", orDash(user.Email))
		fmt.Fprintf(app.Out, "Role:       %s\n", orDash(user.Role))
	}
	fmt.Fprintf(app.Out, "Device ID:  %s\n", orDash(report.DeviceID))
	if report.ExpiresAt != nil {
		fmt.Fprintf(app.Out, "Token s.d.: %s\n", report.ExpiresAt.Format(time.RFC3339))
	}
	if !remote {
		return
	}
	fmt.Fprintf(app.Out, "Sesi aktif: %d\n", report.Sessions)
	if len(report.Apps) == 0 {
		return
	}
	fmt.Fprintln(app.Out)
	tw := newTable(app.Out, "CODE", "NAME", "URL", "ACTIVE")
	for _, a := range report.Apps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Code, a.Name, a.BaseURL, yesNo(a.IsActive))
	}
	tw.Flush()
}

func newSessionsCommand(app *App) *Command {
	cmd := newLeaf(app, "sessions", "List active sessions per client application")
	outputJSON := cmd.Flags.Bool("json", false, "Output in JSON format")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		resp, err := app.Session.Sessions(app.ctx)
		if err != nil {
			return err
		}
		if *outputJSON {
			return writeJSON(app.Out, resp)
		}

		clients := make([]string, 0, len(resp.Sessions))
		for c := range resp.Sessions {
			clients = append(clients, c)
		}
		sort.Strings(clients)

		current := app.Store.GetState().DeviceID
		tw := newTable(app.Out, "CLIENT", "DEVICE", "IP", "CREATED", "LAST ACTIVITY")
		for _, c := range clients {
			for _, s := range resp.Sessions[c] {
				device := s.DeviceID
				if device != "" && device == current {
					device += " *"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					c, device, orDash(s.IPAddress), FormatDate(s.CreatedAt), FormatDate(s.LastActivity))
			}
		}
		tw.Flush()
		fmt.Fprintf(app.Out, "\nTotal: %d sesi di %d aplikasi\n", resp.TotalSessions, resp.TotalClients)
		return nil
	}
	return cmd
}

// readLine reads one line of input, without its line ending.
func readLine(app *App) (string, error) {
	if app.lines == nil {
		app.lines = bufio.NewScanner(app.In)
	}
	if !app.lines.Scan() {
		if err := app.lines.Err(); err != nil {
			return "", err
		}
		return "", errors.New("unexpected end of input")
	}
	return strings.TrimRight(app.lines.Text(), "\r"), nil
}
