package cli

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/applications"
)

// maxParallelRemovals bounds concurrent unassign requests.
const maxParallelRemovals = 4

func newAppsCommand(app *App) *Command {
	cmd := newGroup(app, "ssoadmin apps", "Manage client applications")
	cmd.Subcommands["mine"] = newAppsMineCommand(app)
	cmd.Subcommands["list"] = newAppsListCommand(app)
	cmd.Subcommands["get"] = newAppsGetCommand(app)
	cmd.Subcommands["create"] = newAppsCreateCommand(app)
	cmd.Subcommands["update"] = newAppsUpdateCommand(app)
	cmd.Subcommands["delete"] = newAppsDeleteCommand(app)
	cmd.Subcommands["user"] = newAppsUserCommand(app)
	cmd.Subcommands["assign"] = newAppsAssignCommand(app)
	cmd.Subcommands["remove"] = newAppsRemoveCommand(app)
	cmd.Subcommands["search"] = newAppsSearchCommand(app)
	return cmd
}

func printAppDetails(app *App, apps []api.AllowedAppDetail) {
	tw := newTable(app.Out, "ID", "CODE", "NAME", "URL", "ACTIVE")
	for _, a := range apps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Code, a.Name, a.BaseURL, yesNo(a.IsActive))
	}
	tw.Flush()
	fmt.Fprintf(app.Out, "\nTotal: %d aplikasi\n", len(apps))
}

func printApplication(app *App, a *api.Application) {
	fmt.Fprintf(app.Out, "ID:             %s\n", a.ID)
	fmt.Fprintf(app.Out, "Kode:           %s\n", a.Code)
	fmt.Fprintf(app.Out, "Nama:           %s\n", a.Name)
	fmt.Fprintf(app.Out, "Deskripsi:      %s\n", orDash(a.Description))
	fmt.Fprintf(app.Out, "URL:            %s\n", a.BaseURL)
	fmt.Fprintf(app.Out, "Ikon:           %s\n", orDash(a.IconURL))
	fmt.Fprintf(app.Out, "Gambar:         %s\n", orDash(a.ImgURL))
	fmt.Fprintf(app.Out, "Aktif:          %s\n", yesNo(a.IsActive))
	fmt.Fprintf(app.Out, "Single session: %s\n", yesNo(a.SingleSession))
	fmt.Fprintf(app.Out, "Dibuat:         %s\n", FormatDate(a.CreatedAt))
	fmt.Fprintf(app.Out, "Diperbarui:     %s\n", FormatDate(a.UpdatedAt))
}

func newAppsMineCommand(app *App) *Command {
	cmd := newLeaf(app, "mine", "List the applications you can open")
	outputJSON := cmd.Flags.Bool("json", false, "Output in JSON format")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		apps, err := app.Apps.MyApps(app.ctx)
		if err != nil {
			return err
		}
		if *outputJSON {
			return writeJSON(app.Out, apps)
		}
		printAppDetails(app, apps)
		return nil
	}
	return cmd
}

func newAppsListCommand(app *App) *Command {
	cmd := newLeaf(app, "list", "List registered applications")
	page := cmd.Flags.Int("page", 1, "Page number")
	limit := cmd.Flags.Int("limit", 10, "Items per page")
	search := cmd.Flags.String("search", "", "Search term")
	active := cmd.Flags.String("active", "", "Filter by active state (true|false)")
	outputJSON := cmd.Flags.Bool("json", false, "Output in JSON format")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		filter := api.ApplicationFilter{
			PaginationParams: api.PaginationParams{Page: *page, Limit: *limit, Search: *search},
		}
		if *active != "" {
			v, err := strconv.ParseBool(*active)
			if err != nil {
				return fmt.Errorf("invalid --active value %q: %w", *active, err)
			}
			filter.IsActive = &v
		}

		resp, err := app.Apps.List(app.ctx, filter)
		if err != nil {
			return err
		}
		if *outputJSON {
			return writeJSON(app.Out, resp)
		}

		tw := newTable(app.Out, "ID", "CODE", "NAME", "URL", "ACTIVE", "CREATED")
		for _, a := range resp.Data {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				a.ID, a.Code, a.Name, a.BaseURL, yesNo(a.IsActive), FormatDate(a.CreatedAt))
		}
		tw.Flush()
		printMeta(app.Out, resp.Meta)
		return nil
	}
	return cmd
}

func newAppsGetCommand(app *App) *Command {
	cmd := newLeaf(app, "get", "Show one application")
	outputJSON := cmd.Flags.Bool("json", false, "Output in JSON format")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if cmd.Flags.NArg() == 0 {
			return fmt.Errorf("application ID required. Usage: ssoadmin apps get <id>")
		}
		a, err := app.Apps.Get(app.ctx, cmd.Flags.Arg(0))
		if err != nil {
			return err
		}
		if *outputJSON {
			return writeJSON(app.Out, a)
		}
		printApplication(app, a)
		return nil
	}
	return cmd
}

func newAppsCreateCommand(app *App) *Command {
	cmd := newLeaf(app, "create", "Register an application")
	name := cmd.Flags.String("name", "", "Display name")
	code := cmd.Flags.String("code", "", "Unique application code")
	baseURL := cmd.Flags.String("url", "", "Base URL")
	description := cmd.Flags.String("description", "", "Description")
	singleSession := cmd.Flags.Bool("single-session", false, "Allow one session per user")
	icon := cmd.Flags.String("icon", "", "Icon image file")
	img := cmd.Flags.String("img", "", "Banner image file")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *name == "" || *code == "" || *baseURL == "" {
			return fmt.Errorf("--name, --code and --url are required")
		}
		a, err := app.Apps.Create(app.ctx, api.ApplicationCreateRequest{
			Name:          *name,
			Code:          *code,
			BaseURL:       *baseURL,
			Description:   *description,
			SingleSession: *singleSession,
		}, applications.Images{IconPath: *icon, ImgPath: *img})
		if err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "Aplikasi %s dibuat (%s)\n", a.Code, a.ID)
		return nil
	}
	return cmd
}

func newAppsUpdateCommand(app *App) *Command {
	cmd := newLeaf(app, "update", "Update an application")
	name := cmd.Flags.String("name", "", "Display name")
	code := cmd.Flags.String("code", "", "Unique application code")
	baseURL := cmd.Flags.String("url", "", "Base URL")
	description := cmd.Flags.String("description", "", "Description")
	active := cmd.Flags.Bool("active", true, "Whether the application is active")
	singleSession := cmd.Flags.Bool("single-session", false, "Allow one session per user")
	icon := cmd.Flags.String("icon", "", "Icon image file")
	img := cmd.Flags.String("img", "", "Banner image file")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if cmd.Flags.NArg() == 0 {
			return fmt.Errorf("application ID required. Usage: ssoadmin apps update [flags] <id>")
		}

		var req api.ApplicationUpdateRequest
		cmd.Flags.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "name":
				req.Name = name
			case "code":
				req.Code = code
			case "url":
				req.BaseURL = baseURL
			case "description":
				req.Description = description
			case "active":
				req.IsActive = active
			case "single-session":
				req.SingleSession = singleSession
			}
		})

		a, err := app.Apps.Update(app.ctx, cmd.Flags.Arg(0), req,
			applications.Images{IconPath: *icon, ImgPath: *img})
		if err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "Aplikasi %s diperbarui\n", a.Code)
		return nil
	}
	return cmd
}

func newAppsDeleteCommand(app *App) *Command {
	cmd := newLeaf(app, "delete", "Delete an application")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if cmd.Flags.NArg() == 0 {
			return fmt.Errorf("application ID required. Usage: ssoadmin apps delete <id>")
		}
		id := cmd.Flags.Arg(0)
		if err := app.Apps.Delete(app.ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "Aplikasi %s dihapus\n", id)
		return nil
	}
	return cmd
}

func newAppsUserCommand(app *App) *Command {
	cmd := newLeaf(app, "user", "List the applications assigned to a user")
	outputJSON := cmd.Flags.Bool("json", false, "Output in JSON format")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if cmd.Flags.NArg() == 0 {
			return fmt.Errorf("user ID required. Usage: ssoadmin apps user <user-id>")
		}
		apps, err := app.Apps.UserApps(app.ctx, cmd.Flags.Arg(0))
		if err != nil {
			return err
		}
		if *outputJSON {
			return writeJSON(app.Out, apps)
		}
		printAppDetails(app, apps)
		return nil
	}
	return cmd
}

func newAppsAssignCommand(app *App) *Command {
	cmd := newLeaf(app, "assign", "Grant a user access to applications")
	userID := cmd.Flags.String("user", "", "User ID")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *userID == "" || cmd.Flags.NArg() == 0 {
			return fmt.Errorf("usage: ssoadmin apps assign --user <user-id> <app-id>...")
		}
		apps, err := app.Apps.AssignToUser(app.ctx, *userID, cmd.Flags.Args()...)
		if err != nil {
			return err
		}
		printAppDetails(app, apps)
		return nil
	}
	return cmd
}

func newAppsRemoveCommand(app *App) *Command {
	cmd := newLeaf(app, "remove", "Revoke a user's access to applications")
	userID := cmd.Flags.String("user", "", "User ID")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *userID == "" || cmd.Flags.NArg() == 0 {
			return fmt.Errorf("usage: ssoadmin apps remove --user <user-id> <app-id>...")
		}
		return removeAssignments(app, *userID, cmd.Flags.Args())
	}
	return cmd
}

// removeAssignments unassigns appIDs in parallel and reports each outcome.
func removeAssignments(app *App, userID string, appIDs []string) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	p := pool.New().WithMaxGoroutines(maxParallelRemovals)
	for _, appID := range appIDs {
		p.Go(func() {
			err := app.Apps.RemoveFromUser(app.ctx, userID, appID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				app.Log.WithError(err).WithField("app_id", appID).Warn("failed to remove assignment")
				errs = append(errs, fmt.Errorf("%s: %w", appID, err))
				return
			}
			fmt.Fprintf(app.Out, "Akses %s dicabut dari %s\n", appID, userID)
		})
	}
	p.Wait()
	return errors.Join(errs...)
}

func newAppsSearchCommand(app *App) *Command {
	cmd := newLeaf(app, "search", "Search applications interactively")
	pageSize := cmd.Flags.Int("page-size", 10, "Results per page (0 disables paging)")
	debounce := cmd.Flags.Duration("debounce", 0, "Delay before a term is searched")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		ctrl, err := applications.NewSearch(app.Apps, applications.SearchOptions{
			Access:   app.Store.GetState(),
			Debounce: *debounce,
			PageSize: *pageSize,
			OnSelect: func(a api.ApplicationListItem) {
				fmt.Fprintf(app.Out, "Dipilih: %s (%s)\n", a.Name, a.ID)
			},
			Logger:  app.Logger,
			Metrics: app.Metrics,
		})
		if err != nil {
			return err
		}
		return runSearch(app, ctrl, applications.FormatOption)
	}
	return cmd
}
