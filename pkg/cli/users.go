package cli

import (
	"flag"
	"fmt"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/users"
)

func newUsersCommand(app *App) *Command {
	cmd := newGroup(app, "ssoadmin users", "Manage user accounts")
	cmd.Subcommands["me"] = newUsersMeCommand(app)
	cmd.Subcommands["list"] = newUsersListCommand(app)
	cmd.Subcommands["get"] = newUsersGetCommand(app)
	cmd.Subcommands["create"] = newUsersCreateCommand(app)
	cmd.Subcommands["update"] = newUsersUpdateCommand(app)
	cmd.Subcommands["delete"] = newUsersDeleteCommand(app)
	cmd.Subcommands["search"] = newUsersSearchCommand(app)
	return cmd
}

// userFields are the profile flags shared by create, update and me.
type userFields struct {
	name, email, phone, alias, gender, dateOfBirth, address, bio, role, status *string
}

func addUserFlags(flags *flag.FlagSet, admin bool) userFields {
	f := userFields{
		name:        flags.String("name", "", "Full name"),
		email:       flags.String("email", "", "Email address"),
		phone:       flags.String("phone", "", "Phone number"),
		alias:       flags.String("alias", "", "Alias"),
		gender:      flags.String("gender", "", "Gender"),
		dateOfBirth: flags.String("dob", "", "Date of birth (YYYY-MM-DD)"),
		address:     flags.String("address", "", "Address"),
		bio:         flags.String("bio", "", "Short biography"),
	}
	if admin {
		f.role = flags.String("role", "", "Role (superadmin|admin|user|guest)")
		f.status = flags.String("status", "", "Status (active|inactive|suspended)")
	}
	return f
}

// updateRequest builds a partial update from the flags that were set.
func (f userFields) updateRequest(flags *flag.FlagSet) (api.UserUpdateRequest, bool) {
	var req api.UserUpdateRequest
	set := false
	flags.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "name":
			req.Name = f.name
		case "email":
			req.Email = f.email
		case "phone":
			req.Phone = f.phone
		case "alias":
			req.Alias = f.alias
		case "gender":
			req.Gender = f.gender
		case "dob":
			req.DateOfBirth = f.dateOfBirth
		case "address":
			req.Address = f.address
		case "bio":
			req.Bio = f.bio
		case "role":
			role := api.UserRole(*f.role)
			req.Role = &role
		case "status":
			status := api.UserStatus(*f.status)
			req.Status = &status
		default:
			return
		}
		set = true
	})
	return req, set
}

func printUser(app *App, u *api.User) {
	fmt.Fprintf(app.Out, "ID:            %s\n", u.ID)
	fmt.Fprintf(app.Out, "Nama:          %s [%s]\n", u.Name, Initials(u.Name))
	fmt.Fprintf(app.Out, "Email:         %s\n", orDash(u.Email))
	fmt.Fprintf(app.Out, "Telepon:       %s\n", orDash(u.Phone))
	fmt.Fprintf(app.Out, "Alias:         %s\n", orDash(u.Alias))
	fmt.Fprintf(app.Out, "Jenis kelamin: %s\n", orDash(u.Gender))
	fmt.Fprintf(app.Out, "Tanggal lahir: %s\n", FormatDate(u.DateOfBirth))
	fmt.Fprintf(app.Out, "Alamat:        %s\n", orDash(u.Address))
	fmt.Fprintf(app.Out, "Avatar:        %s\n", orDash(u.AvatarURL))
	fmt.Fprintf(app.Out, "Role:          %s\n", u.Role)
	fmt.Fprintf(app.Out, "Status:        %s\n", u.Status)
	fmt.Fprintf(app.Out, "Dibuat:        %s\n", FormatDate(u.CreatedAt))
	if len(u.AllowedApps) > 0 {
		fmt.Fprintln(app.Out, "Aplikasi:")
		for _, a := range u.AllowedApps {
			fmt.Fprintf(app.Out, "  - %s (%s)\n", a.Name, a.Code)
		}
	}
}

func newUsersMeCommand(app *App) *Command {
	cmd := newLeaf(app, "me", "Show or update your own profile")
	fields := addUserFlags(cmd.Flags, false)
	avatar := cmd.Flags.String("avatar", "", "Avatar image file to upload")
	outputJSON := cmd.Flags.Bool("json", false, "Output in JSON format")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		req, update := fields.updateRequest(cmd.Flags)
		var (
			u   *api.User
			err error
		)
		switch {
		case *avatar != "":
			u, err = app.Users.UpdateMeWithAvatar(app.ctx, req, *avatar)
		case update:
			u, err = app.Users.UpdateMe(app.ctx, req)
		default:
			u, err = app.Users.Me(app.ctx)
		}
		if err != nil {
			return err
		}
		if *outputJSON {
			return writeJSON(app.Out, u)
		}
		printUser(app, u)
		return nil
	}
	return cmd
}

func newUsersListCommand(app *App) *Command {
	cmd := newLeaf(app, "list", "List user accounts")
	page := cmd.Flags.Int("page", 1, "Page number")
	limit := cmd.Flags.Int("limit", 10, "Items per page")
	search := cmd.Flags.String("search", "", "Search term")
	status := cmd.Flags.String("status", "", "Filter by status")
	role := cmd.Flags.String("role", "", "Filter by role")
	gender := cmd.Flags.String("gender", "", "Filter by gender")
	outputJSON := cmd.Flags.Bool("json", false, "Output in JSON format")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		resp, err := app.Users.List(app.ctx, api.UserFilter{
			PaginationParams: api.PaginationParams{Page: *page, Limit: *limit, Search: *search},
			Status:           *status,
			Role:             *role,
			Gender:           *gender,
		})
		if err != nil {
			return err
		}
		if *outputJSON {
			return writeJSON(app.Out, resp)
		}

		tw := newTable(app.Out, "ID", "NAME", "EMAIL", "ROLE", "STATUS", "CREATED")
		for _, u := range resp.Data {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				u.ID, u.Name, orDash(u.Email), u.Role, u.Status, FormatDate(u.CreatedAt))
		}
		tw.Flush()
		printMeta(app.Out, resp.Meta)
		return nil
	}
	return cmd
}

func newUsersGetCommand(app *App) *Command {
	cmd := newLeaf(app, "get", "Show one user")
	outputJSON := cmd.Flags.Bool("json", false, "Output in JSON format")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if cmd.Flags.NArg() == 0 {
			return fmt.Errorf("user ID required. Usage: ssoadmin users get <id>")
		}
		u, err := app.Users.Get(app.ctx, cmd.Flags.Arg(0))
		if err != nil {
			return err
		}
		if *outputJSON {
			return writeJSON(app.Out, u)
		}
		printUser(app, u)
		return nil
	}
	return cmd
}

func newUsersCreateCommand(app *App) *Command {
	cmd := newLeaf(app, "create", "Create a user account")
	fields := addUserFlags(cmd.Flags, true)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *fields.name == "" {
			return fmt.Errorf("--name is required")
		}
		u, err := app.Users.Create(app.ctx, api.UserCreateRequest{
			Name:        *fields.name,
			Email:       *fields.email,
			Phone:       *fields.phone,
			Alias:       *fields.alias,
			Gender:      *fields.gender,
			DateOfBirth: *fields.dateOfBirth,
			Address:     *fields.address,
			Bio:         *fields.bio,
			Role:        api.UserRole(*fields.role),
			Status:      api.UserStatus(*fields.status),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "Pengguna %s dibuat (%s)\n", u.Name, u.ID)
		return nil
	}
	return cmd
}

func newUsersUpdateCommand(app *App) *Command {
	cmd := newLeaf(app, "update", "Update a user account")
	fields := addUserFlags(cmd.Flags, true)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if cmd.Flags.NArg() == 0 {
			return fmt.Errorf("user ID required. Usage: ssoadmin users update [flags] <id>")
		}
		req, ok := fields.updateRequest(cmd.Flags)
		if !ok {
			return fmt.Errorf("nothing to update")
		}
		u, err := app.Users.Update(app.ctx, cmd.Flags.Arg(0), req)
		if err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "Pengguna %s diperbarui\n", u.Name)
		return nil
	}
	return cmd
}

func newUsersDeleteCommand(app *App) *Command {
	cmd := newLeaf(app, "delete", "Delete a user account")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if cmd.Flags.NArg() == 0 {
			return fmt.Errorf("user ID required. Usage: ssoadmin users delete <id>")
		}
		id := cmd.Flags.Arg(0)
		if err := app.Users.Delete(app.ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(app.Out, "Pengguna %s dihapus\n", id)
		return nil
	}
	return cmd
}

func newUsersSearchCommand(app *App) *Command {
	cmd := newLeaf(app, "search", "Search users interactively")
	debounce := cmd.Flags.Duration("debounce", 0, "Delay before a term is searched")
	selected := cmd.Flags.String("select", "", "User ID to make sure is listed")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		ctrl, err := users.NewSearch(app.Users, users.SearchOptions{
			Debounce: *debounce,
			OnSelect: func(u api.UserListItem) {
				fmt.Fprintf(app.Out, "Dipilih: %s (%s)\n", u.Name, u.ID)
			},
			Logger:  app.Logger,
			Metrics: app.Metrics,
		})
		if err != nil {
			return err
		}
		if *selected != "" {
			ctrl.Mount(app.ctx)
			ctrl.LoadInitialValue(app.ctx, *selected)
		}
		return runSearch(app, ctrl, users.FormatOption)
	}
	return cmd
}
