package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/common-nighthawk/go-figure"

	"github.com/platinummonkey/ssoadmin/pkg/api"
)

const appname = "ssoadmin"

func displayAppname(w io.Writer) {
	banner := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(w, banner.String())
}

// printWelcome greets the user after a successful login.
func printWelcome(w io.Writer, resp *api.LoginResponse) {
	displayAppname(w)
	user := resp.User
	name := user.Name
	if name == "" {
		name = user.Email
	}
	fmt.Fprintf(w, "Selamat datang, %s [%s] (%s)\n", name, Initials(name), orDash(user.Role))
	if resp.AccessToken == "" {
		fmt.Fprintln(w, "Login berhasil, hanya SSO token yang diterbitkan.")
		return
	}
	if len(user.AllowedApps) > 0 {
		codes := make([]string, 0, len(user.AllowedApps))
		for _, app := range user.AllowedApps {
			codes = append(codes, app.Code)
		}
		fmt.Fprintf(w, "Aplikasi: %s\n", strings.Join(codes, ", "))
	}
}
