package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/ssoadmin/pkg/search"
)

const settlePoll = 10 * time.Millisecond

// runSearch drives ctrl from input lines until EOF or ":quit". A plain line
// is typed into the search box; lines starting with ':' are actions.
func runSearch[T any](app *App, ctrl *search.Controller[T], format func(T) search.Option) error {
	defer ctrl.Close()

	ctrl.Mount(app.ctx)
	printSuggestions(app, ctrl, format)
	fmt.Fprintln(app.Err, "Ketik untuk mencari. Perintah: :more :clear :pick N :id ID :quit")

	for {
		line, err := readLine(app)
		if err != nil {
			// End of input ends the session.
			return nil
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		switch cmd {
		case ":quit", ":q":
			return nil
		case ":more":
			if !ctrl.LoadMore() {
				fmt.Fprintln(app.Out, "Tidak ada data lagi")
				continue
			}
		case ":clear":
			ctrl.ClearSearch()
		case ":pick":
			if err := pick(ctrl, arg); err != nil {
				fmt.Fprintf(app.Err, "Error: %v\n", err)
			}
			continue
		case ":id":
			ctrl.LoadInitialValue(app.ctx, strings.TrimSpace(arg))
		default:
			ctrl.SetSearchTerm(line)
			waitSettled(app, ctrl, line)
		}
		printSuggestions(app, ctrl, format)
	}
}

func pick[T any](ctrl *search.Controller[T], arg string) error {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return fmt.Errorf("invalid number %q", arg)
	}
	suggestions := ctrl.Snapshot().Suggestions
	if n < 1 || n > len(suggestions) {
		return fmt.Errorf("no suggestion %d", n)
	}
	ctrl.Select(suggestions[n-1])
	return nil
}

// waitSettled blocks until the debounced search for term has been applied.
func waitSettled[T any](app *App, ctrl *search.Controller[T], term string) {
	if strings.TrimSpace(term) == "" {
		return
	}
	timeout := app.Config.API.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.Now().Add(timeout + search.DefaultDebounce + time.Second)

	ticker := time.NewTicker(settlePoll)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		snap := ctrl.Snapshot()
		if snap.DebouncedTerm == term && !snap.Searching {
			return
		}
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
		}
	}
	app.Log.WithField("term", term).Warn("search did not settle in time")
}

func printSuggestions[T any](app *App, ctrl *search.Controller[T], format func(T) search.Option) {
	snap := ctrl.Snapshot()
	options := ctrl.Options(format)
	if len(options) == 0 {
		fmt.Fprintln(app.Out, "Tidak ada hasil")
		return
	}
	for i, opt := range options {
		if opt.Description != "" {
			fmt.Fprintf(app.Out, "%3d. %s - %s\n", i+1, opt.Label, opt.Description)
		} else {
			fmt.Fprintf(app.Out, "%3d. %s\n", i+1, opt.Label)
		}
	}
	status := fmt.Sprintf("%d dari %d", len(options), snap.TotalItems)
	if snap.TotalPages > 0 {
		status += fmt.Sprintf(", halaman %d/%d", snap.Page, snap.TotalPages)
	}
	if snap.HasMore {
		status += ", :more untuk memuat lagi"
	}
	fmt.Fprintf(app.Out, "(%s)\n", status)
}
