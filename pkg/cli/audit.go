package cli

import (
	"fmt"

	"github.com/platinummonkey/ssoadmin/pkg/audit"
)

func newAuditCommand(app *App) *Command {
	cmd := newLeaf(app, "audit", "Show recent session changes from the audit log")
	limit := cmd.Flags.Int("limit", 20, "Number of events to show (0 for all)")
	outputJSON := cmd.Flags.Bool("json", false, "Output in JSON format")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		path := app.Config.Observability.AuditLog
		if path == "" {
			return fmt.Errorf("audit log disabled. Set SSOADMIN_AUDIT_LOG to enable it")
		}
		events, err := audit.ReadFile(path, *limit)
		if err != nil {
			return err
		}
		if *outputJSON {
			if events == nil {
				events = []*audit.Event{}
			}
			return writeJSON(app.Out, events)
		}
		if len(events) == 0 {
			fmt.Fprintln(app.Out, "Belum ada aktivitas")
			return nil
		}

		tw := newTable(app.Out, "WAKTU", "EVENT", "USER", "EMAIL", "DEVICE")
		for _, e := range events {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.EventType,
				orDash(e.UserID), orDash(e.Email), orDash(e.DeviceID))
		}
		return tw.Flush()
	}
	return cmd
}
