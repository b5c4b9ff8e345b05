package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/client"
)

var months = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

var days = [...]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

// FormatDate renders a backend timestamp as an Indonesian long date,
// e.g. "11 Desember 2025". Unparseable input renders as "-".
func FormatDate(value string) string {
	t, ok := parseTimestamp(value)
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%d %s %d", t.Day(), months[t.Month()-1], t.Year())
}

// DayName returns the Indonesian weekday of t.
func DayName(t time.Time) string {
	return days[t.Weekday()]
}

func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Initials returns the upper-cased first letters of the words of name,
// at most two of them: "John Doe" is "JD", "Alice" is "A".
func Initials(name string) string {
	var b strings.Builder
	count := 0
	for _, word := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
		count++
		if count == 2 {
			break
		}
	}
	return b.String()
}

// PrintError writes err the way the backend phrased it, with any field
// validation messages below it.
func PrintError(w io.Writer, err error) {
	apiErr := api.ParseError(err)
	fmt.Fprintf(w, "Error: %s\n", apiErr.Message)
	if apiErr.Detail != "" {
		fmt.Fprintf(w, "  %s\n", apiErr.Detail)
	}
	for _, field := range apiErr.Fields() {
		for _, msg := range apiErr.FieldErrors(field) {
			fmt.Fprintf(w, "  - %s: %s\n", field, msg)
		}
	}
	if errors.Is(err, client.ErrSessionExpired) {
		fmt.Fprintln(w, "Sesi Anda telah berakhir. Silakan login kembali: ssoadmin login email")
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	rules := make([]string, len(header))
	for i, h := range header {
		rules[i] = strings.Repeat("─", utf8.RuneCountInString(h))
	}
	fmt.Fprintln(tw, strings.Join(rules, "\t"))
	return tw
}

func yesNo(b bool) string {
	if b {
		return "✓"
	}
	return "✗"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printMeta(w io.Writer, meta api.PaginationMeta) {
	fmt.Fprintf(w, "\nHalaman %d dari %d (total %d)\n", meta.Page, meta.TotalPages, meta.TotalItems)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
