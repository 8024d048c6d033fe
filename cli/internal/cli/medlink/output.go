package medlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/OHshajim/MedLink/pkg/medlink/api"
	apperrors "github.com/OHshajim/MedLink/pkg/medlink/errors"
	"github.com/OHshajim/MedLink/pkg/medlink/guard"
	"github.com/OHshajim/MedLink/pkg/medlink/paging"
	"github.com/OHshajim/MedLink/pkg/medlink/validate"
	"github.com/OHshajim/MedLink/pkg/medlink/views"
)

const dateTimeLayout = "Mon 02 Jan 2006 15:04"

// printer shows notices as colored lines
type printer struct {
	w io.Writer
}

func (p *printer) Notify(n views.Notice) {
	mark, c := "✓", color.New(color.FgGreen, color.Bold)
	if n.Variant == views.VariantDestructive {
		mark, c = "✗", color.New(color.FgRed, color.Bold)
	}
	c.Fprintf(p.w, "%s %s\n", mark, n.Title)
	if n.Description != "" {
		fmt.Fprintf(p.w, "  %s\n", n.Description)
	}
}

// spin shows a spinner on the terminal while fn runs
func (rt *runtime) spin(msg string, fn func()) {
	if !rt.interactive {
		fn()
		return
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(rt.errOut))
	s.Suffix = " " + msg
	s.Start()
	defer s.Stop()
	fn()
}

func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

func renderDoctors(w io.Writer, page *paging.Page[api.Doctor]) {
	t := newTable(w, table.Row{"ID", "Name", "Specialization", "Email"})
	for _, d := range page.Data {
		t.AppendRow(table.Row{d.ID, d.Name, d.Specialization, d.Email})
	}
	t.Render()
	renderFooter(w, page.Page, page.Pages(), page.Total)
}

func renderAppointments(w io.Writer, page *paging.Page[api.Appointment], with string) {
	t := newTable(w, table.Row{"ID", "Date", with, "Status"})
	for _, a := range page.Data {
		t.AppendRow(table.Row{a.ID, a.Date.Local().Format(dateTimeLayout), a.Counterparty(), statusLabel(a.Status)})
	}
	t.Render()
	renderFooter(w, page.Page, page.Pages(), page.Total)
}

func renderFooter(w io.Writer, page, pages, total int) {
	fmt.Fprintf(w, "Page %d of %d (%d total)\n", page, pages, total)
}

// statusLabel renders PENDING as a colored "Pending"
func statusLabel(s api.Status) string {
	label := cases.Title(language.English).String(strings.ToLower(string(s)))
	switch s {
	case api.StatusPending:
		return color.YellowString(label)
	case api.StatusCompleted:
		return color.GreenString(label)
	case api.StatusCancelled:
		return color.RedString(label)
	}
	return label
}

func roleLabel(r api.Role) string {
	return cases.Title(language.English).String(strings.ToLower(string(r)))
}

// cliError carries the message shown to the user. reported is set when a
// notice describing the failure was already printed.
type cliError struct {
	msg      string
	err      error
	reported bool
}

func (e *cliError) Error() string { return e.msg }
func (e *cliError) Unwrap() error { return e.err }

// Reported reports whether err was already shown to the user as a notice
func Reported(err error) bool {
	var ce *cliError
	return errors.As(err, &ce) && ce.reported
}

// userError turns a client error into a message for the terminal. notified
// tells whether a view already printed a notice for it.
func userError(err error, notified bool) error {
	if err == nil {
		return nil
	}
	var re *views.RedirectError
	if errors.As(err, &re) {
		return redirectError(re.Decision, err)
	}
	if errors.Is(err, views.ErrStale) {
		return &cliError{msg: "the request was superseded", err: err}
	}

	msg := apperrors.Message(err)
	if fields := validate.Fields(err); len(fields) > 0 {
		lines := make([]string, len(fields))
		for i, f := range fields {
			lines[i] = fmt.Sprintf("  %s: %s", f.Field, f.Message)
		}
		msg = "invalid input:\n" + strings.Join(lines, "\n")
		notified = false
	}
	return &cliError{msg: msg, err: err, reported: notified}
}

// redirectError explains why the guard refused a command
func redirectError(d guard.Decision, cause error) error {
	msg := "you are not logged in; run 'medlink login' first"
	switch {
	case rejectedByServer(cause):
		msg = "your session has expired; run 'medlink login' again"
	case d.From == "":
		msg = "this command needs a different account; run 'medlink login' with the right --role"
	}
	return &cliError{msg: msg, err: cause}
}

func rejectedByServer(err error) bool {
	var ae *apperrors.AppError
	return errors.As(err, &ae) && ae.Code == apperrors.ErrCodeUnauthorized && ae.Status == http.StatusUnauthorized
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// resultError converts a failed view load into a CLI error
func resultError[T any](res views.Result[T]) error {
	switch {
	case res.Redirect != nil:
		return redirectError(*res.Redirect, res.Err)
	case res.Stale:
		return userError(views.ErrStale, false)
	case res.Err != nil:
		return userError(res.Err, !isContextErr(res.Err))
	}
	return nil
}
