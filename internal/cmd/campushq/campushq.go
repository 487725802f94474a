// Package campushq implements the campushq command: subcommand parsing,
// client wiring, and output formatting.
package campushq

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/campushq/campushq/internal/client"
	"github.com/campushq/campushq/internal/client/catalog"
	"github.com/campushq/campushq/internal/client/rsvp"
	platformcmd "github.com/campushq/campushq/internal/platform/cmd"
)

// Config holds the command configuration loaded from env and flags.
type Config struct {
	client.Config
}

// Usage is printed when no subcommand or an unknown one is given.
const Usage = `usage: campushq <command> [flags]

commands:
  login       sign in with email and password
  logout      sign out and clear the local session
  whoami      show the signed-in user
  events      list events (-search, -category, -status, -page, -limit)
  event       show one event (-id)
  create      submit an event for approval (-title, -date, -time, ...)
  rsvp        reserve a spot (-event, -guests)
  cancel      cancel a reservation (-event)
  my-rsvps    list your reservations
  pending     list events awaiting approval (admin)
  approve     approve a pending event (-id, admin)
  reject      reject a pending event (-id, -reason, admin)
  stats       show platform statistics (admin)
`

// Run parses the subcommand and executes it against a freshly wired app.
func Run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, Usage)
		return errors.New("a command is required")
	}
	command, rest := args[0], args[1:]

	cfg := Config{}
	fs := flag.NewFlagSet("campushq "+command, flag.ContinueOnError)
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return err
	}
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "platform API base URL")
	fs.StringVar(&cfg.StatePath, "state", cfg.StatePath, "sqlite file for the persisted session")

	run, err := dispatch(command, fs)
	if err != nil {
		fmt.Fprint(stdout, Usage)
		return err
	}
	if err := platformcmd.ParseArgs(fs, rest); err != nil {
		return err
	}

	return platformcmd.RunWithTelemetry(ctx, "campushq", func(ctx context.Context) error {
		app, err := client.New(cfg.Config)
		if err != nil {
			return err
		}
		defer app.Close()
		return run(ctx, app, stdout)
	})
}

type runFunc func(ctx context.Context, app *client.App, stdout io.Writer) error

// dispatch binds a subcommand's flags and returns its runner.
func dispatch(command string, fs *flag.FlagSet) (runFunc, error) {
	switch command {
	case "login":
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password (prompted when omitted)")
		return func(ctx context.Context, app *client.App, stdout io.Writer) error {
			secret := *password
			if secret == "" {
				var err error
				if secret, err = readPassword(stdout); err != nil {
					return err
				}
			}
			user, err := app.Account.Login(ctx, *email, secret)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "signed in as %s <%s>\n", user.Name, user.Email)
			return nil
		}, nil

	case "logout":
		return func(ctx context.Context, app *client.App, stdout io.Writer) error {
			if err := app.Account.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "signed out")
			return nil
		}, nil

	case "whoami":
		return func(ctx context.Context, app *client.App, stdout io.Writer) error {
			current, ok := app.Sessions.Get()
			if !ok {
				fmt.Fprintln(stdout, "not signed in")
				return nil
			}
			return printJSON(stdout, current.User)
		}, nil

	case "events":
		filter := catalog.Filter{}
		status := fs.String("status", "", "event status")
		fs.StringVar(&filter.Search, "search", "", "search term")
		fs.StringVar(&filter.Category, "category", "", "event category")
		fs.IntVar(&filter.Page, "page", 0, "page number")
		fs.IntVar(&filter.Limit, "limit", 0, "page size")
		return func(ctx context.Context, app *client.App, stdout io.Writer) error {
			filter.Status = catalog.Status(*status)
			events, meta, err := app.Catalog.List(ctx, filter)
			if err != nil {
				return err
			}
			if err := printJSON(stdout, events); err != nil {
				return err
			}
			if meta.TotalPages > 1 {
				fmt.Fprintf(stdout, "page %d of %d (%d events)\n", meta.CurrentPage, meta.TotalPages, meta.Total)
			}
			return nil
		}, nil

	case "event":
		id := fs.String("id", "", "event id")
		return func(ctx context.Context, app *client.App, stdout io.Writer) error {
			event, err := app.Catalog.ByID(ctx, *id)
			if err != nil {
				return err
			}
			return printJSON(stdout, event)
		}, nil

	case "create":
		draft := catalog.Draft{}
		fs.StringVar(&draft.Title, "title", "", "event title")
		fs.StringVar(&draft.Description, "description", "", "event description")
		fs.StringVar(&draft.Date, "date", "", "start date (YYYY-MM-DD)")
		fs.StringVar(&draft.Time, "time", "", "start time (HH:MM)")
		fs.StringVar(&draft.EndDate, "end-date", "", "end date (YYYY-MM-DD)")
		fs.StringVar(&draft.EndTime, "end-time", "", "end time (HH:MM)")
		fs.StringVar(&draft.Location, "location", "", "event location")
		fs.StringVar(&draft.Category, "category", "", "event category")
		fs.IntVar(&draft.Capacity, "capacity", 0, "attendee capacity")
		return func(ctx context.Context, app *client.App, stdout io.Writer) error {
			event, err := app.Catalog.Create(ctx, draft)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "submitted for approval: %s\n", event.ID)
			return nil
		}, nil

	case "rsvp":
		eventID := fs.String("event", "", "event id")
		guests := fs.Int("guests", 0, "number of guests")
		dietary := fs.String("dietary", "", "dietary preferences")
		return func(ctx context.Context, app *client.App, stdout io.Writer) error {
			opts := rsvp.Options{Guests: *guests, DietaryPreferences: *dietary}
			if _, err := app.RSVPs.Add(ctx, *eventID, opts); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "spot reserved")
			return nil
		}, nil

	case "cancel":
		eventID := fs.String("event", "", "event id")
		return func(ctx context.Context, app *client.App, stdout io.Writer) error {
			if _, err := app.RSVPs.Remove(ctx, *eventID); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "reservation cancelled")
			return nil
		}, nil

	case "my-rsvps":
		return func(ctx context.Context, app *client.App, stdout io.Writer) error {
			rsvps, err := app.RSVPs.Mine(ctx)
			if err != nil {
				return err
			}
			return printJSON(stdout, rsvps)
		}, nil

	case "pending":
		return func(ctx context.Context, app *client.App, stdout io.Writer) error {
			events, err := app.Approvals.Pending(ctx)
			if err != nil {
				return err
			}
			return printJSON(stdout, events)
		}, nil

	case "approve":
		id := fs.String("id", "", "event id")
		return func(ctx context.Context, app *client.App, stdout io.Writer) error {
			if _, err := app.Approvals.Approve(ctx, *id); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "event approved")
			return nil
		}, nil

	case "reject":
		id := fs.String("id", "", "event id")
		reason := fs.String("reason", "", "reason shown to the organizer")
		return func(ctx context.Context, app *client.App, stdout io.Writer) error {
			if _, err := app.Approvals.Reject(ctx, *id, *reason); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "event rejected")
			return nil
		}, nil

	case "stats":
		return func(ctx context.Context, app *client.App, stdout io.Writer) error {
			stats, err := app.Admin.Stats(ctx)
			if err != nil {
				return err
			}
			return printJSON(stdout, stats)
		}, nil
	}

	return nil, fmt.Errorf("unknown command %q", command)
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// readPassword prompts for a password on stdin.
func readPassword(stdout io.Writer) (string, error) {
	fmt.Fprint(stdout, "password: ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no password given")
	}
	return strings.TrimSpace(scanner.Text()), nil
}
