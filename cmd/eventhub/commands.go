package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"eventhub/internal/config"
	"eventhub/internal/ics"
	"eventhub/internal/model"
	"eventhub/internal/view"
)

var errUsage = errors.New("usage")

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func cmdRegister(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("register")
	username := fs.String("username", "", "Display name")
	email := fs.String("email", "", "Account email")
	password := fs.String("password", os.Getenv("EVENTHUB_PASSWORD"), "Password (or EVENTHUB_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	sess, err := e.ctrl.Register(ctx, *username, *email, *password)
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s <%s>\n", sess.Username, sess.Email)
	return nil
}

func cmdLogin(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "Account email")
	password := fs.String("password", os.Getenv("EVENTHUB_PASSWORD"), "Password (or EVENTHUB_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	sess, err := e.ctrl.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s <%s>\n", sess.Username, sess.Email)
	return nil
}

func cmdLogout(_ context.Context, e *env, _ []string) error {
	if err := e.ctrl.Logout(); err != nil {
		return err
	}
	fmt.Println("signed out")
	return nil
}

func cmdWhoami(_ context.Context, e *env, _ []string) error {
	sess, err := e.ctrl.RequireSession()
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s>\n", sess.Username, sess.Email)
	return nil
}

// load requires a session and fills the collection store.
func load(ctx context.Context, e *env) error {
	if _, err := e.ctrl.RequireSession(); err != nil {
		return err
	}
	return e.ctrl.Refresh(ctx)
}

func cmdList(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("list")
	category := fs.String("category", "", "Only this category")
	remote := fs.Bool("remote", false, "Ask the server to filter by category")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *remote && *category != "" {
		if _, err := e.ctrl.RequireSession(); err != nil {
			return err
		}
		events, err := e.ctrl.CategoryEvents(ctx, *category)
		if err != nil {
			return err
		}
		printEvents(os.Stdout, events, e.cfg.Location())
		return nil
	}

	if err := load(ctx, e); err != nil {
		return err
	}
	events := e.ctrl.Events().All()
	if *category != "" {
		events = view.ByCategory(events, *category)
	}
	printEvents(os.Stdout, events, e.cfg.Location())
	return nil
}

func cmdUpcoming(ctx context.Context, e *env, _ []string) error {
	if err := load(ctx, e); err != nil {
		return err
	}
	printEvents(os.Stdout, e.ctrl.Dashboard().Upcoming, e.cfg.Location())
	return nil
}

func cmdMine(ctx context.Context, e *env, _ []string) error {
	if err := load(ctx, e); err != nil {
		return err
	}
	printEvents(os.Stdout, e.ctrl.Dashboard().Mine, e.cfg.Location())
	return nil
}

func cmdCategories(ctx context.Context, e *env, _ []string) error {
	if err := load(ctx, e); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, c := range view.CategoryCounts(e.ctrl.Events().All()) {
		fmt.Fprintf(tw, "%s\t%d\n", c.Label, c.Count)
	}
	return tw.Flush()
}

func cmdShow(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if _, err := e.ctrl.RequireSession(); err != nil {
		return err
	}
	ev, err := e.ctrl.Event(ctx, args[0])
	if err != nil {
		return err
	}
	loc := e.cfg.Location()
	fmt.Printf("ID:          %s\n", ev.ID)
	fmt.Printf("Name:        %s\n", ev.Name)
	fmt.Printf("When:        %s %s\n", ev.StartsAt(loc).Format("Mon 2006-01-02"), ev.Time)
	fmt.Printf("Location:    %s\n", ev.Location)
	fmt.Printf("Category:    %s\n", ev.Category)
	fmt.Printf("Created by:  %s\n", ev.CreatorEmail)
	fmt.Printf("\n%s\n", ev.Description)
	return nil
}

// eventFlags binds the editable fields to fs, using cur as defaults.
type eventFlags struct {
	name, date, clock, location, description, category *string
}

func bindEventFlags(fs *flag.FlagSet, cur model.EventFields) eventFlags {
	return eventFlags{
		name:        fs.String("name", cur.Name, "Event name"),
		date:        fs.String("date", cur.Date.String(), "Date (YYYY-MM-DD or RFC 3339)"),
		clock:       fs.String("time", cur.Time, "Time of day, e.g. 18:30"),
		location:    fs.String("location", cur.Location, "Where it happens"),
		description: fs.String("description", cur.Description, "Free text"),
		category:    fs.String("category", cur.Category, "One of the configured categories"),
	}
}

func (f eventFlags) fields() (model.EventFields, error) {
	out := model.EventFields{
		Name:        strings.TrimSpace(*f.name),
		Time:        strings.TrimSpace(*f.clock),
		Location:    strings.TrimSpace(*f.location),
		Description: strings.TrimSpace(*f.description),
		Category:    strings.TrimSpace(*f.category),
	}
	if s := strings.TrimSpace(*f.date); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			return out, err
		}
		out.Date = d
	}
	return out, nil
}

func cmdCreate(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("create")
	ef := bindEventFlags(fs, model.EventFields{})
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if _, err := e.ctrl.RequireSession(); err != nil {
		return err
	}
	fields, err := ef.fields()
	if err != nil {
		return err
	}
	ev, err := e.ctrl.CreateEvent(ctx, fields)
	if err != nil {
		return err
	}
	fmt.Println(ev.ID)
	return nil
}

// cmdUpdate pre-fills every field from the stored event so that only the
// flags given change.
func cmdUpdate(ctx context.Context, e *env, args []string) error {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		return errUsage
	}
	id := args[0]
	if _, err := e.ctrl.RequireSession(); err != nil {
		return err
	}
	cur, err := e.ctrl.Event(ctx, id)
	if err != nil {
		return err
	}

	fs := newFlagSet("update")
	ef := bindEventFlags(fs, cur.Fields())
	if err := fs.Parse(args[1:]); err != nil {
		return errUsage
	}
	fields, err := ef.fields()
	if err != nil {
		return err
	}
	ev, err := e.ctrl.UpdateEvent(ctx, id, fields)
	if err != nil {
		return err
	}
	fmt.Println(ev.ID)
	return nil
}

func cmdDelete(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if _, err := e.ctrl.RequireSession(); err != nil {
		return err
	}
	return e.ctrl.DeleteEvent(ctx, args[0])
}

func cmdExport(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("export")
	out := fs.String("o", "", "Write to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := load(ctx, e); err != nil {
		return err
	}
	doc := ics.Export(e.ctrl.Events().All(), e.cfg.Location(), e.ctrl.Now())
	if *out == "" {
		_, err := io.WriteString(os.Stdout, doc)
		return err
	}
	return config.WriteFileAtomic(*out, []byte(doc))
}

func cmdImport(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("import")
	category := fs.String("category", "Social", "Category for entries without CATEGORIES")
	from := fs.String("from", "", "Expand recurrences from this date (default today)")
	to := fs.String("to", "", "Expand recurrences up to this date (default one year out)")
	maxOcc := fs.Int("max", 0, "Cap occurrences per recurring entry")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errUsage
	}
	if _, err := e.ctrl.RequireSession(); err != nil {
		return err
	}

	loc := e.cfg.Location()
	now := e.ctrl.Now().In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(1, 0, 0)
	if *from != "" {
		d, err := model.ParseDate(*from)
		if err != nil {
			return err
		}
		start = d.Time
	}
	if *to != "" {
		d, err := model.ParseDate(*to)
		if err != nil {
			return err
		}
		end = d.Time
	}

	body, err := ics.NewFetcher(e.cfg.API.Timeout).Read(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	entries, err := ics.Parse(body)
	if err != nil {
		return err
	}
	res, err := ics.Expand(entries, ics.ExpandConfig{
		Location:       loc,
		RangeStart:     start,
		RangeEnd:       end,
		MaxOccurrences: *maxOcc,
		Category:       *category,
	})
	if err != nil {
		return err
	}
	for _, uid := range res.Truncated {
		fmt.Fprintf(os.Stderr, "warning: %s hit the occurrence cap\n", uid)
	}

	out, err := e.ctrl.ImportEvents(ctx, res.Fields)
	fmt.Printf("created %d, skipped %d, failed %d\n", out.Created, out.Skipped, out.Failed)
	return err
}

func printEvents(w io.Writer, events []model.Event, loc *time.Location) {
	if len(events) == 0 {
		fmt.Fprintln(w, "no events")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTIME\tCATEGORY\tNAME\tLOCATION")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.ID, ev.StartsAt(loc).Format("2006-01-02"), ev.Time, ev.Category, ev.Name, ev.Location)
	}
	_ = tw.Flush()
}
