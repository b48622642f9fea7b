package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/go-kit/kit/log"
	"golang.org/x/term"

	"github.com/taskdeck/taskdeck/client"
	"github.com/taskdeck/taskdeck/tasksvc"
)

const usageText = `taskdeck is a command line client for the taskdeck server.

Usage:

	taskdeck [-addr host:port] <command> [arguments]

Commands:

	register	create an account and sign in
	login		sign in with email and password
	logout		sign out and discard the stored session
	refresh		rotate the stored token pair
	whoami		print the signed-in user
	list		list tasks, optionally filtered
	add		add a task
	edit		change fields of a task
	done		mark a task completed
	rm		delete a task
`

func main() {
	fs := flag.NewFlagSet("taskdeck", flag.ExitOnError)
	var (
		addr        = fs.String("addr", envString("TASKDECK_ADDR", "localhost:5000"), "Server address")
		sessionPath = fs.String("session", envString("TASKDECK_SESSION", defaultSessionPath()), "Session file")
	)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usageText) }
	fs.Parse(os.Args[1:])

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	logger := log.NewLogfmtLogger(os.Stderr)

	c, err := client.New(*addr, logger)
	if err != nil {
		fatal(err)
	}

	ctx := context.Background()
	session := client.NewSession(*sessionPath)

	command, args := fs.Arg(0), fs.Args()[1:]
	switch command {
	case "register":
		err = register(ctx, c, session)
	case "login":
		err = login(ctx, c, session)
	case "logout":
		err = session.Logout(ctx, c)
	case "refresh":
		err = session.Rotate(ctx, c)
	case "whoami":
		err = whoami(ctx, c, session)
	case "list":
		err = list(ctx, c, session, args)
	case "add":
		err = add(ctx, c, session, args)
	case "edit":
		err = edit(ctx, c, session, args)
	case "done":
		err = done(ctx, c, session, args)
	case "rm":
		err = remove(ctx, c, session, args)
	default:
		fs.Usage()
		os.Exit(1)
	}
	if err != nil {
		fatal(err)
	}
}

func register(ctx context.Context, c *client.Client, session *client.Session) error {
	name := prompt("Name: ")
	email := prompt("Email: ")
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	if err := session.Register(ctx, c, name, email, password); err != nil {
		return err
	}

	fmt.Printf("Signed in as %s\n", session.User.Email)
	return nil
}

func login(ctx context.Context, c *client.Client, session *client.Session) error {
	email := prompt("Email: ")
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	if err := session.Login(ctx, c, email, password); err != nil {
		return err
	}

	fmt.Printf("Signed in as %s\n", session.User.Email)
	return nil
}

func whoami(ctx context.Context, c *client.Client, session *client.Session) error {
	if err := session.Resolve(ctx, c); err != nil {
		return err
	}
	if !session.Authenticated() {
		return fmt.Errorf("not signed in")
	}

	fmt.Printf("%s <%s>\n", session.User.Name, session.User.Email)
	return nil
}

func list(ctx context.Context, c *client.Client, session *client.Session, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	var (
		status   = fs.String("status", "all", "Filter by status (active|completed|all)")
		priority = fs.String("priority", "all", "Filter by priority (low|medium|high|all)")
	)
	fs.Parse(args)

	store, err := openStore(ctx, c, session)
	if err != nil {
		return err
	}
	store.SetFilter(*status, *priority)

	tasks := store.Tasks()
	if len(tasks) == 0 {
		fmt.Println("No tasks.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tTITLE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, t.Title)
	}
	return w.Flush()
}

func add(ctx context.Context, c *client.Client, session *client.Session, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	var (
		description = fs.String("d", "", "Description")
		priority    = fs.String("p", "medium", "Priority (low|medium|high)")
	)
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: taskdeck add [-d description] [-p priority] <title>")
	}
	title := strings.Join(fs.Args(), " ")

	store, err := openStore(ctx, c, session)
	if err != nil {
		return err
	}

	task, err := store.Create(ctx, title, *description, *priority)
	if err != nil {
		return err
	}

	fmt.Printf("Added task %d: %s\n", task.ID, task.Title)
	return nil
}

func edit(ctx context.Context, c *client.Client, session *client.Session, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	var (
		title       = fs.String("t", "", "Title")
		description = fs.String("d", "", "Description")
		status      = fs.String("s", "", "Status (active|completed)")
		priority    = fs.String("p", "", "Priority (low|medium|high)")
	)
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: taskdeck edit [-t title] [-d description] [-s status] [-p priority] <id>")
	}
	id, err := parseID(fs.Arg(0))
	if err != nil {
		return err
	}

	// Only flags the user passed become part of the patch, so an untouched
	// field keeps its server value and -d "" clears the description.
	var patch tasksvc.TaskPatch
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			patch.Title = title
		case "d":
			patch.Description = description
		case "s":
			patch.Status = status
		case "p":
			patch.Priority = priority
		}
	})

	store, err := openStore(ctx, c, session)
	if err != nil {
		return err
	}

	task, err := store.Update(ctx, id, patch)
	if err != nil {
		return err
	}

	fmt.Printf("Updated task %d: %s\n", task.ID, task.Title)
	return nil
}

func done(ctx context.Context, c *client.Client, session *client.Session, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: taskdeck done <id>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	store, err := openStore(ctx, c, session)
	if err != nil {
		return err
	}

	completed := string(tasksvc.StatusCompleted)
	task, err := store.Update(ctx, id, tasksvc.TaskPatch{Status: &completed})
	if err != nil {
		return err
	}

	fmt.Printf("Completed task %d: %s\n", task.ID, task.Title)
	return nil
}

func remove(ctx context.Context, c *client.Client, session *client.Session, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: taskdeck rm <id>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	store, err := openStore(ctx, c, session)
	if err != nil {
		return err
	}

	if err := store.Delete(ctx, id); err != nil {
		return err
	}

	fmt.Printf("Deleted task %d\n", id)
	return nil
}

func openStore(ctx context.Context, c *client.Client, session *client.Session) (*client.TaskStore, error) {
	if session.Token == "" {
		return nil, fmt.Errorf("not signed in, run taskdeck login first")
	}

	store := client.NewTaskStore(c, session, nil)
	if err := store.Load(ctx); err != nil {
		if client.IsUnauthorized(err) {
			return nil, fmt.Errorf("session expired, run taskdeck login again")
		}
		return nil, err
	}
	return store, nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func prompt(label string) string {
	fmt.Print(label)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	return strings.TrimSpace(scanner.Text())
}

func promptPassword(label string) (string, error) {
	fmt.Print(label)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func fatal(err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && len(apiErr.Details) > 0 {
		fmt.Fprintf(os.Stderr, "taskdeck: %s (%s)\n", apiErr.Message, apiErr.Details)
	} else {
		fmt.Fprintf(os.Stderr, "taskdeck: %v\n", err)
	}
	os.Exit(1)
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskdeck-session.json"
	}
	return filepath.Join(home, ".taskdeck", "session.json")
}

func envString(env, fallback string) string {
	e := os.Getenv(env)
	if e == "" {
		return fallback
	}
	return e
}
