// taskctl is a command line client for the taskdesk API. The token from
// signup or signin is kept in ~/.taskdesk/token and sent on later commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"taskdesk/pkg/client"
)

const usage = `usage: taskctl [flags] <command> [args]

commands:
  signup <name> <email> <password>
  signin <email> [password]
  logout
  create-user <name> <email>
  users
  add-task <user-id> <title> <description> [--due D] [--priority P] [--status S]
  tasks <user-id>
  complete <task-id>

flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string, out io.Writer) error {
	var (
		server    string
		tokenPath string
		due       string
		priority  string
		status    string
		timeout   time.Duration
	)

	flagSet := pflag.NewFlagSet("taskctl", pflag.ContinueOnError)
	flagSet.StringVarP(&server, "server", "s", envOr("TASKDESK_URL", "http://localhost:3000"), "API base URL")
	flagSet.StringVar(&tokenPath, "token-file", "", "token location (default ~/.taskdesk/token)")
	flagSet.StringVar(&due, "due", "", "add-task: due date")
	flagSet.StringVar(&priority, "priority", "", "add-task: Low, Medium or High")
	flagSet.StringVar(&status, "status", "", "add-task: Pending, inProgress or Completed")
	flagSet.DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	flagSet.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	args := flagSet.Args()
	if len(args) == 0 {
		flagSet.Usage()
		return errors.New("missing command")
	}

	tokens := client.TokenFile{Path: tokenPath}
	if tokenPath == "" {
		var err error
		if tokens, err = client.DefaultTokenFile(); err != nil {
			return err
		}
	}
	token, err := tokens.Load()
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}

	c := client.New(server)
	c.SetToken(token)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "signup":
		if err := want(cmd, rest, 3); err != nil {
			return err
		}
		if _, err := c.Signup(ctx, rest[0], rest[1], rest[2]); err != nil {
			return err
		}
		return saveToken(out, tokens, c.Token())

	case "signin":
		if len(rest) < 1 || len(rest) > 2 {
			return fmt.Errorf("signin: expected <email> [password]")
		}
		password := ""
		if len(rest) == 2 {
			password = rest[1]
		}
		if _, err := c.Signin(ctx, rest[0], password); err != nil {
			return err
		}
		return saveToken(out, tokens, c.Token())

	case "logout":
		if err := tokens.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(out, "signed out")
		return nil

	case "create-user":
		if err := want(cmd, rest, 2); err != nil {
			return err
		}
		id, err := c.CreateUser(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, id)
		return nil

	case "users":
		users, err := c.ListUsers(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tCREATED")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()

	case "add-task":
		if err := want(cmd, rest, 3); err != nil {
			return err
		}
		created, err := c.AddTask(ctx, rest[0], client.TaskInput{
			Title:       rest[1],
			Description: rest[2],
			DueDate:     due,
			Priority:    priority,
			Status:      status,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s (%s, %s)\n", created.Task.ID, created.Task.Status, created.Task.Priority)
		return nil

	case "tasks":
		if err := want(cmd, rest, 1); err != nil {
			return err
		}
		tasks, err := c.ListTasks(ctx, rest[0])
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tDUE")
		for _, t := range tasks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Status, t.Priority, t.DueDate)
		}
		return w.Flush()

	case "complete":
		if err := want(cmd, rest, 1); err != nil {
			return err
		}
		msg, err := c.CompleteTask(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, msg)
		return nil
	}

	return fmt.Errorf("unknown command %q", cmd)
}

func want(cmd string, args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s: expected %d arguments, got %d", cmd, n, len(args))
	}
	return nil
}

func saveToken(out io.Writer, tokens client.TokenFile, token string) error {
	if err := tokens.Save(token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	fmt.Fprintf(out, "signed in, token saved to %s\n", tokens.Path)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
