// ABOUTME: Entry point for the fold-sessions CLI
// ABOUTME: Inspects and manages the durable session/event store from the command line

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/fold-sessions/internal/config"
	"github.com/2389/fold-sessions/internal/session"
	"github.com/2389/fold-sessions/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: fold-sessions <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  init                        Write a starter config file")
		fmt.Println("  create --dir DIR            Create a new session")
		fmt.Println("  list                        List sessions, most recent first")
		fmt.Println("  show ID                     Show a session and its event log")
		fmt.Println("  append ID JSON              Append an event to a session")
		fmt.Println("  delete ID                   Delete a session and its events")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit()
	case "create":
		err = runCreate(ctx, os.Args[2:])
	case "list":
		err = runList(ctx)
	case "show":
		err = runShow(ctx, os.Args[2:])
	case "append":
		err = runAppend(ctx, os.Args[2:])
	case "delete":
		err = runDelete(ctx, os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openService loads the config, sets up logging, and builds the service
// over a store. The caller must Close the returned store.
func openService() (*session.Service, *store.SQLiteStore, error) {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating store: %w", err)
	}

	return session.New(st, logger), st, nil
}

func runInit() error {
	path := config.DefaultPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}

	cfg := config.Default()
	if err := cfg.Write(path); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Print("▶ ")
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func runCreate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	dir := fs.String("dir", "", "working directory for the session (required)")
	name := fs.String("name", "", "display name")
	id := fs.String("id", "", "session id (defaults to a generated UUID)")
	tags := fs.String("tags", "", "comma-separated tags")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, st, err := openService()
	if err != nil {
		return err
	}
	defer st.Close()

	var tagList []string
	if *tags != "" {
		tagList = strings.Split(*tags, ",")
	}

	sess, err := svc.Create(ctx, session.CreateRequest{
		ID:               *id,
		Name:             *name,
		WorkingDirectory: *dir,
		Tags:             tagList,
	})
	if err != nil {
		return err
	}

	fmt.Println(sess.ID)
	return nil
}

func runList(ctx context.Context) error {
	svc, st, err := openService()
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := svc.List(ctx)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return nil
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	for _, sess := range sessions {
		cyan.Print(sess.ID)
		if sess.Name != "" {
			fmt.Printf("  %s", sess.Name)
		}
		fmt.Printf("  %s", sess.WorkingDirectory)
		if len(sess.Tags) > 0 {
			gray.Printf("  [%s]", strings.Join(sess.Tags, ", "))
		}
		gray.Printf("  %s", sess.UpdatedAt.Format(time.RFC3339))
		fmt.Println()
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: fold-sessions show ID")
	}
	id := args[0]

	svc, st, err := openService()
	if err != nil {
		return err
	}
	defer st.Close()

	sess, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("no session with id %s", id)
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	cyan.Println(sess.ID)
	if sess.Name != "" {
		fmt.Printf("  name:    %s\n", sess.Name)
	}
	fmt.Printf("  dir:     %s\n", sess.WorkingDirectory)
	if len(sess.Tags) > 0 {
		fmt.Printf("  tags:    %s\n", strings.Join(sess.Tags, ", "))
	}
	fmt.Printf("  created: %s\n", sess.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  updated: %s\n", sess.UpdatedAt.Format(time.RFC3339))
	fmt.Println()

	events, err := svc.Events(ctx, id)
	if err != nil {
		return err
	}

	for _, evt := range events {
		data, err := json.Marshal(evt.Payload)
		if err != nil {
			data = []byte(fmt.Sprintf("%v", evt.Payload))
		}
		gray.Printf("%s #%d ", evt.Timestamp.Format("15:04:05.000"), evt.ID)
		fmt.Println(string(data))
	}
	return nil
}

func runAppend(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: fold-sessions append ID JSON")
	}
	id := args[0]

	var payload any
	if err := json.Unmarshal([]byte(args[1]), &payload); err != nil {
		return fmt.Errorf("parsing event payload: %w", err)
	}

	svc, st, err := openService()
	if err != nil {
		return err
	}
	defer st.Close()

	event, err := svc.Append(ctx, id, payload)
	if err != nil {
		return err
	}

	fmt.Printf("%d\n", event.ID)
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: fold-sessions delete ID")
	}
	id := args[0]

	svc, st, err := openService()
	if err != nil {
		return err
	}
	defer st.Close()

	removed, err := svc.Delete(ctx, id)
	if err != nil {
		return err
	}

	if removed {
		fmt.Printf("Deleted %s\n", id)
	} else {
		fmt.Printf("No session with id %s\n", id)
	}
	return nil
}
