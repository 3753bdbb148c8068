package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	apiclient "github.com/hemanthhhhhh/API-Server/pkg/api/client"
)

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "deploy":
		err = commandDeploy(ctx, args)
	case "logs":
		err = commandLogs(ctx, args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func apiBase(flagValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("PEEP_API")); v != "" {
		return v
	}
	return "http://localhost:9000"
}

func commandDeploy(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("deploy", pflag.ExitOnError)
	slug := fs.String("slug", "", "Project slug (generated when empty)")
	follow := fs.BoolP("follow", "f", false, "Stream build logs after queueing")
	api := fs.String("api", "", "API base URL (default $PEEP_API or http://localhost:9000)")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("usage: peep deploy <git-url> [--slug s] [--follow]")
	}
	client, err := apiclient.New(apiBase(*api))
	if err != nil {
		return err
	}

	// subscribe before queueing so the first build lines are not missed
	var tailErr chan error
	if *follow && strings.TrimSpace(*slug) != "" {
		tailErr = startTail(ctx, client, *slug)
	}

	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	dep, err := client.Deploy(reqCtx, fs.Arg(0), *slug)
	cancel()
	if err != nil {
		return err
	}
	fmt.Printf("deployment queued: %s\n", dep.ProjectSlug)
	fmt.Printf("url: %s\n", dep.URL)

	if !*follow {
		return nil
	}
	if tailErr == nil {
		tailErr = startTail(ctx, client, dep.ProjectSlug)
	}
	return ignoreCanceled(<-tailErr)
}

func commandLogs(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("logs", pflag.ExitOnError)
	api := fs.String("api", "", "API base URL (default $PEEP_API or http://localhost:9000)")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("usage: peep logs <slug>")
	}
	client, err := apiclient.New(apiBase(*api))
	if err != nil {
		return err
	}
	return ignoreCanceled(<-startTail(ctx, client, fs.Arg(0)))
}

func startTail(ctx context.Context, client *apiclient.Client, slug string) chan error {
	done := make(chan error, 1)
	pretty := term.IsTerminal(int(os.Stdout.Fd()))
	go func() {
		done <- client.Tail(ctx, slug, func(data json.RawMessage) error {
			return printLog(os.Stdout, data, pretty)
		})
	}()
	return done
}

func printLog(w io.Writer, data json.RawMessage, pretty bool) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		_, err := fmt.Fprintln(w, text)
		return err
	}
	if pretty {
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err == nil {
			if msg, ok := decoded["log"].(string); ok {
				_, err := fmt.Fprintln(w, msg)
				return err
			}
			if msg, ok := decoded["error"].(string); ok {
				raw, _ := decoded["rawMessage"].(string)
				_, err := fmt.Fprintf(w, "! %s: %s\n", msg, raw)
				return err
			}
		}
		out, err := json.MarshalIndent(data, "", "  ")
		if err == nil {
			_, err = fmt.Fprintln(w, string(out))
		}
		return err
	}
	_, err := fmt.Fprintln(w, string(data))
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printUsage() {
	fmt.Printf("peep CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	peep deploy <git-url> [--slug s] [--follow] [--api http://localhost:9000]
	peep logs <slug> [--api http://localhost:9000]
	peep version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
