package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jessevdk/go-flags"
)

// GlobalOptions apply to every command.
type GlobalOptions struct {
	EnvFile string `long:"env-file" description:"dotenv file read before the environment" default:".env"`
	DryRun  bool   `short:"n" long:"dry-run" description:"resolve and report without writing to the catalog or the mailbox"`
	Verbose bool   `short:"v" long:"verbose" description:"debug logging"`
}

// exitError carries a process exit code other than 1.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func newLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Level:           log.InfoLevel,
	})
}

func main() {
	var global GlobalOptions
	logger := newLogger()
	a := &app{global: &global, logger: logger}

	parser := flags.NewParser(&global, flags.HelpFlag|flags.PassDoubleDash)
	parser.ShortDescription = "pitchlist"
	parser.LongDescription = "Turns newsletter album reviews into monthly playlists."

	commands := []struct {
		name, short, long string
		data              any
	}{
		{"sync", "Fill monthly playlists from the newsletter emails", "Search the mailbox, add one track per reviewed album to the playlist of its month and archive the processed emails.", &syncCommand{app: a}},
		{"preview", "Browse the albums found in the mailbox", "Fetch and aggregate the newsletter emails without touching the catalog or the mailbox.", &previewCommand{app: a}},
		{"prune", "Remove repeated albums from monthly playlists", "Keep only the first track of each album in every monthly playlist.", &pruneCommand{app: a}},
		{"publish", "Make every playlist public", "Set every playlist owned by the current user to public.", &publishCommand{app: a}},
		{"trash", "Move messages to the trash by UID", "Move an explicit list of IMAP UIDs from the source mailbox to the trash mailbox.", &trashCommand{app: a}},
		{"history", "Show recent playlist updates", "Print the run ledger.", &historyCommand{app: a}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot register command %s: %v\n", c.name, err)
			os.Exit(1)
		}
	}

	if _, err := parser.Parse(); err != nil {
		var fe *flags.Error
		if errors.As(err, &fe) {
			if fe.Type == flags.ErrHelp {
				fmt.Fprintln(os.Stdout, fe.Message)
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, fe.Message)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}
