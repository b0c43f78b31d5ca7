package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/usecase/note"
	"github.com/urfave/cli/v3"
)

func noteCommand() *cli.Command {
	return &cli.Command{
		Name:  "note",
		Usage: "Browse and manage saved lecture notes",
		Commands: []*cli.Command{
			noteListCommand(),
			noteShowCommand(),
			noteDeleteCommand(),
			noteParseCommand(),
		},
	}
}

func noteListCommand() *cli.Command {
	var (
		cfg   config
		limit int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of notes to list",
			Value:       20,
			Sources:     cli.EnvVars("LECTERN_LIST_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List saved notes, most recent first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			if cfg.userID == "" {
				return goerr.New("user is required")
			}

			uc, err := cfg.newHistory(ctx)
			if err != nil {
				return err
			}

			notes, err := uc.ListNotes(ctx, cfg.userID, int(limit))
			if err != nil {
				return err
			}

			if len(notes) == 0 {
				fmt.Fprintf(c.Root().Writer, "No notes found\n")
				return nil
			}

			for _, n := range notes {
				fmt.Fprintf(c.Root().Writer, "%s  %s  %s\n",
					n.ID, n.CreatedAt.Format(time.DateTime), n.Note.Topic)
			}
			return nil
		},
	}
}

func noteShowCommand() *cli.Command {
	var (
		cfg        config
		transcript bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "transcript",
			Aliases:     []string{"t"},
			Usage:       "Also print the raw transcription the note was built from",
			Destination: &transcript,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:      "show",
		Usage:     "Show a saved note",
		ArgsUsage: "<note-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			if c.Args().Len() != 1 {
				return goerr.New("note ID is required")
			}

			uc, err := cfg.newHistory(ctx)
			if err != nil {
				return err
			}

			rec, err := uc.ShowNote(ctx, model.NoteID(c.Args().First()))
			if err != nil {
				return err
			}

			w := c.Root().Writer
			fmt.Fprintf(w, "Note:    %s\n", rec.ID)
			fmt.Fprintf(w, "Created: %s\n\n", rec.CreatedAt.Format(time.DateTime))
			renderNote(w, &rec.Note)
			if transcript {
				fmt.Fprintf(w, "\nTranscription:\n%s\n", rec.RawTranscription)
			}
			return nil
		},
	}
}

func noteDeleteCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a saved note",
		ArgsUsage: "<note-id>",
		Flags:     globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			if c.Args().Len() != 1 {
				return goerr.New("note ID is required")
			}
			id := model.NoteID(c.Args().First())

			uc, err := cfg.newHistory(ctx)
			if err != nil {
				return err
			}

			if err := uc.DeleteNote(ctx, id); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Note %s deleted\n", id)
			return nil
		},
	}
}

// noteParseCommand checks a model response offline. "-" reads stdin.
func noteParseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Parse a raw note response and print the structured note",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return goerr.New("file is required")
			}

			raw, err := readInput(c.Args().First())
			if err != nil {
				return err
			}

			n, err := note.Parse(string(raw))
			if err != nil {
				return err
			}

			renderNote(c.Root().Writer, n)
			return nil
		},
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read stdin")
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read file", goerr.V("path", path))
	}
	return data, nil
}
