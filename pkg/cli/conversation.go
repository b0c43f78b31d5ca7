package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/usecase/history"
	"github.com/urfave/cli/v3"
)

func conversationCommand() *cli.Command {
	return &cli.Command{
		Name:    "conversation",
		Aliases: []string{"conv"},
		Usage:   "Browse saved conversations",
		Commands: []*cli.Command{
			conversationListCommand(),
			conversationShowCommand(),
		},
	}
}

// newHistory builds the history usecase from the repository and optional storage
func (cfg *config) newHistory(ctx context.Context) (*history.UseCase, error) {
	repo, err := cfg.newRepository()
	if err != nil {
		return nil, err
	}

	storage, err := cfg.newStorage(ctx)
	if err != nil {
		return nil, err
	}

	var opts []history.Option
	if storage != nil {
		opts = append(opts, history.WithStorage(storage))
	}
	return history.New(repo, opts...), nil
}

func conversationListCommand() *cli.Command {
	var (
		cfg   config
		limit int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of conversations to list",
			Value:       20,
			Sources:     cli.EnvVars("LECTERN_LIST_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List saved conversations, most recent first",
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

			convs, err := uc.ListConversations(ctx, cfg.userID, int(limit))
			if err != nil {
				return err
			}

			if len(convs) == 0 {
				fmt.Fprintf(c.Root().Writer, "No conversations found\n")
				return nil
			}

			for _, conv := range convs {
				fmt.Fprintf(c.Root().Writer, "%s  %s  %s\n",
					conv.ID, conv.CreatedAt.Format(time.DateTime), conv.Summary)
			}
			return nil
		},
	}
}

func conversationShowCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)

	return &cli.Command{
		Name:      "show",
		Usage:     "Show blocks and annotations of a conversation",
		ArgsUsage: "<conversation-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			if c.Args().Len() != 1 {
				return goerr.New("conversation ID is required")
			}
			id := model.ConversationID(c.Args().First())

			uc, err := cfg.newHistory(ctx)
			if err != nil {
				return err
			}

			conv, err := uc.ShowConversation(ctx, id)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Conversation: %s\n", conv.ID)
			fmt.Fprintf(c.Root().Writer, "Created:      %s\n", conv.CreatedAt.Format(time.DateTime))
			renderEntries(c.Root().Writer, conv.Entries)
			return nil
		},
	}
}
