package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/usecase/annotate"
	"github.com/m-mizutani/lectern/pkg/usecase/lecture"
	"github.com/m-mizutani/lectern/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func recordCommand() *cli.Command {
	var (
		cfg       config
		autoStart bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "start",
			Usage:       "Start recording immediately",
			Sources:     cli.EnvVars("LECTERN_AUTO_START"),
			Destination: &autoStart,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, sourceFlags(&cfg)...)

	return &cli.Command{
		Name:  "record",
		Usage: "Record a lecture interactively",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			s, err := loadSettings(cfg.settings)
			if err != nil {
				return err
			}

			repo, err := cfg.newRepository()
			if err != nil {
				return err
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			source, err := cfg.newLineSource()
			if err != nil {
				return err
			}

			filter, err := cfg.newLineFilter(ctx)
			if err != nil {
				return err
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "lectern> ",
				HistoryFile:     historyFile(),
				AutoComplete:    consoleCompleter(),
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize console")
			}
			defer rl.Close()

			out := rl.Stdout()
			opts := s.recorderOptions()
			opts = append(opts,
				lecture.WithUserID(cfg.userID),
				lecture.WithLineFilter(filter),
				lecture.WithPollInterval(cfg.pollInterval),
				lecture.WithAnnotateOptions(annotate.WithOnComplete(printAnnotation(out))),
				lecture.WithOnNote(func(ctx context.Context, n *model.Note) {
					fmt.Fprintf(out, "📘 note updated: %s\n", n.Topic)
				}),
			)
			if storage != nil {
				opts = append(opts, lecture.WithStorage(storage))
			}

			rec := lecture.New(gemini, source, repo, opts...)
			defer rec.Close()

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				if err := rec.Run(runCtx); err != nil {
					logging.From(ctx).Error("recorder stopped", "error", err)
				}
			}()

			con := &console{rec: rec, w: out}
			if autoStart {
				con.exec(ctx, "start")
			}

			fmt.Fprintf(out, "Type 'help' for commands, 'exit' to quit.\n")
			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						break
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read command")
				}

				if con.exec(ctx, line) {
					break
				}
			}

			if rec.Status().Active {
				con.exec(ctx, "stop")
			}
			return nil
		},
	}
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "lectern_history")
}

func consoleCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("start"),
		readline.PcItem("stop"),
		readline.PcItem("status"),
		readline.PcItem("blocks"),
		readline.PcItem("note"),
		readline.PcItem("save"),
		readline.PcItem("say"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

func printAnnotation(w io.Writer) annotate.CompleteFunc {
	return func(ctx context.Context, block model.AnnotationBlock, ann model.Annotation, err error) {
		if err != nil && ann.Text == "" {
			fmt.Fprintf(w, "⚠️  block %d could not be annotated: %v\n", block.ID, err)
			return
		}
		fmt.Fprintf(w, "\n[%d] %s\n    ↳ %s\n", block.ID, block.Text(), ann.Text)
	}
}

const consoleHelp = `Commands:
  start        start a new recording session
  stop         stop recording, finalize the note and save
  status       show session state
  blocks       show blocks and annotations
  note         show the current lecture note
  save         retry saving the last stopped session
  say <text>   inject a transcribed line
  exit         stop recording and quit
`

// console dispatches interactive commands to a Recorder
type console struct {
	rec *lecture.Recorder
	w   io.Writer
}

// exec runs one command line and reports whether the console should exit
func (x *console) exec(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")

	switch cmd {
	case "":
	case "exit", "quit":
		return true
	case "help":
		fmt.Fprint(x.w, consoleHelp)
	case "start":
		if err := x.rec.Start(ctx); err != nil {
			x.fail(err)
			return false
		}
		fmt.Fprintf(x.w, "🎙  recording (session #%d)\n", x.rec.Status().Epoch)
	case "stop":
		x.stop(ctx)
	case "save":
		x.save(ctx)
	case "status":
		renderStatus(x.w, x.rec.Status())
	case "blocks":
		renderEntries(x.w, x.rec.Blocks())
	case "note":
		renderNote(x.w, x.rec.Note())
	case "say":
		if arg == "" {
			fmt.Fprintf(x.w, "usage: say <text>\n")
			return false
		}
		if !x.rec.Status().Active {
			fmt.Fprintf(x.w, "not recording\n")
			return false
		}
		if err := x.rec.Ingest(ctx, arg); err != nil {
			x.fail(err)
		}
	default:
		fmt.Fprintf(x.w, "unknown command: %s (type 'help')\n", cmd)
	}
	return false
}

func (x *console) stop(ctx context.Context) {
	sp := x.spin("finishing annotations and note...")
	result, err := x.rec.Stop(ctx)
	sp.Stop()

	if result != nil {
		fmt.Fprintf(x.w, "⏹  stopped (note: %s)\n", result.Action)
		x.printSaved(result.ConversationID, result.NoteID)
	}
	if err != nil {
		x.fail(err)
		if errors.Is(err, lecture.ErrPersistence) {
			fmt.Fprintf(x.w, "session is kept, run 'save' to retry\n")
		}
	}
}

func (x *console) save(ctx context.Context) {
	sp := x.spin("saving...")
	result, err := x.rec.Save(ctx)
	sp.Stop()

	if result != nil {
		x.printSaved(result.ConversationID, result.NoteID)
	}
	if err != nil {
		x.fail(err)
	}
}

func (x *console) printSaved(convID model.ConversationID, noteID model.NoteID) {
	if convID != "" {
		fmt.Fprintf(x.w, "💾 conversation %s\n", convID)
	}
	if noteID != "" {
		fmt.Fprintf(x.w, "💾 note %s\n", noteID)
	}
}

func (x *console) spin(suffix string) *spinner.Spinner {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(x.w))
	sp.Suffix = " " + suffix
	sp.Start()
	return sp
}

func (x *console) fail(err error) {
	fmt.Fprintf(x.w, "❌ %v\n", err)
}
