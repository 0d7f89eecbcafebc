package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/moodchat/internal/model/chat"
	"github.com/zhouzirui/moodchat/internal/service/display"
	"github.com/zhouzirui/moodchat/internal/service/feed"
	"github.com/zhouzirui/moodchat/internal/service/transcript"
	"github.com/zhouzirui/moodchat/internal/service/turn"
)

func formatView(v display.View) string {
	return fmt.Sprintf("%s  %s  %s  %s", v.Label, v.BarCSS(), v.Readout, v.Artwork)
}

// argsInput feeds a one-shot message to the turn controller.
type argsInput struct {
	message string
	prompt  string
}

func (in argsInput) Message() string { return in.message }
func (in argsInput) Prompt() string  { return in.prompt }
func (in argsInput) Clear()          {}

func newSendCmd(a *app) *cobra.Command {
	var promptText string
	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send one message and print the reply and emotion",
		Example: `  moodchat send "How is your research going?"
  moodchat send --prompt "answer in one sentence" "What do you study?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newSession(transcript.ModeStyled, 0, nil)
			if err != nil {
				return err
			}
			defer s.controller.Close()

			if promptText == "" && s.prompt.Path() != "" {
				if err := s.prompt.Load(); err != nil {
					return err
				}
				promptText = s.prompt.Get()
			}

			t, err := s.controller.Submit(cmd.Context(), argsInput{
				message: strings.Join(args, " "),
				prompt:  promptText,
			})
			if errors.Is(err, turn.ErrEmptyInput) {
				return errors.New("message is required")
			}
			if err != nil {
				return err
			}
			if err := t.Wait(cmd.Context()); err != nil {
				return err
			}

			outcome := t.Outcome()
			if outcome.Failed {
				return errors.New(strings.TrimPrefix(outcome.Error, "Error: "))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, outcome.Reply)
			if v, ok := s.display.View(); ok {
				fmt.Fprintln(out, formatView(v))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&promptText, "prompt", "p", "", "Secondary prompt sent with the message (default: MOODCHAT_PROMPT_FILE contents)")
	return cmd
}

func newEmotionCmd(a *app) *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "emotion",
		Short: "Show the character's current emotion",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			state, err := a.client.CurrentEmotion(cmd.Context())
			if err != nil {
				return err
			}

			updater := display.NewUpdater(display.SurfaceFunc(func(v display.View) {
				fmt.Fprintln(out, formatView(v))
			}), a.logger)
			updater.ApplyState(state)
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !cmd.Flags().Changed("interval") && a.cfg.Client.PollInterval > 0 {
				interval = a.cfg.Client.PollInterval
			}
			var pushURL string
			if a.cfg.Client.Push {
				if pushURL, err = a.client.EmotionStreamURL(); err != nil {
					return err
				}
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return feed.NewPoller(a.client, updater, interval, a.logger).Run(gctx)
			})
			if pushURL != "" {
				g.Go(func() error {
					return feed.NewSubscriber(pushURL, updater, feed.WithSubscriberLogger(a.logger)).Run(gctx)
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep printing changes until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval for --watch (default: MOODCHAT_POLL_INTERVAL when set)")
	return cmd
}

func newSaveCmd(a *app) *cobra.Command {
	var (
		file        string
		title       string
		description string
		quality     float64
	)
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Analyze and save a conversation read from a JSON file",
		Long: `Reads a conversation as a JSON array of {"sender": "user"|"bot", "text": "..."}
objects, asks the backend for a title, description and quality score, applies
any overrides given as flags and saves it.`,
		Example: `  moodchat save --file chat.json --title "Research methods"
  cat chat.json | moodchat save --quality 0.9`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			messages, err := readConversation(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			s, err := a.newSession(transcript.ModeStyled, 0, nil)
			if err != nil {
				return err
			}
			defer s.controller.Close()

			for _, msg := range messages {
				node := s.renderer.Render(ctx, msg.Text, msg.Sender)
				if err := node.Wait(ctx); err != nil {
					return err
				}
			}

			draft, err := s.saver.Open(ctx)
			if err != nil {
				return err
			}
			if draft.Fallback() {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: analysis failed, using fallback details")
			}

			flags := cmd.Flags()
			if flags.Changed("title") {
				draft.Title = title
			}
			if flags.Changed("description") {
				draft.Description = description
			}
			if flags.Changed("quality") {
				draft.QualityScore = quality
			}

			id, err := s.saver.Confirm(ctx, draft)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %q as %s (quality %.2f)\n", strings.TrimSpace(draft.Title), id, draft.QualityScore)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Conversation JSON file, - for stdin")
	cmd.Flags().StringVar(&title, "title", "", "Override the suggested title")
	cmd.Flags().StringVar(&description, "description", "", "Override the suggested description")
	cmd.Flags().Float64Var(&quality, "quality", 0, "Override the suggested quality score (0-1)")
	return cmd
}

func readConversation(stdin io.Reader, file string) ([]chat.Message, error) {
	var r io.Reader = stdin
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open conversation: %w", err)
		}
		defer f.Close()
		r = f
	}

	var messages []chat.Message
	if err := json.NewDecoder(r).Decode(&messages); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	for i, msg := range messages {
		if !msg.Sender.Valid() {
			return nil, fmt.Errorf("message %d: unknown sender %q", i, msg.Sender)
		}
	}
	return messages, nil
}

func newPopulateCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Seed the character's initial memories on the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !yes {
				fmt.Fprint(out, "Populate the character's initial data? [y/N] ")
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				switch strings.ToLower(strings.TrimSpace(answer)) {
				case "y", "yes":
				default:
					fmt.Fprintln(out, "Cancelled.")
					return nil
				}
			}

			msg, err := a.client.PopulateInitialData(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, msg)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		raw   bool
		style string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.client.SavedConversations(cmd.Context())
			if err != nil {
				return err
			}

			md := historyMarkdown(list)
			if raw {
				_, err := io.WriteString(cmd.OutOrStdout(), md)
				return err
			}

			opt := glamour.WithAutoStyle()
			if style != "auto" {
				opt = glamour.WithStandardStyle(style)
			}
			r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(100))
			if err != nil {
				return fmt.Errorf("create markdown renderer: %w", err)
			}
			rendered, err := r.Render(md)
			if err != nil {
				return fmt.Errorf("render history: %w", err)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), rendered)
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print markdown without terminal styling")
	cmd.Flags().StringVar(&style, "style", "auto", "glamour style (auto, dark, light, notty, ...)")
	return cmd
}

func historyMarkdown(list []chat.SavedConversation) string {
	var sb strings.Builder
	sb.WriteString("# Saved conversations\n\n")
	if len(list) == 0 {
		sb.WriteString("_Nothing saved yet._\n")
		return sb.String()
	}

	sb.WriteString("| Title | Type | Quality | Saved | Description |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, c := range list {
		fmt.Fprintf(&sb, "| %s | %s | %.2f | %s | %s |\n",
			escapeCell(c.Title),
			escapeCell(c.ConversationType),
			c.QualityScore,
			c.CreatedAt.Local().Format("2006-01-02 15:04"),
			escapeCell(c.Description))
	}
	return sb.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
