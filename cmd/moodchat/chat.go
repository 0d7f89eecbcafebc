package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/moodchat/internal/service/display"
	"github.com/zhouzirui/moodchat/internal/service/feed"
	"github.com/zhouzirui/moodchat/internal/service/prompt"
	"github.com/zhouzirui/moodchat/internal/service/save"
	"github.com/zhouzirui/moodchat/internal/service/transcript"
	"github.com/zhouzirui/moodchat/internal/service/turn"
	"github.com/zhouzirui/moodchat/internal/tui"
)

// session is everything the interactive UI and the one-shot commands share.
type session struct {
	transcript *transcript.Transcript
	renderer   *transcript.Renderer
	display    *display.Updater
	controller *turn.Controller
	saver      *save.Flow
	prompt     *prompt.Source
}

func (a *app) newSession(mode transcript.Mode, interval time.Duration, surface display.Surface) (*session, error) {
	overlap, err := turn.ParseOverlapPolicy(a.cfg.Client.Overlap)
	if err != nil {
		return nil, err
	}

	tr := transcript.New()
	renderer := transcript.NewRenderer(tr, transcript.Options{
		Mode:     mode,
		Interval: interval,
		Logger:   a.logger,
	})
	updater := display.NewUpdater(surface, a.logger)

	return &session{
		transcript: tr,
		renderer:   renderer,
		display:    updater,
		controller: turn.New(renderer, a.client, updater, turn.Options{
			Timeout: a.cfg.Client.Timeout,
			Overlap: overlap,
			Logger:  a.logger,
		}),
		saver:  save.NewFlow(tr, a.client, save.WithLogger(a.logger)),
		prompt: prompt.New(a.cfg.Client.PromptFile, a.logger),
	}, nil
}

func (a *app) runInteractive(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := transcript.ModeStyled
	if a.dev || a.cfg.Client.DevMode {
		mode = transcript.ModeEditable
	}

	s, err := a.newSession(mode, a.cfg.Client.RevealInterval, nil)
	if err != nil {
		return err
	}
	defer s.controller.Close()

	if s.prompt.Path() != "" {
		if err := s.prompt.Load(); err != nil {
			a.logger.Warn("[prompt] initial load failed", zap.String("path", s.prompt.Path()), zap.Error(err))
		}
	}

	var pushURL string
	if a.cfg.Client.Push {
		if pushURL, err = a.client.EmotionStreamURL(); err != nil {
			return err
		}
	}

	feed.LoadInitial(ctx, a.client, s.display, a.logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.New(ctx, tui.Options{
		Persona:    a.persona,
		Renderer:   s.renderer,
		Controller: s.controller,
		Display:    s.display,
		Saver:      s.saver,
		Backend:    a.client,
		Prompt:     s.prompt,
		Logger:     a.logger,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("run chat ui: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		program.Quit()
		return nil
	})
	g.Go(func() error {
		return feed.NewPoller(a.client, s.display, a.cfg.Client.PollInterval, a.logger).Run(gctx)
	})
	if pushURL != "" {
		g.Go(func() error {
			return feed.NewSubscriber(pushURL, s.display, feed.WithSubscriberLogger(a.logger)).Run(gctx)
		})
	}
	if s.prompt.Path() != "" {
		g.Go(func() error {
			if err := s.prompt.Watch(gctx); err != nil {
				// A broken prompt file should not end the chat.
				a.logger.Warn("[prompt] watch stopped", zap.Error(err))
			}
			return nil
		})
	}

	return g.Wait()
}
