package main

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/moodchat/internal/client"
	"github.com/zhouzirui/moodchat/internal/config"
	"github.com/zhouzirui/moodchat/internal/logging"
)

// app carries what every command needs once PersistentPreRunE has run.
type app struct {
	baseURL string
	verbose bool
	dev     bool
	persona string

	cfg    *config.Config
	logger *zap.Logger
	client *client.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "moodchat",
		Short: "Terminal chat client with an emotion-aware character",
		Long: `moodchat talks to a character backend over HTTP and shows the character's
current emotion next to the conversation.

Run without arguments to start the interactive chat interface.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: a.runInteractive,
	}

	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "Backend base URL (default: MOODCHAT_BASE_URL or http://localhost:5000)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.Flags().BoolVar(&a.dev, "dev", false, "Editable transcript for dataset curation (same as MOODCHAT_DEV=true)")
	root.Flags().StringVar(&a.persona, "name", "Charlotte", "Name shown above the character's messages")

	root.AddCommand(
		newSendCmd(a),
		newEmotionCmd(a),
		newSaveCmd(a),
		newPopulateCmd(a),
		newHistoryCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.Client.BaseURL = strings.TrimRight(a.baseURL, "/")
	}

	level := cfg.Log.Level
	if a.verbose {
		level = "debug"
	}

	// The full-screen UI owns the terminal; log to a file or not at all.
	interactive := cmd == cmd.Root()
	var logger *zap.Logger
	switch {
	case interactive && cfg.Log.File == "":
		logger = zap.NewNop()
	default:
		logger, err = logging.New(level, cfg.Log.Dev, cfg.Log.File)
		if err != nil {
			return err
		}
	}

	a.cfg = cfg
	a.logger = logger
	a.client = client.New(cfg.Client.BaseURL,
		client.WithTimeout(cfg.Client.Timeout),
		client.WithLogger(logger))
	return nil
}

func main() {
	// .env is optional; the UI must not print before it takes the screen.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
