package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-go-golems/novachat/cmd/novachat/cmds"
	"github.com/go-go-golems/novachat/pkg/chatrunner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "novachat",
		Short:        "novachat is a terminal chat assistant with voice input and speech output",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := cmds.LoadConfig(cmd, true)
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			log.Info().
				Str("endpoint", cfg.LLM.Endpoint).
				Str("model", cfg.LLM.Model).
				Bool("mirror", cfg.Mirror.Enabled).
				Msg("NovaChat starting")

			session, err := chatrunner.NewChatBuilder().
				WithContext(cmd.Context()).
				WithConfig(cfg).
				WithMode(chatrunner.RunModeChat).
				Build()
			if err != nil {
				return err
			}
			err = session.Run()
			log.Info().Err(err).Msg("NovaChat stopped")
			return err
		},
	}

	cmds.AddPersistentFlags(rootCmd)
	cmds.AddLLMFlags(rootCmd)
	rootCmd.Flags().Bool("mirror", false, "Also serve the HTTP mirror")
	rootCmd.Flags().String("addr", "", "HTTP mirror listen address")
	rootCmd.Flags().Bool("speech", true, "Speak replies when a speech engine is available")
	rootCmd.Flags().Bool("voice", true, "Enable voice input when a recorder is available")
	rootCmd.Flags().Bool("markdown", true, "Render replies as markdown")

	rootCmd.AddCommand(cmds.NewAskCommand())
	rootCmd.AddCommand(cmds.NewServeCommand())
	rootCmd.AddCommand(cmds.NewVoicesCommand())
	rootCmd.AddCommand(cmds.NewConfigCommand())
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
