package cmds

import (
	"github.com/go-go-golems/novachat/pkg/chatrunner"
	"github.com/spf13/cobra"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run only the HTTP mirror",
		Long:  "Serve POST /get_response_http, answering each request with a fresh conversation.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := LoadConfig(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			session, err := chatrunner.NewChatBuilder().
				WithContext(cmd.Context()).
				WithConfig(cfg).
				WithMode(chatrunner.RunModeServe).
				Build()
			if err != nil {
				return err
			}
			return session.Run()
		},
	}
	AddLLMFlags(cmd)
	cmd.Flags().String("addr", "", "Listen address (default mirror.addr)")
	return cmd
}
