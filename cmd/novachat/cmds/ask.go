package cmds

import (
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/novachat/pkg/chatrunner"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewAskCommand() *cobra.Command {
	var continueInChat bool
	cmd := &cobra.Command{
		Use:   "ask [prompt...]",
		Short: "Send one message and print the reply",
		Long: "Send one message with a fresh conversation and print the reply on stdout. " +
			"Without arguments the prompt is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := LoadConfig(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			prompt, err := readPrompt(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			mode := chatrunner.RunModeBlocking
			if continueInChat {
				mode = chatrunner.RunModeInteractive
			}
			session, err := chatrunner.NewChatBuilder().
				WithContext(cmd.Context()).
				WithConfig(cfg).
				WithMode(mode).
				WithPrompt(prompt).
				WithOutputWriter(cmd.OutOrStdout()).
				Build()
			if err != nil {
				return err
			}
			return session.Run()
		},
	}
	AddLLMFlags(cmd)
	cmd.Flags().Bool("markdown", true, "Render the reply as markdown")
	cmd.Flags().BoolVar(&continueInChat, "continue", false, "Offer to continue in the chat interface afterwards")
	return cmd
}

func readPrompt(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return "", errors.New("no prompt given")
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", errors.Wrap(err, "could not read prompt from stdin")
	}
	prompt := strings.TrimSpace(string(b))
	if prompt == "" {
		return "", errors.New("no prompt given")
	}
	return prompt, nil
}
