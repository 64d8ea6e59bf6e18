package cmds

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/go-go-golems/novachat/pkg/speech/output"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var selectedVoiceStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("118"))

func NewVoicesCommand() *cobra.Command {
	var preference string
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List the voices of the speech engine",
		Long:  "List the voices of the speech engine and mark the one the voice preference selects.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := LoadConfig(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			if cmd.Flags().Changed("preference") {
				cfg.TTS.VoicePreference = preference
			}
			dev, err := output.NewExecDevice(cmd.Context(), output.ExecDeviceSettings{
				Engine:          cfg.TTS.Engine,
				Rate:            cfg.TTS.Rate,
				VoicePreference: cfg.TTS.VoicePreference,
			})
			if err != nil {
				return err
			}
			voices, err := dev.Voices(cmd.Context())
			if err != nil {
				return errors.Wrapf(err, "could not list %s voices", dev.Engine())
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderVoices(dev.Engine(), voices, cfg.TTS.VoicePreference))
			return err
		},
	}
	cmd.Flags().StringVar(&preference, "preference", "", "Voice preference to test (default tts.voice_preference)")
	return cmd
}

func renderVoices(engine string, voices []output.Voice, preference string) string {
	selected, ok := output.SelectVoice(voices, preference)

	rows := make([][]string, 0, len(voices))
	for _, v := range voices {
		mark := ""
		if ok && v.ID == selected.ID {
			mark = "*"
		}
		rows = append(rows, []string{mark, v.ID, v.Name})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("", "ID", "NAME").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row >= 0 && row < len(voices) && ok && voices[row].ID == selected.ID {
				return selectedVoiceStyle
			}
			return lipgloss.NewStyle()
		})

	footer := fmt.Sprintf("%s: %d voices, preference %q ", engine, len(voices), preference)
	if ok {
		footer += "selects " + selected.Name
	} else {
		footer += "matches nothing, engine default is used"
	}
	return t.String() + "\n" + footer
}
