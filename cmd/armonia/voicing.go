package main

import (
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/armonia/algorithms/tonal"
)

var voicingOpts struct {
	output      string
	voices      int
	startHigh   bool
	instruments []string
	basePitch   int
	velocity    int
}

func init() {
	defaults := tonal.DefaultVoicingParams()
	f := voicingCmd.Flags()
	f.StringVarP(&voicingOpts.output, "output", "o", "", "output file (stdout when empty)")
	f.IntVar(&voicingOpts.voices, "voices", defaults.Voices, "number of voices")
	f.BoolVar(&voicingOpts.startHigh, "start-high", false, "build the voicing downward from the top voice")
	f.StringSliceVar(&voicingOpts.instruments, "instruments", defaults.Instruments, "part name per voice")
	f.IntVar(&voicingOpts.basePitch, "base-pitch", 0, "pitch the first voice starts from (0 picks a default)")
	f.IntVar(&voicingOpts.velocity, "velocity", defaults.Velocity, "velocity of the held chords")

	rootCmd.AddCommand(voicingCmd)
}

var voicingCmd = &cobra.Command{
	Use:   "voicing <score.json>",
	Short: "Replaces every chord's parts with a block voicing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := readScore(args[0])
		if err != nil {
			return err
		}

		voiced, err := tonal.NewVoicer(system).VoiceScore(s, tonal.VoicingParams{
			Voices:      voicingOpts.voices,
			Instruments: voicingOpts.instruments,
			StartHigh:   voicingOpts.startHigh,
			BasePitch:   voicingOpts.basePitch,
			Velocity:    voicingOpts.velocity,
		})
		if err != nil {
			return err
		}

		out, err := voiced.Marshal()
		if err != nil {
			return err
		}
		return writeOutput(cmd, voicingOpts.output, out)
	},
}
