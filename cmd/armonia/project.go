package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/armonia/projection"
	"github.com/RyanBlaney/armonia/score"
)

var projectOpts struct {
	output     string
	policy     string
	repeat     bool
	keepTarget bool
	override   bool
}

func init() {
	f := projectCmd.Flags()
	f.StringVarP(&projectOpts.output, "output", "o", "", "output file (stdout when empty)")
	f.StringVar(&projectOpts.policy, "policy", string(projection.PolicyVoiceLeading), "diatonic, voice_leading or keep_pitch")
	f.BoolVar(&projectOpts.repeat, "repeat", false, "cycle the source over the whole target")
	f.BoolVar(&projectOpts.keepTarget, "keep-target", false, "keep the target's own parts")
	f.BoolVar(&projectOpts.override, "override", false, "let projected parts replace target parts of the same name")

	rootCmd.AddCommand(projectCmd)
}

var projectCmd = &cobra.Command{
	Use:   "project <source.json> <target.json>",
	Short: "Re-harmonizes a score onto the chords of another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := readScore(args[0])
		if err != nil {
			return err
		}
		target, err := readScore(args[1])
		if err != nil {
			return err
		}

		policy, err := projection.ParsePolicy(projectOpts.policy)
		if err != nil {
			return err
		}
		result, err := projection.NewProjector(system).Project(source, target, projection.Options{
			Policy:           policy,
			RepeatToDuration: projectOpts.repeat,
			KeepTarget:       projectOpts.keepTarget,
			AllowOverride:    projectOpts.override,
		})
		if err != nil {
			return err
		}

		out, err := result.Marshal()
		if err != nil {
			return err
		}
		return writeOutput(cmd, projectOpts.output, out)
	},
}

func readScore(path string) (score.Score, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return score.Score{}, fmt.Errorf("reading score: %w", err)
	}
	s, err := score.Unmarshal(data)
	if err != nil {
		return score.Score{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
