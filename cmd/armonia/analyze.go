package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/armonia/algorithms/chroma"
	"github.com/RyanBlaney/armonia/analysis"
	"github.com/RyanBlaney/armonia/transcode"
)

var analyzeOpts struct {
	output        string
	stepsPerBeat  int
	pickup        int
	similarity    string
	minPresence   float64
	windowsPerBar int
	noDrums       bool
	full          bool
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVarP(&analyzeOpts.output, "output", "o", "", "output file (stdout when empty)")
	f.IntVar(&analyzeOpts.stepsPerBeat, "steps-per-beat", 4, "grid resolution per quarter note")
	f.IntVar(&analyzeOpts.pickup, "pickup", 0, "steps before the first full bar")
	f.StringVar(&analyzeOpts.similarity, "similarity", string(chroma.SimilarityCosine), "key profile similarity: cosine or pearson")
	f.Float64Var(&analyzeOpts.minPresence, "min-presence", 0, "fraction of a span a pitch class must sound to count")
	f.IntVar(&analyzeOpts.windowsPerBar, "windows-per-bar", 1, "key analysis windows per bar")
	f.BoolVar(&analyzeOpts.noDrums, "no-drums", false, "drop the percussion channel")
	f.BoolVar(&analyzeOpts.full, "full", false, "emit spans, labels and key windows next to the score")

	rootCmd.AddCommand(analyzeCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.mid>",
	Short: "Segments a MIDI file into a chord score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		decoderCfg := transcode.DefaultDecoderConfig()
		decoderCfg.IncludePercussion = !analyzeOpts.noDrums
		midiData, err := transcode.NewDecoder(decoderCfg).DecodeFile(args[0])
		if err != nil {
			return err
		}

		similarity, err := chroma.ParseSimilarity(analyzeOpts.similarity)
		if err != nil {
			return err
		}

		cfg := analysis.DefaultAnalyzerConfig()
		cfg.StepsPerBeat = analyzeOpts.stepsPerBeat
		cfg.TimeSignature = midiData.TimeSignature
		cfg.Tempo = midiData.Tempo
		cfg.Pickup = analyzeOpts.pickup
		cfg.Similarity = similarity
		cfg.MinPresence = analyzeOpts.minPresence
		cfg.WindowsPerBar = analyzeOpts.windowsPerBar
		cfg.PercussionChannel = decoderCfg.PercussionChannel

		analyzer, err := analysis.NewAnalyzer(system, cfg)
		if err != nil {
			return err
		}
		res, err := analyzer.Run(cmd.Context(), midiData.Events)
		if err != nil {
			return err
		}

		var out []byte
		if analyzeOpts.full {
			out, err = json.MarshalIndent(res, "", "  ")
		} else {
			out, err = res.Score.Marshal()
		}
		if err != nil {
			return err
		}
		return writeOutput(cmd, analyzeOpts.output, out)
	},
}
