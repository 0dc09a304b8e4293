package analysis

import (
	"github.com/RyanBlaney/armonia/algorithms/quantize"
	"github.com/RyanBlaney/armonia/score"
)

// programFamilies are the sixteen General MIDI program families, eight programs each
var programFamilies = [16]string{
	"piano", "mallets", "organ", "guitar",
	"bass", "strings", "ensemble", "brass",
	"reed", "pipe", "synth_lead", "synth_pad",
	"synth_fx", "ethnic", "percussive", "sound_fx",
}

// ProgramFamily returns the instrument family of a General MIDI program (0-127)
func ProgramFamily(program int) string {
	if program < 0 || program > 127 {
		return programFamilies[0]
	}
	return programFamilies[program/8]
}

// NameLanes gives every lane a part name "family__index". Lanes holding percussion are
// named after the drum family; indices count up per family in lane order.
func NameLanes(items []quantize.Item) map[quantize.LaneKey]string {
	byLane := quantize.GroupByLane(items)
	counts := make(map[string]int)
	names := make(map[quantize.LaneKey]string)

	for _, lane := range quantize.Lanes(items) {
		laneItems := byLane[lane]
		family := ProgramFamily(laneItems[0].Program)
		for _, it := range laneItems {
			if it.Percussion {
				family = score.DrumFamily
				break
			}
		}
		names[lane] = score.InstrumentName(family, counts[family])
		counts[family]++
	}
	return names
}
