package track

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/leosaffin/storm-assess/internal/storm"
)

// WriteOptions controls Write.
type WriteOptions struct {
	// Variables names the extras written per observation, in order. When
	// empty, the sorted union of extras keys across all storms is used.
	Variables []string
}

// Write emits storms in TRACK framing: the "0" / "0 0" preamble, a
// TRACK_NUM header, and per-storm TRACK_ID / POINT_NUM blocks whose
// observation lines carry the base quartet plus one bare-value group per
// variable. The output round-trips through LoadGeneric with the same
// variable names.
func Write(w io.Writer, storms []storm.Storm, opts WriteOptions) error {
	vars := opts.Variables
	if len(vars) == 0 {
		vars = collectVariables(storms)
	}

	if _, err := fmt.Fprintf(w, "0\n0 0\nTRACK_NUM %d ADD_FLD %d\n", len(storms), len(vars)); err != nil {
		return fmt.Errorf("write track header: %w", err)
	}

	for i := range storms {
		st := &storms[i]
		genesis, err := st.GenesisDate()
		if err != nil {
			return fmt.Errorf("storm %d: %w", st.Number, err)
		}
		if _, err := fmt.Fprintf(w, "TRACK_ID %d START_TIME %s\n", st.Number, genesis.Format()); err != nil {
			return fmt.Errorf("write storm %d: %w", st.Number, err)
		}
		if _, err := fmt.Fprintf(w, "POINT_NUM  %d\n", st.NRecords()); err != nil {
			return fmt.Errorf("write storm %d: %w", st.Number, err)
		}
		for _, ob := range st.Obs {
			if _, err := fmt.Fprintf(w, "%s %s %s %s",
				ob.Date.Format(), formatFloat(ob.Lon), formatFloat(ob.Lat), formatFloat(ob.Vorticity)); err != nil {
				return fmt.Errorf("write storm %d: %w", st.Number, err)
			}
			for _, name := range vars {
				if _, err := fmt.Fprintf(w, " & %s", formatFloat(observationValue(ob, name))); err != nil {
					return fmt.Errorf("write storm %d: %w", st.Number, err)
				}
			}
			if _, err := io.WriteString(w, " &\n"); err != nil {
				return fmt.Errorf("write storm %d: %w", st.Number, err)
			}
		}
	}
	return nil
}

// observationValue resolves a variable name against an observation: the
// base mslp and vmax fields by their TRACK names, everything else from the
// extras map.
func observationValue(ob storm.Observation, name string) float64 {
	switch name {
	case "mslp":
		return ob.MSLP
	case "vmax":
		return ob.VMax
	}
	return ob.Extras[name]
}

func collectVariables(storms []storm.Storm) []string {
	seen := map[string]bool{}
	for i := range storms {
		for _, ob := range storms[i].Obs {
			for name := range ob.Extras {
				seen[name] = true
			}
		}
	}
	vars := []string{"mslp", "vmax"}
	extra := make([]string, 0, len(seen))
	for name := range seen {
		extra = append(extra, name)
	}
	sort.Strings(extra)
	return append(vars, extra...)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
