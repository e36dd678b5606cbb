package report

import (
	"encoding/json"
	"io"
)

func WriteJSON(w io.Writer, rep Report, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(rep)
}
