package results

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/roach88/ballot/internal/model"
)

// CSVHeader is the first record of every export.
var CSVHeader = []string{"Party", "Votes"}

// WriteCSV writes one record per tally row in tally order. Orphaned votes
// have no party and are not exported.
func WriteCSV(w io.Writer, tally model.Tally) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, row := range tally.Rows {
		if err := cw.Write([]string{row.Registrant, strconv.FormatInt(row.Votes, 10)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
