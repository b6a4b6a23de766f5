package raster

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/nicheflow/nicheflow/internal/errors"
)

// ASCIIGrid is a parsed ESRI ASCII raster. NODATA cells are represented as
// NaN in Values.
type ASCIIGrid struct {
	Cols     int
	Rows     int
	XLL      float64
	YLL      float64
	CellSize float64
	Values   [][]float64 // row-major, row 0 at the northern edge
}

// ParseASCIIGrid reads an ESRI ASCII grid.
func ParseASCIIGrid(r io.Reader) (*ASCIIGrid, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	g := &ASCIIGrid{Cols: -1, Rows: -1, CellSize: -1}
	noData := math.NaN()
	headerDone := false
	var cells []float64

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		// A header line is two fields whose first is a keyword; a two-column
		// grid's data rows start with a number instead.
		if !headerDone && len(fields) == 2 && !startsNumeric(fields[0]) {
			key := strings.ToLower(fields[0])
			val, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, parseErr("invalid header value %q for %s", fields[1], key)
			}
			switch key {
			case "ncols":
				g.Cols = int(val)
			case "nrows":
				g.Rows = int(val)
			case "xllcorner":
				g.XLL = val
			case "yllcorner":
				g.YLL = val
			case "cellsize":
				g.CellSize = val
			case "nodata_value":
				noData = val
			default:
				return nil, parseErr("unknown header key %q", key)
			}
			continue
		}

		headerDone = true
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, parseErr("invalid cell value %q", f)
			}
			if v == noData {
				v = math.NaN()
			}
			cells = append(cells, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(err).Component("raster").Category(errors.CategoryFileIO).Build()
	}

	if g.Cols < 1 || g.Rows < 1 || g.CellSize <= 0 {
		return nil, parseErr("incomplete header: ncols=%d nrows=%d cellsize=%g", g.Cols, g.Rows, g.CellSize)
	}
	if len(cells) != g.Cols*g.Rows {
		return nil, parseErr("grid has %d cells, header declares %d", len(cells), g.Cols*g.Rows)
	}

	g.Values = make([][]float64, g.Rows)
	for r := 0; r < g.Rows; r++ {
		g.Values[r] = cells[r*g.Cols : (r+1)*g.Cols]
	}
	return g, nil
}

func startsNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func parseErr(format string, args ...any) error {
	return errors.Newf("ascii grid: "+format, args...).
		Component("raster").
		Category(errors.CategoryFileParsing).
		Build()
}
