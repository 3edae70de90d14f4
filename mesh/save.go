package mesh

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Save serializes the mesh as CSV: a count record, then one record per
// vertex (phi, lam, X, Y in construction row order), then one record per
// element (its three corner indices into the vertex records). Floats are
// written with strconv's shortest lossless formatting, so every coordinate
// round-trips exactly.
func (m *Mesh) Save(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		strconv.Itoa(len(m.vertices)), strconv.Itoa(len(m.elements)),
	}); err != nil {
		return err
	}

	index := make(map[*Vertex]int, len(m.vertices))
	for i, v := range m.vertices {
		index[v] = i
		if err := cw.Write([]string{
			formatFloat(v.Phi), formatFloat(v.Lam), formatFloat(v.X), formatFloat(v.Y),
		}); err != nil {
			return err
		}
	}

	for _, e := range m.elements {
		rec := make([]string, 3)
		for i := 0; i < 3; i++ {
			idx, ok := index[e.Corner(i)]
			if !ok {
				panic(fmt.Errorf("%w: element corner missing from the vertex collection", ErrAdjacency))
			}
			rec[i] = strconv.Itoa(idx)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
