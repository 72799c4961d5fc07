package snapshot

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Stat is a numeric field coming from the host data model. The dashboard does
// not guarantee numbers, so anything that is not a finite JSON number decodes
// to an invalid Stat instead of failing the whole document.
type Stat struct {
	Value float64
	Valid bool
}

// Num returns a valid Stat, or an invalid one for NaN and infinities.
func Num(v float64) Stat {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Stat{}
	}
	return Stat{Value: v, Valid: true}
}

func (s *Stat) UnmarshalJSON(data []byte) error {
	*s = Stat{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] == '"' || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	v, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return nil
	}
	*s = Num(v)
	return nil
}

func (s Stat) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}
