package entity

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// LocationSet conjunto de IDs de ubicación, ordenado y sin duplicados.
type LocationSet []int64

// NewLocationSet construye el conjunto normalizado descartando IDs no positivos.
func NewLocationSet(ids ...int64) LocationSet {
	seen := make(map[int64]struct{}, len(ids))
	out := make(LocationSet, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contains indica si id pertenece al conjunto.
func (s LocationSet) Contains(id int64) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= id })
	return i < len(s) && s[i] == id
}

// Equal compara dos conjuntos normalizados.
func (s LocationSet) Equal(other LocationSet) bool {
	a, b := NewLocationSet(s...), NewLocationSet(other...)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Int64s devuelve una copia como []int64 (para parámetros de pgx).
func (s LocationSet) Int64s() []int64 {
	out := make([]int64, len(s))
	copy(out, s)
	return out
}

// ForRole aplica el invariante: roles no acotados por ubicación no llevan ubicaciones.
func (s LocationSet) ForRole(r Role) LocationSet {
	if !r.LocationScoped() {
		return LocationSet{}
	}
	return NewLocationSet(s...)
}

// UnmarshalJSON acepta números o strings numéricos; la metadata del Identity Store
// no tiene tipos garantizados.
func (s *LocationSet) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = LocationSet{}
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("locations debe ser un arreglo: %w", err)
	}
	ids := make([]int64, 0, len(raw))
	for _, item := range raw {
		id, err := parseLocationID(item)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	*s = NewLocationSet(ids...)
	return nil
}

func parseLocationID(item json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(item, &n); err == nil {
		id, err := n.Int64()
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("location id inválido %s", string(item))
		}
		return id, nil
	}
	var str string
	if err := json.Unmarshal(item, &str); err != nil {
		return 0, fmt.Errorf("location id inválido %s", string(item))
	}
	id, err := strconv.ParseInt(strings.TrimSpace(str), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("location id inválido %q", str)
	}
	return id, nil
}
