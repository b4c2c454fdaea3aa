package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pclean-go/pclean/internal/hirm"
	"github.com/pclean-go/pclean/internal/obslog"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
)

// observation is one incorporable row: a relation name, its entity tuple,
// and the observed value.
type observation struct {
	Relation string
	Items    []int
	Value    value.Value
}

// loadObservations reads a CSV file (no header) with columns
// relation, item1, item2, ..., value — the number of item columns is
// inferred by subtracting the two fixed columns from the row width.
// Decoding the trailing value column to a value.Value depends on knowing
// each relation's family, supplied by kindOf (built by buildModel from the
// schema the observations are being loaded against).
//
// An unknown relation name is a schema-resolution failure and is fatal
// (§7). A malformed entity id or a value string that doesn't convert to
// the relation's declared type is an observation parse error: the row is
// skipped and loading continues (§7's "reported to the driver, which
// skips the row and continues").
func loadObservations(path string, kindOf map[string]valueKind) ([]observation, error) {
	log := obslog.GetLogger("observations")

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("observations: opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var out []observation
	lineNo := 0
	for {
		lineNo++
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("observations: line %d: %w", lineNo, err)
		}
		if len(record) < 3 {
			log.Warn("skipping malformed observation row", "line", lineNo, "fields", len(record))
			continue
		}

		relName := record[0]
		itemFields := record[1 : len(record)-1]
		rawValue := record[len(record)-1]

		kind, ok := kindOf[relName]
		if !ok {
			return nil, fmt.Errorf("observations: line %d: unknown relation %q", lineNo, relName)
		}

		items, err := decodeItems(itemFields)
		if err != nil {
			log.Warn("skipping observation with unparseable entity id", "line", lineNo, "error", err)
			continue
		}

		v, err := decodeValue(kind, rawValue)
		if err != nil {
			log.Warn("skipping observation with unparseable value", "line", lineNo, "error", err)
			continue
		}

		out = append(out, observation{Relation: relName, Items: items, Value: v})
	}

	return out, nil
}

// incorporate incorporates every observation's tuple into its relation; the
// relation's Incorporate retains the tuple's entities in their domains.
func incorporate(h *hirm.HIRM, s *prng.Stream, obs []observation) error {
	for _, o := range obs {
		rel, ok := h.Relations[o.Relation]
		if !ok {
			return fmt.Errorf("observations: relation %q not present in model", o.Relation)
		}
		domains := rel.DomainsList()
		if len(domains) != len(o.Items) {
			return fmt.Errorf("observations: relation %q expects %d entities, got %d", o.Relation, len(domains), len(o.Items))
		}
		rel.Incorporate(s, o.Items, o.Value)
	}
	return nil
}

func decodeItems(fields []string) ([]int, error) {
	items := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("entity %q is not an integer", f)
		}
		items[i] = v
	}
	return items, nil
}

func decodeValue(kind valueKind, raw string) (value.Value, error) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case valueKindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a bool", raw)
		}
		return value.Bool(b), nil
	case valueKindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", raw)
		}
		return value.Int(n), nil
	case valueKindFloat:
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a float", raw)
		}
		return value.Float(x), nil
	case valueKindStr:
		return value.Str(raw), nil
	default:
		return nil, fmt.Errorf("observations: unhandled value kind %v", kind)
	}
}
