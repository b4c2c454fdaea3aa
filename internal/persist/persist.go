// Package persist implements the optional plain-text cluster dump (§6): one
// stanza per IRM table's domain partitions, plus the outer HIRM partition,
// line-oriented so the format round-trips losslessly except for
// hyperparameter values, which are resampled after load rather than stored.
package persist

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pclean-go/pclean/internal/hirm"
)

// DomainPartition is one `domain_name table_id entity1 entity2 …` line: the
// membership of a single table within a single domain.
type DomainPartition struct {
	Domain   string
	Table    int
	Entities []int
}

// ClusterDump is the full parsed contents of a persisted dump: every
// domain's partition, across every IRM table in the HIRM, plus the outer
// partition (table id -> the relations currently assigned to it).
type ClusterDump struct {
	Domains []DomainPartition
	Outer   map[int][]string
}

// Dump captures h's current clustering as a ClusterDump. Domain names are
// local to the IRM that owns them (§5's shared-resource policy), so the
// same name may appear more than once across different tables.
func Dump(h *hirm.HIRM) *ClusterDump {
	d := &ClusterDump{Outer: make(map[int][]string)}

	for _, irmModel := range h.TableToIRM {
		domainNames := make([]string, 0, len(irmModel.Domains))
		for name := range irmModel.Domains {
			domainNames = append(domainNames, name)
		}
		sort.Strings(domainNames)
		for _, name := range domainNames {
			dom := irmModel.Domains[name]
			for _, t := range dom.CRP.Tables() {
				items := append([]int(nil), dom.CRP.Items(t)...)
				sort.Ints(items)
				d.Domains = append(d.Domains, DomainPartition{Domain: name, Table: t, Entities: items})
			}
		}
	}

	for name, code := range h.NameToCode {
		table, ok := h.Outer.Assignment(code)
		if !ok {
			continue
		}
		d.Outer[table] = append(d.Outer[table], name)
	}
	for table := range d.Outer {
		sort.Strings(d.Outer[table])
	}

	sort.Slice(d.Domains, func(i, j int) bool {
		if d.Domains[i].Domain != d.Domains[j].Domain {
			return d.Domains[i].Domain < d.Domains[j].Domain
		}
		return d.Domains[i].Table < d.Domains[j].Table
	})

	return d
}

// WriteTo writes d in the §6 line format: domain stanzas first (each line
// `domain_name table_id entity1 entity2 …`), then one line per outer table
// (`table_id relation1 relation2 …`).
func (d *ClusterDump) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64

	for _, p := range d.Domains {
		n, err := fmt.Fprintf(bw, "%s %d%s\n", p.Domain, p.Table, intsTail(p.Entities))
		written += int64(n)
		if err != nil {
			return written, err
		}
	}

	tables := make([]int, 0, len(d.Outer))
	for t := range d.Outer {
		tables = append(tables, t)
	}
	sort.Ints(tables)
	for _, t := range tables {
		n, err := fmt.Fprintf(bw, "%d%s\n", t, stringsTail(d.Outer[t]))
		written += int64(n)
		if err != nil {
			return written, err
		}
	}

	return written, bw.Flush()
}

func intsTail(xs []int) string {
	var b strings.Builder
	for _, x := range xs {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(x))
	}
	return b.String()
}

func stringsTail(xs []string) string {
	var b strings.Builder
	for _, x := range xs {
		b.WriteByte(' ')
		b.WriteString(x)
	}
	return b.String()
}

// Parse reads a dump previously produced by WriteTo. A line whose first
// field parses as an integer is an outer-partition line (table id followed
// by relation names); otherwise it is a domain partition line (domain name,
// table id, then entity ids).
func Parse(r io.Reader) (*ClusterDump, error) {
	d := &ClusterDump{Outer: make(map[int][]string)}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("persist: line %d: expected at least 2 fields, got %d", lineNo, len(fields))
		}

		if table, err := strconv.Atoi(fields[0]); err == nil {
			// A domain line's first field is always a domain name, never
			// numeric, so a leading integer field unambiguously means this
			// is an outer-partition line.
			d.Outer[table] = append(d.Outer[table], fields[1:]...)
			continue
		}

		table, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("persist: line %d: second field %q is not a table id", lineNo, fields[1])
		}
		entities := make([]int, 0, len(fields)-2)
		for _, f := range fields[2:] {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("persist: line %d: entity %q is not an integer", lineNo, f)
			}
			entities = append(entities, v)
		}
		d.Domains = append(d.Domains, DomainPartition{Domain: fields[0], Table: table, Entities: entities})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	return d, nil
}

// RoundTrip writes d and re-parses the result, returning the re-parsed
// dump. Used to verify the format is lossless (§6): callers compare the
// result against d.
func RoundTrip(d *ClusterDump) (*ClusterDump, error) {
	var buf strings.Builder
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return Parse(strings.NewReader(buf.String()))
}
