package sqlaug

import (
	"fmt"
	"strings"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata/entity"
)

// Catalog is the metadata the default parser consults.
type Catalog interface {
	Table(name string) (entity.FapTable, bool)
	Columns(table string) []entity.FapColumn
}

// DefaultParser rewrites SELECT statements against a catalog. Statements
// that are not SELECTs are returned untouched.
type DefaultParser struct {
	catalog Catalog
}

func NewParser(c Catalog) *DefaultParser {
	return &DefaultParser{catalog: c}
}

type tableRef struct {
	source string
	name   string
	alias  string
	known  bool
}

func (t tableRef) qualifier() string {
	if t.alias != "" {
		return t.alias
	}
	return t.name
}

var fromStops = []string{"ON", "USING", "LEFT", "RIGHT", "INNER", "OUTER", "FULL", "CROSS", "NATURAL", "JOIN", "WHERE", "GROUP", "ORDER", "LIMIT"}

var tailKeywords = []string{"GROUP BY", "HAVING", "ORDER BY", "LIMIT", "OFFSET", "FOR UPDATE"}

func (p *DefaultParser) Parse(sql string, flags Flags) (string, error) {
	s := strings.TrimRight(strings.TrimSpace(sql), "; \t\r\n")
	if !matchWords(s, 0, []string{"SELECT"}) {
		return sql, nil
	}
	if u := topLevel(s, "UNION", 0); u > 0 {
		return p.parseUnion(s, flags)
	}
	return p.parseSelect(s, flags)
}

func (p *DefaultParser) parseUnion(s string, flags Flags) (string, error) {
	var out []string
	rest := s
	for {
		u := topLevel(rest, "UNION", 0)
		if u < 0 {
			part, err := p.parseSelect(strings.TrimSpace(rest), flags)
			if err != nil {
				return "", err
			}
			return strings.Join(append(out, part), " "), nil
		}
		part, err := p.parseSelect(strings.TrimSpace(rest[:u]), flags)
		if err != nil {
			return "", err
		}
		sep := "UNION"
		rest = rest[u+len("UNION"):]
		if matchWords(strings.TrimLeft(rest, " \t\r\n"), 0, []string{"ALL"}) {
			sep = "UNION ALL"
			rest = strings.TrimLeft(rest, " \t\r\n")[3:]
		}
		out = append(out, part, sep)
	}
}

func (p *DefaultParser) parseSelect(s string, flags Flags) (string, error) {
	fromIdx := topLevel(s, "FROM", len("SELECT"))
	if fromIdx < 0 {
		return s, nil
	}
	tailIdx := len(s)
	for _, kw := range tailKeywords {
		if i := topLevel(s, kw, fromIdx); i >= 0 && i < tailIdx {
			tailIdx = i
		}
	}
	whereIdx := topLevel(s, "WHERE", fromIdx)
	if whereIdx > tailIdx {
		whereIdx = -1
	}

	selectList := strings.TrimSpace(s[len("SELECT"):fromIdx])
	fromEnd := tailIdx
	if whereIdx >= 0 {
		fromEnd = whereIdx
	}
	fromClause := strings.TrimSpace(s[fromIdx+len("FROM") : fromEnd])
	if fromClause == "" {
		return "", fmt.Errorf("sqlaug: empty FROM clause in %q", s)
	}
	whereBody := ""
	if whereIdx >= 0 {
		whereBody = strings.TrimSpace(s[whereIdx+len("WHERE") : tailIdx])
	}
	tail := strings.TrimSpace(s[tailIdx:])

	fromClause, tables, preds := p.rewriteFrom(fromClause)

	extras := p.extraColumns(selectList, tables, flags)
	if len(extras) > 0 {
		selectList = selectList + ", " + strings.Join(extras, ", ")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(selectList)
	b.WriteString(" FROM ")
	b.WriteString(fromClause)
	switch {
	case len(preds) > 0 && whereBody != "":
		b.WriteString(" WHERE (")
		b.WriteString(whereBody)
		b.WriteString(") AND ")
		b.WriteString(strings.Join(preds, " AND "))
	case len(preds) > 0:
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(preds, " AND "))
	case whereBody != "":
		b.WriteString(" WHERE ")
		b.WriteString(whereBody)
	}
	if tail != "" {
		b.WriteString(" ")
		b.WriteString(tail)
	}
	return b.String(), nil
}

func visibility(q, dr, date string) string {
	if q != "" {
		q += "."
	}
	return fmt.Sprintf("%[1]s%[2]s = %[3]s AND %[1]s%[4]s <= %[5]s AND %[1]s%[6]s > %[5]s",
		q, metadata.ColDr, dr, metadata.ColEnableDate, date, metadata.ColDisableDate)
}

// joinPart is one table of a join chain: its reference with the ON or USING
// condition that follows it, and the join keywords that precede it.
type joinPart struct {
	body   string
	kind   string
	ref    tableRef
	rest   string
	wrap   bool
	guards []string
}

// filter restricts target to visible rows from the ON clause of jp, or,
// when jp has none, by reading target through a filtered derived table.
func (jp *joinPart) filter(target *joinPart) {
	if topLevel(jp.body, "ON", 0) < 0 {
		target.wrap = true
		return
	}
	jp.guards = append(jp.guards, visibility(target.ref.qualifier(), ":Dr", ":CurrentDate"))
}

func (jp *joinPart) render() string {
	body := jp.body
	if jp.wrap {
		alias := jp.ref.qualifier()
		if strings.Contains(alias, ".") {
			alias = jp.ref.name
		}
		body = fmt.Sprintf("(SELECT * FROM %s WHERE %s) %s%s",
			jp.ref.source, visibility("", ":Dr", ":CurrentDate"), alias, jp.rest)
	}
	if len(jp.guards) > 0 {
		on := topLevel(body, "ON", 0)
		body = strings.TrimRight(body[:on], " \t\r\n") + " ON (" + strings.TrimSpace(body[on+len("ON"):]) + ") AND " +
			strings.Join(jp.guards, " AND ")
	}
	return body
}

// rewriteFrom returns the FROM clause with outer joins filtered, every table
// reference, and the predicates of the tables filtered in WHERE. A table on
// the nullable side of a LEFT or RIGHT join is filtered in that join's ON
// clause; both sides of a FULL join are read through derived tables.
func (p *DefaultParser) rewriteFrom(from string) (string, []tableRef, []string) {
	var (
		refs  []tableRef
		preds []string
	)
	items := splitTopLevel(from, ',')
	for n, item := range items {
		segs := splitJoins(item)
		parts := make([]*joinPart, len(segs))
		kind := ""
		for i, seg := range segs {
			jp := &joinPart{kind: kind, body: strings.TrimSpace(seg)}
			kind = ""
			if i < len(segs)-1 {
				jp.body, kind = cutJoinKind(seg)
			}
			if ref, rest, ok := parseTableRef(jp.body); ok {
				_, ref.known = p.catalog.Table(ref.name)
				jp.ref, jp.rest = ref, rest
				refs = append(refs, ref)
			}
			parts[i] = jp
		}

		var (
			live    []*joinPart
			changed bool
		)
		for i, jp := range parts {
			switch {
			case i > 0 && strings.Contains(jp.kind, "LEFT"):
				if jp.ref.known {
					jp.filter(jp)
					changed = true
				}
			case i > 0 && strings.Contains(jp.kind, "RIGHT"):
				for _, l := range live {
					jp.filter(l)
					changed = true
				}
				live = nil
				if jp.ref.known {
					live = append(live, jp)
				}
			case i > 0 && strings.Contains(jp.kind, "FULL"):
				for _, l := range live {
					l.wrap = true
					changed = true
				}
				live = nil
				if jp.ref.known {
					jp.wrap = true
					changed = true
				}
			default:
				if jp.ref.known {
					live = append(live, jp)
				}
			}
		}
		for _, l := range live {
			preds = append(preds, visibility(l.ref.qualifier(), ":Dr", ":CurrentDate"))
		}
		if !changed {
			continue
		}

		var b strings.Builder
		if n > 0 {
			b.WriteString(" ")
		}
		for i, jp := range parts {
			if i > 0 {
				b.WriteString(" ")
				if jp.kind != "" {
					b.WriteString(jp.kind + " ")
				}
				b.WriteString("JOIN ")
			}
			b.WriteString(jp.render())
		}
		items[n] = b.String()
	}
	return strings.Join(items, ","), refs, preds
}

func splitJoins(s string) []string {
	var segs []string
	for {
		j := topLevel(s, "JOIN", 0)
		if j < 0 {
			return append(segs, s)
		}
		segs = append(segs, s[:j])
		s = s[j+len("JOIN"):]
	}
}

var joinWords = []string{"LEFT", "RIGHT", "FULL", "OUTER", "INNER", "CROSS", "NATURAL"}

// cutJoinKind splits the join keywords, upper cased, off the end of seg.
func cutJoinKind(seg string) (body, kind string) {
	body = strings.TrimRight(seg, " \t\r\n")
	var words []string
	for {
		i := len(body)
		for i > 0 && isIdentByte(body[i-1]) {
			i--
		}
		w := body[i:]
		if w == "" || !isJoinWord(w) || i > 0 && (body[i-1] == ':' || body[i-1] == '.') {
			break
		}
		words = append([]string{strings.ToUpper(w)}, words...)
		body = strings.TrimRight(body[:i], " \t\r\n")
	}
	return strings.TrimSpace(body), strings.Join(words, " ")
}

func isJoinWord(w string) bool {
	for _, j := range joinWords {
		if strings.EqualFold(w, j) {
			return true
		}
	}
	return false
}

// parseTableRef reads the table name and alias at the start of seg and
// returns the text after them.
func parseTableRef(seg string) (tableRef, string, bool) {
	seg = strings.TrimSpace(seg)
	if seg == "" || seg[0] == '(' {
		return tableRef{}, "", false
	}
	name, rest := firstIdent(seg)
	if name == "" || isStopWord(name) {
		return tableRef{}, "", false
	}
	ref := tableRef{source: name, name: name}
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		ref.name = name[dot+1:]
		ref.alias = name
	}
	word, after := firstIdent(rest)
	if strings.EqualFold(word, "AS") {
		word, after = firstIdent(after)
	}
	if word != "" && !isStopWord(word) && !strings.Contains(word, ".") {
		ref.alias = word
		rest = after
	}
	return ref, rest, true
}

func isStopWord(w string) bool {
	for _, s := range fromStops {
		if strings.EqualFold(w, s) {
			return true
		}
	}
	return false
}

type selectItem struct {
	star      bool
	qualifier string
	column    string
	alias     string
}

func parseSelectItem(item string) selectItem {
	item = strings.TrimSpace(item)
	if matchWords(item, 0, []string{"DISTINCT"}) {
		item = strings.TrimSpace(item[len("DISTINCT"):])
	}
	if item == "*" {
		return selectItem{star: true}
	}
	if strings.HasSuffix(item, ".*") {
		return selectItem{star: true, qualifier: strings.TrimSuffix(item, ".*")}
	}

	var it selectItem
	ident, rest := firstIdent(item)
	rest = strings.TrimSpace(rest)
	switch {
	case ident != "" && rest == "":
	case ident != "" && matchWords(rest, 0, []string{"AS"}):
		it.alias, _ = firstIdent(rest[2:])
	case ident != "" && isSingleIdent(rest):
		it.alias = rest
	default:
		// expression; only its alias matters
		if idx := topLevel(item, "AS", 0); idx >= 0 {
			it.alias, _ = firstIdent(item[idx+2:])
		}
		return it
	}
	if dot := strings.LastIndexByte(ident, '.'); dot >= 0 {
		it.qualifier, it.column = ident[:dot], ident[dot+1:]
	} else {
		it.column = ident
	}
	return it
}

func isSingleIdent(s string) bool {
	id, rest := firstIdent(s)
	return id != "" && strings.TrimSpace(rest) == "" && !strings.Contains(id, ".")
}

// extraColumns returns the reference subqueries and the Id column requested by flags.
func (p *DefaultParser) extraColumns(selectList string, tables []tableRef, flags Flags) []string {
	if !flags.DisplayCodes && !flags.ID {
		return nil
	}
	var known []tableRef
	for _, t := range tables {
		if t.known {
			known = append(known, t)
		}
	}
	if len(known) == 0 {
		return nil
	}

	items := splitTopLevel(selectList, ',')
	parsed := make([]selectItem, 0, len(items))
	names := map[string]bool{}
	hasStar := false
	for _, raw := range items {
		it := parseSelectItem(raw)
		parsed = append(parsed, it)
		if it.star {
			hasStar = true
		}
		if it.alias != "" {
			names[strings.ToLower(it.alias)] = true
		} else if it.column != "" {
			names[strings.ToLower(it.column)] = true
		}
	}

	var extras []string
	if flags.DisplayCodes {
		for _, it := range parsed {
			if it.star {
				for _, t := range known {
					if it.qualifier != "" && !strings.EqualFold(it.qualifier, t.qualifier()) {
						continue
					}
					for _, col := range p.catalog.Columns(t.name) {
						if col.HasReference() {
							extras = appendRef(extras, names, t.qualifier(), col, col.ColName)
						}
					}
				}
				continue
			}
			if it.column == "" {
				continue
			}
			t, col, ok := p.owner(known, it)
			if !ok || !col.HasReference() {
				continue
			}
			label := it.column
			if it.alias != "" {
				label = it.alias
			}
			extras = appendRef(extras, names, t.qualifier(), col, label)
		}
	}
	if flags.ID && !hasStar && !names[strings.ToLower(metadata.ColID)] {
		extras = append(extras, known[0].qualifier()+"."+metadata.ColID)
	}
	return extras
}

func appendRef(extras []string, names map[string]bool, q string, col entity.FapColumn, label string) []string {
	alias := label + "MC"
	if names[strings.ToLower(alias)] {
		return extras
	}
	names[strings.ToLower(alias)] = true
	r := "mc_" + col.ColName
	sub := fmt.Sprintf("(SELECT %[1]s.%[2]s FROM %[3]s %[1]s WHERE %[1]s.%[4]s = %[5]s.%[6]s AND %[7]s LIMIT 1) AS %[8]s",
		r, col.RefName, col.RefTable, col.RefID, q, col.ColName, visibility(r, "0", ":CurrentDate"), alias)
	return append(extras, sub)
}

func (p *DefaultParser) owner(known []tableRef, it selectItem) (tableRef, entity.FapColumn, bool) {
	for _, t := range known {
		if it.qualifier != "" && !strings.EqualFold(it.qualifier, t.qualifier()) && !strings.EqualFold(it.qualifier, t.name) {
			continue
		}
		for _, col := range p.catalog.Columns(t.name) {
			if strings.EqualFold(col.ColName, it.column) {
				return t, col, true
			}
		}
	}
	return tableRef{}, entity.FapColumn{}, false
}
