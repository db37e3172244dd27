package sequence

import (
	"context"
	"strconv"
	"strings"
	"time"

	fapentity "github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata/entity"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-persistence-go/pkg/utilities"
)

const (
	// BillCodeField receives the fallback code of bill tables without rules.
	BillCodeField = "BillCode"

	defaultBillCodeLen = 7
	defaultSymbol      = "0"
)

// RuleSource supplies table features and numbering rules.
type RuleSource interface {
	Table(name string) (fapentity.FapTable, bool)
	BillCodeRules(table string) []fapentity.CfgBillCodeRule
}

// Generator formats bill codes from rules and sequences.
type Generator struct {
	alloc *Allocator
	rules RuleSource
	clock utilities.Clock
}

func NewGenerator(alloc *Allocator, rules RuleSource, clock utilities.Clock) *Generator {
	if clock == nil {
		clock = time.Now
	}
	return &Generator{alloc: alloc, rules: rules, clock: clock}
}

// SkipsNumbering reports whether table is a configuration or framework table.
func SkipsNumbering(table string) bool {
	t := strings.ToLower(table)
	return strings.HasPrefix(t, "cfg") || strings.HasPrefix(t, "fap")
}

// Generate returns the codes for every numbered field of table, keyed by
// field name. It returns nil when the table is not numbered.
func (g *Generator) Generate(ctx context.Context, ex store.Executor, table string) (map[string]string, error) {
	if SkipsNumbering(table) {
		return nil, nil
	}
	rules := g.rules.BillCodeRules(table)
	if len(rules) == 0 {
		t, ok := g.rules.Table(table)
		if !ok || !t.IsBill() {
			return nil, nil
		}
		seq, err := g.alloc.Next(ctx, ex, t.TableName)
		if err != nil {
			return nil, err
		}
		return map[string]string{BillCodeField: leftPad(strconv.Itoa(seq), defaultBillCodeLen, defaultSymbol)}, nil
	}

	now := g.clock()
	codes := make(map[string]string, len(rules))
	for _, r := range rules {
		seq, err := g.alloc.Next(ctx, ex, SequenceName(r, now))
		if err != nil {
			return nil, err
		}
		codes[r.FieldName] = Format(r, now, seq)
	}
	return codes, nil
}

// SequenceName is the counter a rule draws from at now. The date suffix
// makes the counter restart each year, month or day; a rule without a reset
// condition never restarts.
func SequenceName(r fapentity.CfgBillCodeRule, now time.Time) string {
	name := r.BillEntity + "_" + r.FieldName
	switch strings.ToLower(strings.TrimSpace(r.ResetCondition)) {
	case "":
		return name
	case fapentity.ResetYear:
		return name + now.Format("2006")
	case fapentity.ResetMonth:
		return name + now.Format("200601")
	default:
		return name + now.Format("20060102")
	}
}

// Format renders prefix, date and padded sequence for one rule.
func Format(r fapentity.CfgBillCodeRule, now time.Time, seq int) string {
	sym := r.Symbol
	if sym == "" {
		sym = defaultSymbol
	}
	return r.Prefix + utilities.FormatPattern(now, r.DateFormat) + leftPad(strconv.Itoa(seq), r.SequenceLen, sym)
}

func leftPad(s string, n int, sym string) string {
	if len(s) >= n || sym == "" {
		return s
	}
	sym = sym[:1]
	return strings.Repeat(sym, n-len(s)) + s
}
