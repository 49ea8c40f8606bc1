// Package narrative turns advisor numbers into short prose for the chat
// endpoint.
package narrative

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/shopspring/decimal"
)

// Context is everything a generator may draw on when answering.
type Context struct {
	UserName        string
	Question        string
	MonthlyIncome   decimal.Decimal
	Spending        map[string]decimal.Decimal
	Recommendations []string
}

// Generator produces a free-text answer. Implementations backed by a remote
// model must honour ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, in Context) (string, error)
}

type categoryLine struct {
	Name   string
	Amount string
}

type view struct {
	Name            string
	Question        string
	Income          string
	Spent           string
	Balance         string
	Top             []categoryLine
	Recommendations []string
	Overspending    bool
}

const defaultTemplate = `Hi {{.Name}}.
{{- if .Question}} You asked: "{{.Question}}".{{end}}
This month you earned {{.Income}} and spent {{.Spent}}, leaving {{.Balance}}.
{{- if .Overspending}} You are spending more than you earn, so start by trimming the largest categories.{{end}}
{{- if .Top}}
Your largest expenses:
{{- range .Top}}
- {{.Name}}: {{.Amount}}
{{- end}}
{{- end}}
{{- if .Recommendations}}
Suggestions:
{{- range .Recommendations}}
- {{.}}
{{- end}}
{{- end}}
`

// TemplateGenerator renders answers from a fixed text/template. Output is a
// pure function of the input.
type TemplateGenerator struct {
	tmpl *template.Template
	top  int
}

// NewTemplateGenerator lists at most top categories (3 when top <= 0).
func NewTemplateGenerator(top int) (*TemplateGenerator, error) {
	tmpl, err := template.New("answer").Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse narrative template: %w", err)
	}
	if top <= 0 {
		top = 3
	}
	return &TemplateGenerator{tmpl: tmpl, top: top}, nil
}

func (g *TemplateGenerator) Generate(ctx context.Context, in Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	spent := decimal.Zero
	lines := make([]categoryLine, 0, len(in.Spending))
	names := make([]string, 0, len(in.Spending))
	for name := range in.Spending {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := in.Spending[names[i]], in.Spending[names[j]]
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		spent = spent.Add(in.Spending[name])
	}
	for i, name := range names {
		if i == g.top {
			break
		}
		lines = append(lines, categoryLine{Name: name, Amount: in.Spending[name].StringFixed(2)})
	}

	name := strings.TrimSpace(in.UserName)
	if name == "" {
		name = "there"
	}
	balance := in.MonthlyIncome.Sub(spent)
	v := view{
		Name:            name,
		Question:        strings.TrimSpace(in.Question),
		Income:          in.MonthlyIncome.StringFixed(2),
		Spent:           spent.StringFixed(2),
		Balance:         balance.StringFixed(2),
		Top:             lines,
		Recommendations: in.Recommendations,
		Overspending:    balance.IsNegative(),
	}

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render narrative: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
