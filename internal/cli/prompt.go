package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/uemura/appendicitis/internal/schema"
	"github.com/uemura/appendicitis/pkg/errors"
)

// Prompter asks questions on out and reads answers line by line from in.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewPrompter wraps a reader and a writer.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

// Ask prints the question and returns the trimmed answer. Running out of
// input yields io.EOF.
func (p *Prompter) Ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", errors.Wrap(err, "read answer")
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// Record asks for every numeric field, then every categorical field, in
// registry order. Invalid answers are explained and asked again.
func (p *Prompter) Record() (schema.Record, error) {
	fmt.Fprintln(p.out, "\n> PATIENT DATA <")
	r := schema.NewRecord()
	for _, col := range schema.NumericColumns {
		rule := schema.Rules[col]
		for {
			answer, err := p.Ask(rule.Prompt())
			if err != nil {
				return r, err
			}
			v, err := rule.ParseNumeric(answer)
			if err != nil {
				p.explain(err)
				continue
			}
			r.Numeric[col] = v
			break
		}
	}
	for _, col := range schema.CategoricalColumns {
		rule := schema.Rules[col]
		for {
			answer, err := p.Ask(rule.Prompt())
			if err != nil {
				return r, err
			}
			v, err := rule.Normalize(answer)
			if err != nil {
				p.explain(err)
				continue
			}
			r.Categorical[col] = v
			break
		}
	}
	return r, nil
}

func (p *Prompter) explain(err error) {
	var verr *errors.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintf(p.out, "Invalid value for %s: %s\n", verr.ParamName, verr.Reason)
		return
	}
	fmt.Fprintf(p.out, "Invalid value: %v\n", err)
}
