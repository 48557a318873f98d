package mat73

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

type printer struct {
	w   io.Writer
	key func(a ...any) string
}

// PrintOption configures PrintStructure.
type PrintOption func(*printer)

// WithColor turns key highlighting on or off.
func WithColor(on bool) PrintOption {
	return func(p *printer) {
		if !on {
			p.key = fmt.Sprint
			return
		}
		c := color.New(color.FgCyan, color.Bold)
		c.EnableColor()
		p.key = c.SprintFunc()
	}
}

// PrintStructure writes one "key : type" line per entry of s, indenting
// nested mappings with "|  ". Mappings held inside arrays and lists are
// printed below their container.
func PrintStructure(w io.Writer, s *Struct, opts ...PrintOption) error {
	p := &printer{w: w, key: fmt.Sprint}
	for _, opt := range opts {
		opt(p)
	}
	return p.print(s, 0)
}

func (p *printer) print(s *Struct, indent int) error {
	for _, k := range s.Keys() {
		v, _ := s.Get(k)
		if _, err := fmt.Fprintf(p.w, "%s%s : %s\n", strings.Repeat("|  ", indent), p.key(k), label(v)); err != nil {
			return err
		}
		if err := p.nested(v, indent+1); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) nested(v any, indent int) error {
	switch t := v.(type) {
	case *Struct:
		return p.print(t, indent)
	case *Array:
		if t.Kind != KindValue {
			return nil
		}
		for i := range t.Len() {
			if err := p.nested(t.At(i), indent); err != nil {
				return err
			}
		}
	case []any:
		for _, e := range t {
			if err := p.nested(e, indent); err != nil {
				return err
			}
		}
	}
	return nil
}

func label(v any) string {
	switch t := v.(type) {
	case *Struct:
		return "struct"
	case string:
		return "string"
	case *Array:
		return t.String()
	case []any:
		return fmt.Sprintf("list[%d]", len(t))
	case nil:
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
