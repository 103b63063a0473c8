package markdown

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/ByLCY/thermalprint/logging"
)

var (
	inlineLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Fill", Pattern: `\\hfill`},
		{Name: "Escape", Pattern: "\\\\[*`\\\\]"},
		{Name: "Strong", Pattern: `\*\*`},
		{Name: "Em", Pattern: `\*`},
		{Name: "Tick", Pattern: "`"},
		{Name: "Backslash", Pattern: `\\`},
		{Name: "Text", Pattern: "[^*`\\\\]+"},
	})

	fillToken   = mustTokenType("Fill")
	escapeToken = mustTokenType("Escape")
	strongToken = mustTokenType("Strong")
	emToken     = mustTokenType("Em")
	tickToken   = mustTokenType("Tick")
)

// parseInline splits text into styled runs. Delimiters pair with the nearest
// following delimiter of the same kind; whatever lies between is literal.
// Unpaired delimiters stay literal.
func parseInline(text string) []InlineRun {
	if text == "" {
		return nil
	}
	tokens, err := lexInline(text)
	if err != nil {
		logging.Logger().Debug("markdown: inline lexing failed, using literal text", "err", err)
		return []InlineRun{{Text: text}}
	}

	var b runBuilder
	filled := false
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.Type {
		case strongToken, emToken, tickToken:
			j := closing(tokens, i)
			if j < 0 {
				b.add(InlineRun{Text: tok.Value})
				continue
			}
			style := InlineRun{
				Bold:   tok.Type == strongToken,
				Italic: tok.Type == emToken,
				Code:   tok.Type == tickToken,
			}
			style.Text = literal(tokens[i+1:j], style.Code)
			b.add(style)
			i = j
		case fillToken:
			if filled {
				b.add(InlineRun{Text: tok.Value})
				continue
			}
			filled = true
			b.fill()
		case escapeToken:
			b.add(InlineRun{Text: tok.Value[1:]})
		default:
			b.add(InlineRun{Text: tok.Value})
		}
	}
	return b.runs
}

func lexInline(text string) ([]lexer.Token, error) {
	lex, err := inlineLexer.LexString("", text)
	if err != nil {
		return nil, err
	}
	all, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, err
	}
	tokens := all[:0]
	for _, tok := range all {
		if tok.EOF() {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// closing returns the index of the delimiter closing tokens[open], or -1.
func closing(tokens []lexer.Token, open int) int {
	for j := open + 1; j < len(tokens); j++ {
		if tokens[j].Type == tokens[open].Type {
			if j == open+1 {
				// 空区间不构成强调
				return -1
			}
			return j
		}
	}
	return -1
}

// literal concatenates token text. Escapes unescape inside emphasis; code
// spans keep them verbatim.
func literal(tokens []lexer.Token, code bool) string {
	var sb strings.Builder
	for _, tok := range tokens {
		if tok.Type == escapeToken && !code {
			sb.WriteString(tok.Value[1:])
			continue
		}
		sb.WriteString(tok.Value)
	}
	return sb.String()
}

type runBuilder struct {
	runs []InlineRun
}

// add appends r, merging it into the previous run when the styles match.
func (b *runBuilder) add(r InlineRun) {
	if r.Text == "" {
		return
	}
	if n := len(b.runs); n > 0 {
		last := &b.runs[n-1]
		if !last.Fill && last.Bold == r.Bold && last.Italic == r.Italic && last.Code == r.Code {
			last.Text += r.Text
			return
		}
	}
	b.runs = append(b.runs, r)
}

func (b *runBuilder) fill() {
	b.runs = append(b.runs, InlineRun{Fill: true})
}

func mustTokenType(name string) lexer.TokenType {
	tt, ok := inlineLexer.Symbols()[name]
	if !ok {
		panic(fmt.Sprintf("token %s not defined", name))
	}
	return tt
}
