package script

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

// assignOp is the operator of a statement.
type assignOp int

const (
	opAssign assignOp = iota // name = expr, name[i] = expr
	opAppend                 // name += expr
)

// statement is one parsed line of a script.
type statement struct {
	target      string
	targetRange hcl.Range
	index       hclsyntax.Expression // nil unless name[index] = expr
	op          assignOp
	value       hclsyntax.Expression
	rng         hcl.Range
}

// Program is a parsed script.
type Program struct {
	statements []statement
}

// Len returns the number of statements.
func (p *Program) Len() int {
	return len(p.statements)
}

// Assigned returns the statement targets in order of first assignment.
func (p *Program) Assigned() []string {
	seen := make(map[string]bool)
	var names []string
	for _, st := range p.statements {
		if !seen[st.target] {
			seen[st.target] = true
			names = append(names, st.target)
		}
	}
	return names
}

// Parse splits src into statements and parses their expressions.
// It reports the first problem found as a *SyntaxError.
func Parse(src, filename string) (*Program, error) {
	tokens, diags := hclsyntax.LexConfig([]byte(src), filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, syntaxErrorFromDiags(diags)
	}

	prog := &Program{}
	for _, line := range splitStatements(tokens) {
		st, err := parseStatement([]byte(src), filename, line)
		if err != nil {
			return nil, err
		}
		prog.statements = append(prog.statements, st)
	}
	return prog, nil
}

// splitStatements groups tokens into statements. A newline outside any
// bracket, parenthesis, brace or template ends a statement. Comment tokens
// are dropped; the expression parser sees the raw source between the first
// and last kept token, comments included.
func splitStatements(tokens hclsyntax.Tokens) [][]hclsyntax.Token {
	var (
		out   [][]hclsyntax.Token
		cur   []hclsyntax.Token
		depth int
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, cur)
			cur = nil
		}
	}

	for _, tok := range tokens {
		switch tok.Type {
		case hclsyntax.TokenEOF:
			flush()
			return out
		case hclsyntax.TokenNewline:
			if depth == 0 {
				flush()
			}
			continue
		case hclsyntax.TokenComment:
			// Line comments swallow their trailing newline.
			if depth == 0 && len(tok.Bytes) > 0 && tok.Bytes[len(tok.Bytes)-1] == '\n' {
				flush()
			}
			continue
		case hclsyntax.TokenOBrace, hclsyntax.TokenOBrack, hclsyntax.TokenOParen,
			hclsyntax.TokenOQuote, hclsyntax.TokenOHeredoc,
			hclsyntax.TokenTemplateInterp, hclsyntax.TokenTemplateControl:
			depth++
		case hclsyntax.TokenCBrace, hclsyntax.TokenCBrack, hclsyntax.TokenCParen,
			hclsyntax.TokenCQuote, hclsyntax.TokenCHeredoc,
			hclsyntax.TokenTemplateSeqEnd:
			if depth > 0 {
				depth--
			}
		}
		cur = append(cur, tok)
	}
	flush()
	return out
}

// parseStatement parses the tokens of a single statement.
func parseStatement(src []byte, filename string, toks []hclsyntax.Token) (statement, error) {
	head := toks[0]
	if head.Type != hclsyntax.TokenIdent {
		return statement{}, syntaxErrorAt(head.Range,
			"expected a variable name at the start of the statement, found %q", string(head.Bytes))
	}

	st := statement{
		target:      string(head.Bytes),
		targetRange: head.Range,
		rng:         hcl.RangeBetween(head.Range, toks[len(toks)-1].Range),
	}
	pos := 1

	if pos < len(toks) && toks[pos].Type == hclsyntax.TokenOBrack {
		closing := matchingBracket(toks, pos)
		if closing < 0 {
			return statement{}, syntaxErrorAt(toks[pos].Range, "unclosed index bracket")
		}
		if closing == pos+1 {
			return statement{}, syntaxErrorAt(toks[pos].Range, "missing index expression")
		}
		open := toks[pos]
		idx, err := parseExpr(src, filename, open.Range.End, toks[closing].Range.Start.Byte)
		if err != nil {
			return statement{}, err
		}
		st.index = idx
		pos = closing + 1
	}

	if pos >= len(toks) {
		return statement{}, syntaxErrorAt(toks[pos-1].Range, "expected '=' or '+=' after %q", st.target)
	}

	opTok := toks[pos]
	switch {
	case opTok.Type == hclsyntax.TokenEqual:
		st.op = opAssign
		pos++
	case opTok.Type == hclsyntax.TokenPlus && pos+1 < len(toks) &&
		toks[pos+1].Type == hclsyntax.TokenEqual &&
		toks[pos+1].Range.Start.Byte == opTok.Range.End.Byte:
		if st.index != nil {
			return statement{}, syntaxErrorAt(opTok.Range, "'+=' cannot be used with an index")
		}
		st.op = opAppend
		pos += 2
	default:
		return statement{}, syntaxErrorAt(opTok.Range, "expected '=' or '+=' after %q, found %q", st.target, string(opTok.Bytes))
	}

	if pos >= len(toks) {
		return statement{}, syntaxErrorAt(toks[pos-1].Range, "missing value for %q", st.target)
	}

	value, err := parseExpr(src, filename, toks[pos].Range.Start, toks[len(toks)-1].Range.End.Byte)
	if err != nil {
		return statement{}, err
	}
	st.value = value
	return st, nil
}

// matchingBracket returns the position of the bracket closing toks[open],
// or -1.
func matchingBracket(toks []hclsyntax.Token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i].Type {
		case hclsyntax.TokenOBrack:
			depth++
		case hclsyntax.TokenCBrack:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseExpr parses src[start.Byte:end] as a single expression.
func parseExpr(src []byte, filename string, start hcl.Pos, end int) (hclsyntax.Expression, error) {
	expr, diags := hclsyntax.ParseExpression(src[start.Byte:end], filename, start)
	if diags.HasErrors() {
		return nil, syntaxErrorFromDiags(diags)
	}
	return expr, nil
}
