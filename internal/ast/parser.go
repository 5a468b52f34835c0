package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jward/cobweb/internal/lexer"
	"github.com/jward/cobweb/internal/model"
)

// Options configure the parser.
type Options struct {
	// Dialects reports whether a dialect extension is enabled. Nil enables
	// none.
	Dialects func(dialect string) bool
}

// Result is the outcome of parsing one data area.
type Result struct {
	Root   *Node
	Errors []model.Diagnostic
	// Next is the index of the first token after the data area: a division
	// header other than DATA, END PROGRAM, or len(tokens).
	Next int
}

// SyntaxError builds the diagnostic reported for an unexpected token.
func SyntaxError(tok lexer.Token, expected ...string) model.Diagnostic {
	msg := fmt.Sprintf("Syntax error on '%s'", tok.Text)
	if len(expected) > 0 {
		msg += " expected {" + strings.Join(expected, ", ") + "}"
	}
	return model.NewError(model.CodeSyntaxError, tok.Loc, msg)
}

// Parse builds the tree of a data area: an optional DATA DIVISION header,
// sections, FD/SD entries, data entries and dialect copy statements.
func Parse(tokens []lexer.Token, opts Options) Result {
	p := &parser{toks: tokens, opts: opts}
	root := &Node{Kind: KindUnit}
	container := root
	add := func(n *Node) {
		if n != nil {
			container.Children = append(container.Children, n)
		}
	}
	for !p.atEnd() {
		tok := p.peek()
		switch {
		case tok.Kind == lexer.Period:
			p.pos++
		case tok.Is("DATA") && p.peekAt(1).Is("DIVISION"):
			p.pos += 2
			p.expectPeriod()
		case tok.Kind == lexer.Word && p.peekAt(1).Is("SECTION"):
			sec := p.section()
			root.Children = append(root.Children, sec)
			container = sec
		case tok.IsAny("FD", "SD"):
			add(p.fileDescription())
		case isLevel(tok):
			add(p.entry())
		case tok.Is("COPY") && p.isDialectCopy():
			add(p.dialectCopy(nil))
		case tok.Is("EXEC"):
			p.skipExec()
		default:
			p.diags = append(p.diags, SyntaxError(tok, "<level number>", "FD", "SD", "SECTION"))
			p.skipPastPeriod()
		}
	}
	return Result{Root: root, Errors: p.diags, Next: p.pos}
}

type parser struct {
	toks  []lexer.Token
	pos   int
	opts  Options
	diags []model.Diagnostic
}

var eof = lexer.Token{Kind: lexer.Punct}

func (p *parser) peek() lexer.Token {
	return p.peekAt(0)
}

func (p *parser) peekAt(offset int) lexer.Token {
	if i := p.pos + offset; i < len(p.toks) {
		return p.toks[i]
	}
	return eof
}

func (p *parser) next() lexer.Token {
	tok := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return tok
}

func (p *parser) skip(words ...string) {
	if p.peek().IsAny(words...) {
		p.pos++
	}
}

func (p *parser) atEnd() bool {
	if p.pos >= len(p.toks) {
		return true
	}
	tok := p.toks[p.pos]
	if p.peekAt(1).Is("DIVISION") && !tok.Is("DATA") {
		return true
	}
	return tok.Is("END") && p.peekAt(1).Is("PROGRAM")
}

func (p *parser) expectPeriod() *lexer.Token {
	if tok := p.peek(); tok.Kind == lexer.Period {
		p.pos++
		return &tok
	}
	if !p.atEnd() {
		p.diags = append(p.diags, SyntaxError(p.peek(), "."))
	}
	return nil
}

// skipPastPeriod drops tokens through the next period and returns the last
// token dropped.
func (p *parser) skipPastPeriod() *lexer.Token {
	var last *lexer.Token
	for !p.atEnd() {
		tok := p.next()
		last = &tok
		if tok.Kind == lexer.Period {
			break
		}
	}
	return last
}

func (p *parser) skipExec() {
	for !p.atEnd() {
		if p.next().Is("END-EXEC") {
			break
		}
	}
	if p.peek().Kind == lexer.Period {
		p.pos++
	}
}

func (p *parser) section() *Node {
	name := p.next()
	p.next() // SECTION
	n := &Node{Kind: KindSection, Section: name.Upper(), Start: &name}
	n.End = p.expectPeriod()
	return n
}

func (p *parser) fileDescription() *Node {
	start := p.next()
	n := &Node{Kind: KindFileDescription, Start: &start, End: &start, Sort: start.Is("SD")}
	if tok := p.peek(); tok.Kind == lexer.Word && !p.atEnd() {
		p.pos++
		n.Name = &tok
		n.End = &tok
	}
	var clause []lexer.Token
	for !p.atEnd() && p.peek().Kind != lexer.Period {
		clause = append(clause, p.next())
	}
	n.Descriptor = joinTokens(clause)
	if len(clause) > 0 {
		n.End = &clause[len(clause)-1]
	}
	if end := p.expectPeriod(); end != nil {
		n.End = end
	} else if p.atEnd() {
		p.missingPeriod(*n.End)
	}
	return n
}

func (p *parser) entry() *Node {
	levelTok := p.next()
	level := levelNumber(levelTok)
	n := &Node{Kind: kindForLevel(level), Level: level, LevelTok: &levelTok, Start: &levelTok, End: &levelTok}
	if p.peek().Is("COPY") && p.isDialectCopy() {
		return p.dialectCopy(n)
	}
	if tok := p.peek(); isUserWord(tok) {
		p.pos++
		n.Name = &tok
		n.End = &tok
	}
	p.clauses(n)
	return n
}

func (p *parser) clauses(n *Node) {
	for {
		if p.atEnd() {
			p.missingPeriod(*n.End)
			return
		}
		tok := p.peek()
		if tok.Kind == lexer.Period {
			p.pos++
			n.End = &tok
			return
		}
		if !p.clause(n) {
			p.diags = append(p.diags, SyntaxError(p.peek(), "PIC", "VALUE", "USAGE", "OCCURS", "REDEFINES", "."))
			if last := p.skipPastPeriod(); last != nil {
				n.End = last
			}
			return
		}
		if p.pos > 0 {
			last := p.toks[p.pos-1]
			n.End = &last
		}
	}
}

func (p *parser) missingPeriod(last lexer.Token) {
	p.diags = append(p.diags, model.NewError(model.CodeSyntaxError, last.Loc,
		fmt.Sprintf("Missing '.' after '%s'", last.Text)))
}

// clause consumes one data clause and reports whether one was recognized.
func (p *parser) clause(n *Node) bool {
	c := &n.Clauses
	tok := p.peek()
	switch {
	case tok.IsAny("PIC", "PICTURE"):
		p.pos++
		p.skip("IS")
		pic := p.picture()
		if pic == "" {
			return false
		}
		c.Pictures = append(c.Pictures, pic)
	case tok.IsAny("VALUE", "VALUES"):
		v, ok := p.value()
		if !ok {
			return false
		}
		c.Values = append(c.Values, v)
	case tok.Is("USAGE"):
		p.pos++
		p.skip("IS")
		u, ok := usageOf(p.peek())
		if !ok {
			return false
		}
		p.pos++
		c.Usages = append(c.Usages, u)
	case isUsage(tok):
		u, _ := usageOf(tok)
		p.pos++
		c.Usages = append(c.Usages, u)
	case tok.Is("OCCURS"):
		oc, ok := p.occurs()
		if !ok {
			return false
		}
		c.Occurs = append(c.Occurs, oc)
	case tok.Is("REDEFINES"):
		p.pos++
		target := p.peek()
		if !isUserWord(target) {
			return false
		}
		p.pos++
		c.Redefines = append(c.Redefines, target)
	case tok.Is("RENAMES"):
		p.pos++
		target := p.peek()
		if !isUserWord(target) {
			return false
		}
		p.pos++
		c.Renames = &target
		if p.peek().IsAny("THRU", "THROUGH") {
			p.pos++
			thru := p.peek()
			if !isUserWord(thru) {
				return false
			}
			p.pos++
			c.RenamesThru = &thru
		}
	case tok.Is("IS"):
		p.pos++
	case tok.Is("GLOBAL"):
		p.pos++
		c.Global = true
	case tok.Is("EXTERNAL"):
		p.pos++
		c.External = true
	case tok.Is("SIGN"):
		p.pos++
		p.skip("IS")
		p.skip("LEADING", "TRAILING")
		p.signSeparate()
		c.Sign = true
	case tok.IsAny("LEADING", "TRAILING"):
		p.pos++
		p.signSeparate()
		c.Sign = true
	case tok.Is("BLANK"):
		p.pos++
		p.skip("WHEN")
		if !p.peek().IsAny("ZERO", "ZEROS", "ZEROES") {
			return false
		}
		p.pos++
		c.BlankWhenZero = true
	case tok.IsAny("JUSTIFIED", "JUST"):
		p.pos++
		p.skip("RIGHT")
		c.Justified = true
	case tok.IsAny("SYNCHRONIZED", "SYNC"):
		p.pos++
		p.skip("LEFT", "RIGHT")
		c.Sync = true
	default:
		return false
	}
	return true
}

func (p *parser) signSeparate() {
	if p.peek().Is("SEPARATE") {
		p.pos++
		p.skip("CHARACTER")
	}
}

// picture joins the tokens of one picture string. A period belongs to the
// picture only when more picture text is glued to it.
func (p *parser) picture() string {
	first := p.peek()
	if p.atEnd() || first.Kind == lexer.Period {
		return ""
	}
	p.pos++
	var sb strings.Builder
	sb.WriteString(first.Text)
	for p.pos < len(p.toks) {
		tok := p.toks[p.pos]
		if !tok.Joined {
			break
		}
		if tok.Kind == lexer.Period && !p.peekAt(1).Joined {
			break
		}
		sb.WriteString(tok.Text)
		p.pos++
	}
	return sb.String()
}

func (p *parser) value() (Value, bool) {
	v := Value{Start: p.next()}
	p.skip("IS", "ARE")
	for {
		lit, ok := p.literal()
		if !ok {
			break
		}
		iv := model.ValueInterval{From: lit.Text}
		v.End = lit
		if p.peek().IsAny("THRU", "THROUGH") {
			p.pos++
			to, ok := p.literal()
			if !ok {
				return v, false
			}
			iv.To = to.Text
			v.End = to
		}
		v.Intervals = append(v.Intervals, iv)
	}
	return v, len(v.Intervals) > 0
}

func (p *parser) literal() (lexer.Token, bool) {
	tok := p.peek()
	switch {
	case tok.Kind == lexer.String, tok.Kind == lexer.Number, tok.Kind == lexer.Word && tok.IsInteger():
		p.pos++
		return tok, true
	case tok.Is("ALL"):
		p.pos++
		lit, ok := p.literal()
		if !ok {
			return tok, false
		}
		lit.Text = "ALL " + lit.Text
		lit.Loc = tok.Loc.Through(lit.Loc)
		return lit, true
	case isFigurative(tok):
		p.pos++
		return tok, true
	}
	return tok, false
}

func (p *parser) occurs() (Occurs, bool) {
	p.pos++
	var oc Occurs
	lo, ok := intOf(p.peek())
	if !ok {
		return oc, false
	}
	p.pos++
	oc.Min = lo
	if p.peek().Is("TO") {
		p.pos++
		hi, ok := intOf(p.peek())
		if !ok {
			return oc, false
		}
		p.pos++
		oc.Max = &hi
	}
	p.skip("TIMES")
	if p.peek().Is("DEPENDING") {
		p.pos++
		p.skip("ON")
		dep := p.peek()
		if !isUserWord(dep) {
			return oc, false
		}
		p.pos++
		oc.DependingOn = &dep
	}
	for p.peek().IsAny("ASCENDING", "DESCENDING") {
		p.pos++
		p.skip("KEY")
		p.skip("IS")
		for isUserWord(p.peek()) {
			oc.Keys = append(oc.Keys, p.next())
		}
	}
	if p.peek().Is("INDEXED") {
		p.pos++
		p.skip("BY")
		for isUserWord(p.peek()) {
			oc.Indexes = append(oc.Indexes, p.next())
		}
	}
	return oc, true
}

// isDialectCopy reports whether the COPY at the cursor names an enabled
// dialect.
func (p *parser) isDialectCopy() bool {
	d := p.peekAt(1)
	if !d.IsAny(model.DialectMAID, model.DialectIDMS) {
		return false
	}
	return p.opts.Dialects != nil && p.opts.Dialects(d.Upper())
}

// dialectCopy parses a dialect copy statement. owner is the entry whose
// level number prefixes the statement, if any.
func (p *parser) dialectCopy(owner *Node) *Node {
	copyTok := p.next()
	dialect := p.next().Upper()
	n := &Node{Kind: KindCopy, Start: &copyTok}
	if owner != nil {
		n.Level, n.LevelTok, n.Start = owner.Level, owner.LevelTok, owner.Start
	}
	if dialect == model.DialectIDMS {
		p.skip("RECORD", "FILE", "MODULE")
	}
	name := p.peek()
	if p.atEnd() || (name.Kind != lexer.Word && name.Kind != lexer.String) {
		p.diags = append(p.diags, SyntaxError(name, "<copybook name>"))
		p.skipPastPeriod()
		return nil
	}
	p.pos++
	stmt := &CopyStatement{Dialect: dialect, Name: name}
	n.End = &name
	if dialect == model.DialectMAID {
		if q := p.peek(); q.Kind == lexer.Word && !p.atEnd() {
			p.pos++
			stmt.Qualifier = &q
			n.End = &q
		}
	}
	n.Copy = stmt
	if end := p.expectPeriod(); end != nil {
		n.End = end
	} else {
		p.skipPastPeriod()
	}
	return n
}

func kindForLevel(level int) Kind {
	switch level {
	case model.LevelRenames:
		return KindRenames
	case model.LevelStandalone:
		return KindStandalone
	case model.LevelCondition:
		return KindCondition
	}
	return KindDataEntry
}

func isLevel(tok lexer.Token) bool {
	return levelNumber(tok) > 0
}

func levelNumber(tok lexer.Token) int {
	if tok.Kind != lexer.Word || len(tok.Text) > 2 || !tok.IsInteger() {
		return 0
	}
	n, _ := strconv.Atoi(tok.Text)
	switch {
	case n >= 1 && n <= 49, n == model.LevelRenames, n == model.LevelStandalone, n == model.LevelCondition:
		return n
	}
	return 0
}

func intOf(tok lexer.Token) (int, bool) {
	if tok.Kind != lexer.Word || !tok.IsInteger() {
		return 0, false
	}
	n, err := strconv.Atoi(tok.Text)
	return n, err == nil
}


var figuratives = map[string]bool{
	"ZERO": true, "ZEROS": true, "ZEROES": true,
	"SPACE": true, "SPACES": true,
	"HIGH-VALUE": true, "HIGH-VALUES": true,
	"LOW-VALUE": true, "LOW-VALUES": true,
	"QUOTE": true, "QUOTES": true,
	"NULL": true, "NULLS": true,
}

func isFigurative(tok lexer.Token) bool {
	return tok.Kind == lexer.Word && figuratives[tok.Upper()]
}

var usages = map[string]model.UsageFormat{
	"DISPLAY":           model.UsageDisplay,
	"DISPLAY-1":         model.UsageDisplay1,
	"BINARY":            model.UsageBinary,
	"COMP":              model.UsageComp,
	"COMPUTATIONAL":     model.UsageComp,
	"COMP-1":            model.UsageComp1,
	"COMPUTATIONAL-1":   model.UsageComp1,
	"COMP-2":            model.UsageComp2,
	"COMPUTATIONAL-2":   model.UsageComp2,
	"COMP-3":            model.UsageComp3,
	"COMPUTATIONAL-3":   model.UsageComp3,
	"COMP-4":            model.UsageComp4,
	"COMPUTATIONAL-4":   model.UsageComp4,
	"COMP-5":            model.UsageComp5,
	"COMPUTATIONAL-5":   model.UsageComp5,
	"PACKED-DECIMAL":    model.UsagePackedDecimal,
	"INDEX":             model.UsageIndex,
	"POINTER":           model.UsagePointer,
	"FUNCTION-POINTER":  model.UsageFunctionPointer,
	"PROCEDURE-POINTER": model.UsageProcedurePointer,
	"NATIONAL":          model.UsageNational,
}

func isUsage(tok lexer.Token) bool {
	_, ok := usageOf(tok)
	return ok
}

func usageOf(tok lexer.Token) (model.UsageFormat, bool) {
	if tok.Kind != lexer.Word {
		return "", false
	}
	u, ok := usages[tok.Upper()]
	return u, ok
}

var clauseKeywords = map[string]bool{
	"PIC": true, "PICTURE": true, "VALUE": true, "VALUES": true, "USAGE": true,
	"OCCURS": true, "REDEFINES": true, "RENAMES": true, "IS": true, "ARE": true,
	"GLOBAL": true, "EXTERNAL": true, "SIGN": true, "LEADING": true, "TRAILING": true,
	"BLANK": true, "JUSTIFIED": true, "JUST": true, "SYNCHRONIZED": true, "SYNC": true,
	"INDEXED": true, "ASCENDING": true, "DESCENDING": true, "DEPENDING": true,
	"TIMES": true, "TO": true, "KEY": true, "BY": true, "THRU": true, "THROUGH": true,
	"COPY": true,
}

// isUserWord reports whether tok can be a data name.
func isUserWord(tok lexer.Token) bool {
	if tok.Kind != lexer.Word || tok.Text == "" || tok.IsInteger() {
		return false
	}
	u := tok.Upper()
	return !clauseKeywords[u] && !isUsage(tok)
}

func joinTokens(toks []lexer.Token) string {
	var sb strings.Builder
	for i, t := range toks {
		if i > 0 && !t.Joined {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Text)
	}
	return sb.String()
}
