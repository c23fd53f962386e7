package coalesce

import (
	"strconv"
	"strings"
)

// LineKind classifies a raw protocol line.
type LineKind int

const (
	// LineUnrecognized is any line outside the progress grammar. It is skipped.
	LineUnrecognized LineKind = iota
	// LineProgress is an info line carrying depth, score and PV.
	LineProgress
	// LineBestMove is the terminal line of a search.
	LineBestMove
)

func (k LineKind) String() string {
	switch k {
	case LineProgress:
		return "progress"
	case LineBestMove:
		return "bestmove"
	default:
		return "unrecognized"
	}
}

// InfoLine is a parsed progress report.
type InfoLine struct {
	Depth    int
	SelDepth int
	MultiPV  int
	Score    Score
	Nodes    int64
	NPS      int64
	TBHits   int64
	TimeMS   int64
	PV       []string
}

// Move returns the candidate move the line reports on (first PV move).
func (l InfoLine) Move() string {
	if len(l.PV) == 0 {
		return ""
	}
	return l.PV[0]
}

// counterFields are the unsigned counters between the score and the PV, in order.
var counterFields = [...]string{"nodes", "nps", "tbhits", "time"}

// ParseLine classifies line and, for progress lines, returns its fields.
func ParseLine(line string) (InfoLine, LineKind) {
	tok := strings.Fields(line)
	if len(tok) == 0 {
		return InfoLine{}, LineUnrecognized
	}
	if tok[0] == "bestmove" {
		return InfoLine{}, LineBestMove
	}
	if tok[0] != "info" {
		return InfoLine{}, LineUnrecognized
	}

	p := tokenizer{tok: tok, pos: 1}
	var l InfoLine
	var ok bool

	if l.Depth, ok = p.keyedUint("depth"); !ok || l.Depth < 1 {
		return InfoLine{}, LineUnrecognized
	}
	if l.SelDepth, ok = p.keyedUint("seldepth"); !ok {
		return InfoLine{}, LineUnrecognized
	}
	if l.MultiPV, ok = p.keyedUint("multipv"); !ok {
		return InfoLine{}, LineUnrecognized
	}
	if l.Score, ok = p.score(); !ok {
		return InfoLine{}, LineUnrecognized
	}
	counters := [len(counterFields)]int64{}
	for i, key := range counterFields {
		n, ok := p.keyedUint(key)
		if !ok {
			return InfoLine{}, LineUnrecognized
		}
		counters[i] = int64(n)
	}
	l.Nodes, l.NPS, l.TBHits, l.TimeMS = counters[0], counters[1], counters[2], counters[3]

	if !p.expect("pv") {
		return InfoLine{}, LineUnrecognized
	}
	pv := p.rest()
	if len(pv) == 0 {
		return InfoLine{}, LineUnrecognized
	}
	for _, mv := range pv {
		if !isWord(mv) {
			return InfoLine{}, LineUnrecognized
		}
	}
	l.PV = append([]string(nil), pv...)
	return l, LineProgress
}

// FormatInfoLine renders l in the progress grammar accepted by ParseLine.
func FormatInfoLine(l InfoLine) string {
	var b strings.Builder
	b.WriteString("info depth ")
	b.WriteString(strconv.Itoa(l.Depth))
	b.WriteString(" seldepth ")
	b.WriteString(strconv.Itoa(l.SelDepth))
	b.WriteString(" multipv ")
	b.WriteString(strconv.Itoa(l.MultiPV))
	b.WriteString(" score ")
	b.WriteString(string(l.Score.Kind))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(l.Score.Value))
	b.WriteString(" nodes ")
	b.WriteString(strconv.FormatInt(l.Nodes, 10))
	b.WriteString(" nps ")
	b.WriteString(strconv.FormatInt(l.NPS, 10))
	b.WriteString(" tbhits ")
	b.WriteString(strconv.FormatInt(l.TBHits, 10))
	b.WriteString(" time ")
	b.WriteString(strconv.FormatInt(l.TimeMS, 10))
	b.WriteString(" pv")
	for _, mv := range l.PV {
		b.WriteByte(' ')
		b.WriteString(mv)
	}
	return b.String()
}

type tokenizer struct {
	tok []string
	pos int
}

func (p *tokenizer) next() (string, bool) {
	if p.pos >= len(p.tok) {
		return "", false
	}
	t := p.tok[p.pos]
	p.pos++
	return t, true
}

func (p *tokenizer) expect(key string) bool {
	t, ok := p.next()
	return ok && t == key
}

func (p *tokenizer) keyedUint(key string) (int, bool) {
	if !p.expect(key) {
		return 0, false
	}
	t, ok := p.next()
	if !ok || !isDigits(t) {
		return 0, false
	}
	n, err := strconv.Atoi(t)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (p *tokenizer) score() (Score, bool) {
	if !p.expect("score") {
		return Score{}, false
	}
	kind, ok := p.next()
	if !ok || (kind != string(Centipawns) && kind != string(Mate)) {
		return Score{}, false
	}
	t, ok := p.next()
	if !ok {
		return Score{}, false
	}
	digits := strings.TrimPrefix(t, "-")
	if !isDigits(digits) {
		return Score{}, false
	}
	v, err := strconv.Atoi(t)
	if err != nil {
		return Score{}, false
	}
	return Score{Kind: ScoreKind(kind), Value: v}, true
}

func (p *tokenizer) rest() []string {
	if p.pos >= len(p.tok) {
		return nil
	}
	return p.tok[p.pos:]
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// isWord matches a PV move token: letters, digits and underscore.
func isWord(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			return false
		}
	}
	return true
}
