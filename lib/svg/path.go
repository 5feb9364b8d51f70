package svg

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/stencilkit/stencilkit/lib/geo"
)

// PathCommand is one absolute path command. Op is one of M L C Q A Z.
// H and V are normalized to L, S to C and T to Q.
type PathCommand struct {
	Op   byte
	Args []float64
}

// Path is parsed SVG path data with every command in absolute coordinates.
type Path struct {
	Commands []PathCommand
}

func chopPrecision(f float64) float64 {
	return math.Round(f*10000) / 10000
}

var argCounts = map[byte]int{
	'M': 2, 'L': 2, 'H': 1, 'V': 1, 'C': 6, 'S': 4, 'Q': 4, 'T': 2, 'A': 7, 'Z': 0,
}

func isCommand(c byte) bool {
	_, ok := argCounts[upper(c)]
	return ok
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// ParsePath parses SVG path data.
func ParsePath(d string) (*Path, error) {
	toks, err := tokenize(d)
	if err != nil {
		return nil, err
	}
	p := &Path{}
	var cur, start, lastCtrl geo.Point
	var prevOp byte
	i := 0
	var op byte
	for i < len(toks) {
		if toks[i].cmd != 0 {
			op = toks[i].cmd
			i++
		} else if op == 0 {
			return nil, fmt.Errorf("path data must start with a command: %q", d)
		}
		rel := op >= 'a' && op <= 'z'
		uop := upper(op)
		n := argCounts[uop]
		args := make([]float64, n)
		for j := 0; j < n; j++ {
			if i >= len(toks) || toks[i].cmd != 0 {
				return nil, fmt.Errorf("command %c expects %d arguments: %q", op, n, d)
			}
			args[j] = toks[i].num
			i++
		}
		off := func(x, y float64) (float64, float64) {
			if rel {
				return cur.X + x, cur.Y + y
			}
			return x, y
		}
		switch uop {
		case 'M':
			x, y := off(args[0], args[1])
			p.add('M', x, y)
			cur, start = geo.Point{X: x, Y: y}, geo.Point{X: x, Y: y}
			// subsequent pairs are implicit lineto
			if rel {
				op = 'l'
			} else {
				op = 'L'
			}
		case 'L':
			x, y := off(args[0], args[1])
			p.add('L', x, y)
			cur = geo.Point{X: x, Y: y}
		case 'H':
			x := args[0]
			if rel {
				x += cur.X
			}
			p.add('L', x, cur.Y)
			cur.X = x
		case 'V':
			y := args[0]
			if rel {
				y += cur.Y
			}
			p.add('L', cur.X, y)
			cur.Y = y
		case 'C':
			x1, y1 := off(args[0], args[1])
			x2, y2 := off(args[2], args[3])
			x, y := off(args[4], args[5])
			p.add('C', x1, y1, x2, y2, x, y)
			lastCtrl, cur = geo.Point{X: x2, Y: y2}, geo.Point{X: x, Y: y}
		case 'S':
			x1, y1 := cur.X, cur.Y
			if prevOp == 'C' {
				x1, y1 = 2*cur.X-lastCtrl.X, 2*cur.Y-lastCtrl.Y
			}
			x2, y2 := off(args[0], args[1])
			x, y := off(args[2], args[3])
			p.add('C', x1, y1, x2, y2, x, y)
			lastCtrl, cur = geo.Point{X: x2, Y: y2}, geo.Point{X: x, Y: y}
			uop = 'C'
		case 'Q':
			x1, y1 := off(args[0], args[1])
			x, y := off(args[2], args[3])
			p.add('Q', x1, y1, x, y)
			lastCtrl, cur = geo.Point{X: x1, Y: y1}, geo.Point{X: x, Y: y}
		case 'T':
			x1, y1 := cur.X, cur.Y
			if prevOp == 'Q' {
				x1, y1 = 2*cur.X-lastCtrl.X, 2*cur.Y-lastCtrl.Y
			}
			x, y := off(args[0], args[1])
			p.add('Q', x1, y1, x, y)
			lastCtrl, cur = geo.Point{X: x1, Y: y1}, geo.Point{X: x, Y: y}
			uop = 'Q'
		case 'A':
			x, y := off(args[5], args[6])
			p.add('A', args[0], args[1], args[2], args[3], args[4], x, y)
			cur = geo.Point{X: x, Y: y}
		case 'Z':
			p.add('Z')
			cur = start
		}
		prevOp = uop
	}
	return p, nil
}

func (p *Path) add(op byte, args ...float64) {
	p.Commands = append(p.Commands, PathCommand{Op: op, Args: args})
}

type pathToken struct {
	cmd byte
	num float64
}

func tokenize(d string) ([]pathToken, error) {
	var toks []pathToken
	i := 0
	for i < len(d) {
		c := d[i]
		switch {
		case c == ' ' || c == ',' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isCommand(c):
			toks = append(toks, pathToken{cmd: c})
			i++
		default:
			j := i
			if d[j] == '-' || d[j] == '+' {
				j++
			}
			seenDot, seenExp := false, false
			for j < len(d) {
				ch := d[j]
				if ch >= '0' && ch <= '9' {
					j++
				} else if ch == '.' && !seenDot && !seenExp {
					seenDot = true
					j++
				} else if (ch == 'e' || ch == 'E') && !seenExp && j > i {
					seenExp = true
					j++
					if j < len(d) && (d[j] == '-' || d[j] == '+') {
						j++
					}
				} else {
					break
				}
			}
			if j == i {
				return nil, fmt.Errorf("unexpected %q in path data at %d", c, i)
			}
			f, err := strconv.ParseFloat(d[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q in path data: %w", d[i:j], err)
			}
			toks = append(toks, pathToken{num: f})
			i = j
		}
	}
	return toks, nil
}

// Map applies x' = x*sx + tx, y' = y*sy + ty to every coordinate.
func (p *Path) Map(sx, sy, tx, ty float64) *Path {
	out := &Path{Commands: make([]PathCommand, 0, len(p.Commands))}
	for _, c := range p.Commands {
		args := append([]float64(nil), c.Args...)
		if c.Op == 'A' {
			args[0] *= math.Abs(sx)
			args[1] *= math.Abs(sy)
			args[5] = args[5]*sx + tx
			args[6] = args[6]*sy + ty
		} else {
			for i := 0; i+1 < len(args); i += 2 {
				args[i] = args[i]*sx + tx
				args[i+1] = args[i+1]*sy + ty
			}
		}
		out.Commands = append(out.Commands, PathCommand{Op: c.Op, Args: args})
	}
	return out
}

// BoundingBox returns the box of all end and control points.
func (p *Path) BoundingBox() *geo.Box {
	var pts geo.Route
	for _, c := range p.Commands {
		if c.Op == 'A' {
			pts = append(pts, geo.NewPoint(c.Args[5], c.Args[6]))
			continue
		}
		for i := 0; i+1 < len(c.Args); i += 2 {
			pts = append(pts, geo.NewPoint(c.Args[i], c.Args[i+1]))
		}
	}
	if len(pts) == 0 {
		return geo.NewBox(geo.NewPoint(0, 0), 0, 0)
	}
	tl, br := pts.GetBoundingBox()
	return geo.NewBox(tl, br.X-tl.X, br.Y-tl.Y)
}

// Flatten approximates the path with straight segments. Curves are sampled
// at a fixed number of steps and arcs are replaced by chords.
func (p *Path) Flatten() []*geo.Point {
	const steps = 8
	var pts []*geo.Point
	var cur, start geo.Point
	for _, c := range p.Commands {
		switch c.Op {
		case 'M':
			cur = geo.Point{X: c.Args[0], Y: c.Args[1]}
			start = cur
			pts = append(pts, geo.NewPoint(cur.X, cur.Y))
		case 'L':
			cur = geo.Point{X: c.Args[0], Y: c.Args[1]}
			pts = append(pts, geo.NewPoint(cur.X, cur.Y))
		case 'C':
			for s := 1; s <= steps; s++ {
				t := float64(s) / steps
				mt := 1 - t
				x := mt*mt*mt*cur.X + 3*mt*mt*t*c.Args[0] + 3*mt*t*t*c.Args[2] + t*t*t*c.Args[4]
				y := mt*mt*mt*cur.Y + 3*mt*mt*t*c.Args[1] + 3*mt*t*t*c.Args[3] + t*t*t*c.Args[5]
				pts = append(pts, geo.NewPoint(x, y))
			}
			cur = geo.Point{X: c.Args[4], Y: c.Args[5]}
		case 'Q':
			for s := 1; s <= steps; s++ {
				t := float64(s) / steps
				mt := 1 - t
				x := mt*mt*cur.X + 2*mt*t*c.Args[0] + t*t*c.Args[2]
				y := mt*mt*cur.Y + 2*mt*t*c.Args[1] + t*t*c.Args[3]
				pts = append(pts, geo.NewPoint(x, y))
			}
			cur = geo.Point{X: c.Args[2], Y: c.Args[3]}
		case 'A':
			cur = geo.Point{X: c.Args[5], Y: c.Args[6]}
			pts = append(pts, geo.NewPoint(cur.X, cur.Y))
		case 'Z':
			cur = start
			pts = append(pts, geo.NewPoint(cur.X, cur.Y))
		}
	}
	return pts
}

func (p *Path) String() string {
	parts := make([]string, 0, len(p.Commands))
	for _, c := range p.Commands {
		s := string(c.Op)
		for _, a := range c.Args {
			s += " " + strconv.FormatFloat(chopPrecision(a), 'f', -1, 64)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// RoutePath renders a polyline route as path data.
func RoutePath(route geo.Route) string {
	p := &Path{}
	for i, pt := range route {
		op := byte('L')
		if i == 0 {
			op = 'M'
		}
		p.add(op, pt.X, pt.Y)
	}
	return p.String()
}
