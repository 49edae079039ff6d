package sink

import (
	"fmt"
	"image/color"
	"io"
	"strings"
	"sync"

	"charm.land/lipgloss/v2"
	drawille "github.com/exrook/drawille-go"

	"github.com/coreman2200/soundgauge/model"
)

const cursorHome = "\x1b[H"

// Braille renders the buffer as braille dots on a terminal. Every non
// background pixel is one dot; the frame is tinted with the most common color.
type Braille struct {
	w io.Writer
	// Plain disables color and cursor control, for logs and tests.
	Plain bool
	// Step samples every Step-th pixel in both axes to shrink the output.
	Step int

	mu     sync.Mutex
	canvas drawille.Canvas
}

func NewBraille(w io.Writer, step int) *Braille {
	if step < 1 {
		step = 1
	}
	return &Braille{w: w, Step: step, canvas: drawille.NewCanvas()}
}

func (b *Braille) Blit(buf *model.PixelBuffer, x, y int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rows := b.rows(buf)
	out := strings.Join(rows, "\n")
	if !b.Plain {
		if c, ok := dominant(buf); ok {
			out = lipgloss.NewStyle().Foreground(c).Render(out)
		}
		out = cursorHome + out
	}
	_, err := fmt.Fprintln(b.w, out)
	return err
}

// rows draws buf into the canvas and returns the braille text, four pixel rows
// per line of output.
func (b *Braille) rows(buf *model.PixelBuffer) []string {
	b.canvas.Clear()
	w := (buf.Width() + b.Step - 1) / b.Step
	h := (buf.Height() + b.Step - 1) / b.Step
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			if buf.Get(px*b.Step, py*b.Step) != model.Background {
				b.canvas.Set(px, py)
			}
		}
	}
	rows := b.canvas.Rows(0, 0, w, h)
	// pad to a stable frame size so successive frames overwrite each other
	lines := (h + 3) / 4
	cols := (w + 1) / 2
	out := make([]string, lines)
	for i := range out {
		line := ""
		if i < len(rows) {
			line = rows[i]
		}
		if n := len([]rune(line)); n < cols {
			line += strings.Repeat(" ", cols-n)
		} else if n > cols {
			line = string([]rune(line)[:cols])
		}
		out[i] = line
	}
	return out
}

func dominant(buf *model.PixelBuffer) (color.Color, bool) {
	counts := map[uint16]int{}
	for _, v := range buf.Raw() {
		if v != model.Background {
			counts[v]++
		}
	}
	best, n := uint16(0), 0
	for v, c := range counts {
		if c > n || (c == n && v < best) {
			best, n = v, c
		}
	}
	if n == 0 {
		return nil, false
	}
	return model.Packed565(best).ToRGBA(), true
}
