package ui

import (
	"io"
	"strings"

	"github.com/charmbracelet/x/cellbuf"
)

// Canvas composes rendered blocks into a cellbuf screen so overlays can be
// drawn on top of the base frame.
type Canvas struct {
	screen *cellbuf.Screen
	writer *cellbuf.ScreenWriter
	width  int
	height int
}

func NewCanvas(width, height int) *Canvas {
	width, height = max(width, 1), max(height, 1)
	screen := cellbuf.NewScreen(io.Discard, width, height, &cellbuf.ScreenOptions{})
	return &Canvas{
		screen: screen,
		writer: cellbuf.NewScreenWriter(screen),
		width:  width,
		height: height,
	}
}

// DrawStringAt writes content with its top-left corner at x,y. Each line
// starts at column x.
func (c *Canvas) DrawStringAt(x, y int, content string) {
	c.drawBlockAt(x, y, splitLines(content))
}

// centerOverlay centers a block in the rows between the margins so the
// header and footer stay visible.
func (c *Canvas) centerOverlay(overlay string, topMargin, bottomMargin int) {
	lines := splitLines(overlay)
	if len(lines) == 0 {
		return
	}
	topMargin, bottomMargin = max(topMargin, 0), max(bottomMargin, 0)

	usable := max(c.height-topMargin-bottomMargin, len(lines))
	y := topMargin + (usable-len(lines))/2
	y = min(y, c.height-bottomMargin-len(lines))
	y = max(y, topMargin, 0)

	x := max((c.width-min(maxLineWidth(lines), c.width))/2, 0)
	c.drawBlockAt(x, y, lines)
}

// bottomRightOverlay anchors a block to the bottom-right corner, inset by
// padding cells.
func (c *Canvas) bottomRightOverlay(overlay string, padding int) {
	lines := splitLines(overlay)
	if len(lines) == 0 {
		return
	}
	padding = max(padding, 0)
	y := max(c.height-len(lines)-padding, 0)
	x := max(c.width-maxLineWidth(lines)-padding, 0)
	c.drawBlockAt(x, y, lines)
}

func (c *Canvas) drawBlockAt(x, y int, lines []string) {
	x, y = max(x, 0), max(y, 0)
	for i, line := range lines {
		row := y + i
		if row >= c.height {
			break
		}
		if line == "" {
			continue
		}
		c.writer.PrintCropAt(x, row, line, "")
	}
}

// Render returns the frame as newline-separated lines and releases the
// screen.
func (c *Canvas) Render() string {
	raw := cellbuf.Render(c.screen)
	_ = c.screen.Close()
	return strings.ReplaceAll(raw, "\r\n", "\n")
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
}
