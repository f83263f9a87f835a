package extractor

import (
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"pdfchat/internal/models"
)

// Gap thresholds, as multiples of the font size.
const (
	rowTolerance = 0.5
	wordGap      = 0.15
	cellGap      = 1.5
)

type row struct {
	y      float64
	glyphs []pdf.Text
}

func isBlank(g pdf.Text) bool {
	return strings.TrimSpace(g.S) == ""
}

// cells splits the row into cells at wide gaps; words inside a cell are
// joined with single spaces. Whitespace glyphs always end a word, and gaps
// are measured from the last visible glyph so padding runs count as space.
func (r row) cells() []string {
	var (
		out     []string
		cell    []string
		word    strings.Builder
		prev    pdf.Text
		hasPrev bool
	)
	flushWord := func() {
		if word.Len() > 0 {
			cell = append(cell, word.String())
			word.Reset()
		}
	}
	flushCell := func() {
		flushWord()
		if len(cell) > 0 {
			out = append(out, strings.Join(cell, " "))
			cell = nil
		}
	}

	for _, g := range r.glyphs {
		if isBlank(g) {
			flushWord()
			continue
		}
		if hasPrev {
			size := fontSize(prev)
			gap := g.X - (prev.X + glyphWidth(prev))
			switch {
			case gap > cellGap*size:
				flushCell()
			case gap > wordGap*size:
				flushWord()
			}
		}
		word.WriteString(g.S)
		prev, hasPrev = g, true
	}
	flushCell()
	return out
}

func fontSize(g pdf.Text) float64 {
	if g.FontSize > 0 {
		return g.FontSize
	}
	return 10
}

// glyphWidth falls back to half an em when the font carries no widths.
func glyphWidth(g pdf.Text) float64 {
	if g.W > 0 {
		return g.W
	}
	return fontSize(g) / 2
}

// groupRows clusters glyphs sharing a baseline, top of page first, each row
// ordered left to right. Glyphs at the same X keep their content stream order.
func groupRows(texts []pdf.Text) []row {
	glyphs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S != "" {
			glyphs = append(glyphs, t)
		}
	}
	sort.SliceStable(glyphs, func(i, j int) bool {
		return glyphs[i].Y > glyphs[j].Y
	})

	var rows []row
	for _, g := range glyphs {
		if n := len(rows); n > 0 {
			last := &rows[n-1]
			if last.y-g.Y <= rowTolerance*fontSize(g) {
				last.glyphs = append(last.glyphs, g)
				continue
			}
		}
		rows = append(rows, row{y: g.Y, glyphs: []pdf.Text{g}})
	}
	for i := range rows {
		glyphs := rows[i].glyphs
		sort.SliceStable(glyphs, func(a, b int) bool {
			return glyphs[a].X < glyphs[b].X
		})
	}
	return rows
}

// pageLayout is the text and tables recovered from one page.
type pageLayout struct {
	text   string
	tables []models.Table
}

func layoutPage(texts []pdf.Text) pageLayout {
	rows := groupRows(texts)
	lines := make([]string, 0, len(rows))
	grid := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells := r.cells()
		if len(cells) == 0 {
			continue
		}
		grid = append(grid, cells)
		lines = append(lines, strings.Join(cells, " "))
	}
	return pageLayout{
		text:   strings.Join(lines, "\n"),
		tables: detectTables(grid),
	}
}

// detectTables returns every run of at least two consecutive rows that each
// have at least two cells.
func detectTables(grid [][]string) []models.Table {
	var (
		tables  []models.Table
		current models.Table
	)
	flush := func() {
		if len(current) >= 2 {
			tables = append(tables, current)
		}
		current = nil
	}
	for _, cells := range grid {
		if len(cells) < 2 {
			flush()
			continue
		}
		current = append(current, cells)
	}
	flush()
	return tables
}
