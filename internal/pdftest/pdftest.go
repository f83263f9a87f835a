// Package pdftest builds small, valid PDF files with positioned text and
// optional embedded images for use in tests.
package pdftest

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"strings"
)

// Font selects the standard Type1 font the text is drawn with.
type Font int

const (
	// Courier carries a /Widths array of 600 units for every glyph.
	Courier Font = iota
	// TimesRoman carries the real Times-Roman /Widths, where a space is 250.
	TimesRoman
	// Helvetica has no /Widths at all, like the core fonts FPDF writes.
	Helvetica
)

// Line is a run of text drawn at (X, Y) in PDF user space.
type Line struct {
	X, Y float64
	Text string
}

// Page holds the lines drawn on one page. With Image set, a 2x2 grayscale
// image is painted on the page as well.
type Page struct {
	Lines []Line
	Image bool
}

const (
	topY       = 720
	leftX      = 72
	lineHeight = 18
	colWidth   = 150
)

// TextPage lays out each string on its own line, top to bottom.
func TextPage(lines ...string) Page {
	var p Page
	for i, text := range lines {
		p.Lines = append(p.Lines, Line{X: leftX, Y: float64(topY - i*lineHeight), Text: text})
	}
	return p
}

// TablePage draws rows as a grid with fixed-width columns.
func TablePage(rows [][]string) Page {
	var p Page
	for i, row := range rows {
		for j, cell := range row {
			p.Lines = append(p.Lines, Line{
				X:    float64(leftX + j*colWidth),
				Y:    float64(topY - i*lineHeight),
				Text: cell,
			})
		}
	}
	return p
}

// Append returns a page with the lines of other drawn below p.
func (p Page) Append(other Page) Page {
	lowest := float64(topY + lineHeight)
	for _, l := range p.Lines {
		if l.Y < lowest {
			lowest = l.Y
		}
	}
	shift := float64(topY) - lowest + 2*lineHeight
	out := Page{Lines: append([]Line(nil), p.Lines...), Image: p.Image || other.Image}
	for _, l := range other.Lines {
		l.Y -= shift
		out.Lines = append(out.Lines, l)
	}
	return out
}

// Build renders the pages into a complete PDF document using Courier.
func Build(pages ...Page) []byte {
	return BuildWithFont(Courier, pages...)
}

// BuildWithFont renders the pages with the given font.
func BuildWithFont(font Font, pages ...Page) []byte {
	var objects []string

	// 1: catalog, 2: pages, 3: font, then page/content pairs, then the image.
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	objects = append(objects, fontObject(font))

	imageID := 4 + 2*len(pages)
	needImage := false
	for i, page := range pages {
		contentID := 5 + 2*i
		resources := "/Font << /F1 3 0 R >>"
		if page.Image {
			resources += fmt.Sprintf(" /XObject << /Im1 %d 0 R >>", imageID)
			needImage = true
		}
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << %s >> /Contents %d 0 R >>",
			resources, contentID,
		))
		stream := contentStream(page)
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}
	if needImage {
		objects = append(objects, imageObject())
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// timesWidths are the Times-Roman advance widths for codes 32 through 126.
var timesWidths = []int{
	250, 333, 408, 500, 500, 833, 778, 180, 333, 333, 500, 564, 250, 333, 250, 278,
	500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 278, 278, 564, 564, 564, 444,
	921, 722, 667, 667, 722, 611, 556, 722, 722, 333, 389, 722, 611, 889, 722, 722,
	556, 722, 667, 556, 611, 722, 722, 944, 722, 722, 611, 333, 278, 333, 469, 500,
	333, 444, 500, 444, 500, 444, 333, 500, 500, 278, 278, 500, 278, 778, 500, 500,
	500, 500, 333, 389, 278, 500, 500, 722, 500, 500, 444, 480, 200, 480, 541,
}

func fontObject(font Font) string {
	switch font {
	case TimesRoman:
		return type1Font("Times-Roman", timesWidths)
	case Helvetica:
		return "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"
	default:
		widths := make([]int, 95)
		for i := range widths {
			widths[i] = 600
		}
		return type1Font("Courier", widths)
	}
}

func type1Font(name string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = fmt.Sprint(w)
	}
	return fmt.Sprintf(
		"<< /Type /Font /Subtype /Type1 /BaseFont /%s /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar %d /Widths [%s] >>",
		name, 32+len(widths)-1, strings.Join(parts, " "),
	)
}

// imageObject is a 2x2 8-bit grayscale image, Flate compressed.
func imageObject() string {
	var data bytes.Buffer
	zw := zlib.NewWriter(&data)
	zw.Write([]byte{0x00, 0x80, 0xc0, 0xff})
	zw.Close()
	return fmt.Sprintf(
		"<< /Type /XObject /Subtype /Image /Width 2 /Height 2 /ColorSpace /DeviceGray /BitsPerComponent 8 /Filter /FlateDecode /Length %d >>\nstream\n%s\nendstream",
		data.Len(), data.String(),
	)
}

func contentStream(p Page) string {
	var b strings.Builder
	if p.Image {
		b.WriteString("q 100 0 0 100 72 400 cm /Im1 Do Q\n")
	}
	for _, l := range p.Lines {
		fmt.Fprintf(&b, "BT /F1 12 Tf %.2f %.2f Td (%s) Tj ET\n", l.X, l.Y, escape(l.Text))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

var escaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

func escape(s string) string {
	return escaper.Replace(s)
}
