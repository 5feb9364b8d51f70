package pdf

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/stencilkit/stencilkit/lib/color"
)

const TITLE_SEP = "  /  "

type GoFPDF struct {
	pdf *gofpdf.Fpdf
}

// Link is a clickable area in the coordinates of the rendered view box.
type Link struct {
	X, Y, Width, Height float64
	URL                 string
}

func Init() *GoFPDF {
	newGofPDF := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
	})

	newGofPDF.AddUTF8FontFromBytes("go", "", goregular.TTF)
	newGofPDF.AddUTF8FontFromBytes("go", "B", gobold.TTF)
	newGofPDF.SetAutoPageBreak(false, 0)
	newGofPDF.SetLineWidth(2)
	newGofPDF.SetMargins(0, 0, 0)

	fpdf := GoFPDF{
		pdf: newGofPDF,
	}

	return &fpdf
}

type rgb struct {
	r, g, b int
	light   bool
}

func fillRGB(fill string) (rgb, error) {
	if fill == "" || strings.EqualFold(fill, "transparent") || strings.EqualFold(fill, color.None) {
		return rgb{r: 255, g: 255, b: 255, light: true}, nil
	}
	c, err := color.RGBA(fill)
	if err != nil {
		return rgb{}, err
	}
	l, err := color.Luminance(fill)
	if err != nil {
		return rgb{}, err
	}
	return rgb{r: int(c.R), g: int(c.G), b: int(c.B), light: l > .5}, nil
}

// AddPDFPage adds a page holding png under a header naming titlePath.
// scale is the factor png was rendered at; viewboxX and viewboxY locate
// the links.
func (g *GoFPDF) AddPDFPage(png []byte, titlePath []string, fill string, links []Link, scale, viewboxX, viewboxY float64) error {
	if len(titlePath) == 0 {
		titlePath = []string{"canvas"}
	}
	var opt gofpdf.ImageOptions
	opt.ImageType = "png"
	imageName := fmt.Sprintf("%s#%d", strings.Join(titlePath, "/"), g.pdf.PageCount())
	imageInfo := g.pdf.RegisterImageOptionsReader(imageName, opt, bytes.NewReader(png))
	if g.pdf.Err() {
		return g.pdf.Error()
	}
	if scale <= 0 {
		scale = 1
	}
	imageWidth := imageInfo.Width() / scale
	imageHeight := imageInfo.Height() / scale

	g.pdf.SetFont("go", "B", 14)
	pathString := strings.Join(titlePath, TITLE_SEP)
	headerMargin := 28.0
	headerWidth := g.pdf.GetStringWidth(pathString) + 2*headerMargin

	minPageDimension := 576.0
	pageWidth := math.Max(math.Max(minPageDimension, imageWidth), headerWidth)
	pageHeight := math.Max(minPageDimension, imageHeight)

	bg, err := fillRGB(fill)
	if err != nil {
		return err
	}

	headerHeight := 72.0
	g.pdf.AddPageFormat("", gofpdf.SizeType{Wd: pageWidth, Ht: pageHeight + headerHeight})

	g.pdf.SetFillColor(bg.r, bg.g, bg.b)
	g.pdf.Rect(0, 0, pageWidth, pageHeight+headerHeight, "F")
	if bg.light {
		g.pdf.SetTextColor(10, 15, 37)
	} else {
		g.pdf.SetTextColor(255, 255, 255)
	}

	prefixWidth := headerMargin
	g.pdf.SetFont("go", "", 14)
	for _, name := range titlePath[:len(titlePath)-1] {
		g.pdf.SetXY(prefixWidth, 0)
		w := g.pdf.GetStringWidth(name + TITLE_SEP)
		g.pdf.CellFormat(w, headerHeight, name+TITLE_SEP, "", 0, "", false, 0, "")
		prefixWidth += w
	}

	g.pdf.SetFont("go", "B", 14)
	g.pdf.SetXY(prefixWidth, 0)
	g.pdf.CellFormat(pageWidth-prefixWidth-headerMargin, headerHeight, titlePath[len(titlePath)-1], "", 0, "", false, 0, "")

	imageX := (pageWidth - imageWidth) / 2
	imageY := headerHeight + (pageHeight-imageHeight)/2
	g.pdf.ImageOptions(imageName, imageX, imageY, imageWidth, imageHeight, false, opt, 0, "")

	for _, l := range links {
		if l.URL == "" {
			continue
		}
		g.pdf.LinkString(imageX+l.X-viewboxX, imageY+l.Y-viewboxY, l.Width, l.Height, l.URL)
	}

	g.pdf.SetXY(headerMargin, headerHeight)
	g.pdf.SetLineWidth(1)
	if bg.light {
		g.pdf.SetDrawColor(10, 15, 37)
	} else {
		g.pdf.SetDrawColor(255, 255, 255)
	}
	g.pdf.CellFormat(pageWidth-(headerMargin*2), 1, "", "T", 0, "", false, 0, "")

	return g.pdf.Error()
}

func (g *GoFPDF) PageCount() int {
	return g.pdf.PageCount()
}

func (g *GoFPDF) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := g.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *GoFPDF) Export(outputPath string) error {
	return g.pdf.OutputFileAndClose(outputPath)
}
