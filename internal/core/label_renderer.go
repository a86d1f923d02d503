package core

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const (
	footerDateLayout = "02.01.06"
	qrPixelSize      = 256
	lineHeightFactor = 1.2
)

// LabelLayout positions every element on the label, in points.
type LabelLayout struct {
	Width  float64
	Height float64

	LeftX          float64
	LeftWidth      float64
	HeaderFontSize float64
	HeaderRowsY    [3]float64

	QRX    float64
	QRY    float64
	QRSize float64

	FooterY float64

	RightX           float64
	RightWidth       float64
	RightStartY      float64
	RightMaxY        float64
	PropertyFontSize float64
	PropertySpacing  float64
}

func DefaultLabelLayout() LabelLayout {
	return LabelLayout{
		Width:  162,
		Height: 90,

		LeftX:          5,
		LeftWidth:      45,
		HeaderFontSize: 6,
		HeaderRowsY:    [3]float64{5, 14, 23},

		QRX:    10,
		QRY:    33,
		QRSize: 35,

		FooterY: 78,

		RightX:           55,
		RightWidth:       95,
		RightStartY:      5,
		RightMaxY:        85,
		PropertyFontSize: 5,
		PropertySpacing:  2,
	}
}

type LabelRenderer struct {
	store      *ArtifactStore
	scratchDir string
	keyPrefix  *regexp.Regexp
	layout     LabelLayout
	logger     *zap.Logger
}

// NewLabelRenderer writes documents into store. keyPrefix is stripped from
// property keys (with any whitespace after it); scratchDir holds the
// temporary QR images and defaults to the OS temp dir.
func NewLabelRenderer(store *ArtifactStore, scratchDir, keyPrefix string, logger *zap.Logger) *LabelRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	var prefix *regexp.Regexp
	if keyPrefix != "" {
		prefix = regexp.MustCompile(`^` + regexp.QuoteMeta(keyPrefix) + `\s*`)
	}
	return &LabelRenderer{
		store:      store,
		scratchDir: scratchDir,
		keyPrefix:  prefix,
		layout:     DefaultLabelLayout(),
		logger:     logger,
	}
}

// Render produces the label document for job and returns its path.
func (r *LabelRenderer) Render(ctx context.Context, job *PrintJob) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &RenderError{OrderName: job.OrderName, Index: job.Index, Err: err}
	}

	r.logger.Debug("rendering label",
		zap.String("job", job.Label()),
		zap.String("variant", job.VariantName),
		zap.Int("properties", len(job.Properties)))

	qrPath, err := r.writeQRCode(job.OrderName)
	if err != nil {
		return "", &RenderError{OrderName: job.OrderName, Index: job.Index, Err: err}
	}
	defer os.Remove(qrPath)

	if err := ctx.Err(); err != nil {
		return "", &RenderError{OrderName: job.OrderName, Index: job.Index, Err: err}
	}

	finalPath := r.store.Path(job.OrderName, job.Index, job.Quantity)
	err = r.store.writeAtomic(finalPath, func(tmpPath string) error {
		pdf := r.compose(job, qrPath)
		if err := pdf.OutputFileAndClose(tmpPath); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", &RenderError{OrderName: job.OrderName, Index: job.Index, Err: err}
	}

	r.logger.Info("label file created", zap.String("job", job.Label()), zap.String("path", finalPath))
	return finalPath, nil
}

func (r *LabelRenderer) writeQRCode(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	qr.DisableBorder = true

	f, err := os.CreateTemp(r.scratchDir, "qr-*.png")
	if err != nil {
		return "", fmt.Errorf("create qr scratch file: %w", err)
	}
	name := f.Name()
	_ = f.Close()

	if err := qr.WriteFile(qrPixelSize, name); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("write qr code: %w", err)
	}
	return name, nil
}

func lineHeight(fontSize float64) float64 {
	return fontSize * lineHeightFactor
}

func (r *LabelRenderer) compose(job *PrintJob, qrPath string) *fpdf.Fpdf {
	l := r.layout

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: l.Width, Ht: l.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetCellMargin(0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", l.HeaderFontSize)
	headerLH := lineHeight(l.HeaderFontSize)
	for i, text := range []string{job.OrderName, job.ProductName, job.VariantName} {
		pdf.SetXY(l.LeftX, l.HeaderRowsY[i])
		pdf.MultiCell(l.LeftWidth, headerLH, tr(text), "", "C", false)
	}

	pdf.ImageOptions(qrPath, l.QRX, l.QRY, l.QRSize, l.QRSize, false,
		fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	pdf.SetXY(l.LeftX, l.FooterY)
	pdf.CellFormat(l.RightX-l.LeftX, headerLH, tr(footerText(job)), "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", l.PropertyFontSize)
	propLH := lineHeight(l.PropertyFontSize)
	measure := func(text string) float64 {
		return float64(len(pdf.SplitLines([]byte(tr(text)), l.RightWidth))) * propLH
	}
	for _, line := range fitProperties(job.Properties, r.keyPrefix, l.RightStartY, l.RightMaxY, l.PropertySpacing, measure) {
		pdf.SetXY(l.RightX, line.Y)
		pdf.MultiCell(l.RightWidth, propLH, tr(line.Text), "", "L", false)
	}

	return pdf
}

// footerText is "DD.MM.YY   index/quantity".
func footerText(job *PrintJob) string {
	date := job.Date
	if !job.CreatedAt.IsZero() {
		date = job.CreatedAt.Local().Format(footerDateLayout)
	}
	return fmt.Sprintf("%s   %d/%d", date, job.Index, job.Quantity)
}

type placedLine struct {
	Text   string
	Y      float64
	Height float64
}

// fitProperties lays out "key: value" lines from startY downwards. Empty
// values are skipped; the first line that would end below maxY stops the
// layout and every later property is dropped.
func fitProperties(props []Attribute, keyPrefix *regexp.Regexp, startY, maxY, spacing float64, measure func(string) float64) []placedLine {
	var lines []placedLine
	y := startY
	for _, p := range props {
		if p.Value == "" {
			continue
		}
		key := p.Key
		if keyPrefix != nil {
			key = keyPrefix.ReplaceAllString(key, "")
		}
		text := key + ": " + p.Value
		h := measure(text)
		if y+h > maxY {
			break
		}
		lines = append(lines, placedLine{Text: text, Y: y, Height: h})
		y += h + spacing
	}
	return lines
}
