package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/fdg312/meal-recommender/internal/foods"
)

const (
	utf8FontName = "PlanFont"
	coreFontName = "Arial"
)

// Generator renders recommendations as PDF or CSV.
type Generator struct {
	fontData []byte
}

// NewGenerator loads the optional UTF-8 TrueType font at fontPath. Without
// one, PDFs use a core font and characters outside Latin-1 print as '?'.
func NewGenerator(fontPath string) (*Generator, error) {
	g := &Generator{}
	if strings.TrimSpace(fontPath) == "" {
		return g, nil
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read PDF font: %w", err)
	}
	g.fontData = data
	return g, nil
}

// UTF8 reports whether a Unicode font is loaded.
func (g *Generator) UTF8() bool {
	return len(g.fontData) > 0
}

func (g *Generator) RenderPDF(doc Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Meal plan "+doc.ID.String(), true)

	fontName := coreFontName
	text := latin1
	if g.UTF8() {
		pdf.AddUTF8FontFromBytes(utf8FontName, "", g.fontData)
		if !pdf.Ok() {
			return nil, fmt.Errorf("load PDF font: %w", pdf.Error())
		}
		fontName = utf8FontName
		text = func(s string) string { return s }
	} else {
		tr := pdf.UnicodeTranslatorFromDescriptor("")
		text = func(s string) string { return tr(latin1(s)) }
	}

	pdf.AddPage()

	pdf.SetFont(fontName, "", 16)
	pdf.Cell(0, 10, text("식단 추천 / Meal plan"))
	pdf.Ln(10)

	pdf.SetFont(fontName, "", 10)
	pdf.Cell(0, 6, text(fmt.Sprintf("ID: %s  User: %s  Goal: %s", doc.ID, doc.UserID, doc.Goal)))
	pdf.Ln(5)
	pdf.Cell(0, 6, text("Created: "+doc.CreatedAt.UTC().Format("2006-01-02 15:04 MST")))
	pdf.Ln(10)

	section := func(title, body string) {
		pdf.SetFont(fontName, "", 13)
		pdf.Cell(0, 8, text(title))
		pdf.Ln(8)
		pdf.SetFont(fontName, "", 10)
		pdf.MultiCell(0, 5, text(body), "", "L", false)
		pdf.Ln(4)
	}

	if len(doc.Profile) > 0 {
		section("프로필 / Profile", formatProfile(doc.Profile))
	}
	section("목표 영양 / Result", doc.Plan.Result)
	section("아침 / Breakfast", doc.Plan.RecommendMeal.Breakfast)
	section("점심 / Lunch", doc.Plan.RecommendMeal.Lunch)
	section("저녁 / Dinner", doc.Plan.RecommendMeal.Dinner)
	section("운동 / Exercise", doc.Plan.RecommendExercise)

	if len(doc.Candidates) > 0 {
		pdf.SetFont(fontName, "", 13)
		pdf.Cell(0, 8, text("추천 음식 / Candidate foods"))
		pdf.Ln(8)
		drawCandidatesTable(pdf, fontName, text, doc.Candidates)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func drawCandidatesTable(pdf *gofpdf.Fpdf, fontName string, text func(string) string, items []foods.FoodItem) {
	widths := []float64{60, 22, 22, 22, 22, 22}
	header := []string{"Food", "kcal", "Protein g", "Fat g", "Sugar g", "Fiber g"}

	pdf.SetFont(fontName, "", 8)
	for i, h := range header {
		pdf.CellFormat(widths[i], 6, text(h), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	for _, it := range items {
		row := []string{
			it.DisplayName(),
			formatAmount(it.EnergyKcal),
			formatAmount(it.ProteinG),
			formatAmount(it.FatG),
			formatAmount(it.SugarG),
			formatAmount(it.FiberG),
		}
		for i, cell := range row {
			align := "C"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, text(cell), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
}

// RenderCSV writes the candidate foods with every source column.
func (g *Generator) RenderCSV(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"recommendation_id", "food", "category", "energy_kcal", "protein_g", "fat_g", "carbohydrate_g", "sugar_g", "sodium_mg", "fiber_g"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, it := range doc.Candidates {
		row := []string{
			doc.ID.String(),
			it.DisplayName(),
			it.CategoryName(),
			formatAmount(it.EnergyKcal),
			formatAmount(it.ProteinG),
			formatAmount(it.FatG),
			formatAmount(it.CarbohydrateG),
			formatAmount(it.SugarG),
			formatAmount(it.SodiumMg),
			formatAmount(it.FiberG),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatProfile(profile map[string]any) string {
	keys := make([]string, 0, len(profile))
	for k := range profile {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, profile[k]))
	}
	return strings.Join(lines, "\n")
}

func formatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// latin1 replaces runes the core fonts cannot encode.
func latin1(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xFF {
			return '?'
		}
		return r
	}, s)
}
