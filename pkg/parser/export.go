package parser

import (
	"bytes"
	"fmt"
	"github.com/Geniuskaa/buenafe_registration/pkg/registration"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"sort"
	"strings"
	"time"
)

const (
	NOT_AVAILABLE      = "N/A"
	EMPTY_CATEGORY     = "SIN CATEGORIA"
	MAX_SHEET_NAME_LEN = 31
	DATE_LAYOUT        = "02/01/2006"
	DEFAULT_SHEET      = "Sheet1"
)

var exportHeader = []interface{}{
	"FECHA", "EQUIPO", "NOMBRE COMPLETO", "CÉDULA", "TELÉFONO",
	"EMAIL", "CAMISETA", "TIPO", "SOCIO GARANTE", "CI SOCIO",
}

var exportColWidths = []float64{12, 25, 35, 15, 15, 25, 10, 12, 25, 15}

// Characters Excel refuses in sheet names.
var sheetNameReplacer = strings.NewReplacer(
	":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")",
)

// ExportFileName is the download name of a workbook exported at now.
func ExportFileName(now time.Time) string {
	return fmt.Sprintf("LISTA_BUENA_FE_AFEMEC_%d.xlsx", now.Year())
}

// BuildWorkbook writes one sheet per category, in order of first appearance, each sorted by team.
// players must not be empty.
func BuildWorkbook(players []registration.Player) (*bytes.Buffer, error) {
	if len(players) == 0 {
		return nil, ErrEmptyWorkbook
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("f.NewStyle failed: %w", err)
	}

	order, groups := groupByCategory(players)
	coll := collate.New(language.Spanish)

	for i, name := range order {
		group := groups[name]
		sort.SliceStable(group, func(a, b int) bool {
			return coll.CompareString(group[a].TeamName, group[b].TeamName) < 0
		})

		if i == 0 {
			if err := f.SetSheetName(DEFAULT_SHEET, name); err != nil {
				return nil, fmt.Errorf("f.SetSheetName failed: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("f.NewSheet failed: %w", err)
		}

		if err := writeSheet(f, name, group, bold); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("f.WriteToBuffer failed: %w", err)
	}
	return buf, nil
}

func writeSheet(f *excelize.File, sheet string, players []registration.Player, headerStyle int) error {
	header := exportHeader
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("f.SetSheetRow failed: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("f.SetRowStyle failed: %w", err)
	}

	for i, w := range exportColWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("excelize.ColumnNumberToName failed: %w", err)
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return fmt.Errorf("f.SetColWidth failed: %w", err)
		}
	}

	for i, p := range players {
		row := exportRow(p)
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("f.SetSheetRow failed: %w", err)
		}
	}

	return nil
}

func exportRow(p registration.Player) []interface{} {
	date := ""
	if !p.CreatedAt.IsZero() {
		date = p.CreatedAt.Format(DATE_LAYOUT)
	}

	return []interface{}{
		date,
		TeamLabel(p.TeamName),
		strings.ToUpper(p.FullName),
		p.Dni,
		p.Phone,
		p.Email,
		orNA(p.JerseyNumber),
		strings.ToUpper(p.PlayerType),
		orNA(deref(p.SocioName)),
		orNA(deref(p.SocioDni)),
	}
}

// TeamLabel is how team identifiers are shown to people: "los_pumas" -> "LOS PUMAS".
func TeamLabel(team string) string {
	return strings.ToUpper(strings.ReplaceAll(team, "_", " "))
}

// groupByCategory merges categories that end up with the same sheet name, Excel compares them ignoring case.
func groupByCategory(players []registration.Player) ([]string, map[string][]registration.Player) {
	order := make([]string, 0)
	groups := make(map[string][]registration.Player)

	for _, p := range players {
		name := SheetName(p.Category)
		if _, ok := groups[name]; !ok {
			order = append(order, name)
		}
		groups[name] = append(groups[name], p)
	}

	return order, groups
}

// SheetName turns a category into a valid, upper-cased Excel sheet name.
func SheetName(category string) string {
	name := strings.TrimSpace(sheetNameReplacer.Replace(strings.ToUpper(category)))
	name = strings.Trim(name, "'")
	if name == "" {
		return EMPTY_CATEGORY
	}

	runes := []rune(name)
	if len(runes) > MAX_SHEET_NAME_LEN {
		name = strings.TrimSpace(string(runes[:MAX_SHEET_NAME_LEN]))
	}
	return name
}

func orNA(s string) string {
	if s == "" {
		return NOT_AVAILABLE
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
