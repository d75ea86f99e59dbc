package siakad

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"warkrs/internal/model"
)

// courseCodeScan is the unanchored variant of model.CourseCodePattern, used
// to recover codes from arbitrary page text when no usable table is found.
var courseCodeScan = regexp.MustCompile(`[A-Z]{2,4}25-[0-9]{5}`)

var alertScan = regexp.MustCompile(`alert\(\s*['"]([^'"]*)['"]`)

// keywords that mark a table as course-related when the KRS table id is
// missing (the portal has shipped both Indonesian and mixed layouts).
var krsTableKeywords = []string{"kode", "mata kuliah", "sks", "kelas"}

// ParseEnrolledCourses extracts the set of enrolled course codes from the
// enrollment page. Extraction strategies are tried in order until one yields
// a table: the #tabelkrs id, then any table whose text carries course
// keywords, then a raw regex scan of the whole page. Parse failures yield an
// empty set, never an error; the caller treats that as "not enrolled yet".
func ParseEnrolledCourses(page string) map[string]struct{} {
	enrolled := make(map[string]struct{})

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return enrolled
	}

	table := findKRSTable(doc)
	if table == nil {
		table = findKeywordTable(doc)
	}
	if table == nil {
		for _, code := range courseCodeScan.FindAllString(doc.Text(), -1) {
			enrolled[code] = struct{}{}
		}
		return enrolled
	}

	rows := table.Find("tbody tr")
	if rows.Length() == 0 {
		rows = table.Find("tr")
	}
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		// The second column carries "CODE - COURSE NAME"; older layouts put
		// the bare code in the first column.
		code := strings.TrimSpace(cells.Eq(1).Text())
		if left, _, ok := strings.Cut(code, " - "); ok {
			code = strings.TrimSpace(left)
		} else {
			code = strings.TrimSpace(cells.Eq(0).Text())
		}
		if model.ValidCourseCode(code) {
			enrolled[code] = struct{}{}
		}
	})
	return enrolled
}

func findKRSTable(doc *goquery.Document) *goquery.Selection {
	table := doc.Find("table#tabelkrs").First()
	if table.Length() == 0 {
		return nil
	}
	return table
}

func findKeywordTable(doc *goquery.Document) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		text := strings.ToLower(table.Text())
		for _, kw := range krsTableKeywords {
			if strings.Contains(text, kw) {
				found = table
				return false
			}
		}
		return true
	})
	return found
}

// ExtractAlertMessage pulls the first argument of a JavaScript alert("...")
// call out of the response body. The portal reports quota and validation
// problems this way; the text is diagnostic only and never drives control
// flow.
func ExtractAlertMessage(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil {
		msg := ""
		doc.Find("script").EachWithBreak(func(_ int, script *goquery.Selection) bool {
			if m := alertScan.FindStringSubmatch(script.Text()); m != nil {
				msg = m[1]
				return false
			}
			return true
		})
		if msg != "" {
			return msg
		}
	}
	if m := alertScan.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

type CourseOption struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ParseCourseOptions lists the class options offered by the selection form.
// Troubleshooting helper for when target class ids are stale.
func ParseCourseOptions(page string) []CourseOption {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil
	}

	var out []CourseOption
	doc.Find("option").Each(func(_ int, opt *goquery.Selection) {
		value := strings.TrimSpace(opt.AttrOr("value", ""))
		text := strings.TrimSpace(opt.Text())
		if value == "" || text == "" {
			return
		}
		code, name, ok := strings.Cut(text, " - ")
		if !ok {
			return
		}
		out = append(out, CourseOption{
			Code:  strings.TrimSpace(code),
			Name:  strings.TrimSpace(name),
			Value: value,
		})
	})
	return out
}

type TableSummary struct {
	ID      string `json:"id,omitempty"`
	Rows    int    `json:"rows"`
	HasBody bool   `json:"hasBody"`
}

type PageAnalysis struct {
	Title       string         `json:"title,omitempty"`
	Tables      []TableSummary `json:"tables,omitempty"`
	Forms       int            `json:"forms"`
	CourseCodes []string       `json:"courseCodes,omitempty"`
}

// AnalyzePageStructure summarizes a page for debugging portal layout
// changes: tables, forms and any course-code shaped tokens.
func AnalyzePageStructure(page string) PageAnalysis {
	var analysis PageAnalysis
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return analysis
	}

	analysis.Title = strings.TrimSpace(doc.Find("title").First().Text())
	analysis.Forms = doc.Find("form").Length()
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		analysis.Tables = append(analysis.Tables, TableSummary{
			ID:      table.AttrOr("id", ""),
			Rows:    table.Find("tr").Length(),
			HasBody: table.Find("tbody").Length() > 0,
		})
	})

	seen := make(map[string]struct{})
	for _, code := range courseCodeScan.FindAllString(doc.Text(), -1) {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		analysis.CourseCodes = append(analysis.CourseCodes, code)
	}
	return analysis
}
