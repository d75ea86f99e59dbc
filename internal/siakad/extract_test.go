package siakad

import (
	"reflect"
	"sort"
	"testing"
)

const krsPage = `<html>
<head><title>Pilih Mata Kuliah</title></head>
<body>
<table id="tabelkrs">
<thead><tr><th>No</th><th>Mata Kuliah</th><th>SKS</th></tr></thead>
<tbody>
<tr><td>1</td><td>IF25-10001 - Algoritma dan Struktur Data</td><td>3</td></tr>
<tr><td>2</td><td>SD25-40003 - Statistika Dasar</td><td>2</td></tr>
<tr><td>3</td><td>bukan kode</td><td>0</td></tr>
</tbody>
</table>
</body>
</html>`

func codes(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func TestParseEnrolledCoursesKRSTable(t *testing.T) {
	got := codes(ParseEnrolledCourses(krsPage))
	want := []string{"IF25-10001", "SD25-40003"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseEnrolledCoursesIdempotent(t *testing.T) {
	first := codes(ParseEnrolledCourses(krsPage))
	second := codes(ParseEnrolledCourses(krsPage))
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("two parses of the same document differ: %v vs %v", first, second)
	}
}

func TestParseEnrolledCoursesKeywordFallback(t *testing.T) {
	page := `<html><body>
<table><tr><td>nav</td></tr></table>
<table>
<tr><th>Kode</th><th>Mata Kuliah</th></tr>
<tr><td>1</td><td>MA25-20005 - Kalkulus II</td></tr>
</table>
</body></html>`

	got := codes(ParseEnrolledCourses(page))
	want := []string{"MA25-20005"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseEnrolledCoursesRegexFallback(t *testing.T) {
	page := `<html><body><div>Terdaftar: IF25-10001, IF25-10002 dan IF25-10001 lagi</div></body></html>`

	got := codes(ParseEnrolledCourses(page))
	want := []string{"IF25-10001", "IF25-10002"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseEnrolledCoursesFirstColumnFallback(t *testing.T) {
	page := `<html><body>
<table id="tabelkrs">
<tbody><tr><td>FI25-30001</td><td>Fisika Dasar tanpa pemisah</td></tr></tbody>
</table>
</body></html>`

	got := codes(ParseEnrolledCourses(page))
	want := []string{"FI25-30001"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseEnrolledCoursesNoMatches(t *testing.T) {
	for name, page := range map[string]string{
		"empty":     "",
		"garbage":   "<<<<not html at all",
		"plain":     "<html><body><p>nothing here</p></body></html>",
		"bad codes": "<html><body><table id=\"tabelkrs\"><tr><td>1</td><td>XYZ - not a code</td></tr></table></body></html>",
	} {
		if got := ParseEnrolledCourses(page); len(got) != 0 {
			t.Errorf("%s: expected empty set, got %v", name, codes(got))
		}
	}
}

func TestExtractAlertMessage(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "script double quotes",
			body: `<html><body><script>alert("Kuota kelas sudah penuh.");</script></body></html>`,
			want: "Kuota kelas sudah penuh.",
		},
		{
			name: "script single quotes",
			body: `<html><body><script>alert('Sesi berakhir');</script></body></html>`,
			want: "Sesi berakhir",
		},
		{
			name: "raw body",
			body: `alert("inline message")`,
			want: "inline message",
		},
		{
			name: "no alert",
			body: `<html><body><p>ok</p></body></html>`,
			want: "",
		},
	}
	for _, tc := range cases {
		if got := ExtractAlertMessage(tc.body); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestParseCourseOptions(t *testing.T) {
	page := `<html><body><select name="idkelas">
<option value="">pilih</option>
<option value="55">IF25-10001 - Algoritma dan Struktur Data</option>
<option value="77">SD25-40003 - Statistika Dasar</option>
</select></body></html>`

	got := ParseCourseOptions(page)
	if len(got) != 2 {
		t.Fatalf("expected 2 options, got %d: %+v", len(got), got)
	}
	if got[0].Code != "IF25-10001" || got[0].Value != "55" {
		t.Fatalf("unexpected first option: %+v", got[0])
	}
	if got[1].Name != "Statistika Dasar" {
		t.Fatalf("unexpected second option name: %q", got[1].Name)
	}
}

func TestAnalyzePageStructure(t *testing.T) {
	got := AnalyzePageStructure(krsPage)
	if got.Title != "Pilih Mata Kuliah" {
		t.Errorf("title: got %q", got.Title)
	}
	if len(got.Tables) != 1 || got.Tables[0].ID != "tabelkrs" || !got.Tables[0].HasBody {
		t.Errorf("tables: got %+v", got.Tables)
	}
	if len(got.CourseCodes) != 2 {
		t.Errorf("course codes: got %v", got.CourseCodes)
	}
}
