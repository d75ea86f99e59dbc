// Command mock serves a fake SIAKAD portal for local end-to-end runs: an
// enrollment page with the KRS table and a registration endpoint that
// randomly simulates full quotas.
package main

import (
	"flag"
	"fmt"
	"html"
	"log"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"time"
)

type section struct {
	Code string
	Name string
}

var catalog = map[string]section{
	"55": {Code: "IF25-10001", Name: "Algoritma dan Struktur Data"},
	"56": {Code: "IF25-10002", Name: "Sistem Operasi"},
	"77": {Code: "SD25-40003", Name: "Statistika Dasar"},
	"78": {Code: "MA25-20005", Name: "Kalkulus II"},
}

type portal struct {
	failRate float64

	mu       sync.Mutex
	enrolled map[string]section // course code -> section
}

func main() {
	addr := flag.String("addr", ":8088", "listen address")
	failRate := flag.Float64("fail-rate", 0.5, "probability that a registration is rejected (quota full)")
	flag.Parse()

	p := &portal{
		failRate: *failRate,
		enrolled: make(map[string]section),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/siakad/pilih_mk", p.handlePilihMK)
	mux.HandleFunc("/siakad/simpan_krs", p.handleSimpanKRS)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("mock portal listening on %s", *addr)
	log.Fatal(srv.ListenAndServe())
}

func (p *portal) handlePilihMK(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p.mu.Lock()
	codes := make([]string, 0, len(p.enrolled))
	for code := range p.enrolled {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	rows := ""
	for i, code := range codes {
		rows += fmt.Sprintf("<tr><td>%d</td><td>%s - %s</td><td>3</td><td>RA</td></tr>\n",
			i+1, html.EscapeString(code), html.EscapeString(p.enrolled[code].Name))
	}
	p.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<html>
<head><title>Pilih Mata Kuliah</title></head>
<body>
<h1>Kartu Rencana Studi</h1>
<table id="tabelkrs">
<thead><tr><th>No</th><th>Mata Kuliah</th><th>SKS</th><th>Kelas</th></tr></thead>
<tbody>
%s</tbody>
</table>
<form method="post" action="/siakad/simpan_krs">
<select name="idkelas">
<option value="55">IF25-10001 - Algoritma dan Struktur Data</option>
<option value="56">IF25-10002 - Sistem Operasi</option>
<option value="77">SD25-40003 - Statistika Dasar</option>
<option value="78">MA25-20005 - Kalkulus II</option>
</select>
</form>
</body>
</html>`, rows)
}

func (p *portal) handleSimpanKRS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	classID := r.FormValue("idkelas")
	sec, ok := catalog[classID]
	if !ok {
		alertPage(w, "Kelas tidak ditemukan.")
		return
	}

	if rand.Float64() < p.failRate {
		// The real portal also answers 200 when the quota is full; the
		// course simply never shows up in the KRS table.
		log.Printf("rejected %s (%s): quota full", sec.Code, classID)
		alertPage(w, "Kuota kelas sudah penuh.")
		return
	}

	p.mu.Lock()
	p.enrolled[sec.Code] = sec
	p.mu.Unlock()

	log.Printf("enrolled %s (%s)", sec.Code, classID)
	alertPage(w, "Mata kuliah berhasil ditambahkan.")
}

func alertPage(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<html><body><script>alert("%s");</script></body></html>`, msg)
}
