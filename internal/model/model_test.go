package model

import "testing"

func TestValidCourseCode(t *testing.T) {
	valid := []string{"IF25-10001", "SD25-40003", "MA25-20005", "ELTE25-12345"}
	for _, code := range valid {
		if !ValidCourseCode(code) {
			t.Errorf("%s should be valid", code)
		}
	}

	invalid := []string{
		"",
		"IF25-1000",    // too few digits
		"IF25-100011",  // too many digits
		"if25-10001",   // lowercase prefix
		"I25-10001",    // prefix too short
		"ABCDE25-10001", // prefix too long
		"IF24-10001",   // wrong cohort year
		"IF25_10001",   // wrong separator
		" IF25-10001",  // leading space
		"IF25-10001 ",  // trailing space
	}
	for _, code := range invalid {
		if ValidCourseCode(code) {
			t.Errorf("%s should be invalid", code)
		}
	}
}

func TestSessionCookiesToHTTP(t *testing.T) {
	c := SessionCookies{"zeta": "2", "alpha": "1", "mid": "3"}
	cookies := c.ToHTTP()
	if len(cookies) != 3 {
		t.Fatalf("expected 3 cookies, got %d", len(cookies))
	}
	order := []string{"alpha", "mid", "zeta"}
	for i, want := range order {
		if cookies[i].Name != want {
			t.Fatalf("cookie %d: got %s, want %s (order must be stable)", i, cookies[i].Name, want)
		}
	}
	if cookies[0].Value != "1" || cookies[0].Path != "/" {
		t.Errorf("unexpected cookie: %+v", cookies[0])
	}
}

func TestSessionCookiesConfigured(t *testing.T) {
	cases := []struct {
		name string
		c    SessionCookies
		want bool
	}{
		{"nil", nil, false},
		{"empty", SessionCookies{}, false},
		{"blank values", SessionCookies{"PHPSESSID": ""}, false},
		{"template placeholder", SessionCookies{"PHPSESSID": "ISI_DENGAN_COOKIE_ANDA"}, false},
		{"real value", SessionCookies{"PHPSESSID": "abc123"}, true},
		{"mixed", SessionCookies{"a": "ISI_DENGAN_COOKIE_ANDA", "b": "real"}, true},
	}
	for _, tc := range cases {
		if got := tc.c.Configured(); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
