package db

import "testing"

func TestNormalizeDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{`"postgres://u:p@h:5432/d?sslmode=require"`, "postgres://u:p@h:5432/d?sslmode=require"},
		{"host=h   user=u dbname=d", "host=h user=u dbname=d sslmode=disable"},
		{"host=h user=u dbname=d sslmode=require", "host=h user=u dbname=d sslmode=require"},
		{"not a dsn", "not a dsn"},
	}
	for _, tt := range tests {
		if got := NormalizeDSN(tt.in); got != tt.want {
			t.Errorf("NormalizeDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToURLDSN(t *testing.T) {
	got := ToURLDSN("host=db port=5432 user=billing password=secret dbname=billing sslmode=disable")
	want := "postgres://billing:secret@db:5432/billing?sslmode=disable"
	if got != want {
		t.Fatalf("ToURLDSN = %q, want %q", got, want)
	}
	if got := ToURLDSN("host=db"); got != "host=db" {
		t.Fatalf("incomplete DSN should be unchanged, got %q", got)
	}
}

func TestMaskDSN(t *testing.T) {
	if got := MaskDSN("host=db password=secret dbname=x"); got != "host=db password=*** dbname=x" {
		t.Fatalf("kv mask = %q", got)
	}
	if got := MaskDSN("postgres://u:secret@db:5432/x"); got != "postgres://u:***@db:5432/x" {
		t.Fatalf("url mask = %q", got)
	}
}
