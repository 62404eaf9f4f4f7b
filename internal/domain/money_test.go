package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in   string
		want Money
	}{
		{"0", 0},
		{"0.00", 0},
		{"1", 100},
		{"1.5", 150},
		{"1234.50", 123450},
		{"-7", -700},
		{"-0.05", -5},
		{"+3.99", 399},
		{".50", 50},
		{"1000.00", 100000},
	}

	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if err != nil {
			t.Fatalf("ParseMoney(%q): unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseMoney(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseMoneyRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", " ", "abc", "1.234", "1,50", "--5", "1.2.3", "."} {
		if _, err := ParseMoney(in); !errors.Is(err, ErrMoneyInvalid) {
			t.Fatalf("ParseMoney(%q): want ErrMoneyInvalid, got %v", in, err)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		in   Money
		want string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{150, "1.50"},
		{123450, "1234.50"},
		{-700, "-7.00"},
		{-5, "-0.05"},
	}

	for _, tc := range cases {
		if got := tc.in.String(); got != tc.want {
			t.Fatalf("Money(%d).String() = %q, want %q", int64(tc.in), got, tc.want)
		}
	}
}

func TestMoneyRoundtrip(t *testing.T) {
	for _, m := range []Money{0, 1, 99, 100, 123450, -1, -123450} {
		parsed, err := ParseMoney(m.String())
		if err != nil {
			t.Fatalf("roundtrip %d: %v", int64(m), err)
		}
		if parsed != m {
			t.Fatalf("roundtrip %d: got %d", int64(m), int64(parsed))
		}
	}
}

func TestNormalizeTime(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	in := time.Date(2004, 4, 4, 7, 4, 4, 123456789, loc)

	got := NormalizeTime(in)

	if got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", got.Location())
	}
	want := time.Date(2004, 4, 4, 4, 4, 4, 123456000, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("NormalizeTime = %v, want %v", got, want)
	}
}
