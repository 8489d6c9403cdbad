package util

import (
	"reflect"
	"testing"
)

func TestSplitItems(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "newlines", input: "03001234567\n3520212345678\nabc", want: []string{"03001234567", "3520212345678", "abc"}},
		{name: "commas and blanks", input: " 1 , ,2\r\n\n3 ", want: []string{"1", "2", "3"}},
		{name: "empty", input: " \n , ", want: []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitItems(tc.input)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestIsAllDigits(t *testing.T) {
	if !IsAllDigits("0300") {
		t.Fatal("digits rejected")
	}
	for _, in := range []string{"", "03 00", "0300a", "٣٠٠"} {
		if IsAllDigits(in) {
			t.Fatalf("%q accepted", in)
		}
	}
}

func TestJoinNonEmpty(t *testing.T) {
	if got := JoinNonEmpty("Honda", " Civic "); got != "Honda Civic" {
		t.Fatalf("got %q", got)
	}
	if got := JoinNonEmpty("", "Civic"); got != "Civic" {
		t.Fatalf("got %q", got)
	}
	if got := JoinNonEmpty("", ""); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	if got := Truncate("کراچی", 3); got != "ک" {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Fatalf("got %q", got)
	}
}

func TestFindDigitGroups(t *testing.T) {
	got := FindDigitGroups("call 0300-1234567 or CNIC 35202-1234567-8, ref 12")
	want := []string{"03001234567", "3520212345678"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestFindDigitGroupsKeepsAdjacentNumbersApart(t *testing.T) {
	got := FindDigitGroups("03001234567 3520212345678\n123456789012345")
	want := []string{"03001234567", "3520212345678"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}
}
