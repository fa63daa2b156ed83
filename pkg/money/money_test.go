package money

import "testing"

func TestFormat(t *testing.T) {
	cases := map[int64]string{
		0:    "0.00 USD",
		5:    "0.05 USD",
		1999: "19.99 USD",
		2500: "25.00 USD",
	}
	for cents, want := range cases {
		if got := Format(cents, "usd"); got != want {
			t.Fatalf("Format(%d) = %q want %q", cents, got, want)
		}
	}
}

func TestNewNormalizesCurrency(t *testing.T) {
	a := New(1000, " usd ")
	if a.Currency != "USD" || a.Display != "10.00 USD" {
		t.Fatalf("unexpected amount %+v", a)
	}
}

func TestParseMajor(t *testing.T) {
	cents, err := ParseMajor("15.5")
	if err != nil || cents != 1550 {
		t.Fatalf("ParseMajor: %d %v", cents, err)
	}
	if _, err := ParseMajor("1.005"); err == nil {
		t.Fatal("expected sub-cent error")
	}
	if _, err := ParseMajor("abc"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSum(t *testing.T) {
	if Sum(1000, 1500) != 2500 {
		t.Fatal("unexpected sum")
	}
	if Sum() != 0 {
		t.Fatal("empty sum should be zero")
	}
}
