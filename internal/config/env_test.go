package config

import (
	"testing"
	"time"
)

func TestString(t *testing.T) {
	t.Setenv("DEVICEAGENT_TEST_STR", "  value  ")
	if got := String("DEVICEAGENT_TEST_STR", "fallback"); got != "value" {
		t.Errorf("String = %q, want trimmed value", got)
	}
	if got := String("DEVICEAGENT_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("String = %q, want fallback", got)
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("DEVICEAGENT_TEST_DUR", "90s")
	if got := Duration("DEVICEAGENT_TEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("Duration = %s", got)
	}
	t.Setenv("DEVICEAGENT_TEST_DUR", "bogus")
	if got := Duration("DEVICEAGENT_TEST_DUR", time.Second); got != time.Second {
		t.Errorf("Duration = %s, want fallback on parse failure", got)
	}
}

func TestInt(t *testing.T) {
	t.Setenv("DEVICEAGENT_TEST_INT", "7")
	if got := Int("DEVICEAGENT_TEST_INT", 3); got != 7 {
		t.Errorf("Int = %d", got)
	}
	t.Setenv("DEVICEAGENT_TEST_INT", "seven")
	if got := Int("DEVICEAGENT_TEST_INT", 3); got != 3 {
		t.Errorf("Int = %d, want fallback on parse failure", got)
	}
}

func TestBool(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"1", true}, {"true", true}, {"YES", true},
		{"0", false}, {"false", false}, {"No", false},
		{"maybe", true}, // unparseable keeps the fallback
	}
	for _, c := range cases {
		t.Setenv("DEVICEAGENT_TEST_BOOL", c.raw)
		if got := Bool("DEVICEAGENT_TEST_BOOL", true); got != c.want {
			t.Errorf("Bool(%q) = %v, want %v", c.raw, got, c.want)
		}
	}
}
