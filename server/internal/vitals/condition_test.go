package vitals

import "testing"

func TestParseCondition(t *testing.T) {
	r := Reading{SpO2: 88, HR: 130}
	cases := []struct {
		cond    string
		wantErr bool
		fires   bool
		value   float64
	}{
		{cond: "spo2 < 90", fires: true, value: 88},
		{cond: "spo2 <= 88", fires: true, value: 88},
		{cond: "spo2 == 88", fires: true, value: 88},
		{cond: "spo2 > 90", value: 88},
		{cond: "hr > 120", fires: true, value: 130},
		{cond: "hr >= 131", value: 130},
		{cond: "temp > 1", wantErr: true},
		{cond: "hr ~ 1", wantErr: true},
		{cond: "hr > fast", wantErr: true},
		{cond: "hr>120", wantErr: true},
	}
	for _, tc := range cases {
		c, err := ParseCondition(tc.cond)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseCondition(%q): want error", tc.cond)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCondition(%q): %v", tc.cond, err)
			continue
		}
		fires, v := c.Eval(r)
		if fires != tc.fires || v != tc.value {
			t.Errorf("Eval(%q): got (%v, %v), want (%v, %v)", tc.cond, fires, v, tc.fires, tc.value)
		}
	}
}

func TestCondition_ZeroValueNeverMatches(t *testing.T) {
	if fires, _ := (Condition{}).Eval(Reading{SpO2: 1, HR: 1}); fires {
		t.Error("zero Condition matched")
	}
}

func TestCondition_String(t *testing.T) {
	c, err := ParseCondition("  hr   >=  130.5 ")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	if got := c.String(); got != "hr >= 130.5" {
		t.Errorf("String: got %q", got)
	}
}
