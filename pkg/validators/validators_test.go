package validators

import "testing"

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"name@example.com", true},
		{"first.last@sub.example.co", true},
		{"", false},
		{"not-an-email", false},
		{"@example.com", false},
	}
	for _, tt := range tests {
		got := ValidateEmail("email", tt.value)
		if got.IsValid != tt.want {
			t.Errorf("ValidateEmail(%q).IsValid = %v, want %v", tt.value, got.IsValid, tt.want)
		}
	}
}

func TestResultsErr(t *testing.T) {
	rs := Results{
		ValidateRequired("customerId", "c1"),
		ValidateEmail("email", "broken"),
		ValidateLength("name", "x", 2, 50),
	}
	if !rs.HasErrors() {
		t.Fatal("expected errors")
	}
	err := rs.Err()
	if err == nil {
		t.Fatal("expected joined error")
	}

	ok := Results{ValidateRequired("customerId", "c1")}
	if ok.Err() != nil {
		t.Errorf("unexpected error: %v", ok.Err())
	}
}

func TestToUserFriendlyName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"email_address", "Email address"},
		{"emailAddress", "Email address"},
		{"name", "Name"},
	}
	for _, tt := range tests {
		if got := ToUserFriendlyName(tt.in); got != tt.want {
			t.Errorf("ToUserFriendlyName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMaskString(t *testing.T) {
	if got := MaskString("4111111111111111"); got != "************1111" {
		t.Errorf("MaskString = %q", got)
	}
	if got := MaskString("ab"); got != "************" {
		t.Errorf("short MaskString = %q", got)
	}
}
