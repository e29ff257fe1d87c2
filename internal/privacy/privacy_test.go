package privacy

import "testing"

func TestIsBlockedKey_CaseInsensitive(t *testing.T) {
	cases := []string{"prompt", "Prompt", "PROMPT", "chain_of_thought"}
	for _, c := range cases {
		if !IsBlockedKey(c) {
			t.Errorf("expected %q to be blocked", c)
		}
	}
	if IsBlockedKey("tool_name") {
		t.Error("tool_name should not be blocked")
	}
}

func TestCheckMetadataKeys_FindsFirstBlocked(t *testing.T) {
	got := CheckMetadataKeys([]string{"tool_name", "http_status", "prompt"})
	if got != "prompt" {
		t.Errorf("expected %q, got %q", "prompt", got)
	}
	if got := CheckMetadataKeys([]string{"tool_name", "http_status"}); got != "" {
		t.Errorf("expected no blocked key, got %q", got)
	}
}

func TestCheckStringValue_BoundaryLength(t *testing.T) {
	exact100 := make([]byte, 100)
	for i := range exact100 {
		exact100[i] = 'a'
	}
	if !CheckStringValue(string(exact100)) {
		t.Error("exactly 100 chars should be accepted")
	}
	over101 := string(exact100) + "a"
	if CheckStringValue(over101) {
		t.Error("101 chars should be rejected")
	}
}

func TestCheckFailureMessage_RejectsSensitiveSubstring(t *testing.T) {
	if reason := CheckFailureMessage("tool call timed out after 30s"); reason != "" {
		t.Errorf("expected clean message to pass, got reason %q", reason)
	}
	if reason := CheckFailureMessage("the model responded with a refusal"); reason == "" {
		t.Error("expected sensitive message to be rejected")
	}
}

func TestCheckDescription_Boundary(t *testing.T) {
	exact200 := make([]byte, 200)
	for i := range exact200 {
		exact200[i] = 'a'
	}
	if reason := CheckDescription(string(exact200)); reason != "" {
		t.Errorf("200 chars should be accepted, got %q", reason)
	}
	if reason := CheckDescription(string(exact200) + "a"); reason == "" {
		t.Error("201 chars should be rejected")
	}
}
