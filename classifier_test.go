package engram

import "testing"

func TestClassifyTooShort(t *testing.T) {
	v := Classify("ok", "Sure thing.", nil, nil, 0.9)
	if v.Reason != "too short" && v.Reason != "acknowledgment/filler" {
		t.Errorf("expected rejection reason for short ack, got %q", v.Reason)
	}
	v = ApplyMinImportance(v, 0.3)
	if v.ShouldRemember {
		t.Errorf("expected ShouldRemember=false for %q", "ok")
	}
}

func TestClassifyAcknowledgment(t *testing.T) {
	v := Classify("Got it.", "Great, let me know if you need anything else.", nil, nil, 0.9)
	v = ApplyMinImportance(v, 0.3)
	if v.ShouldRemember {
		t.Errorf("expected acknowledgment to be rejected, got verdict %+v", v)
	}
}

func TestClassifyDecision(t *testing.T) {
	user := "We decided to use MIT license for the project going forward."
	assistant := "Got it, I'll make sure the LICENSE file reflects that."
	v := Classify(user, assistant, nil, nil, 0.9)
	v = ApplyMinImportance(v, 0.3)

	if !v.ShouldRemember {
		t.Fatalf("expected decision statement to be remembered, got %+v", v)
	}
	if v.Importance != 0.85 {
		t.Errorf("expected importance 0.85, got %f", v.Importance)
	}
	if v.Reason != "contains decision" {
		t.Errorf("expected reason %q, got %q", "contains decision", v.Reason)
	}
	if !contains(v.SuggestedTags, "decision") {
		t.Errorf("expected tag %q in %v", "decision", v.SuggestedTags)
	}
}

func TestClassifyExplicitBeatsDecision(t *testing.T) {
	user := "Remember that we decided to use MIT license."
	v := Classify(user, "Noted.", nil, nil, 0.9)
	if v.Importance != 0.95 {
		t.Errorf("expected explicit rule's 0.95 to win max-wins scoring, got %f", v.Importance)
	}
	if v.Reason != "explicit remember command" {
		t.Errorf("expected first-match-wins reason from the explicit rule, got %q", v.Reason)
	}
	if !contains(v.SuggestedTags, "explicit") || !contains(v.SuggestedTags, "decision") {
		t.Errorf("expected both explicit and decision tags, got %v", v.SuggestedTags)
	}
}

func TestClassifyDeduplicateGuard(t *testing.T) {
	existing := [][]float32{{1, 0, 0}}
	v := Classify("We decided to use MIT license for this repo.", "Noted.", []float32{1, 0, 0}, existing, 0.9)
	if v.Reason[:9] != "duplicate" {
		t.Errorf("expected duplicate rejection, got reason %q", v.Reason)
	}
	v = ApplyMinImportance(v, 0.3)
	if v.ShouldRemember {
		t.Errorf("expected duplicate to never be remembered regardless of threshold")
	}
}

func TestClassifyGeneralConversationFallback(t *testing.T) {
	user := "I spent most of today poking around the garden trying to figure out why the tomatoes are not doing well this year, nothing technical about it really, just rambling about the weather and the soil and whatever else came to mind while I was out there."
	v := Classify(user, "That sounds relaxing.", nil, nil, 0.9)
	if v.Reason != "general conversation" {
		t.Errorf("expected fallback reason for long non-signal text, got %q", v.Reason)
	}
	if v.Importance != 0.2 {
		t.Errorf("expected fallback importance 0.2, got %f", v.Importance)
	}
}

func TestClassifyNoImportanceSignals(t *testing.T) {
	v := Classify("The weather is nice today I think.", "Yes it is.", nil, nil, 0.9)
	if v.Reason != "no importance signals" {
		t.Errorf("expected rejection for short low-signal text, got %+v", v)
	}
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}
