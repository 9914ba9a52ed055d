package prompt

import (
	"strings"
	"testing"
)

func TestBuildTask_ContainsContactName(t *testing.T) {
	got := BuildTask("Dupont", "Jean")

	if !strings.Contains(got, "Confirmez-vous être Jean Dupont?") {
		t.Errorf("task does not ask for identity confirmation of Jean Dupont:\n%s", got)
	}
	if !strings.Contains(got, "Contact ciblé: Jean Dupont") {
		t.Error("task does not name the target contact")
	}
}

func TestBuildTask_ConsentBeforeIdentity(t *testing.T) {
	got := BuildTask("Martin", "Marie")

	consent := strings.Index(got, "CONSENTEMENT RGPD")
	identity := strings.Index(got, "VÉRIFICATION D'IDENTITÉ")
	if consent < 0 || identity < 0 {
		t.Fatalf("missing sections: consent=%d identity=%d", consent, identity)
	}
	if consent > identity {
		t.Error("consent step must come before identity step")
	}
}

func TestBuildTask_Deterministic(t *testing.T) {
	if BuildTask("Durand", "Pierre") != BuildTask("Durand", "Pierre") {
		t.Error("BuildTask is not deterministic")
	}
}

func TestBuildTask_TrimsNames(t *testing.T) {
	got := BuildTask("  Durand ", " Pierre")
	if !strings.Contains(got, "Contact ciblé: Pierre Durand\n") {
		t.Errorf("names not trimmed:\n%s", got)
	}
}
