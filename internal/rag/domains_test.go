package rag

import (
	"strings"
	"testing"
)

func TestDetectDomainsLabor(t *testing.T) {
	domains := detectDomains("Sa ditë pushimi vjetor më takojnë nga puna?")
	if len(domains) == 0 {
		t.Fatal("expected at least one domain")
	}
	if domains[0].id != "labor" {
		t.Errorf("best domain = %s, want labor", domains[0].id)
	}
}

func TestDetectDomainsFamily(t *testing.T) {
	domains := detectDomains("Si ndahet kujdestaria e fëmijës pas divorcit?")
	if len(domains) == 0 {
		t.Fatal("expected at least one domain")
	}
	if domains[0].id != "family" {
		t.Errorf("best domain = %s, want family", domains[0].id)
	}
}

func TestDetectDomainsNoMatch(t *testing.T) {
	if domains := detectDomains("bukuria e maleve shqiptare"); len(domains) != 0 {
		ids := make([]string, len(domains))
		for i, d := range domains {
			ids[i] = d.id
		}
		t.Errorf("expected no domains, got %v", ids)
	}
}

func TestDomainHint(t *testing.T) {
	if hint := domainHint(nil); hint != "" {
		t.Errorf("no domains should yield empty hint, got %q", hint)
	}

	domains := detectDomains("dhuna në familje dhe urdhri i mbrojtjes")
	hint := domainHint(domains)
	if hint == "" {
		t.Fatal("expected a hint for a detected domain")
	}
	if !strings.Contains(hint, domains[0].id) {
		t.Errorf("hint should name the domain, got %q", hint)
	}
}
