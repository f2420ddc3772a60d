package albanian

import (
	"reflect"
	"testing"
)

func TestFold(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"diacritics stripped", "të drejtë çështje", "te drejte ceshtje"},
		{"uppercase diacritics", "Ç për Ë", "C per E"},
		{"whitespace collapsed", "neni   57\n\tpika 2", "neni 57 pika 2"},
		{"case preserved", "Neni 57", "Neni 57"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fold(tt.in); got != tt.want {
				t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeQuery(t *testing.T) {
	got := NormalizeQuery("Sa ditë pushim vjetor kam?")
	want := "sa dite pushim vjetor kam?"
	if got != want {
		t.Errorf("NormalizeQuery = %q, want %q", got, want)
	}
}

func TestNormalizeLegalQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sipas nenit 57", "sipas neni 57"},
		{"Kushtetutës së Shqipërisë", "kushtetute se shqiperise"},
		{"ligjit nr 7961", "ligj nr 7961"},
	}
	for _, tt := range tests {
		if got := NormalizeLegalQuery(tt.in); got != tt.want {
			t.Errorf("NormalizeLegalQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLegalRoot(t *testing.T) {
	if got := LegalRoot("Nenit"); got != "neni" {
		t.Errorf("LegalRoot(Nenit) = %q, want neni", got)
	}
	if got := LegalRoot("pushimi"); got != "pushim" {
		t.Errorf("LegalRoot(pushimi) = %q, want pushim", got)
	}
	if got := LegalRoot("tavolina"); got != "" {
		t.Errorf("LegalRoot(tavolina) = %q, want empty", got)
	}
}

func TestExpandDiacriticVariants(t *testing.T) {
	variants := ExpandDiacriticVariants("drejte")
	if variants[0] != "drejte" {
		t.Fatalf("first variant must be the input, got %q", variants[0])
	}
	found := false
	for _, v := range variants {
		if v == "drëjtë" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an e→ë variant, got %v", variants)
	}
}

func TestKeywords(t *testing.T) {
	got := Keywords("Sa ditë pushim vjetor kam nga puna?")
	want := []string{"sa", "ditë", "pushim", "vjetor", "kam", "puna"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords = %v, want %v", got, want)
	}
}

func TestExtractArticleNumbers(t *testing.T) {
	nums := ExtractArticleNumbers("Çfarë thotë Neni 57 dhe neni 92?")
	if len(nums) != 2 {
		t.Fatalf("expected 2 article numbers, got %v", nums)
	}
	for _, n := range []string{"57", "92"} {
		if _, ok := nums[n]; !ok {
			t.Errorf("missing article number %s", n)
		}
	}
}

func TestExtractEntities(t *testing.T) {
	entities := ExtractEntities("Sipas Neni 12 të Ligjit Nr. 7961, datë 12.07.1995, Kodi Punes")
	if len(entities) == 0 {
		t.Fatal("expected entities")
	}

	asSet := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		if _, dup := asSet[e]; dup {
			t.Errorf("duplicate entity %q", e)
		}
		asSet[e] = struct{}{}
	}

	if _, ok := asSet["Neni 12"]; !ok {
		t.Errorf("expected article reference, got %v", entities)
	}
	if _, ok := asSet["12.07.1995"]; !ok {
		t.Errorf("expected date, got %v", entities)
	}
}
