package main

import (
	"testing"

	"mentorstream/internal/infra/config"
	"mentorstream/internal/sanitize"
)

func TestBuildPolicyDefaults(t *testing.T) {
	cfg := config.SanitizerConfig{InjectClasses: true, Wrap: true}
	p := buildPolicy(cfg)

	def := sanitize.DefaultPolicy()
	if len(p.AllowedTags) != len(def.AllowedTags) || !p.AllowedTags["p"] {
		t.Errorf("AllowedTags = %v, want built-in defaults", p.AllowedTags)
	}
	if p.WrapperClass != def.WrapperClass {
		t.Errorf("WrapperClass = %q, want %q", p.WrapperClass, def.WrapperClass)
	}
}

func TestBuildPolicyOverrides(t *testing.T) {
	cfg := config.SanitizerConfig{
		AllowedTags:   []string{"p", "em"},
		AllowedAttrs:  map[string][]string{"a": {"href"}},
		ClassMap:      map[string]string{"p": "lesson-paragraph"},
		InjectClasses: true,
		Wrap:          true,
		WrapperClass:  "lesson-body",
	}
	p := buildPolicy(cfg)

	if len(p.AllowedTags) != 2 || !p.AllowedTags["p"] || !p.AllowedTags["em"] {
		t.Errorf("AllowedTags = %v", p.AllowedTags)
	}
	if p.AllowedTags["script"] {
		t.Error("script must never be allowed")
	}
	if !p.AllowedAttrs["a"]["href"] {
		t.Errorf("AllowedAttrs = %v", p.AllowedAttrs)
	}
	if p.ClassMap["p"] != "lesson-paragraph" || p.WrapperClass != "lesson-body" {
		t.Errorf("policy = %+v", p)
	}

	// The built policy must actually drive a sanitizer.
	s := sanitize.NewSanitizer(p, nil)
	got := s.Sanitize("hello")
	want := `<div class="lesson-body"><p class="lesson-paragraph">hello</p></div>`
	if got != want {
		t.Errorf("Sanitize = %q, want %q", got, want)
	}
}

func TestBuildDiagramConfigOverrides(t *testing.T) {
	cfg := config.SanitizerConfig{
		DiagramContainer:  "fig",
		DiagramSource:     "src",
		HideDiagramSource: true,
		WrapperClass:      "lesson-body",
		Wrap:              true,
	}
	d := buildDiagramConfig(cfg)
	if d.ContainerClass != "fig" || d.SourceClass != "src" || !d.HideSource {
		t.Errorf("config = %+v", d)
	}
	if d.WrapperClass != "lesson-body" || !d.Wrap {
		t.Errorf("wrapper not carried: %+v", d)
	}
}
