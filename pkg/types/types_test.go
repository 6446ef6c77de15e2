package types

import (
	"testing"
)

func TestSanitizeModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"trailing comma", `{"a":[1,2,],}`, `{"a":[1,2]}`},
		{"comments", "{\n\"a\":1 // the answer\n/* block */}", "{\n\"a\":1 \n}"},
		{"prose around", `Sure! {"a":1} hope this helps`, `{"a":1}`},
	}

	for _, tt := range tests {
		if got := SanitizeModelJSON(tt.in); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.want, got)
		}
	}
}

func TestParseAnalysis(t *testing.T) {
	raw := "```json\n{\"primary\":{\"label\":\"dog\",\"confidence\":0.9,\"box\":{\"x\":0.1,\"y\":0.2,\"w\":0.3,\"h\":0.4},\"cx\":0.25,\"cy\":0.4},\"description\":\"a dog\",\"tags\":[\"dog\"],}\n```"
	result := ParseAnalysis(raw)

	if result.Primary.Label != "dog" {
		t.Errorf("Expected label dog, got %q", result.Primary.Label)
	}
	if result.Primary.Box != (Box{X: 0.1, Y: 0.2, W: 0.3, H: 0.4}) {
		t.Errorf("Unexpected box %+v", result.Primary.Box)
	}
	if len(result.Tags) != 1 || result.Tags[0] != "dog" {
		t.Errorf("Unexpected tags %v", result.Tags)
	}
}

func TestParseAnalysisFallbacks(t *testing.T) {
	tests := []struct {
		raw   string
		label string
	}{
		{"I see a cat on a sofa.", "unclear image"},
		{`{"primary": {"label": }`, "parse error"},
	}

	for _, tt := range tests {
		result := ParseAnalysis(tt.raw)
		if result.Primary.Label != tt.label {
			t.Errorf("%q: expected label %q, got %q", tt.raw, tt.label, result.Primary.Label)
		}
		if result.Primary.Box != CenterBox {
			t.Errorf("%q: expected center box, got %+v", tt.raw, result.Primary.Box)
		}
	}

	empty := ParseAnalysis(`{"description": "nothing"}`)
	if empty.Primary.Box != CenterBox || empty.Primary.Cx != 0.5 || empty.Primary.Cy != 0.5 {
		t.Errorf("Expected empty primary to be centered, got %+v", empty.Primary)
	}
}

func TestBoxHelpers(t *testing.T) {
	b := Box{X: 0.8, Y: -0.1, W: 0.5, H: 0.3}.Clamp()
	if b.X != 0.8 || b.Y != 0 || b.H != 0.3 {
		t.Errorf("Unexpected clamp %+v", b)
	}
	if d := b.W - 0.2; d > 1e-9 || d < -1e-9 {
		t.Errorf("Expected width clipped to 0.2, got %v", b.W)
	}

	cx, cy := Box{X: 0.6, Y: 0.2, W: 0.2, H: 0.2}.NearestToCenter()
	if cx != 0.6 || cy != 0.4 {
		t.Errorf("Expected (0.6, 0.4), got (%v, %v)", cx, cy)
	}

	if !(Box{W: 0, H: 1}).Empty() {
		t.Error("Expected zero width box to be empty")
	}
}
