package keyword

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"punctuation only", "!!! ... ,,,", nil},
		{"lowercases and splits", "Chicken, RICE & beans!", []string{"chicken", "rice", "beans"}},
		{"drops stopwords", "add the garlic and make it spicy please", []string{"garlic", "it", "spicy"}},
		{"only stopwords", "and or the a to", nil},
		{"keeps digits and underscore", "step_2 bake 180c", []string{"step_2", "bake", "180c"}},
		{"unicode letters", "Crème brûlée", []string{"crème", "brûlée"}},
		{"hyphen splits", "low-fat", []string{"low", "fat"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokenize_Deterministic(t *testing.T) {
	in := "Spicy tomato soup with basil, tomato and garlic"
	a := Tokenize(in)
	b := Tokenize(in)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Tokenize not deterministic: %v vs %v", a, b)
	}
}

func TestIsStopword(t *testing.T) {
	if !IsStopword("The") {
		t.Error("The should be a stopword")
	}
	if IsStopword("tomato") {
		t.Error("tomato should not be a stopword")
	}
}
