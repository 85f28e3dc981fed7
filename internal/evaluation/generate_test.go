package evaluation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/hyperjump/recall/internal/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanIngredient(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2 1/2 cups All-Purpose Flour", "all purpose flour"},
		{"3 cloves garlic", "cloves garlic"},
		{"1 large fresh egg, optional", "egg"},
		{"1/4 teaspoon", ""},
		{"Crème fraîche", "cr me fra che"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanIngredient(tt.in), "input %q", tt.in)
	}
}

func TestCoreIngredients(t *testing.T) {
	text := "2 cups milk\n1 tablespoon salt\n3 eggs\nmilk\n1 cup finely chopped sweet yellow onion\negg\n"
	assert.Equal(t, []string{"eggs", "milk", "salt"}, coreIngredients(text))
}

func TestTranslateQuery(t *testing.T) {
	assert.Equal(t, "kyckling vitlök rice", translateQuery("chicken garlic rice"))
}

func recipeFixture(n int) []Recipe {
	out := make([]Recipe, n)
	for i := range out {
		out[i] = Recipe{
			ID:          fmt.Sprintf("r%02d", i),
			Name:        fmt.Sprintf("Recipe %d", i),
			Ingredients: fmt.Sprintf("1 cup chicken\n2 tablespoons garlic\nspice%c\nherb%c", 'a'+rune(i), 'a'+rune(i)),
		}
	}
	return out
}

func TestGenerateLayout(t *testing.T) {
	cases := Generate(recipeFixture(25), DefaultSeed)
	require.Len(t, cases, 20)

	counts := map[string]int{}
	for i, tc := range cases {
		assert.Equal(t, fmt.Sprintf("T%02d", i+1), tc.ID)
		counts[tc.Category+"/"+tc.Difficulty]++
	}
	assert.Equal(t, map[string]int{
		"single_step/easy":   8,
		"single_step/medium": 4,
		"multi_step/hard":    4,
		"multilingual/hard":  2,
		"stability/medium":   1,
		"negative/hard":      1,
	}, counts)

	// Expected ids follow the recipe slots.
	assert.Equal(t, "r00", *cases[0].ExpectedID)
	assert.Equal(t, "r08", *cases[8].ExpectedID)
	assert.Equal(t, "r12", *cases[12].ExpectedID)
	assert.Equal(t, "r18", *cases[18].ExpectedID)
	assert.Nil(t, cases[19].ExpectedID)

	multi := cases[12]
	require.Len(t, multi.Steps, 2)
	assert.Empty(t, multi.Query)
	assert.Len(t, strings.Fields(multi.Steps[0]), 2)

	noise := cases[8].Query
	assert.Len(t, strings.Fields(noise), 3)

	for _, w := range strings.Fields(cases[16].Query) {
		assert.NotContains(t, []string{"chicken", "garlic"}, w, "multilingual query is translated")
	}
	assert.Len(t, strings.Fields(cases[19].Query), 3)
}

func TestGenerateIsDeterministic(t *testing.T) {
	recipes := recipeFixture(20)
	a := Generate(recipes, DefaultSeed)
	b := Generate(recipes, DefaultSeed)
	assert.Equal(t, a, b)

	var differs bool
	for seed := uint64(1); seed < 10 && !differs; seed++ {
		c := Generate(recipes, seed)
		for i := range a {
			if a[i].Query != c[i].Query || strings.Join(a[i].Steps, "|") != strings.Join(c[i].Steps, "|") {
				differs = true
				break
			}
		}
	}
	assert.True(t, differs, "the seed should change ingredient order")
}

func TestGenerateSkipsThinRecipes(t *testing.T) {
	recipes := recipeFixture(4)
	recipes[1].Ingredients = "salt"
	cases := Generate(recipes, DefaultSeed)

	// Slots 0, 2 and 3 are single-step; slot 1 has one ingredient. The
	// negative case still draws one ingredient from each of the first three.
	require.Len(t, cases, 4)
	assert.Equal(t, []string{"T01", "T02", "T03", "T04"}, []string{cases[0].ID, cases[1].ID, cases[2].ID, cases[3].ID})
	assert.Equal(t, "r02", *cases[1].ExpectedID)
	assert.Equal(t, "negative", cases[3].Category)
	assert.Contains(t, cases[3].Query, "salt")
}

func TestRecipesFromRecords(t *testing.T) {
	records := []ingest.Record{
		{"_id": map[string]interface{}{"$oid": "abc"}, "name": "Soup", "ingredients": "water\nsalt"},
		{"_id": "no-ingredients", "name": "Toast"},
		{"_id": "no-name", "ingredients": "bread"},
		{"id": "def", "name": "  Stew ", "ingredients": "beef\ncarrot"},
	}
	got := RecipesFromRecords(records)
	assert.Equal(t, []Recipe{
		{ID: "abc", Name: "Soup", Ingredients: "water\nsalt"},
		{ID: "def", Name: "Stew", Ingredients: "beef\ncarrot"},
	}, got)
}
