package evaluation

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"slices"
	"strings"

	"github.com/hyperjump/recall/internal/ingest"
)

// DefaultSeed makes generated cases reproducible.
const DefaultSeed = 42

// Recipe is the slice of a dataset record the generator reads.
type Recipe struct {
	ID          string
	Name        string
	Ingredients string
}

// RecipesFromRecords normalizes raw dataset records and keeps those with
// both a name and an ingredient list, in dataset order.
func RecipesFromRecords(records []ingest.Record) []Recipe {
	out := make([]Recipe, 0, len(records))
	for _, rec := range records {
		doc, err := ingest.RecipeAdapter{}.Normalize(rec)
		if err != nil {
			continue
		}
		name, _ := doc.Metadata["name"].(string)
		ingredients, _ := doc.Metadata["ingredients"].(string)
		if name == "" || strings.TrimSpace(ingredients) == "" {
			continue
		}
		out = append(out, Recipe{ID: doc.ID, Name: name, Ingredients: ingredients})
	}
	return out
}

var measureWords = map[string]struct{}{
	"cup": {}, "cups": {}, "tablespoon": {}, "tablespoons": {}, "teaspoon": {}, "teaspoons": {},
	"pound": {}, "pounds": {}, "ounce": {}, "ounces": {}, "clove": {}, "whole": {}, "large": {},
	"small": {}, "fresh": {}, "optional": {}, "cut": {}, "into": {}, "pieces": {},
}

// swedish translates a few common ingredients for the multilingual cases.
var swedish = map[string]string{
	"chicken": "kyckling",
	"garlic":  "vitlök",
	"coconut": "kokos",
	"beef":    "nötkött",
	"egg":     "ägg",
	"milk":    "mjölk",
}

var (
	quantityPattern = regexp.MustCompile(`[\d/]+`)
	letterPattern   = regexp.MustCompile(`[a-zA-Z]+`)
)

// cleanIngredient lowercases one ingredient line and keeps its alphabetic
// words minus quantities and measure words.
func cleanIngredient(line string) string {
	line = quantityPattern.ReplaceAllString(strings.ToLower(line), "")
	var words []string
	for _, w := range letterPattern.FindAllString(line, -1) {
		if _, skip := measureWords[w]; !skip {
			words = append(words, w)
		}
	}
	return strings.Join(words, " ")
}

// coreIngredients returns the distinct short ingredient names of a recipe,
// sorted. Lines longer than three words or shorter than four characters are
// dropped.
func coreIngredients(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		c := cleanIngredient(line)
		if len(c) > 3 && len(strings.Fields(c)) <= 3 {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func translateQuery(q string) string {
	words := strings.Fields(q)
	for i, w := range words {
		if sv, ok := swedish[w]; ok {
			words[i] = sv
		}
	}
	return strings.Join(words, " ")
}

// generator hands out each recipe's core ingredients in a seeded order.
// Every recipe draws from its own stream so its order does not depend on
// which other recipes were read first.
type generator struct {
	recipes []Recipe
	seed    uint64
	cache   map[int][]string
	cases   []TestCase
}

func (g *generator) ingredients(i int) []string {
	if ing, ok := g.cache[i]; ok {
		return ing
	}
	ing := coreIngredients(g.recipes[i].Ingredients)
	rng := rand.New(rand.NewPCG(g.seed, uint64(i)))
	rng.Shuffle(len(ing), func(a, b int) { ing[a], ing[b] = ing[b], ing[a] })
	g.cache[i] = ing
	return ing
}

func (g *generator) add(category, difficulty string, recipe int, query string, steps []string) {
	tc := TestCase{
		ID:         fmt.Sprintf("T%02d", len(g.cases)+1),
		Category:   category,
		Difficulty: difficulty,
		Query:      query,
		Steps:      steps,
	}
	if recipe >= 0 {
		id := g.recipes[recipe].ID
		tc.ExpectedID = &id
	}
	g.cases = append(g.cases, tc)
}

// pair joins a recipe's first two ingredients, or reports false when it has
// fewer than two.
func (g *generator) pair(i int) (string, bool) {
	ing := g.ingredients(i)
	if len(ing) < 2 {
		return "", false
	}
	return ing[0] + " " + ing[1], true
}

// Generate builds up to twenty fixed cases from the first twenty recipes:
// eight easy single-step queries, four with a noise ingredient, four
// two-step refinements, two translated to Swedish, one stability case and
// one negative case that mixes three recipes. Recipes without enough
// ingredients for their slot are skipped.
func Generate(recipes []Recipe, seed uint64) []TestCase {
	if len(recipes) > 20 {
		recipes = recipes[:20]
	}
	g := &generator{recipes: recipes, seed: seed, cache: make(map[int][]string)}
	n := len(recipes)

	for i := 0; i < min(8, n); i++ {
		if q, ok := g.pair(i); ok {
			g.add("single_step", "easy", i, q, nil)
		}
	}
	for i := 8; i < min(12, n); i++ {
		q, ok := g.pair(i)
		noise := g.ingredients(0)
		if !ok || len(noise) == 0 {
			continue
		}
		g.add("single_step", "medium", i, q+" "+noise[0], nil)
	}
	for i := 12; i < min(16, n); i++ {
		ing := g.ingredients(i)
		if len(ing) < 3 {
			continue
		}
		g.add("multi_step", "hard", i, "", []string{ing[0] + " " + ing[1], ing[2]})
	}
	for i := 16; i < min(18, n); i++ {
		if q, ok := g.pair(i); ok {
			g.add("multilingual", "hard", i, translateQuery(q), nil)
		}
	}
	if n > 18 {
		if q, ok := g.pair(18); ok {
			g.add("stability", "medium", 18, q, nil)
		}
	}
	if n >= 3 {
		var words []string
		for i := 0; i < 3; i++ {
			if ing := g.ingredients(i); len(ing) > 0 {
				words = append(words, ing[0])
			}
		}
		if len(words) == 3 {
			g.add("negative", "hard", -1, strings.Join(words, " "), nil)
		}
	}
	return g.cases
}
