package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/hyperjump/recall/internal/models"
)

// ErrEmptyRecord is returned for a record that yields no searchable text.
var ErrEmptyRecord = errors.New("record has no searchable text")

// ErrUnknownDomain is returned by AdapterFor for an unregistered domain.
var ErrUnknownDomain = errors.New("unknown domain")

// Adapter converts a raw dataset record into a document.
type Adapter interface {
	Normalize(rec Record) (models.Document, error)
}

// recordNamespace seeds the deterministic ids of records that carry none.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("recall:record"))

// StructuredTextAdapter maps records shaped like
// {"_id": {"$oid": ...}, "name" | "title", "ingredients", "description"}.
// Text is name, ingredients and description separated by newlines.
type StructuredTextAdapter struct{}

// Normalize implements Adapter.
func (StructuredTextAdapter) Normalize(rec Record) (models.Document, error) {
	name := Preprocess(stringField(rec, "name"))
	if name == "" {
		name = Preprocess(stringField(rec, "title"))
	}
	ingredients := Preprocess(stringField(rec, "ingredients"))
	description := Preprocess(stringField(rec, "description"))
	if name == "" && ingredients == "" && description == "" {
		return models.Document{}, ErrEmptyRecord
	}
	id, err := recordID(rec)
	if err != nil {
		return models.Document{}, err
	}
	return models.Document{
		ID:       id,
		Text:     name + "\n" + ingredients + "\n" + description,
		Metadata: map[string]interface{}{"name": name},
	}, nil
}

// RecipeAdapter keeps the recipe fields needed to render a result card.
type RecipeAdapter struct{}

var recipeMetadataFields = []string{"url", "image", "cookTime", "prepTime", "recipeYield", "source", "datePublished"}

// Normalize implements Adapter.
func (RecipeAdapter) Normalize(rec Record) (models.Document, error) {
	doc, err := StructuredTextAdapter{}.Normalize(rec)
	if err != nil {
		return doc, err
	}
	parts := make([]string, 0, 3)
	for _, f := range []string{"name", "ingredients", "description"} {
		if v := Preprocess(stringField(rec, f)); v != "" {
			parts = append(parts, v)
		}
	}
	doc.Text = strings.Join(parts, "\n")
	if ing := stringField(rec, "ingredients"); ing != "" {
		doc.Metadata["ingredients"] = ing
	}
	for _, f := range recipeMetadataFields {
		if v, ok := rec[f]; ok && v != nil {
			doc.Metadata[f] = v
		}
	}
	return doc, nil
}

var adapters = map[string]Adapter{
	"structured_text": StructuredTextAdapter{},
	"recipes":         RecipeAdapter{},
}

// AdapterFor returns the adapter registered for domain.
func AdapterFor(domain string) (Adapter, error) {
	a, ok := adapters[strings.ToLower(strings.TrimSpace(domain))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownDomain, domain, strings.Join(Domains(), ", "))
	}
	return a, nil
}

// Domains lists the registered domain names.
func Domains() []string {
	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// recordID takes the Mongo-style _id.$oid, a scalar _id, or id. Records with
// none of these get a name-based UUID of their canonical JSON.
func recordID(rec Record) (string, error) {
	if raw, ok := rec["_id"]; ok {
		if m, ok := raw.(map[string]interface{}); ok {
			if oid := scalarString(m["$oid"]); oid != "" {
				return oid, nil
			}
		} else if s := scalarString(raw); s != "" {
			return s, nil
		}
	}
	if s := scalarString(rec["id"]); s != "" {
		return s, nil
	}
	canonical, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("derive record id: %w", err)
	}
	return uuid.NewSHA1(recordNamespace, canonical).String(), nil
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// stringField renders rec[key] as text. Lists are joined with ", ".
func stringField(rec Record, key string) string {
	switch t := rec[key].(type) {
	case nil:
		return ""
	case string:
		return t
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := scalarString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return scalarString(t)
	}
}

// Preprocess trims text and collapses runs of whitespace to one space.
func Preprocess(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
