package builder

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/abdul-hamid-achik/sheetspec/packages/core/env"
	"github.com/abdul-hamid-achik/sheetspec/packages/core/parser"
	"github.com/abdul-hamid-achik/sheetspec/packages/extract"
	"github.com/abdul-hamid-achik/sheetspec/packages/fields"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type staticGenerator map[string]any

func (g staticGenerator) Generate(token string) (any, bool) {
	v, ok := g[token]
	return v, ok
}

func newTestBuilder(saved map[string]any) *Builder {
	store := fields.NewStore()
	store.Merge(saved)
	return NewBuilder(env.NewResolver(
		env.WithGenerator(staticGenerator{"uetr": "u-123", "amount": 10.5}),
		env.WithFields(store),
	))
}

func TestBuild_JSONTemplate(t *testing.T) {
	b := newTestBuilder(map[string]any{"TC01.$.token": "abc123"})

	tmpl := &parser.Template{
		Name:    "payment",
		Format:  extract.FormatJSON,
		Content: `{"id": {{json .id}}, "amount": {{json .amount}}, "token": {{json .auth.token}}, "debtor": {{json .debtor}}}`,
	}
	defaults := map[string]any{
		"id":     "{{uetr}}",
		"amount": 1,
		"auth":   map[string]any{"token": "none"},
		"debtor": map[string]any{"name": "Alice", "bic": "AAAABBCC"},
	}
	mods := map[string]any{
		"amount": "{{amount}}",
		"auth":   map[string]any{"token": "${TC01.$.token}"},
		"debtor": map[string]any{"name": "Bob"},
	}

	body, err := b.Build(context.Background(), &Input{
		Method:              "POST",
		Template:            tmpl,
		Defaults:            defaults,
		Modifications:       mods,
		ModificationsFormat: extract.FormatJSON,
	})
	require.NoError(t, err)
	assert.Equal(t, extract.FormatJSON, body.Format)
	assert.Equal(t, "application/json", body.ContentType())
	assert.JSONEq(t, `{
		"id": "u-123",
		"amount": 10.5,
		"token": "abc123",
		"debtor": {"name": "Bob", "bic": "AAAABBCC"}
	}`, string(body.Content))

	assert.Equal(t, "{{uetr}}", defaults["id"])
	assert.Equal(t, "none", defaults["auth"].(map[string]any)["token"])
	assert.Equal(t, "{{amount}}", mods["amount"])
}

func TestBuild_NoTemplate(t *testing.T) {
	b := newTestBuilder(nil)
	body, err := b.Build(context.Background(), &Input{
		Method:        "PUT",
		Defaults:      map[string]any{"a": 1},
		Modifications: map[string]any{"b": "{{uetr}}"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1, "b": "u-123"}`, string(body.Content))
}

func TestBuild_GetAndDeleteHaveNoBody(t *testing.T) {
	b := newTestBuilder(nil)
	for _, method := range []string{"GET", "delete"} {
		body, err := b.Build(context.Background(), &Input{
			Method:        method,
			Defaults:      map[string]any{"a": 1},
			Template:      &parser.Template{Name: "x", Format: extract.FormatXML, Content: "<a/>"},
			Modifications: map[string]any{"b": 2},
		})
		require.NoError(t, err)
		assert.True(t, body.Empty(), method)
	}
}

func TestBuild_FormatMismatch(t *testing.T) {
	b := newTestBuilder(nil)
	_, err := b.Build(context.Background(), &Input{
		Method:              "POST",
		Template:            &parser.Template{Name: "pacs", Format: extract.FormatXML, Content: "<Doc/>"},
		Modifications:       map[string]any{"a": 1},
		ModificationsFormat: extract.FormatJSON,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFormatMismatch))
	assert.Contains(t, err.Error(), `xml template "pacs"`)
}

func TestBuild_XMLTemplate(t *testing.T) {
	b := newTestBuilder(nil)
	mods, format, err := ParseModifications(`<Doc><Amt ccy="USD">7</Amt></Doc>`, nil)
	require.NoError(t, err)
	require.Equal(t, extract.FormatXML, format)

	body, err := b.Build(context.Background(), &Input{
		Method: "POST",
		Template: &parser.Template{
			Name:    "pacs",
			Format:  extract.FormatXML,
			Content: `<Document><Id>{{xml .Doc.Id}}</Id><Amt ccy="{{index .Doc.Amt "@ccy"}}">{{xml (index .Doc.Amt "#text")}}</Amt></Document>`,
		},
		Defaults: map[string]any{
			"Doc": map[string]any{"Id": "{{uetr}}", "Amt": map[string]any{"@ccy": "EUR", "#text": "5"}},
		},
		Modifications:       mods,
		ModificationsFormat: format,
	})
	require.NoError(t, err)
	assert.Equal(t, "application/xml", body.ContentType())
	assert.Equal(t, `<Document><Id>u-123</Id><Amt ccy="USD">7</Amt></Document>`, string(body.Content))
}

func TestBuild_XMLWithoutTemplateContent(t *testing.T) {
	b := newTestBuilder(nil)
	body, err := b.Build(context.Background(), &Input{
		Method:   "POST",
		Template: &parser.Template{Name: "bare", Format: extract.FormatXML},
		Defaults: map[string]any{
			"Doc": map[string]any{
				"@id":  "1",
				"Item": []any{"a & b", "c"},
				"Note": nil,
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `<Doc id="1"><Item>a &amp; b</Item><Item>c</Item><Note/></Doc>`, string(body.Content))

	m, err := extract.XMLToMap(body.Content)
	require.NoError(t, err)
	assert.Equal(t, []any{"a & b", "c"}, m["Doc"].(map[string]any)["Item"])
}

func TestBuild_MissingSlotFails(t *testing.T) {
	b := newTestBuilder(nil)
	_, err := b.Build(context.Background(), &Input{
		Method:   "POST",
		Template: &parser.Template{Name: "t", Format: extract.FormatJSON, Content: `{"a": {{json .missing}}}`},
		Defaults: map[string]any{"a": 1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `template "t"`)
}

func TestBuild_InvalidJSONOutput(t *testing.T) {
	b := newTestBuilder(nil)
	_, err := b.Build(context.Background(), &Input{
		Method:   "POST",
		Template: &parser.Template{Name: "t", Format: extract.FormatJSON, Content: `{"a": {{.a}}`},
		Defaults: map[string]any{"a": 1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestBuild_Schema(t *testing.T) {
	b := newTestBuilder(nil)
	tmpl := &parser.Template{
		Name:    "order",
		Format:  extract.FormatJSON,
		Content: `{"qty": {{json .qty}}}`,
		Schema:  `{"type": "object", "required": ["qty"], "properties": {"qty": {"type": "integer", "minimum": 1}}}`,
	}

	_, err := b.Build(context.Background(), &Input{Method: "POST", Template: tmpl, Defaults: map[string]any{"qty": 3}})
	require.NoError(t, err)

	_, err = b.Build(context.Background(), &Input{Method: "POST", Template: tmpl, Defaults: map[string]any{"qty": 0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "violates schema")
}

func TestBuild_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestBuilder(nil).Build(ctx, &Input{Method: "POST"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildHeaders(t *testing.T) {
	b := newTestBuilder(map[string]any{"TC01.$.token": "abc123"})
	h := b.BuildHeaders(map[string]string{
		"Authorization": "Bearer ${TC01.$.token}",
		"X-Request-Id":  "{{uetr}}",
	})
	assert.Equal(t, "Bearer abc123", h["Authorization"])
	assert.Equal(t, "u-123", h["X-Request-Id"])
}

func TestParseModifications(t *testing.T) {
	m, f, err := ParseModifications("  ", nil)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Equal(t, extract.FormatUnspecified, f)

	_, f, err = ParseModifications("{}", nil)
	require.NoError(t, err)
	assert.Equal(t, extract.FormatUnspecified, f)

	m, f, err = ParseModifications(`{"a": {"b": 1}}`, nil)
	require.NoError(t, err)
	assert.Equal(t, extract.FormatJSON, f)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1.0}}, m)

	_, _, err = ParseModifications(`{"a":`, nil)
	assert.Error(t, err)

	_, _, err = ParseModifications(`a: 1`, nil)
	assert.Error(t, err)
}

func TestParseModifications_BareSavedFields(t *testing.T) {
	store := fields.NewStore()
	store.Merge(map[string]any{
		"TC01.$.total": 42.5,
		"TC01.$.id":    "inv-7",
	})

	m, f, err := ParseModifications(`{"amount": ${TC01.$.total}, "ref": "${TC01.$.id}", "note": "cost ${x}"}`, store)
	require.NoError(t, err)
	assert.Equal(t, extract.FormatJSON, f)
	assert.Equal(t, 42.5, m["amount"])
	assert.Equal(t, "${TC01.$.id}", m["ref"], "quoted placeholders are left for the resolver")
	assert.Equal(t, "cost ${x}", m["note"])

	_, _, err = ParseModifications(`{"amount": ${TC01.$.missing}}`, store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown saved field "TC01.$.missing"`)

	_, _, err = ParseModifications(`{"amount": ${TC01.$.total}}`, nil)
	assert.Error(t, err)
}

func TestDeepMerge(t *testing.T) {
	base := map[string]any{
		"a": 1,
		"n": map[string]any{"x": 1, "y": map[string]any{"z": 1}},
		"l": []any{1, 2},
		"s": map[string]any{"k": 1},
	}
	over := map[string]any{
		"n": map[string]any{"y": map[string]any{"w": 2}},
		"l": []any{3},
		"s": "scalar",
		"b": 2,
	}

	merged := DeepMerge(base, over)
	assert.Equal(t, map[string]any{
		"a": 1,
		"b": 2,
		"n": map[string]any{"x": 1, "y": map[string]any{"z": 1, "w": 2}},
		"l": []any{3},
		"s": "scalar",
	}, merged)

	merged["n"].(map[string]any)["x"] = 99
	assert.Equal(t, 1, base["n"].(map[string]any)["x"])
	assert.Equal(t, map[string]any{"w": 2}, over["n"].(map[string]any)["y"])
}

func TestDeepMergeProperty(t *testing.T) {
	gen := rapid.MapOf(rapid.StringMatching(`[a-e]`), rapid.IntRange(0, 9))
	rapid.Check(t, func(t *rapid.T) {
		base := toAny(gen.Draw(t, "base"))
		over := toAny(gen.Draw(t, "over"))
		baseCopy, _ := json.Marshal(base)
		overCopy, _ := json.Marshal(over)

		merged := DeepMerge(base, over)

		for k, v := range over {
			if merged[k] != v {
				t.Fatalf("key %s: want %v from over, got %v", k, v, merged[k])
			}
		}
		for k, v := range base {
			if _, ok := over[k]; !ok && merged[k] != v {
				t.Fatalf("key %s: want %v from base, got %v", k, v, merged[k])
			}
		}
		if len(merged) > len(base)+len(over) {
			t.Fatalf("merged has unexpected keys: %v", merged)
		}

		afterBase, _ := json.Marshal(base)
		afterOver, _ := json.Marshal(over)
		if !reflect.DeepEqual(baseCopy, afterBase) || !reflect.DeepEqual(overCopy, afterOver) {
			t.Fatalf("inputs were modified")
		}
	})
}

func toAny(m map[string]int) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
