package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("strict json", func(t *testing.T) {
		v, err := DecodeString(`{"a": [1, "x"]}`)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": []any{float64(1), "x"}}, v)
	})

	t.Run("javascript literal", func(t *testing.T) {
		v, err := DecodeString(`{products: [{id: 'abc', price: 12.5,},],}`)
		require.NoError(t, err)
		got, ok := Lookup(v, "products.0.price")
		require.True(t, ok)
		assert.Equal(t, 12.5, got)
	})

	t.Run("empty is unavailable", func(t *testing.T) {
		for _, raw := range []string{"", "  ", "null", "undefined"} {
			v, err := DecodeString(raw)
			assert.NoError(t, err, raw)
			assert.Nil(t, v, raw)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := DecodeString(`{"a": `)
		assert.Error(t, err)
	})

	t.Run("trailing data", func(t *testing.T) {
		_, err := DecodeString(`{"a": 1} {"b": 2}`)
		assert.Error(t, err)
	})

	t.Run("long integer ids keep every digit", func(t *testing.T) {
		v, err := DecodeString(`{items: [{id: 12345678901234567891, n: 9007199254740992, price: 0x1F, neg: -9007199254740993}]}`)
		require.NoError(t, err)
		item := Object(Array(Object(v)["items"])[0])
		assert.Equal(t, "12345678901234567891", Scalar(item["id"]))
		assert.Equal(t, float64(1<<53), item["n"])
		assert.Equal(t, float64(31), item["price"])
		assert.Equal(t, "-9007199254740993", Scalar(item["neg"]))
		assert.Equal(t, KindNumber, KindOf(item["id"]))
	})
}

func TestLookup(t *testing.T) {
	v := map[string]any{
		"colors": []any{map[string]any{"xmedia": "a.jpg"}, nil},
		"name":   nil,
	}

	got, ok := Lookup(v, "colors.0.xmedia")
	require.True(t, ok)
	assert.Equal(t, "a.jpg", got)

	for _, path := range []string{"colors.1", "colors.2.xmedia", "colors.x", "name", "missing", "colors.0.xmedia.deeper"} {
		_, ok := Lookup(v, path)
		assert.False(t, ok, path)
	}
}

func TestScalarAndNumber(t *testing.T) {
	assert.Equal(t, "abc", Scalar("  abc "))
	assert.Equal(t, "12.5", Scalar(12.5))
	assert.Equal(t, "1200", Scalar(float64(1200)))
	assert.Equal(t, "true", Scalar(true))
	assert.Equal(t, "", Scalar(map[string]any{}))
	assert.Equal(t, "", Scalar(nil))

	n, ok := Number(int64(7))
	assert.True(t, ok)
	assert.Equal(t, 7.0, n)
	_, ok = Number("7")
	assert.False(t, ok)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindObject, KindOf(map[string]any{}))
	assert.Equal(t, KindArray, KindOf([]any{}))
	assert.Equal(t, KindUnknown, KindOf(struct{}{}))
}

func TestIdentityOf(t *testing.T) {
	obj := map[string]any{"a": 1}
	arr := []any{obj}

	a, ok := IdentityOf(obj)
	require.True(t, ok)
	b, _ := IdentityOf(obj)
	assert.Equal(t, a, b)

	c, ok := IdentityOf(arr)
	require.True(t, ok)
	assert.NotEqual(t, a, c)

	_, ok = IdentityOf([]any{})
	assert.False(t, ok)
	_, ok = IdentityOf("x")
	assert.False(t, ok)
}

func TestItemList(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">{"@type":"ItemList","itemListElement":[{"@type":"ListItem","position":1}]}</script>
<script type="application/ld+json">{"@graph":[{"@type":"Organization"},{"@type":["ItemList"],"itemListElement":[{"@type":"ListItem","position":2}]}]}</script>
<script type="application/ld+json">{broken</script>
</head><body></body></html>`

	v := ItemList(html)
	require.NotNil(t, v)
	elements := Array(Object(v)["itemListElement"])
	require.Len(t, elements, 2)
	pos, _ := Lookup(elements[1], "position")
	assert.Equal(t, float64(2), pos)

	assert.Nil(t, ItemList(`<html><script type="application/ld+json">{"@type":"Product"}</script></html>`))
}

func TestInlineState(t *testing.T) {
	globals := []string{"__PRELOADED_STATE__", "__NEXT_DATA__"}

	t.Run("assignment", func(t *testing.T) {
		html := `<script>var x = 1; window.__PRELOADED_STATE__ = {grid: {items: [{id: "p1", label: "a } b"}]}}; init();</script>`
		v := InlineState(html, globals)
		got, ok := Lookup(v, "grid.items.0.label")
		require.True(t, ok)
		assert.Equal(t, "a } b", got)
	})

	t.Run("json script by id", func(t *testing.T) {
		html := `<script id="__NEXT_DATA__" type="application/json">{"props":{"n":3}}</script>`
		got, ok := Lookup(InlineState(html, globals), "props.n")
		require.True(t, ok)
		assert.Equal(t, float64(3), got)
	})

	t.Run("comparison is not an assignment", func(t *testing.T) {
		html := `<script>if (window.__PRELOADED_STATE__ == null) {}</script>`
		assert.Nil(t, InlineState(html, globals))
	})

	t.Run("external scripts ignored", func(t *testing.T) {
		html := `<script src="/app.js">window.__PRELOADED_STATE__ = {a: 1}</script>`
		assert.Nil(t, InlineState(html, globals))
	})

	assert.Nil(t, InlineState(`<script>window.__PRELOADED_STATE__ = {a: 1}</script>`, nil))
}

func TestBalancedLiteral(t *testing.T) {
	assert.Equal(t, `{"a":"}"}`, balancedLiteral(`{"a":"}"} rest`))
	assert.Equal(t, `[1,[2]]`, balancedLiteral(`[1,[2]];`))
	assert.Equal(t, "", balancedLiteral(`{never`))
	assert.Equal(t, "", balancedLiteral(`abc`))
}
