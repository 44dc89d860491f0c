package resolver

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/catalog/locator"
	"github.com/use-agent/catalog/models"
	"github.com/use-agent/catalog/normalizer"
	"github.com/use-agent/catalog/tracker"
)

var baseCtx = models.ExtractionContext{
	Locale:      "uk/en",
	BaseURL:     "https://www.example.com",
	CategoryID:  "2112345",
	TargetCount: 100,
}

func newResolver() *Resolver {
	return New(locator.New(locator.Options{}), normalizer.New(normalizer.Options{}))
}

func provider(t *testing.T, raw map[models.SourceKind]string) *StaticProvider {
	t.Helper()
	in := make(map[models.SourceKind][]byte, len(raw))
	for k, v := range raw {
		in[k] = []byte(v)
	}
	p, err := DecodeStaticProvider(in)
	require.NoError(t, err)
	return p
}

func ids(products []models.NormalizedProduct) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ProductID)
	}
	return out
}

func TestResolveEmbeddedEmptyUsesAPI(t *testing.T) {
	p := provider(t, map[models.SourceKind]string{
		models.SourceEmbeddedState: `{"page":{"title":"Shirts"}}`,
		models.SourceInternalAPI: `{"productGroups":[{"elements":[{"commercialComponents":[
			{"id":111111,"name":"A","price":1999},
			{"id":222222,"name":"B","price":2999},
			{"id":333333,"name":"C","price":3999}
		]}]}]}`,
		models.SourceStructuredMarkup: `{"itemListElement":[{"item":{"sku":"ZZZ-1","name":"Z"}}]}`,
	})

	res, err := newResolver().Resolve(context.Background(), p, baseCtx, nil)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeFound, res.Outcome)
	assert.Equal(t, []string{"111111", "222222", "333333"}, ids(res.Products))
	assert.Equal(t, []models.SourceKind{models.SourceEmbeddedState, models.SourceInternalAPI}, p.Calls())

	api := res.Source(models.SourceInternalAPI)
	assert.Equal(t, 3, api.Normalized)
	assert.Equal(t, "productGroups[*][*]", api.Path)
	assert.False(t, res.Source(models.SourceStructuredMarkup).Attempted)
}

func TestResolveMergesWithAPIPrecedence(t *testing.T) {
	p := provider(t, map[models.SourceKind]string{
		models.SourceEmbeddedState: `{"products":[
			{"id":444444,"name":"Old name","price":1000,"familyName":"Shirts"},
			{"id":555555,"name":"Only embedded"}
		]}`,
		models.SourceInternalAPI: `{"products":[
			{"id":"444444-I1","name":"New name","price":1299,"availability":"in_stock","image":"https://img.example.net/a.jpg"},
			{"id":666666,"name":"Only api"}
		]}`,
	})

	res, err := newResolver().Resolve(context.Background(), p, baseCtx, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"444444", "555555", "666666"}, ids(res.Products))

	got := res.Products[0]
	assert.Equal(t, "New name", got.Name)
	require.NotNil(t, got.Price)
	assert.Equal(t, 12.99, *got.Price)
	require.NotNil(t, got.Availability)
	assert.Equal(t, "in_stock", *got.Availability)
	require.NotNil(t, got.ImageURL)
	assert.Equal(t, "https://img.example.net/a.jpg", *got.ImageURL)
	require.NotNil(t, got.Category)
	assert.Equal(t, "Shirts", *got.Category)
}

func TestResolveStopsWhenEmbeddedMeetsTarget(t *testing.T) {
	p := provider(t, map[models.SourceKind]string{
		models.SourceEmbeddedState: `{"products":[{"id":111111,"name":"A"},{"id":222222,"name":"B"}]}`,
		models.SourceInternalAPI:   `{"products":[{"id":333333,"name":"C"}]}`,
	})
	ec := baseCtx
	ec.TargetCount = 10

	state := tracker.New(10)
	state.Accept(records("900001", "900002", "900003", "900004", "900005", "900006", "900007", "900008"))

	res, err := newResolver().Resolve(context.Background(), p, ec, state)
	require.NoError(t, err)
	assert.Equal(t, []string{"111111", "222222"}, ids(res.Products))
	assert.Equal(t, []models.SourceKind{models.SourceEmbeddedState}, p.Calls())
}

func TestResolveRepeatedEmbeddedStillUsesAPI(t *testing.T) {
	p := provider(t, map[models.SourceKind]string{
		models.SourceEmbeddedState: `{"products":[{"id":111111,"name":"A"},{"id":222222,"name":"B"}]}`,
		models.SourceInternalAPI:   `{"products":[{"id":333333,"name":"C"},{"id":444444,"name":"D"}]}`,
	})
	ec := baseCtx
	ec.TargetCount = 4

	// The embedded records were already saved by an earlier page.
	state := tracker.New(4)
	state.Accept(records("111111", "222222"))

	res, err := newResolver().Resolve(context.Background(), p, ec, state)
	require.NoError(t, err)
	assert.Equal(t, []string{"111111", "222222", "333333", "444444"}, ids(res.Products))
	assert.Equal(t, []models.SourceKind{models.SourceEmbeddedState, models.SourceInternalAPI}, p.Calls())
	assert.Len(t, state.Accept(res.Products), 2)
}

func records(ids ...string) []models.NormalizedProduct {
	out := make([]models.NormalizedProduct, len(ids))
	for i, id := range ids {
		out[i] = models.NormalizedProduct{ProductID: id, Name: id, Currency: "GBP"}
	}
	return out
}

func TestResolveWithoutCategorySkipsAPI(t *testing.T) {
	p := provider(t, map[models.SourceKind]string{
		models.SourceEmbeddedState: `{"products":[{"id":111111,"name":"A"}]}`,
		models.SourceInternalAPI:   `{"products":[{"id":333333,"name":"C"}]}`,
	})
	ec := baseCtx
	ec.CategoryID = ""

	res, err := newResolver().Resolve(context.Background(), p, ec, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"111111"}, ids(res.Products))
	assert.Equal(t, []models.SourceKind{models.SourceEmbeddedState}, p.Calls())
}

func TestResolveFallsBackToMarkup(t *testing.T) {
	p := provider(t, map[models.SourceKind]string{
		models.SourceStructuredMarkup: `{"@type":"ItemList","itemListElement":[
			{"@type":"ListItem","item":{"@type":"Product","sku":"WJ-9001","name":"Wool Jumper","offers":{"price":"49.90"}}}
		]}`,
	}).Fail(models.SourceInternalAPI, &SourceUnavailableError{Kind: models.SourceInternalAPI, Status: 403})

	res, err := newResolver().Resolve(context.Background(), p, baseCtx, nil)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeFound, res.Outcome)
	assert.Equal(t, []string{"WJ-9001"}, ids(res.Products))

	api := res.Source(models.SourceInternalAPI)
	assert.True(t, api.Attempted)
	assert.False(t, api.Available)
	assert.Equal(t, 403, api.Status)
	assert.Contains(t, api.Error, "status 403")

	assert.Equal(t, []models.SourceKind{
		models.SourceEmbeddedState,
		models.SourceInternalAPI,
		models.SourceStructuredMarkup,
	}, p.Calls())
}

func TestResolveNoProducts(t *testing.T) {
	p := provider(t, map[models.SourceKind]string{
		models.SourceEmbeddedState: `{"formats":[{"id":1},{"id":2}]}`,
	})

	res, err := newResolver().Resolve(context.Background(), p, baseCtx, nil)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNoProducts, res.Outcome)
	assert.Empty(t, res.Products)
	assert.True(t, res.Source(models.SourceEmbeddedState).Available)
	assert.Len(t, res.Sources, 3)
}

func TestResolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := ProviderFunc(func(context.Context, models.SourceKind, models.ExtractionContext) (any, error) {
		return nil, nil
	})
	_, err := newResolver().Resolve(ctx, p, baseCtx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMerge(t *testing.T) {
	price := 10.0
	cat := "Shirts"
	embedded := []models.NormalizedProduct{
		{ProductID: "a", Name: "A-emb", Price: &price, Category: &cat, Currency: "GBP"},
		{ProductID: "b", Name: "B-emb", Currency: "GBP"},
		{ProductID: "a", Name: "A-dup", Currency: "GBP"},
	}
	apiPrice := 12.0
	api := []models.NormalizedProduct{
		{ProductID: "c", Name: "C-api", Currency: "GBP"},
		{ProductID: "a", Name: "A-api", Price: &apiPrice, Currency: "EUR"},
	}

	got := Merge(embedded, api)
	want := []models.NormalizedProduct{
		{ProductID: "a", Name: "A-api", Price: &apiPrice, Category: &cat, Currency: "EUR"},
		{ProductID: "b", Name: "B-emb", Currency: "GBP"},
		{ProductID: "c", Name: "C-api", Currency: "GBP"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}

	// Inputs are not mutated.
	assert.Equal(t, 10.0, *embedded[0].Price)
	assert.Nil(t, api[1].Category)
}

func TestMergeKeepsAPIValues(t *testing.T) {
	zero, embPrice := 0.0, 25.5
	empty, embCat := "", "Shirts"

	tests := []struct {
		name     string
		embedded models.NormalizedProduct
		api      models.NormalizedProduct
		want     models.NormalizedProduct
	}{
		{
			name:     "api zero price wins",
			embedded: models.NormalizedProduct{ProductID: "a", Name: "A", Price: &embPrice, Currency: "GBP"},
			api:      models.NormalizedProduct{ProductID: "a", Name: "A", Price: &zero, Currency: "GBP"},
			want:     models.NormalizedProduct{ProductID: "a", Name: "A", Price: &zero, Currency: "GBP"},
		},
		{
			name:     "api empty string wins",
			embedded: models.NormalizedProduct{ProductID: "a", Name: "A", Category: &embCat, Currency: "GBP"},
			api:      models.NormalizedProduct{ProductID: "a", Name: "A", Category: &empty, Currency: "GBP"},
			want:     models.NormalizedProduct{ProductID: "a", Name: "A", Category: &empty, Currency: "GBP"},
		},
		{
			name:     "embedded fills nil price",
			embedded: models.NormalizedProduct{ProductID: "a", Name: "A", Price: &embPrice, Currency: "GBP"},
			api:      models.NormalizedProduct{ProductID: "a", Name: "A", Currency: "GBP"},
			want:     models.NormalizedProduct{ProductID: "a", Name: "A", Price: &embPrice, Currency: "GBP"},
		},
		{
			name:     "read currency beats defaulted api currency",
			embedded: models.NormalizedProduct{ProductID: "a", Name: "A", Currency: "EUR"},
			api:      models.NormalizedProduct{ProductID: "a", Name: "A", Currency: "GBP", CurrencyDefaulted: true},
			want:     models.NormalizedProduct{ProductID: "a", Name: "A", Currency: "EUR"},
		},
		{
			name:     "read api currency wins",
			embedded: models.NormalizedProduct{ProductID: "a", Name: "A", Currency: "EUR"},
			api:      models.NormalizedProduct{ProductID: "a", Name: "A", Currency: "USD"},
			want:     models.NormalizedProduct{ProductID: "a", Name: "A", Currency: "USD"},
		},
		{
			name:     "both defaulted",
			embedded: models.NormalizedProduct{ProductID: "a", Name: "A", Currency: "GBP", CurrencyDefaulted: true},
			api:      models.NormalizedProduct{ProductID: "a", Name: "A", Currency: "GBP", CurrencyDefaulted: true},
			want:     models.NormalizedProduct{ProductID: "a", Name: "A", Currency: "GBP", CurrencyDefaulted: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge([]models.NormalizedProduct{tt.embedded}, []models.NormalizedProduct{tt.api})
			if diff := cmp.Diff([]models.NormalizedProduct{tt.want}, got); diff != "" {
				t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
