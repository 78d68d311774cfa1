package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"budget-cart/internal/core/ai/oracle"
	"budget-cart/internal/core/cache"
	"budget-cart/internal/core/catalog"
	"budget-cart/internal/infrastructure/config"
	"budget-cart/internal/pkg/common"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	common.Logger = zap.NewNop()
	os.Exit(m.Run())
}

// fakeOracle 以 schema 名稱分流的腳本化分類服務
type fakeOracle struct {
	extractJSON  string
	matchFn      func(userContent string) string
	extractCalls int
	matchCalls   int
}

func (f *fakeOracle) Complete(_ context.Context, turns []oracle.Turn, schemaName string, _ map[string]interface{}) (string, error) {
	switch schemaName {
	case "ingredient_extraction":
		f.extractCalls++
		return f.extractJSON, nil
	case "candidate_match":
		f.matchCalls++
		return f.matchFn(turns[len(turns)-1].Content), nil
	}
	return "", fmt.Errorf("unexpected schema %s", schemaName)
}

// fakeSearcher 固定目錄的零售商搜尋
type fakeSearcher struct {
	products map[string][]catalog.Product
	errTerms map[string]error
	calls    int
}

func (f *fakeSearcher) Search(_ context.Context, term, _ string, _ int) ([]catalog.Product, error) {
	f.calls++
	if err, ok := f.errTerms[term]; ok {
		return nil, err
	}
	return f.products[term], nil
}

type fakeLocator struct{}

func (fakeLocator) LocationByZip(_ context.Context, _ string) (string, error) {
	return "store-1", nil
}

func testStore(t *testing.T) cache.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return cache.NewServiceWithClient(&config.CacheConfig{Enabled: true, RedisAddr: mr.Addr()}, client)
}

func testConfig() *config.Config {
	return &config.Config{
		Cache:  config.CacheConfig{Enabled: true},
		Search: config.SearchConfig{Limit: 20, MaxRetries: 1},
	}
}

func krogerProduct(id, title, size string, price float64) catalog.Product {
	return catalog.Product{
		ID: id, Title: title, SizeText: size,
		Price: decimal.NewFromFloat(price), Retailer: catalog.RetailerKroger,
	}
}

func walmartProduct(id, title, size string, price float64) catalog.Product {
	return catalog.Product{
		ID: id, Title: title, SizeText: size,
		Price: decimal.NewFromFloat(price), Retailer: catalog.RetailerWalmart,
	}
}

func TestRunNormalMode(t *testing.T) {
	completer := &fakeOracle{
		extractJSON: `{"ingredients":["Butter Chicken","chicken","butter"]}`,
		matchFn: func(content string) string {
			if strings.Contains(content, "Chicken Thighs") {
				return `{"matches":[{"ingredient":"chicken","indices":[0]}]}`
			}
			return `{"matches":[{"ingredient":"butter","indices":[0]}]}`
		},
	}

	// Kroger 只有雞肉，奶油留給 Walmart 補
	kroger := &fakeSearcher{products: map[string][]catalog.Product{
		"chicken": {krogerProduct("k1", "Chicken Thighs", "2 lb", 8.00)},
		"butter":  {},
	}}
	walmart := &fakeSearcher{products: map[string][]catalog.Product{
		"butter": {walmartProduct("w1", "Salted Butter", "16 oz", 3.50)},
	}}

	p := NewPipeline(testConfig(), completer, kroger, walmart, fakeLocator{}, testStore(t))

	resp, err := p.Run(context.Background(), Request{Query: "butter chicken", PostalCode: "45202"})
	require.NoError(t, err)

	assert.Equal(t, "Butter Chicken", resp.DishName)
	assert.Equal(t, []string{"chicken", "butter"}, resp.Ingredients)
	assert.Equal(t, []string{"chicken"}, resp.MatchedByRetailer.Kroger)
	assert.Equal(t, []string{"butter"}, resp.MatchedByRetailer.Walmart)
	assert.Empty(t, resp.UnmatchedIngredients)
	require.Len(t, resp.ProductsByRetailer.Kroger, 1)
	assert.Equal(t, "k1", resp.ProductsByRetailer.Kroger[0].ID)
	require.Len(t, resp.ProductsByRetailer.Walmart, 1)
	assert.Equal(t, "w1", resp.ProductsByRetailer.Walmart[0].ID)
}

func TestRunDishCacheShortCircuit(t *testing.T) {
	completer := &fakeOracle{
		extractJSON: `{"ingredients":["butter"]}`,
		matchFn: func(string) string {
			return `{"matches":[{"ingredient":"butter","indices":[0]}]}`
		},
	}
	kroger := &fakeSearcher{products: map[string][]catalog.Product{
		"butter": {krogerProduct("k1", "Salted Butter", "16 oz", 4.00)},
	}}
	walmart := &fakeSearcher{}

	p := NewPipeline(testConfig(), completer, kroger, walmart, fakeLocator{}, testStore(t))
	req := Request{Query: "butter", PostalCode: "45202"}

	first, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	extractCalls, searchCalls := completer.extractCalls, kroger.calls

	// 第二次執行整段走最終結果快取，不再碰分類服務與零售商
	second, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, extractCalls, completer.extractCalls)
	assert.Equal(t, searchCalls, kroger.calls)
}

func TestRunNonFoodQuery(t *testing.T) {
	completer := &fakeOracle{extractJSON: `{"ingredients":[]}`}
	kroger := &fakeSearcher{}
	walmart := &fakeSearcher{}

	p := NewPipeline(testConfig(), completer, kroger, walmart, fakeLocator{}, testStore(t))

	resp, err := p.Run(context.Background(), Request{Query: "xyzzy nonfood"})
	require.NoError(t, err)

	assert.Empty(t, resp.Ingredients)
	assert.Contains(t, resp.Warnings, WarnNoIngredients)
	assert.Zero(t, kroger.calls)
	assert.Zero(t, walmart.calls)
}

func TestRunBudgetMode(t *testing.T) {
	completer := &fakeOracle{
		extractJSON: `{"ingredients":["butter"]}`,
		matchFn: func(string) string {
			return `{"matches":[{"ingredient":"butter","indices":[0]}]}`
		},
	}

	// 兩邊同為 16 oz，Walmart 單位價較低
	kroger := &fakeSearcher{products: map[string][]catalog.Product{
		"butter": {krogerProduct("k1", "Kroger Butter", "16 oz", 4.00)},
	}}
	walmart := &fakeSearcher{products: map[string][]catalog.Product{
		"butter": {walmartProduct("w1", "Great Value Butter", "16 oz", 3.00)},
	}}

	p := NewPipeline(testConfig(), completer, kroger, walmart, fakeLocator{}, testStore(t))

	resp, err := p.Run(context.Background(), Request{Query: "butter", BudgetMode: true})
	require.NoError(t, err)

	assert.Empty(t, resp.MatchedByRetailer.Kroger)
	assert.Equal(t, []string{"butter"}, resp.MatchedByRetailer.Walmart)
	require.Len(t, resp.ProductsByRetailer.Walmart, 1)
	assert.Equal(t, "w1", resp.ProductsByRetailer.Walmart[0].ID)
	assert.Empty(t, resp.ProductsByRetailer.Kroger)

	// 兩家都對完整食材集合各跑一次搜尋
	assert.Equal(t, 1, kroger.calls)
	assert.Equal(t, 1, walmart.calls)
}

func TestRunSearchFailureIsolation(t *testing.T) {
	completer := &fakeOracle{
		extractJSON: `{"ingredients":["Curry","chicken","butter"]}`,
		matchFn: func(string) string {
			return `{"matches":[{"ingredient":"chicken","indices":[0]}]}`
		},
	}

	kroger := &fakeSearcher{
		products: map[string][]catalog.Product{
			"chicken": {krogerProduct("k1", "Chicken Thighs", "2 lb", 8.00)},
		},
		errTerms: map[string]error{"butter": fmt.Errorf("upstream 500")},
	}
	walmart := &fakeSearcher{errTerms: map[string]error{"butter": fmt.Errorf("upstream 500")}}

	p := NewPipeline(testConfig(), completer, kroger, walmart, fakeLocator{}, testStore(t))

	resp, err := p.Run(context.Background(), Request{Query: "curry"})
	require.NoError(t, err)

	// 單一食材的搜尋失敗只降級該食材，其他照常配對
	assert.Contains(t, resp.Warnings, WarnProductSearchFailed)
	assert.Equal(t, []string{"chicken"}, resp.MatchedByRetailer.Kroger)
	assert.Equal(t, []string{"butter"}, resp.UnmatchedIngredients)
}
