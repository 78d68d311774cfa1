package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "butter chicken", NormalizeQuery("  Butter   Chicken "))
	assert.Equal(t, "butter chicken", NormalizeQuery("butter\tchicken"))
}

func TestOracleKey(t *testing.T) {
	// 大小寫與空白差異不該產生不同的鍵
	assert.Equal(t, OracleKey("Butter Chicken"), OracleKey("  butter   chicken "))
	assert.NotEqual(t, OracleKey("butter chicken"), OracleKey("butter chicken masala"))
}

func TestMatchFingerprint(t *testing.T) {
	ingredients := []string{"butter", "chicken"}
	titles := []string{"Salted Butter", "Chicken Thighs"}

	t.Run("same inputs same fingerprint", func(t *testing.T) {
		assert.Equal(t,
			MatchFingerprint(ingredients, titles, 2),
			MatchFingerprint(ingredients, titles, 2),
		)
	})

	t.Run("pick cap is part of the fingerprint", func(t *testing.T) {
		assert.NotEqual(t,
			MatchFingerprint(ingredients, titles, 1),
			MatchFingerprint(ingredients, titles, 2),
		)
	})

	t.Run("length prefixing prevents concatenation collisions", func(t *testing.T) {
		// ["ab","c"] 與 ["a","bc"] 串接後相同，指紋必須不同
		assert.NotEqual(t,
			MatchFingerprint([]string{"ab", "c"}, nil, 2),
			MatchFingerprint([]string{"a", "bc"}, nil, 2),
		)
	})
}

func TestDishKey(t *testing.T) {
	t.Run("version changes the key", func(t *testing.T) {
		assert.NotEqual(t,
			DishKey("v1", "butter chicken", "loc1", 2, false),
			DishKey("v2", "butter chicken", "loc1", 2, false),
		)
	})

	t.Run("budget mode changes the key", func(t *testing.T) {
		assert.NotEqual(t,
			DishKey("v1", "butter chicken", "loc1", 2, false),
			DishKey("v1", "butter chicken", "loc1", 2, true),
		)
	})

	t.Run("location changes the key", func(t *testing.T) {
		assert.NotEqual(t,
			DishKey("v1", "butter chicken", "loc1", 2, false),
			DishKey("v1", "butter chicken", "loc2", 2, false),
		)
	})
}
