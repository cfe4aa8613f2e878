package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iuboy/alhena/config"
)

func mustCompile(t *testing.T, spec *config.PatternSpec) matcher {
	t.Helper()
	m, err := compilePattern(spec, "test.namespace")
	require.NoError(t, err)
	return m
}

func TestCompilePatternMatch(t *testing.T) {
	t.Run("nil 规格接受一切", func(t *testing.T) {
		m, err := compilePattern(nil, "test.namespace")
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("精确匹配", func(t *testing.T) {
		m := mustCompile(t, config.Pattern("auth.db"))
		assert.True(t, m("auth.db"))
		assert.False(t, m("auth.db.conn"))
		assert.False(t, m("auth"))
	})

	t.Run("通配星号匹配任意字符序列", func(t *testing.T) {
		m := mustCompile(t, config.Pattern("foo.*"))
		assert.True(t, m("foo.bar"))
		assert.True(t, m("foo.bar.baz"))
		// 前缀不含分隔符时不命中
		assert.False(t, m("foobar"))
		assert.False(t, m("foo"))

		m = mustCompile(t, config.Pattern("foo*"))
		assert.True(t, m("foobar"))
		assert.True(t, m("foo"))

		m = mustCompile(t, config.Pattern("*.critical"))
		assert.True(t, m("orders.critical"))
		assert.False(t, m("orders.critical.sub"))
	})

	t.Run("集合任一命中即通过", func(t *testing.T) {
		m := mustCompile(t, config.Pattern("auth.*", "billing"))
		assert.True(t, m("auth.session"))
		assert.True(t, m("billing"))
		assert.False(t, m("orders"))
	})

	t.Run("缺失命名空间只被单独的星号接受", func(t *testing.T) {
		all := mustCompile(t, config.Pattern("*"))
		assert.True(t, all(""))
		assert.True(t, all("anything"))

		m := mustCompile(t, config.Pattern("foo.*"))
		assert.False(t, m(""))
	})
}

func TestCompilePatternAllowDeny(t *testing.T) {
	t.Run("deny 优先于 allow", func(t *testing.T) {
		m := mustCompile(t, config.AllowDeny([]string{"foo.*"}, []string{"foo.noisy.*"}))
		assert.True(t, m("foo.bar"))
		assert.False(t, m("foo.noisy.debug"))
		assert.False(t, m("other"))
	})

	t.Run("allow 缺省时视为允许一切", func(t *testing.T) {
		m := mustCompile(t, config.AllowDeny(nil, []string{"noisy.*"}))
		assert.True(t, m("anything"))
		assert.False(t, m("noisy.chatter"))
	})
}

func TestCompilePatternErrors(t *testing.T) {
	// 空模式无法解析
	_, err := compilePattern(config.Pattern(""), "test.namespace")
	require.Error(t, err)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "test.namespace", cfgErr.Source)

	// 全空规格同样在编译期拒绝
	_, err = compilePattern(&config.PatternSpec{}, "test.namespace")
	assert.Error(t, err)
}

func TestCompilePatternPredicate(t *testing.T) {
	// 谓词每次调用重新求值，不落缓存
	calls := 0
	spec := &config.PatternSpec{Predicate: func(ns string) bool {
		calls++
		return ns == "yes"
	}}
	m := mustCompile(t, spec)
	assert.True(t, m("yes"))
	assert.False(t, m("no"))
	assert.Equal(t, 2, calls)
}

func TestPatternCacheReuse(t *testing.T) {
	// 相同指纹的规格命中同一缓存项
	m1 := mustCompile(t, config.Pattern("cache.test.*"))
	m2 := mustCompile(t, config.Pattern("cache.test.*"))
	assert.True(t, m1("cache.test.a"))
	assert.True(t, m2("cache.test.a"))

	patternCacheMu.RLock()
	_, ok := patternCache[patternFingerprint(config.Pattern("cache.test.*"))]
	patternCacheMu.RUnlock()
	assert.True(t, ok, "纯数据规格应进入缓存")
}
