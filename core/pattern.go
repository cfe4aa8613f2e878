package core

import (
	"crypto/sha1"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/iuboy/alhena/config"
)

// matcher 是编译后的命名空间谓词
type matcher func(ns string) bool

const maxPatternCacheSize = 64

var (
	patternCacheMu sync.RWMutex
	patternCache   = make(map[string]matcher)
)

// compilePattern 将过滤规格编译为谓词。
// 纯数据规格（Match 或 Allow/Deny）按指纹缓存；Predicate 直接透传，不缓存。
// nil 规格返回 nil，表示接受一切。
func compilePattern(spec *config.PatternSpec, source string) (matcher, error) {
	if spec == nil {
		return nil, nil
	}
	if spec.Predicate != nil {
		pred := spec.Predicate
		return func(ns string) bool { return pred(ns) }, nil
	}
	if err := spec.Validate(source); err != nil {
		return nil, err
	}

	key := patternFingerprint(spec)

	patternCacheMu.RLock()
	m, ok := patternCache[key]
	patternCacheMu.RUnlock()
	if ok {
		return m, nil
	}

	m, err := buildMatcher(spec, source)
	if err != nil {
		return nil, err
	}

	patternCacheMu.Lock()
	// 容量上限内随机淘汰一个旧项
	if len(patternCache) >= maxPatternCacheSize {
		for k := range patternCache {
			delete(patternCache, k)
			break
		}
	}
	patternCache[key] = m
	patternCacheMu.Unlock()
	return m, nil
}

func patternFingerprint(spec *config.PatternSpec) string {
	var b strings.Builder
	b.Grow(128)
	b.WriteString("match:")
	b.WriteString(strings.Join(spec.Match, ","))
	b.WriteString("|allow:")
	b.WriteString(strings.Join(spec.Allow, ","))
	b.WriteString("|deny:")
	b.WriteString(strings.Join(spec.Deny, ","))
	return fmt.Sprintf("%x", sha1.Sum([]byte(b.String())))
}

func buildMatcher(spec *config.PatternSpec, source string) (matcher, error) {
	if len(spec.Match) > 0 {
		return compileGlobSet(spec.Match, source)
	}
	allow, err := compileGlobSet(spec.Allow, source+".allow")
	if err != nil {
		return nil, err
	}
	deny, err := compileGlobSet(spec.Deny, source+".deny")
	if err != nil {
		return nil, err
	}
	return func(ns string) bool {
		if deny != nil && deny(ns) {
			return false
		}
		// allow 缺省时视为允许一切
		return allow == nil || allow(ns)
	}, nil
}

// compileGlobSet 编译一组通配模式，任一命中即通过；空集合返回 nil
func compileGlobSet(globs []string, source string) (matcher, error) {
	if len(globs) == 0 {
		return nil, nil
	}
	exact := make(map[string]struct{})
	var res []*regexp.Regexp
	wildcardAll := false
	for _, g := range globs {
		switch {
		case g == "*":
			wildcardAll = true
		case strings.Contains(g, "*"):
			re, err := regexp.Compile(globToRegexp(g))
			if err != nil {
				return nil, &ConfigurationError{Source: source, Value: g, Reason: "unresolvable namespace pattern"}
			}
			res = append(res, re)
		case g == "":
			return nil, &ConfigurationError{Source: source, Value: g, Reason: "empty namespace pattern"}
		default:
			exact[g] = struct{}{}
		}
	}
	return func(ns string) bool {
		if wildcardAll {
			return true
		}
		// 缺失的命名空间只被 "*" 接受
		if ns == "" {
			return false
		}
		if _, ok := exact[ns]; ok {
			return true
		}
		for _, re := range res {
			if re.MatchString(ns) {
				return true
			}
		}
		return false
	}, nil
}

// globToRegexp 将通配模式转为锚定正则，"*" 匹配任意字符序列
func globToRegexp(glob string) string {
	parts := strings.Split(glob, "*")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return "^" + strings.Join(quoted, ".*") + "$"
}
