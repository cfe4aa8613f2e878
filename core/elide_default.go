//go:build !alhena_prod

package core

// 默认构建不消除任何级别
const staticMinOrdinal = 0
