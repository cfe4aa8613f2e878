//go:build alhena_prod

package core

// alhena_prod 构建整体移除 trace/debug 调用点
const staticMinOrdinal = 2
