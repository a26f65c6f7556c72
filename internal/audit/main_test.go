package audit_test

import "agritrace.io/agritrace/internal/pkg/logger"

func init() {
	_ = logger.Init("error", "json")
}

func i64(v int64) *int64 { return &v }

func str(s string) *string { return &s }
