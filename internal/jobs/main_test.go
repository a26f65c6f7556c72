package jobs

import "agritrace.io/agritrace/internal/pkg/logger"

func init() {
	_ = logger.Init("error", "json")
}
