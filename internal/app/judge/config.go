package judge

import (
	"time"
)

type Config struct {
	FunctionName string
	Timeout      time.Duration
}
