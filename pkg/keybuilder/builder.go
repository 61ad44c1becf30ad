package keybuilder

import (
	"fmt"
)

const (
	Redis string = "redis"
	Rules string = "rules"
)

func RedisActiveRulesKeyBuild() string {
	return fmt.Sprintf("%s:%s:active", Redis, Rules)
}
