package cache

import "fmt"

// GenerateKeyWithParams joins a prefix and parameters with ":".
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	key := prefix
	for _, param := range params {
		key = fmt.Sprintf("%s:%v", key, param)
	}
	return key
}

// BuildPattern returns a glob matching every key under prefix.
func BuildPattern(prefix string) string {
	return prefix + "*"
}
