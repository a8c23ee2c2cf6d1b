package classifier

import "strings"

// IsRelevant 消息中出现任一交易所名称(忽略大小写)即认为相关
func IsRelevant(message string, names []string) bool {
	lower := strings.ToLower(message)
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}
