package memory

import (
	"strings"

	"github.com/nitzanm/kombu"
)

type binding struct {
	queue, key string
}

// matches reports whether a message published with key reaches a binding of an exchange of typ.
func (b binding) matches(typ kombu.ExchangeType, key string) bool {
	switch typ {
	case kombu.ExchangeTypeFanout, kombu.ExchangeTypeHeaders:
		return true
	case kombu.ExchangeTypeTopic:
		return topicMatch(strings.Split(b.key, "."), strings.Split(key, "."))
	default:
		return b.key == key
	}
}

// topicMatch matches routing key words against binding pattern words,
// `*` matching exactly one word and `#` zero or more.
func topicMatch(pattern, words []string) bool {
	if len(pattern) == 0 {
		return len(words) == 0
	}

	switch pattern[0] {
	case "#":
		for i := 0; i <= len(words); i++ {
			if topicMatch(pattern[1:], words[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(words) > 0 && topicMatch(pattern[1:], words[1:])
	}
	return len(words) > 0 && pattern[0] == words[0] && topicMatch(pattern[1:], words[1:])
}
