package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]MessageTemplate)
	registryMu sync.RWMutex
)

// RegisterTemplate adds a message template to the catalog.
// Panics if a template with the same key is already registered.
func RegisterTemplate(t MessageTemplate) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[t.Key]; exists {
		panic(fmt.Sprintf("template already registered: %s", t.Key))
	}
	if t.Label == "" {
		t.Label = t.Key
	}

	registry[t.Key] = t
}

// GetTemplate returns a message template by key.
func GetTemplate(key string) (MessageTemplate, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	t, ok := registry[key]
	return t, ok
}

// AllTemplates returns every registered template in display order.
func AllTemplates() []MessageTemplate {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]MessageTemplate, 0, len(registry))
	for _, t := range registry {
		result = append(result, t)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].Key < result[j].Key
	})

	return result
}

// TemplateCount returns the number of registered templates.
func TemplateCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}
