// Package localcache is the persistent per-user key-value cache that lets
// views render instantly before the authoritative store answers.
package localcache

import "fmt"

// ResourceKey names one logical cached resource.
type ResourceKey uint8

const (
	KeyFeed ResourceKey = iota + 1
	KeyVideos
	KeyClasses
	KeyGrades
	KeyEvents
	KeyMessages
	KeyConversations
	KeyProfiles
	KeyNotifications
	KeyChatGroups
)

var resourceNames = map[ResourceKey]string{
	KeyFeed:          "efeed",
	KeyVideos:        "videos",
	KeyClasses:       "classes",
	KeyGrades:        "grades",
	KeyEvents:        "events",
	KeyMessages:      "messages",
	KeyConversations: "conversations",
	KeyProfiles:      "profiles",
	KeyNotifications: "notifications",
	KeyChatGroups:    "chatGroups",
}

var resourceByName = func() map[string]ResourceKey {
	m := make(map[string]ResourceKey, len(resourceNames))
	for k, name := range resourceNames {
		m[name] = k
	}
	return m
}()

// AllKeys lists every resource key in declaration order.
func AllKeys() []ResourceKey {
	keys := make([]ResourceKey, 0, len(resourceNames))
	for k := KeyFeed; k <= KeyChatGroups; k++ {
		keys = append(keys, k)
	}
	return keys
}

func (k ResourceKey) String() string {
	if name, ok := resourceNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ResourceKey(%d)", uint8(k))
}

// Valid reports whether k is one of the declared keys.
func (k ResourceKey) Valid() bool {
	_, ok := resourceNames[k]
	return ok
}

// ParseResourceKey maps a stored name back to its key.
func ParseResourceKey(name string) (ResourceKey, error) {
	if k, ok := resourceByName[name]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown resource key %q", name)
}

func (k ResourceKey) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid resource key %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *ResourceKey) UnmarshalText(text []byte) error {
	parsed, err := ParseResourceKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
