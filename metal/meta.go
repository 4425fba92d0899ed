package metal

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// Meta is the side table attached to an observed object.
//
// watching, deps, listeners and mixins are read through parent (the
// nearest prototype's meta) and copied into this meta on first write, per
// key. cache, chainWatchers and chains belong to source only; own chains
// are rebuilt from the parent's paths the first time they are written.
type Meta struct {
	source *Object
	parent *Meta

	watching      map[string]int
	cache         map[string]any
	listeners     map[string][]*listenerEntry
	chainWatchers *chainWatchers
	chains        *ChainNode
	deps          map[string]map[string]int
	mixins        mapset.Set[string]
}

// MetaFor returns obj's own meta, creating it when missing.
func MetaFor(obj *Object) *Meta {
	if obj.meta != nil {
		return obj.meta
	}
	var parent *Meta
	if !obj.metaDeleted {
		parent = PeekMeta(obj.proto)
	}
	obj.metaDeleted = false
	obj.meta = &Meta{source: obj, parent: parent}
	return obj.meta
}

// PeekMeta returns the meta visible from obj, which may belong to a
// prototype, or nil. It never creates one.
func PeekMeta(obj *Object) *Meta {
	if obj == nil || obj.metaDeleted {
		return nil
	}
	for cur := obj; cur != nil; cur = cur.proto {
		if cur.meta != nil {
			return cur.meta
		}
	}
	return nil
}

// DeleteMeta detaches obj's meta. Later reads see no meta at all, not even
// an inherited one.
func DeleteMeta(obj *Object) {
	obj.meta = nil
	obj.metaDeleted = true
}

func (m *Meta) Source() *Object { return m.source }

func (m *Meta) Parent() *Meta { return m.parent }

// Chains is the root of the chains owned by this meta, or nil.
func (m *Meta) Chains() *ChainNode { return m.chains }

func (m *Meta) peekWatching(key string) int {
	for cur := m; cur != nil; cur = cur.parent {
		if n, ok := cur.watching[key]; ok {
			return n
		}
	}
	return 0
}

func (m *Meta) writeWatching(key string, n int) {
	if m.watching == nil {
		m.watching = map[string]int{}
	}
	m.watching[key] = n
}

func (m *Meta) cached(key string) (any, bool) {
	v, ok := m.cache[key]
	return v, ok
}

func (m *Meta) writeCache(key string, v any) {
	if m.cache == nil {
		m.cache = map[string]any{}
	}
	m.cache[key] = v
}

func (m *Meta) evict(key string) bool {
	if _, ok := m.cache[key]; !ok {
		return false
	}
	delete(m.cache, key)
	return true
}

func (m *Meta) readableDeps(depKey string) map[string]int {
	for cur := m; cur != nil; cur = cur.parent {
		if inner, ok := cur.deps[depKey]; ok {
			return inner
		}
	}
	return nil
}

func (m *Meta) peekDeps(depKey, key string) int {
	return m.readableDeps(depKey)[key]
}

func (m *Meta) writeDeps(depKey, key string, n int) {
	if m.deps == nil {
		m.deps = map[string]map[string]int{}
	}
	inner, ok := m.deps[depKey]
	if !ok {
		inner = map[string]int{}
		for k, v := range m.readableDeps(depKey) {
			inner[k] = v
		}
		m.deps[depKey] = inner
	}
	inner[key] = n
}

func (m *Meta) hasDeps(depKey string) bool {
	for _, n := range m.readableDeps(depKey) {
		if n > 0 {
			return true
		}
	}
	return false
}

// depsOf lists the keys depending on depKey in a stable order.
func (m *Meta) depsOf(depKey string) []string {
	inner := m.readableDeps(depKey)
	keys := make([]string, 0, len(inner))
	for k, n := range inner {
		if n > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *Meta) matchingListeners(eventName string) []*listenerEntry {
	for cur := m; cur != nil; cur = cur.parent {
		if list, ok := cur.listeners[eventName]; ok {
			return list
		}
	}
	return nil
}

// writableListeners copies inherited entries so flags set on this meta
// never leak to the prototype.
func (m *Meta) writableListeners(eventName string) []*listenerEntry {
	if list, ok := m.listeners[eventName]; ok {
		return list
	}
	var own []*listenerEntry
	if m.parent != nil {
		for _, l := range m.parent.matchingListeners(eventName) {
			cp := *l
			own = append(own, &cp)
		}
	}
	if m.listeners == nil {
		m.listeners = map[string][]*listenerEntry{}
	}
	m.listeners[eventName] = own
	return own
}

func (m *Meta) setListeners(eventName string, list []*listenerEntry) {
	if m.listeners == nil {
		m.listeners = map[string][]*listenerEntry{}
	}
	m.listeners[eventName] = list
}

func (m *Meta) listenerEventNames() mapset.Set[string] {
	names := mapset.NewThreadUnsafeSet[string]()
	for cur := m; cur != nil; cur = cur.parent {
		for name, list := range cur.listeners {
			if len(list) > 0 && len(m.matchingListeners(name)) > 0 {
				names.Add(name)
			}
		}
	}
	return names
}

func (m *Meta) writableChainWatchers() *chainWatchers {
	if m.chainWatchers == nil {
		m.chainWatchers = newChainWatchers(m.source)
	}
	return m.chainWatchers
}

func (m *Meta) readableChains() *ChainNode {
	for cur := m; cur != nil; cur = cur.parent {
		if cur.chains != nil {
			return cur.chains
		}
	}
	return nil
}

func (m *Meta) writableChains() *ChainNode {
	if m.chains != nil {
		return m.chains
	}
	if m.parent != nil {
		m.chains = m.parent.writableChains().copy(m.source)
	} else {
		m.chains = newRootChainNode(m.source)
	}
	return m.chains
}

func (m *Meta) peekMixin(name string) bool {
	for cur := m; cur != nil; cur = cur.parent {
		if cur.mixins != nil && cur.mixins.Contains(name) {
			return true
		}
	}
	return false
}

func (m *Meta) writeMixin(name string) {
	if m.mixins == nil {
		m.mixins = mapset.NewThreadUnsafeSet[string]()
	}
	m.mixins.Add(name)
}
