package metal

// Watch starts propagating change notifications for a key or path of obj.
// Every Watch must be paired with exactly one Unwatch.
func Watch(obj *Object, path string) {
	if obj == nil || obj.destroyed {
		return
	}
	if obj.sys.path(path).isPath() {
		WatchPath(obj, path)
		return
	}
	WatchKey(obj, path)
}

// Unwatch releases one Watch of a key or path.
func Unwatch(obj *Object, path string) {
	if obj == nil || obj.destroyed {
		return
	}
	if obj.sys.path(path).isPath() {
		UnwatchPath(obj, path)
		return
	}
	UnwatchKey(obj, path)
}

// IsWatching reports whether obj currently propagates changes for key.
func IsWatching(obj *Object, key string) bool {
	return WatcherCount(obj, key) > 0
}

// WatcherCount is the number of outstanding watches on key.
func WatcherCount(obj *Object, key string) int {
	m := PeekMeta(obj)
	if m == nil {
		return 0
	}
	return m.peekWatching(key)
}

// WatchKey counts a watch on a single key, setting up its descriptor on
// the first one.
func WatchKey(obj *Object, key string) {
	m := MetaFor(obj)
	count := m.peekWatching(key)
	m.writeWatching(key, count+1)
	if count == 0 {
		if d := obj.descriptor(key); d != nil {
			d.willWatch(obj, key)
		}
	}
}

func UnwatchKey(obj *Object, key string) {
	if PeekMeta(obj) == nil {
		obj.sys.invariant("unwatching %q on %s which has no meta", key, Inspect(obj))
		return
	}
	m := MetaFor(obj)
	switch count := m.peekWatching(key); {
	case count == 1:
		m.writeWatching(key, 0)
		if d := obj.descriptor(key); d != nil {
			d.didUnwatch(obj, key)
		}
	case count > 1:
		m.writeWatching(key, count-1)
	default:
		obj.sys.invariant("unwatching %q on %s which is not watched", key, Inspect(obj))
	}
}

// WatchPath watches a dotted path by materializing its chain.
func WatchPath(obj *Object, path string) {
	m := MetaFor(obj)
	count := m.peekWatching(path)
	m.writeWatching(path, count+1)
	if count == 0 {
		m.writableChains().add(path)
	}
}

// UnwatchPath releases a WatchPath; the chain is removed with the last one.
func UnwatchPath(obj *Object, path string) {
	if PeekMeta(obj) == nil {
		obj.sys.invariant("unwatching path %q on %s which has no meta", path, Inspect(obj))
		return
	}
	m := MetaFor(obj)
	switch count := m.peekWatching(path); {
	case count == 1:
		m.writeWatching(path, 0)
		m.writableChains().remove(path)
	case count > 1:
		m.writeWatching(path, count-1)
	default:
		obj.sys.invariant("unwatching path %q on %s which is not watched", path, Inspect(obj))
	}
}

// Rewatch gives obj its own chains when it only inherits them.
func Rewatch(obj *Object) {
	m := PeekMeta(obj)
	if m == nil || m.readableChains() == nil {
		return
	}
	MetaFor(obj).writableChains()
}

// Destroy releases obj's meta. Chain nodes rooted at obj stop watching the
// intermediate objects they were attached to.
func Destroy(obj *Object) {
	m := obj.meta
	if m == nil {
		DeleteMeta(obj)
		return
	}
	DeleteMeta(obj)

	if m.chains == nil {
		return
	}
	stack := []*ChainNode{m.chains}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, key := range sortedKeys(node.children) {
			stack = append(stack, node.children[key])
		}
		if node.watching && node.object != nil {
			removeChainWatcher(node.object, node.key, node)
		}
	}
}
