package metal

import (
	"errors"
	"slices"
)

// chainWatchers indexes, per key of one object, the chain nodes that must
// hear about changes to that key.
type chainWatchers struct {
	obj   *Object
	nodes map[string][]*ChainNode
}

func newChainWatchers(obj *Object) *chainWatchers {
	return &chainWatchers{obj: obj, nodes: map[string][]*ChainNode{}}
}

func (cw *chainWatchers) add(key string, node *ChainNode) {
	cw.nodes[key] = append(cw.nodes[key], node)
}

func (cw *chainWatchers) remove(key string, node *ChainNode) bool {
	nodes := cw.nodes[key]
	i := slices.Index(nodes, node)
	if i < 0 {
		return false
	}
	nodes = slices.Delete(nodes, i, i+1)
	if len(nodes) == 0 {
		delete(cw.nodes, key)
	} else {
		cw.nodes[key] = nodes
	}
	return true
}

func (cw *chainWatchers) has(key string, node *ChainNode) bool {
	return slices.Contains(cw.nodes[key], node)
}

func (cw *chainWatchers) revalidateAll() {
	for _, key := range sortedKeys(cw.nodes) {
		cw.notify(key, true, nil)
	}
}

func (cw *chainWatchers) revalidate(key string) {
	cw.notify(key, true, nil)
}

type affectedPath struct {
	root any
	path string
}

// notify walks every node watching key. The affected root paths are
// collected first and reported to callback only after all nodes have been
// revalidated, so callbacks read settled chains.
func (cw *chainWatchers) notify(key string, revalidate bool, callback func(obj *Object, path string) error) error {
	nodes := slices.Clone(cw.nodes[key])
	if len(nodes) == 0 {
		return nil
	}
	var affected *[]affectedPath
	if callback != nil {
		affected = &[]affectedPath{}
	}
	for _, node := range nodes {
		node.notify(revalidate, affected)
	}
	if callback == nil {
		return nil
	}
	var errs []error
	for _, a := range *affected {
		root, ok := a.root.(*Object)
		if !ok || root == nil {
			continue
		}
		if err := callback(root, a.path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func addChainWatcher(obj *Object, key string, node *ChainNode) {
	if obj == nil || obj.destroyed {
		return
	}
	m := MetaFor(obj)
	m.writableChainWatchers().add(key, node)
	WatchKey(obj, key)
}

func removeChainWatcher(obj *Object, key string, node *ChainNode) {
	if obj == nil {
		return
	}
	m := obj.meta
	if m == nil || m.chainWatchers == nil {
		return
	}
	if !m.chainWatchers.remove(key, node) {
		obj.sys.invariant("chain node %q is not watching %s", key, Inspect(obj))
		return
	}
	UnwatchKey(obj, key)
}

// ChainNode is one segment of a watched path. The root node holds the
// watched object; every other node watches its key on whatever object its
// parent currently resolves to, and moves that watch when the parent's
// value is replaced.
type ChainNode struct {
	// non-owning; cleared when the node is destroyed
	parent *ChainNode
	key    string

	watching bool
	object   *Object
	value    any

	children map[string]*ChainNode
	count    int
	paths    map[string]int
}

func newRootChainNode(obj *Object) *ChainNode {
	return &ChainNode{value: obj}
}

func newChainNode(parent *ChainNode, key string) *ChainNode {
	n := &ChainNode{parent: parent, key: key, watching: true}
	if o, ok := parent.Value().(*Object); ok && o != nil {
		n.object = o
		addChainWatcher(o, key, n)
	}
	return n
}

func (n *ChainNode) Key() string { return n.key }

// Count is the number of watched paths running through this node.
func (n *ChainNode) Count() int { return n.count }

func (n *ChainNode) Child(key string) *ChainNode { return n.children[key] }

// Value is the node's current value, resolved lazily from the parent.
func (n *ChainNode) Value() any {
	if n.value == nil && n.watching && n.parent != nil {
		n.value = lazyGet(n.parent.Value(), n.key)
	}
	return n.value
}

// lazyGet reads key for a chain without forcing cacheable computed
// properties: an uncomputed value stays unknown until someone reads it.
func lazyGet(v any, key string) any {
	obj, ok := v.(*Object)
	if !ok {
		return getValue(v, key)
	}
	if obj == nil || obj.prototype || obj.destroyed {
		return nil
	}
	d := obj.descriptor(key)
	if d == nil || !d.cacheable() {
		return Get(obj, key)
	}
	if obj.meta == nil {
		return nil
	}
	cached, _ := obj.meta.cached(key)
	return cached
}

func (n *ChainNode) destroy() {
	if n.watching {
		if n.object != nil {
			removeChainWatcher(n.object, n.key, n)
		}
		n.watching = false
	}
	n.parent = nil
}

// copy re-roots every watched path of n onto obj.
func (n *ChainNode) copy(obj *Object) *ChainNode {
	ret := newRootChainNode(obj)
	for _, path := range sortedKeys(n.paths) {
		if n.paths[path] <= 0 {
			continue
		}
		ret.add(path)
	}
	return ret
}

func (n *ChainNode) add(path string) {
	if n.paths == nil {
		n.paths = map[string]int{}
	}
	n.paths[path]++
	n.chain(FirstKey(path), TailPath(path))
}

func (n *ChainNode) remove(path string) {
	if n.paths[path] <= 0 {
		if n.value != nil {
			if o, ok := n.value.(*Object); ok {
				o.sys.invariant("removing unwatched path %q", path)
			}
		}
		return
	}
	n.paths[path]--
	n.unchain(FirstKey(path), TailPath(path))
}

func (n *ChainNode) chain(key, path string) {
	if n.children == nil {
		n.children = map[string]*ChainNode{}
	}
	node, ok := n.children[key]
	if !ok {
		node = newChainNode(n, key)
		n.children[key] = node
	}
	node.count++
	if path != "" {
		node.chain(FirstKey(path), TailPath(path))
	}
}

func (n *ChainNode) unchain(key, path string) {
	node, ok := n.children[key]
	if !ok {
		return
	}
	if path != "" {
		node.unchain(FirstKey(path), TailPath(path))
	}
	node.count--
	if node.count <= 0 {
		delete(n.children, key)
		node.destroy()
	}
}

// notify is called when the key this node watches changed on its object.
// With revalidate set the node re-resolves its parent's value first and, if
// the object in that position was replaced, moves its watch to the new one.
func (n *ChainNode) notify(revalidate bool, affected *[]affectedPath) {
	if revalidate && n.watching {
		parentValue, _ := n.parent.Value().(*Object)
		if parentValue != n.object {
			if n.object != nil {
				removeChainWatcher(n.object, n.key, n)
			}
			n.object = nil
			if parentValue != nil {
				n.object = parentValue
				addChainWatcher(parentValue, n.key, n)
			}
		}
		n.value = nil
	}

	for _, key := range sortedKeys(n.children) {
		if child, ok := n.children[key]; ok {
			child.notify(revalidate, affected)
		}
	}

	if affected != nil && n.parent != nil {
		n.parent.populateAffected(n.key, 1, affected)
	}
}

func (n *ChainNode) populateAffected(path string, depth int, affected *[]affectedPath) {
	if n.key != "" {
		path = n.key + "." + path
	}
	if n.parent != nil {
		n.parent.populateAffected(path, depth+1, affected)
	} else if depth > 1 {
		*affected = append(*affected, affectedPath{root: n.Value(), path: path})
	}
}

// FinishChains revalidates every chain watching obj and gives obj its own
// chains when it inherits watched paths from a prototype. Call it once an
// object is fully set up.
func FinishChains(obj *Object) {
	if PeekMeta(obj) == nil {
		return
	}
	m := MetaFor(obj)
	if m.chainWatchers != nil {
		m.chainWatchers.revalidateAll()
	}
	if m.readableChains() != nil {
		m.writableChains()
	}
}

// OverrideChains revalidates chains through key after key was redefined.
func OverrideChains(obj *Object, key string) {
	if obj.meta != nil && obj.meta.chainWatchers != nil {
		obj.meta.chainWatchers.revalidate(key)
	}
}
