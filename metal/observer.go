package metal

// ObserverFunc is called with the object and the key or path that changed.
type ObserverFunc func(target any, obj *Object, key string) error

func changeEvent(key string) string { return key + ":change" }
func beforeEvent(key string) string { return key + ":before" }

func observerListener(fn ObserverFunc) EventFunc {
	return func(target any, sender *Object, args ...any) error {
		obj := sender
		var key string
		if len(args) >= 2 {
			if o, ok := args[0].(*Object); ok {
				obj = o
			}
			key, _ = args[1].(string)
		}
		return fn(target, obj, key)
	}
}

// AddObserver calls fn after path changes on obj. path may use brace
// expansion; each expanded path is watched.
func AddObserver(obj *Object, path string, target any, method string, fn ObserverFunc) error {
	paths, err := ExpandProperties(path)
	if err != nil {
		return err
	}
	for _, p := range paths {
		AddListener(obj, changeEvent(p), target, method, observerListener(fn))
		Watch(obj, p)
	}
	return nil
}

// RemoveObserver undoes AddObserver, unwatching each path it watched.
func RemoveObserver(obj *Object, path string, target any, method string) error {
	paths, err := ExpandProperties(path)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if !hasListener(obj, changeEvent(p), target, method) {
			continue
		}
		RemoveListener(obj, changeEvent(p), target, method)
		Unwatch(obj, p)
	}
	return nil
}

// AddBeforeObserver calls fn before path changes, while the old value is
// still readable.
func AddBeforeObserver(obj *Object, path string, target any, method string, fn ObserverFunc) error {
	paths, err := ExpandProperties(path)
	if err != nil {
		return err
	}
	for _, p := range paths {
		AddListener(obj, beforeEvent(p), target, method, observerListener(fn))
		Watch(obj, p)
	}
	return nil
}

func RemoveBeforeObserver(obj *Object, path string, target any, method string) error {
	paths, err := ExpandProperties(path)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if !hasListener(obj, beforeEvent(p), target, method) {
			continue
		}
		RemoveListener(obj, beforeEvent(p), target, method)
		Unwatch(obj, p)
	}
	return nil
}

// ObserversFor lists the change observers registered for path.
func ObserversFor(obj *Object, path string) []ListenerRef {
	return ListenersFor(obj, changeEvent(path))
}

func BeforeObserversFor(obj *Object, path string) []ListenerRef {
	return ListenersFor(obj, beforeEvent(path))
}

// SuspendObserver runs fn with one observer silenced.
func SuspendObserver(obj *Object, path string, target any, method string, fn func() error) error {
	return SuspendListener(obj, changeEvent(path), target, method, fn)
}

func SuspendObservers(obj *Object, paths []string, target any, method string, fn func() error) error {
	events := make([]string, len(paths))
	for i, p := range paths {
		events[i] = changeEvent(p)
	}
	return SuspendListeners(obj, events, target, method, fn)
}

func hasListener(obj *Object, eventName string, target any, method string) bool {
	m := PeekMeta(obj)
	if m == nil {
		return false
	}
	for _, l := range m.matchingListeners(eventName) {
		if l.matches(target, method) {
			return true
		}
	}
	return false
}

func notifyObservers(obj *Object, key string) error {
	if obj.destroying {
		return nil
	}
	s := obj.sys
	eventName := changeEvent(key)
	if s.changeDepth > 0 {
		pending := s.observers.add(obj, key, eventName)
		accumulateListeners(obj, eventName, &pending.listeners)
		return nil
	}
	return SendEvent(obj, eventName, obj, key)
}

// notifyBeforeObservers fires immediately, but inside a batch each listener
// hears about a given key at most once.
func notifyBeforeObservers(obj *Object, key string) error {
	if obj.destroying {
		return nil
	}
	s := obj.sys
	eventName := beforeEvent(key)
	if s.changeDepth > 0 {
		pending := s.beforeObservers.add(obj, key, eventName)
		added := accumulateListeners(obj, eventName, &pending.listeners)
		return sendEventTo(obj, eventName, []any{obj, key}, added)
	}
	return SendEvent(obj, eventName, obj, key)
}
