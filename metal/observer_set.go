package metal

import "errors"

type pendingObservation struct {
	sender    *Object
	key       string
	eventName string
	listeners []*listenerEntry
}

// observerSet collects changes made inside a batch, one entry per
// (object, key) no matter how often the key changed.
type observerSet struct {
	index   map[*Object]map[string]int
	entries []*pendingObservation
}

func newObserverSet() *observerSet {
	return &observerSet{index: map[*Object]map[string]int{}}
}

func (o *observerSet) add(sender *Object, key, eventName string) *pendingObservation {
	keys, ok := o.index[sender]
	if !ok {
		keys = map[string]int{}
		o.index[sender] = keys
	}
	if i, ok := keys[key]; ok {
		return o.entries[i]
	}
	p := &pendingObservation{sender: sender, key: key, eventName: eventName}
	o.entries = append(o.entries, p)
	keys[key] = len(o.entries) - 1
	return p
}

func (o *observerSet) len() int { return len(o.entries) }

func (o *observerSet) clear() {
	o.index = map[*Object]map[string]int{}
	o.entries = nil
}

// flush delivers every pending change once, in the order the keys first
// changed. Destroyed senders are skipped.
func (o *observerSet) flush() error {
	entries := o.entries
	o.clear()
	var errs []error
	for _, p := range entries {
		if p.sender.destroying || p.sender.destroyed {
			continue
		}
		if err := sendEventTo(p.sender, p.eventName, []any{p.sender, p.key}, p.listeners); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
