// Package metal is a key-value observation engine.
//
// Objects are property bags with optional prototypes. Reading and writing
// goes through Get and Set, which understand dotted paths ("a.b.c"). A key
// or path becomes observable once it is watched, either directly through
// Watch or by adding an observer. Watching a path builds a chain of nodes,
// one per segment, that follows the objects currently sitting along the
// path; replacing any of them re-roots the chain and notifies the path.
//
// Computed properties cache their value until a change reaches one of
// their dependent keys. Changes made between BeginPropertyChanges and
// EndPropertyChanges reach change observers once per (object, key).
//
// Everything here is single-threaded. State that has to be shared between
// objects lives on a System; Default is used unless an object was created
// from another one.
package metal
