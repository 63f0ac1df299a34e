// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package world

// Item is an object an avatar can carry. Tags hold opaque metadata
// attached by whoever issued the item; Data is an optional payload such
// as rendered image bytes.
type Item struct {
	Name string
	Tags map[string]string
	Data []byte
}

// HasTag reports whether the item carries the given tag key.
func (it *Item) HasTag(key string) bool {
	if it == nil {
		return false
	}
	_, ok := it.Tags[key]
	return ok
}

// cloneItem returns a deep copy so snapshots cannot alias live state.
func cloneItem(it *Item) *Item {
	if it == nil {
		return nil
	}
	tags := make(map[string]string, len(it.Tags))
	for k, v := range it.Tags {
		tags[k] = v
	}
	data := make([]byte, len(it.Data))
	copy(data, it.Data)
	return &Item{Name: it.Name, Tags: tags, Data: data}
}
