package filters

import "github.com/wudi/pdfrename/ir/raw"

// ExtractFilters reads the Filter and DecodeParms entries from a stream
// dictionary, normalized to parallel slices.
func ExtractFilters(dict raw.Dictionary) ([]string, []raw.Dictionary) {
	var names []string
	var params []raw.Dictionary

	filterObj, ok := dict.Get(raw.NameObj{Val: "Filter"})
	if !ok {
		return names, params
	}

	switch f := filterObj.(type) {
	case raw.Name:
		names = append(names, f.Value())
	case raw.Array:
		for i := 0; i < f.Len(); i++ {
			if item, ok := f.Get(i); ok {
				if n, ok := item.(raw.Name); ok {
					names = append(names, n.Value())
				}
			}
		}
	}
	if len(names) == 0 {
		return names, params
	}

	params = make([]raw.Dictionary, len(names))
	if pObj, ok := dict.Get(raw.NameObj{Val: "DecodeParms"}); ok {
		switch p := pObj.(type) {
		case raw.Dictionary:
			params[0] = p
		case raw.Array:
			for i := 0; i < p.Len() && i < len(params); i++ {
				if item, ok := p.Get(i); ok {
					if d, ok := item.(raw.Dictionary); ok {
						params[i] = d
					}
				}
			}
		}
	}
	return names, params
}

// paramInt reads an integer entry from a DecodeParms dictionary.
func paramInt(params raw.Dictionary, key string, def int) int {
	if params == nil {
		return def
	}
	obj, ok := params.Get(raw.NameObj{Val: key})
	if !ok {
		return def
	}
	if n, ok := obj.(raw.Number); ok {
		return int(n.Int())
	}
	return def
}

// paramBool reads a boolean entry from a DecodeParms dictionary.
func paramBool(params raw.Dictionary, key string, def bool) bool {
	if params == nil {
		return def
	}
	obj, ok := params.Get(raw.NameObj{Val: key})
	if !ok {
		return def
	}
	if b, ok := obj.(raw.Boolean); ok {
		return b.Value()
	}
	return def
}
