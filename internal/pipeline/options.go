package pipeline

import "strings"

// ResolveOptions narrows the sire option list to the names containing the
// search text (case-insensitive, surrounding whitespace ignored) and keeps
// only the selected sires that are still offered. Both outputs preserve the
// order of their source slice.
func ResolveOptions(allSires []string, search string, current []string) (options []string, selection []string) {
	pattern := strings.ToLower(strings.TrimSpace(search))

	options = make([]string, 0, len(allSires))
	offered := make(map[string]struct{}, len(allSires))
	for _, name := range allSires {
		if pattern == "" || strings.Contains(strings.ToLower(name), pattern) {
			options = append(options, name)
			offered[name] = struct{}{}
		}
	}

	selection = RestrictSelection(current, offered)
	return options, selection
}

// RestrictSelection keeps the members of current found in offered, in order.
func RestrictSelection(current []string, offered map[string]struct{}) []string {
	selection := make([]string, 0, len(current))
	for _, name := range current {
		if _, ok := offered[name]; ok {
			selection = append(selection, name)
		}
	}
	return selection
}

// OptionSet builds the lookup RestrictSelection expects.
func OptionSet(options []string) map[string]struct{} {
	set := make(map[string]struct{}, len(options))
	for _, o := range options {
		set[o] = struct{}{}
	}
	return set
}
