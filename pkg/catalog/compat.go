package catalog

// deprecatedTypes remaps historical identifiers found in saved documents to
// their current equivalents. Entries are only ever added: removing or
// retargeting one would change how already-saved instances resolve.
var deprecatedTypes = map[string]string{
	"ISO7380": "ISO7380-1",
}

// Canonical returns the current identifier for id. Current identifiers map
// to themselves, so Canonical is idempotent.
func Canonical(id string) string {
	if cur, ok := deprecatedTypes[id]; ok {
		return cur
	}
	return id
}

// Deprecated returns a copy of the remapping table.
func Deprecated() map[string]string {
	out := make(map[string]string, len(deprecatedTypes))
	for k, v := range deprecatedTypes {
		out[k] = v
	}
	return out
}
