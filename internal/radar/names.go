package radar

import "strings"

// GlacierOf extracts the glacier key from a radargram key. Keys follow the
// processing pipeline's <glacier>-<date>-<file> convention.
func GlacierOf(radarKey string) string {
	glacier, _, _ := strings.Cut(radarKey, "-")
	return glacier
}

// NiceName renders a glacier key for display. Norwegian names that lose
// their special characters in keys are restored explicitly; everything else
// is title-cased word by word.
func NiceName(glacierKey string) string {
	switch glacierKey {
	case "dronbreen":
		return "Drønbreen"
	case "vallakrabreen":
		return "Vallåkrabreen"
	case "moysalbreen":
		return "Møysalbreen"
	}
	parts := strings.Split(strings.ReplaceAll(glacierKey, "_", " "), " ")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}
