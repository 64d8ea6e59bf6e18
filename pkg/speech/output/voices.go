package output

import "strings"

// SelectVoice returns the first voice whose name or id contains preference
// (case-insensitive). It returns false when nothing matches, in which case
// the engine default should be kept.
func SelectVoice(voices []Voice, preference string) (Voice, bool) {
	pref := strings.ToLower(strings.TrimSpace(preference))
	if pref == "" {
		return Voice{}, false
	}
	for _, v := range voices {
		if strings.Contains(strings.ToLower(v.Name), pref) || strings.Contains(strings.ToLower(v.ID), pref) {
			return v, true
		}
	}
	return Voice{}, false
}
