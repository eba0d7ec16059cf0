package domain

import "strings"

// LanguageSet is the closed set of base languages every active guide covers
// by contract. Extra languages only affect guide preference, never
// eligibility.
type LanguageSet map[string]struct{}

func NewLanguageSet(langs ...string) LanguageSet {
	s := make(LanguageSet, len(langs))
	for _, l := range langs {
		l = strings.ToLower(strings.TrimSpace(l))
		if l != "" {
			s[l] = struct{}{}
		}
	}
	return s
}

func (s LanguageSet) IsBase(lang string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(lang))]
	return ok
}

func EqualLang(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
