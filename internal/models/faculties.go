package models

import "slices"

// Faculties lists the faculties that own a group room.
var Faculties = []string{
	"Mexanika-riyaziyyat fakültəsi",
	"Tətbiqi riyaziyyat və kibernetika fakültəsi",
	"Fizika fakültəsi",
	"Kimya fakültəsi",
	"Biologiya fakültəsi",
	"Ekologiya və torpaqşünaslıq fakültəsi",
	"Coğrafiya fakültəsi",
	"Geologiya fakültəsi",
	"Filologiya fakültəsi",
	"Tarix fakültəsi",
	"Beynəlxalq münasibətlər və iqtisadiyyat fakültəsi",
	"Hüquq fakültəsi",
	"Jurnalistika fakültəsi",
	"İnformasiya və sənəd menecmenti fakültəsi",
	"Şərqşünaslıq fakültəsi",
	"Sosial elmlər və psixologiya fakültəsi",
}

// IsFaculty reports whether name is a known faculty.
func IsFaculty(name string) bool {
	return slices.Contains(Faculties, name)
}
