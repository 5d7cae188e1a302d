package catalog

import "github.com/example/khutwa/pkg/models"

// alphabet is the built-in content used when no catalog file is configured
var alphabet = []models.UnitContent{
	{ID: "alif", Symbol: "أ", Name: "ألف", ExampleWord: "أسد", ImageRef: "🦁", Order: 1},
	{ID: "ba", Symbol: "ب", Name: "باء", ExampleWord: "بطة", ImageRef: "🦆", Order: 2},
	{ID: "ta", Symbol: "ت", Name: "تاء", ExampleWord: "تفاحة", ImageRef: "🍎", Order: 3},
	{ID: "tha", Symbol: "ث", Name: "ثاء", ExampleWord: "ثعلب", ImageRef: "🦊", Order: 4},
	{ID: "jim", Symbol: "ج", Name: "جيم", ExampleWord: "جمل", ImageRef: "🐪", Order: 5},
	{ID: "ha", Symbol: "ح", Name: "حاء", ExampleWord: "حصان", ImageRef: "🐴", Order: 6},
	{ID: "kha", Symbol: "خ", Name: "خاء", ExampleWord: "خروف", ImageRef: "🐑", Order: 7},
}

// Default returns the built-in alphabet catalog
func Default() *Catalog {
	c, err := New(alphabet)
	if err != nil {
		panic(err)
	}
	return c
}

// Audio cue naming convention, relative to the audio root
const (
	letterCueDir = "letters/"
	wordCueDir   = "words/"
	mascotCueDir = "mascot/mascot_"
)

// SymbolCue returns the cue key for the unit's letter pronunciation
func SymbolCue(u models.UnitContent) string {
	if u.SymbolAudioKey != "" {
		return u.SymbolAudioKey
	}
	return letterCueDir + u.ID
}

// WordCue returns the cue key for the unit's example word
func WordCue(u models.UnitContent) string {
	if u.WordAudioKey != "" {
		return u.WordAudioKey
	}
	return wordCueDir + u.ID
}

// MascotCue returns the cue key for a mascot prompt such as "intro"
func MascotCue(name string) string {
	return mascotCueDir + name
}

// UnitCues lists every cue a lesson on u may play, for preloading
func UnitCues(u models.UnitContent) []string {
	return []string{SymbolCue(u), WordCue(u)}
}
