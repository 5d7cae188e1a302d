package models

// UnitContent represents one teachable item (an alphabet letter) in the catalog
type UnitContent struct {
	ID             string `json:"id" yaml:"id"`
	Symbol         string `json:"symbol" yaml:"symbol"`             // Display glyph, e.g. "ب"
	Name           string `json:"name" yaml:"name"`                 // Spoken name of the letter
	ExampleWord    string `json:"example_word" yaml:"example_word"` // Word starting with the letter
	ImageRef       string `json:"image_ref" yaml:"image_ref"`       // Picture for the example word
	SymbolAudioKey string `json:"symbol_audio_key" yaml:"symbol_audio_key"`
	WordAudioKey   string `json:"word_audio_key" yaml:"word_audio_key"`
	Order          int    `json:"order" yaml:"order"` // Position in the catalog sequence
}
