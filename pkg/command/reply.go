package command

// Reply glyphs prefixed to formatted messages
const (
	GlyphSuccess  = "✔"
	GlyphFailure  = "✘"
	GlyphWarning  = "⚠"
	GlyphQuestion = "❓"
)

// Format renders a reply of the entity name as "<name>: message", prefixed
// with glyph and a space unless glyph is empty.
func Format(glyph, name, message string) string {
	body := "<" + name + ">: " + message
	if glyph == "" {
		return body
	}
	return glyph + " " + body
}
