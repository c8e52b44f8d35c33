package splice

// Buffer is the host text field as seen from the cursor.
type Buffer interface {
	// DocumentContextBeforeInput returns the text before the cursor. Hosts
	// may return only a window of it; ok is false when nothing is known.
	DocumentContextBeforeInput() (text string, ok bool)
	// DeleteBackward removes one character before the cursor.
	DeleteBackward()
	// InsertText inserts s at the cursor.
	InsertText(s string)
}

// TextBuffer is an in-memory Buffer with a movable cursor. Positions are
// counted in runes. It is not safe for concurrent use.
type TextBuffer struct {
	text   []rune
	cursor int
}

// NewTextBuffer returns a buffer holding text with the cursor at the end.
func NewTextBuffer(text string) *TextBuffer {
	r := []rune(text)
	return &TextBuffer{text: r, cursor: len(r)}
}

func (b *TextBuffer) DocumentContextBeforeInput() (string, bool) {
	return string(b.text[:b.cursor]), true
}

// DocumentContextAfterInput returns the text after the cursor.
func (b *TextBuffer) DocumentContextAfterInput() string {
	return string(b.text[b.cursor:])
}

func (b *TextBuffer) DeleteBackward() {
	if b.cursor == 0 {
		return
	}
	b.text = append(b.text[:b.cursor-1], b.text[b.cursor:]...)
	b.cursor--
}

func (b *TextBuffer) InsertText(s string) {
	if s == "" {
		return
	}
	ins := []rune(s)
	out := make([]rune, 0, len(b.text)+len(ins))
	out = append(out, b.text[:b.cursor]...)
	out = append(out, ins...)
	out = append(out, b.text[b.cursor:]...)
	b.text = out
	b.cursor += len(ins)
}

func (b *TextBuffer) MoveLeft() {
	if b.cursor > 0 {
		b.cursor--
	}
}

func (b *TextBuffer) MoveRight() {
	if b.cursor < len(b.text) {
		b.cursor++
	}
}

func (b *TextBuffer) MoveToStart() { b.cursor = 0 }

func (b *TextBuffer) MoveToEnd() { b.cursor = len(b.text) }

// Cursor returns the cursor position in runes.
func (b *TextBuffer) Cursor() int { return b.cursor }

// Clear empties the buffer.
func (b *TextBuffer) Clear() {
	b.text = b.text[:0]
	b.cursor = 0
}

func (b *TextBuffer) String() string { return string(b.text) }
