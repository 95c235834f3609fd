package term

// KeyType classifies a decoded key press.
type KeyType int

const (
	KeyNone KeyType = iota
	KeyQuit
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyBackspace
	KeyEnter
	KeyEsc
	KeyChar
)

func (k KeyType) String() string {
	switch k {
	case KeyQuit:
		return "quit"
	case KeyUp:
		return "up"
	case KeyDown:
		return "down"
	case KeyLeft:
		return "left"
	case KeyRight:
		return "right"
	case KeyBackspace:
		return "backspace"
	case KeyEnter:
		return "enter"
	case KeyEsc:
		return "esc"
	case KeyChar:
		return "char"
	}
	return "none"
}

// Key is one decoded key. Ch is set for KeyChar only.
type Key struct {
	Type KeyType
	Ch   byte
}

const (
	ctrlC = 0x03
	bs    = 0x08
	lf    = 0x0a
	cr    = 0x0d
	esc   = 0x1b
	del   = 0x7f
)

// DecodeKeys splits a chunk of terminal input into keys. Bytes that do not
// form a known key are dropped, including unrecognised CSI sequences.
func DecodeKeys(buf []byte) []Key {
	var keys []Key
	for i := 0; i < len(buf); {
		k, n := decodeKey(buf[i:])
		i += n
		if k.Type != KeyNone {
			keys = append(keys, k)
		}
	}
	return keys
}

// decodeKey decodes the key at the start of buf and reports how many bytes
// it used. n is always at least 1.
func decodeKey(buf []byte) (Key, int) {
	b := buf[0]
	switch {
	case b == ctrlC:
		return Key{Type: KeyQuit}, 1
	case b == esc:
		if len(buf) < 2 || buf[1] != '[' {
			return Key{Type: KeyEsc}, 1
		}
		return decodeCSI(buf)
	case b == del || b == bs:
		return Key{Type: KeyBackspace}, 1
	case b == lf || b == cr:
		return Key{Type: KeyEnter}, 1
	case b >= 0x20 && b < del:
		return Key{Type: KeyChar, Ch: b}, 1
	}
	return Key{}, 1
}

// decodeCSI handles "ESC [ ..." up to and including its final byte.
func decodeCSI(buf []byte) (Key, int) {
	if len(buf) == 2 {
		return Key{}, 2
	}
	switch buf[2] {
	case 'A':
		return Key{Type: KeyUp}, 3
	case 'B':
		return Key{Type: KeyDown}, 3
	case 'C':
		return Key{Type: KeyRight}, 3
	case 'D':
		return Key{Type: KeyLeft}, 3
	}
	for i := 2; i < len(buf); i++ {
		if buf[i] >= 0x40 && buf[i] <= 0x7e {
			return Key{}, i + 1
		}
	}
	return Key{}, len(buf)
}
