package fits

import (
	"math"
	"strings"

	"github.com/astrogo/fitsio"
)

// Card is a single 80-column header record. Value holds one of string, bool,
// int64, float64, or nil for commentary cards (COMMENT, HISTORY, blank keys).
type Card struct {
	Key     string
	Value   any
	Comment string
}

// IsCommentary reports whether the card carries free text instead of a value.
func (c Card) IsCommentary() bool {
	switch c.Key {
	case "COMMENT", "HISTORY", "":
		return true
	}
	return false
}

// Header is an ordered list of cards. Keyed cards are unique; commentary
// cards may repeat.
type Header struct {
	cards []Card
}

// NewHeader returns an empty header.
func NewHeader() *Header {
	return &Header{}
}

// Cards returns the cards in file order.
func (h *Header) Cards() []Card {
	return h.cards
}

// Len returns the number of cards.
func (h *Header) Len() int {
	return len(h.cards)
}

// Clone returns a deep copy of the header.
func (h *Header) Clone() *Header {
	out := &Header{cards: make([]Card, len(h.cards))}
	copy(out.cards, h.cards)
	return out
}

func (h *Header) index(key string) int {
	key = strings.ToUpper(key)
	for i, c := range h.cards {
		if c.Key == key {
			return i
		}
	}
	return -1
}

// Get returns the first card with the given key.
func (h *Header) Get(key string) (Card, bool) {
	if i := h.index(key); i >= 0 {
		return h.cards[i], true
	}
	return Card{}, false
}

// Has reports whether a keyed card exists.
func (h *Header) Has(key string) bool {
	return h.index(key) >= 0
}

// Set replaces the value of an existing keyed card or appends a new one.
func (h *Header) Set(key string, value any, comment string) {
	key = strings.ToUpper(key)
	card := Card{Key: key, Value: normalizeValue(value), Comment: comment}
	if i := h.index(key); i >= 0 && !card.IsCommentary() {
		h.cards[i] = card
		return
	}
	h.cards = append(h.cards, card)
}

// Delete removes every card with the given key.
func (h *Header) Delete(key string) {
	key = strings.ToUpper(key)
	kept := h.cards[:0]
	for _, c := range h.cards {
		if c.Key != key {
			kept = append(kept, c)
		}
	}
	h.cards = kept
}

// AddComment appends a COMMENT card.
func (h *Header) AddComment(text string) {
	h.cards = append(h.cards, Card{Key: "COMMENT", Comment: text})
}

// AddHistory appends a HISTORY card.
func (h *Header) AddHistory(text string) {
	h.cards = append(h.cards, Card{Key: "HISTORY", Comment: text})
}

// Comments returns the text of all COMMENT cards in order.
func (h *Header) Comments() []string {
	var out []string
	for _, c := range h.cards {
		if c.Key == "COMMENT" {
			out = append(out, c.Comment)
		}
	}
	return out
}

// Float returns a numeric keyword as float64.
func (h *Header) Float(key string) (float64, bool) {
	c, ok := h.Get(key)
	if !ok {
		return 0, false
	}
	switch v := c.Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Int returns an integer keyword.
func (h *Header) Int(key string) (int, bool) {
	c, ok := h.Get(key)
	if !ok {
		return 0, false
	}
	switch v := c.Value.(type) {
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	}
	return 0, false
}

// String returns a string keyword with trailing blanks removed.
func (h *Header) String(key string) (string, bool) {
	c, ok := h.Get(key)
	if !ok {
		return "", false
	}
	s, ok := c.Value.(string)
	return strings.TrimRight(s, " "), ok
}

// Bool returns a logical keyword.
func (h *Header) Bool(key string) (bool, bool) {
	c, ok := h.Get(key)
	if !ok {
		return false, false
	}
	b, ok := c.Value.(bool)
	return b, ok
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}

// commentaryWidth is the text width of a COMMENT or HISTORY record.
const commentaryWidth = 72

// wrapCommentary splits text into record-sized lines at word boundaries.
func wrapCommentary(text string) []string {
	var out []string
	for len(text) > commentaryWidth {
		cut := strings.LastIndexByte(text[:commentaryWidth+1], ' ')
		if cut <= 0 {
			cut = commentaryWidth
		}
		out = append(out, strings.TrimRight(text[:cut], " "))
		text = strings.TrimLeft(text[cut:], " ")
	}
	return append(out, text)
}

// headerFrom copies the cards of a decoded HDU header in file order.
func headerFrom(src *fitsio.Header) *Header {
	h := NewHeader()
	for i := range src.Keys() {
		c := src.Card(i)
		key := strings.ToUpper(strings.TrimSpace(c.Name))
		card := Card{Key: key, Comment: strings.TrimSpace(c.Comment)}
		if card.IsCommentary() {
			if s, ok := c.Value.(string); ok && card.Comment == "" {
				card.Comment = strings.TrimSpace(s)
			}
			if key == "" && card.Comment == "" {
				continue
			}
		} else {
			card.Value = normalizeValue(c.Value)
		}
		h.cards = append(h.cards, card)
	}
	return h
}

// fitsioCards converts the non-structural cards for encoding.
func (h *Header) fitsioCards() []fitsio.Card {
	var out []fitsio.Card
	for _, c := range h.cards {
		if isStructural(c.Key) {
			continue
		}
		if c.IsCommentary() {
			for _, line := range wrapCommentary(c.Comment) {
				// Commentary with empty text is dropped by the encoder.
				if line == "" {
					line = " "
				}
				out = append(out, fitsio.Card{Name: c.Key, Comment: line})
			}
			continue
		}
		v := c.Value
		if n, ok := v.(int64); ok {
			v = int(n)
		}
		out = append(out, fitsio.Card{Name: c.Key, Value: v, Comment: c.Comment})
	}
	return out
}

