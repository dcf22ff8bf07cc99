// internal/game/words.go
package game

import (
	"math/rand"
	"strings"
)

// DrawingWords is the default pool for drawing rooms: concrete, drawable
// things.
var DrawingWords = []string{
	"apple", "banana", "guitar", "mountain", "bicycle", "elephant",
	"umbrella", "rainbow", "campfire", "lighthouse", "penguin", "rocket",
	"sandwich", "tornado", "volcano", "octopus", "snowman", "castle",
	"dragon", "pirate", "robot", "spider", "cactus", "helicopter",
	"butterfly", "telescope", "pyramid", "waterfall", "scarecrow", "anchor",
	"balloon", "dinosaur", "jellyfish", "kangaroo", "ladder", "mermaid",
	"ostrich", "parachute", "skeleton", "treasure", "windmill", "zebra",
}

// GuessWords is the default pool for word rooms: a little longer on average
// so a round survives a few letter guesses.
var GuessWords = []string{
	"adventure", "birthday", "chocolate", "dinosaur", "elephant",
	"festival", "gardening", "hurricane", "invisible", "jellyfish",
	"kaleidoscope", "landscape", "magnetic", "nightmare", "orchestra",
	"parachute", "quicksand", "rectangle", "sunflower", "telephone",
	"universe", "vegetable", "wonderful", "xylophone", "yesterday",
	"zeppelin", "alphabet", "baseball", "computer", "daughter",
}

// pickWord selects uniformly at random from pool, excluding words already in
// used. Once every word has been used the set is reset so the game can keep
// going. The chosen word is recorded into used.
func pickWord(r *rand.Rand, pool []string, used map[string]struct{}) string {
	if len(pool) == 0 {
		return ""
	}
	fresh := make([]string, 0, len(pool))
	for _, w := range pool {
		if _, ok := used[w]; !ok {
			fresh = append(fresh, w)
		}
	}
	if len(fresh) == 0 {
		for w := range used {
			delete(used, w)
		}
		fresh = pool
	}
	w := fresh[r.Intn(len(fresh))]
	used[w] = struct{}{}
	return w
}

// maskWord renders the hint shown to guessers: one underscore per letter,
// space separated, with already-revealed positions filled in.
func maskWord(word string, revealed []bool) string {
	var b strings.Builder
	for i, ch := range word {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i < len(revealed) && revealed[i] {
			b.WriteRune(ch)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// normalizeGuess lowercases and trims a chat guess for comparison against
// the secret word.
func normalizeGuess(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
