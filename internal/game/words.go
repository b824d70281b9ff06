package game

import (
	"bufio"
	"math/rand"
	"os"
)

// WordProvider hands out secret words for turns. Uniformly random;
// repeats are allowed.
type WordProvider interface {
	NextWord() string
}

// defaultWords backs rooms when no word file is configured.
var defaultWords = []string{
	"apple", "bicycle", "candle", "dolphin", "elephant", "firetruck",
	"guitar", "hamburger", "igloo", "jellyfish", "kangaroo", "lighthouse",
	"mountain", "newspaper", "octopus", "penguin", "rainbow", "sailboat",
	"telescope", "umbrella", "volcano", "windmill", "xylophone", "zebra",
	"anchor", "butterfly", "castle", "dragon", "envelope", "feather",
}

type WordList struct {
	words []string
}

func NewWordList(words []string) *WordList {
	if len(words) == 0 {
		words = defaultWords
	}
	return &WordList{words: words}
}

// LoadWordFile reads a file with one word per line.
func LoadWordFile(path string) (*WordList, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var words []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			words = append(words, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewWordList(words), nil
}

func (w *WordList) NextWord() string {
	return w.words[rand.Intn(len(w.words))]
}
