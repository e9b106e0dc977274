package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize_LatinWords(t *testing.T) {
	tokens := Tokenize("The Quick brown-Fox jumps!")
	assert.Equal(t, []string{"the", "quick", "brown", "fox", "jumps"}, tokens)
}

func TestTokenize_CJKPerCharacter(t *testing.T) {
	tokens := Tokenize("春江花月夜")
	assert.Equal(t, []string{"春", "江", "花", "月", "夜"}, tokens)
}

func TestTokenize_MixedScript(t *testing.T) {
	// A Latin run embedded in CJK text keeps the run as one token.
	tokens := Tokenize("第3章GoLang登场")
	assert.Equal(t, []string{"第", "3", "章", "golang", "登", "场"}, tokens)
}

func TestTokenize_KanaAndHangul(t *testing.T) {
	assert.Equal(t, []string{"ひ", "ら"}, Tokenize("ひら"))
	assert.Equal(t, []string{"カ", "タ"}, Tokenize("カタ"))
	assert.Equal(t, []string{"한", "글"}, Tokenize("한글"))
}

func TestTokenize_PunctuationAndWhitespaceStripped(t *testing.T) {
	tokens := Tokenize("  ，。！？…—  ")
	assert.Empty(t, tokens)
}

func TestTokenize_Digits(t *testing.T) {
	tokens := Tokenize("chapter12 part 3")
	assert.Equal(t, []string{"chapter12", "part", "3"}, tokens)
}
