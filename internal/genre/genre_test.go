package genre

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordDetector(t *testing.T) {
	d := NewKeywordDetector(nil)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"artist match", TrackText("Something in the Orange", "Zach Bryan"), []string{"country"}},
		{"case insensitive", "HUMBLE. KENDRICK LAMAR", []string{"hip-hop"}},
		{"multiple genres", "Despacito (Calvin Harris Remix) - Shakira", []string{"edm", "latin"}},
		{"unknown", "Test Song Unknown", nil},
		{"empty", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Detect(tt.text))
		})
	}
}

func TestCustomVocabulary(t *testing.T) {
	d := NewKeywordDetector(Vocabulary{"Polka": {"Accordion", ""}})
	assert.Equal(t, []string{"polka"}, d.Detect("accordion anthems"))
	assert.Nil(t, d.Detect("zach bryan"))
}

func TestIntersects(t *testing.T) {
	assert.True(t, Intersects([]string{"pop", "rock"}, []string{"rock"}))
	assert.False(t, Intersects([]string{"pop"}, []string{"country"}))
	assert.False(t, Intersects(nil, []string{"country"}))
}
