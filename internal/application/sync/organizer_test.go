package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractOrganizer(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        string
	}{
		{"name and phone", "Anna Svensson - 070 123 45 67\nTar med musik", "Anna Svensson"},
		{"plus prefixed phone", "Björn - +46701234567", "Björn"},
		{"no phone part", "Fri träning hela kvällen", ""},
		{"pattern on second line only", "Välkomna!\nAnna - 0701234567", ""},
		{"empty description", "", ""},
		{"crlf line ending", "Carin - 0731 11 22 33\r\nmer text", "Carin"},
		{"dash without number", "Anna - imorgon", ""},
		{"surrounding whitespace in name", "  Anna  - 070123", "Anna"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractOrganizer(tt.description))
		})
	}
}
