package wp_test

import (
	"bufio"
	"strings"
	"testing"

	"i4.energy/across/tk5000/wp"
)

func TestSplitter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Version response",
			input:    "$OK:VER=2.1\r\n",
			expected: []string{"$OK:VER=2.1"},
		},
		{
			name:     "Error response",
			input:    "$ERR:PWD=1\r\n",
			expected: []string{"$ERR:PWD=1"},
		},
		{
			name:     "Record download",
			input:    "$OK:DLREC=2\r\n0,2016-01-01,12.34,56.78\r\n1,2016-01-02,12.35,56.79\r\n$MSG:DLREC done\r\n",
			expected: []string{"$OK:DLREC=2", "0,2016-01-01,12.34,56.78", "1,2016-01-02,12.35,56.79", "$MSG:DLREC done"},
		},
		{
			name:     "Bare LF endings",
			input:    "$OK:VER=2.1\n$OK:EMSMS=+4912345\n",
			expected: []string{"$OK:VER=2.1", "$OK:EMSMS=+4912345"},
		},
		{
			name:     "Empty lines handling",
			input:    "\r\n\r\n$OK:VER=2.1\r\n\r\n",
			expected: []string{"", "", "$OK:VER=2.1", ""},
		},
		// EOF scenarios - testing atEOF functionality
		{
			name:     "Incomplete line at EOF",
			input:    "$OK:VER=2.1\r\n$OK:GETLOCATION=12.34",
			expected: []string{"$OK:VER=2.1", "$OK:GETLOCATION=12.34"},
		},
		{
			name:     "Dangling CR at EOF",
			input:    "$OK:VER=2.1\r",
			expected: []string{"$OK:VER=2.1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tokens []string
			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			scanner.Split(wp.Splitter)

			for scanner.Scan() {
				tokens = append(tokens, scanner.Text())
			}

			if err := scanner.Err(); err != nil {
				t.Fatalf("Scanner error: %v", err)
			}

			if len(tokens) != len(tt.expected) {
				t.Fatalf("Expected %d tokens, got %d.\nExpected: %v\nGot: %v",
					len(tt.expected), len(tokens), tt.expected, tokens)
			}

			for i, expected := range tt.expected {
				if tokens[i] != expected {
					t.Errorf("Token %d: expected %q, got %q", i, expected, tokens[i])
				}
			}
		})
	}
}
