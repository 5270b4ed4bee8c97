package contains

import (
	"testing"
)

func TestString(t *testing.T) {
	testCases := []struct {
		items []string
		s     string
		out   bool
	}{
		{
			items: []string{"a", "b"},
			s:     "a",
			out:   true,
		},
		{
			items: []string{"a", "b"},
			s:     "c",
			out:   false,
		},
		{
			items: []string{},
			s:     "a",
			out:   false,
		},
		{
			items: nil,
			s:     "",
			out:   false,
		},
	}
	for i, testCase := range testCases {
		if expected, actual := testCase.out, String(testCase.items, testCase.s); actual != expected {
			t.Errorf("[i=%v] Expected result=%v but actual=%v", i, expected, actual)
		}
	}
}
