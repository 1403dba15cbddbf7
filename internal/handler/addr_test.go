package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEmailAddress(t *testing.T) {
	cases := []struct {
		raw      string
		expected EmailAddress
	}{
		{raw: "bob@example.com", expected: EmailAddress{Email: "bob@example.com"}},
		{raw: "Bob <bob@example.com>", expected: EmailAddress{Name: "Bob", Email: "bob@example.com"}},
		{raw: `"Bob Smith" <bob@example.com>`, expected: EmailAddress{Name: "Bob Smith", Email: "bob@example.com"}},
		{raw: "  bob@example.com  ", expected: EmailAddress{Email: "bob@example.com"}},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.expected, parseEmailAddress(tc.raw))
		})
	}
}

func TestParseEmailAddressList(t *testing.T) {
	got := parseEmailAddressList("Bob <bob@example.com>, alice@example.com, ")
	assert.Equal(t, []EmailAddress{
		{Name: "Bob", Email: "bob@example.com"},
		{Email: "alice@example.com"},
	}, got)

	assert.Nil(t, parseEmailAddressList(""))
}
