package auth

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Acme", "acme"},
		{"spaces", "Acme Robotics Inc", "acme-robotics-inc"},
		{"punctuation runs", "Acme,  Inc.!!", "acme-inc"},
		{"leading and trailing", "  --Acme--  ", "acme"},
		{"digits kept", "Team 42", "team-42"},
		{"non ascii dropped", "Café Noir", "caf-noir"},
		{"nothing usable", "!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestSlugCandidates(t *testing.T) {
	got := slugCandidates("Acme")
	require.Len(t, got, maxNumberedSlugs+1)
	assert.Equal(t, "acme", got[0])
	assert.Equal(t, "acme-2", got[1])
	assert.Equal(t, "acme-9", got[maxNumberedSlugs-1])
	assert.Regexp(t, regexp.MustCompile(`^acme-[0-9a-z]{6}$`), got[maxNumberedSlugs])

	assert.Equal(t, "org", slugCandidates("???")[0])
}
