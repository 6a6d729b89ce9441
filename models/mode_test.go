package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "emotional", want: ModeEmotional},
		{in: "study", want: ModeStudy},
		{in: "support", want: ModeSupport},
		{in: "productivity", want: ModeProductivity},
		{in: "casual", want: ModeCasual},
		{in: "Casual", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModes_AllComplete(t *testing.T) {
	all := Modes()
	require.Len(t, all, 5)
	for _, m := range all {
		assert.True(t, m.ID.Valid())
		assert.NotEmpty(t, m.Title, m.ID)
		assert.NotEmpty(t, m.Greeting, m.ID)
		assert.NotEmpty(t, m.PromptContext, m.ID)
	}

	all[0].Title = "mutated"
	assert.Equal(t, "Emotional Support", ModeEmotional.Title())
}

func TestMode_UnknownHasNoInfo(t *testing.T) {
	assert.False(t, Mode("pirate").Valid())
	assert.Empty(t, Mode("pirate").Greeting())
}
