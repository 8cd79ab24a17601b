package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeStatusErr struct{ status int }

func (e *fakeStatusErr) Error() string { return fmt.Sprintf("status %d", e.status) }
func (e *fakeStatusErr) Status() int   { return e.status }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), CodeInternal},
		{"401", &fakeStatusErr{401}, CodeAuth},
		{"403", &fakeStatusErr{403}, CodeAuth},
		{"400", &fakeStatusErr{400}, CodeStalePagination},
		{"404", &fakeStatusErr{404}, CodeStalePagination},
		{"410", &fakeStatusErr{410}, CodeStalePagination},
		{"429", &fakeStatusErr{429}, CodeTransient},
		{"500", &fakeStatusErr{500}, CodeTransient},
		{"503", &fakeStatusErr{503}, CodeTransient},
		{"unmapped status", &fakeStatusErr{418}, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifyFollowsWrapChain(t *testing.T) {
	wrapped := fmt.Errorf("fetch failed: %w", &fakeStatusErr{401})
	assert.Equal(t, CodeAuth, Classify(wrapped))
}

func TestIsAuth(t *testing.T) {
	assert.True(t, IsAuth(&fakeStatusErr{401}))
	assert.True(t, IsAuth(&fakeStatusErr{403}))
	assert.False(t, IsAuth(&fakeStatusErr{500}))
	assert.False(t, IsAuth(errors.New("boom")))
	assert.False(t, IsAuth(nil))
}
