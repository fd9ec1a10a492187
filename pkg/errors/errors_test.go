package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructuredError_Error(t *testing.T) {
	assert.Equal(t, "not here", New(ErrCodeNotFound, "not here").Error())

	cause := errors.New("connection refused")
	err := Wrap(ErrCodeUnavailable, "metadata service", cause)
	assert.Equal(t, "metadata service: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestWrapWithContext(t *testing.T) {
	err := WrapWithContext(ErrCodeCyclicDependency, "cycle", nil, map[string]any{"cycle": "a -> b -> a"})
	assert.Equal(t, ErrCodeCyclicDependency, err.Code)
	assert.Equal(t, "a -> b -> a", err.Context["cycle"])
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "structured", err: New(ErrCodeTimeout, "slow"), want: ErrCodeTimeout},
		{name: "wrapped", err: fmt.Errorf("outer: %w", New(ErrCodeInvalidHint, "bad")), want: ErrCodeInvalidHint},
		{name: "plain", err: errors.New("boom"), want: ErrCodeInternal},
		{name: "nil", err: nil, want: ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestHasCode(t *testing.T) {
	inner := New(ErrCodeMetadataFetchFailed, "fetch")
	outer := Wrap(ErrCodePluginFailed, "plugin ec2", inner)

	assert.True(t, HasCode(outer, ErrCodePluginFailed))
	assert.True(t, HasCode(outer, ErrCodeMetadataFetchFailed))
	assert.True(t, HasCode(fmt.Errorf("run: %w", outer), ErrCodeMetadataFetchFailed))
	assert.False(t, HasCode(outer, ErrCodeTimeout))
	assert.False(t, HasCode(errors.New("plain"), ErrCodeInternal))
	assert.False(t, HasCode(nil, ErrCodeInternal))
}
