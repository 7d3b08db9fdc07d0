// internal/browser/driver/errors_test.go
package driver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		msg  string
		want Kind
	}{
		{"no such element: Unable to locate element: {\"method\":\"css selector\"}", KindNoSuchElement},
		{"request unsuccessful: stale element reference: element is not attached to the page document", KindStaleElement},
		{"No node with given id found (-32000)", KindStaleElement},
		{"element click intercepted: Element <button> is not clickable at point (10, 20)", KindNotInteractable},
		{"element not interactable", KindNotInteractable},
		{"no such frame", KindNoSuchFrame},
		{"no such alert", KindNoSuchAlert},
		{"No dialog is showing (-32602)", KindNoSuchAlert},
		{"invalid selector: An invalid or illegal selector was specified", KindInvalidArgument},
		{"connection reset by peer", KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			err := Classify("op", errors.New(tc.msg))
			assert.Equal(t, tc.want, KindOf(err))
		})
	}
}

func TestClassify_PassThrough(t *testing.T) {
	assert.NoError(t, Classify("op", nil))

	typed := Errorf(KindTimeout, "wait", "gave up")
	assert.Same(t, typed, Classify("other", typed), "typed errors are not re-wrapped")

	wrapped := fmt.Errorf("outer: %w", context.DeadlineExceeded)
	got := Classify("op", wrapped)
	assert.ErrorIs(t, got, context.DeadlineExceeded)
	assert.Equal(t, KindUnknown, KindOf(got))
}

func TestError_IsAndFormat(t *testing.T) {
	inner := &Error{Kind: KindTimeout, Elapsed: 1500 * time.Millisecond}
	err := &Error{
		Kind:    KindNoSuchElement,
		Op:      "present",
		Locator: "css=#missing",
		Elapsed: 1500 * time.Millisecond,
		Err:     inner,
	}

	assert.ErrorIs(t, err, ErrNoSuchElement)
	assert.ErrorIs(t, err, ErrTimeout, "the wrapped timeout is visible through the chain")
	assert.NotErrorIs(t, err, ErrStaleElement)
	assert.Contains(t, err.Error(), "present: no such element for css=#missing after 1.5s")

	var de *Error
	require.ErrorAs(t, fmt.Errorf("ctx: %w", err), &de)
	assert.Equal(t, "css=#missing", de.Locator)
}

func TestKindSet(t *testing.T) {
	s := NewKindSet(KindNoSuchElement, KindStaleElement)
	assert.True(t, s.Has(KindNoSuchElement))
	assert.False(t, s.Has(KindTimeout))

	s = s.With(KindNoSuchAlert).Without(KindStaleElement)
	assert.Equal(t, []Kind{KindNoSuchElement, KindNoSuchAlert}, s.Kinds())
	assert.Equal(t, "{no such element, no such alert}", s.String())

	assert.True(t, IsTransient(ErrNoSuchFrame))
	assert.False(t, IsTransient(ErrNotInteractable))
	assert.False(t, IsTransient(nil))
}

func TestChord(t *testing.T) {
	assert.Equal(t, KeyControl+"a"+KeyNull, Chord(KeyControl, "a"))
	assert.True(t, IsModifier(KeyShift))
	assert.False(t, IsModifier(KeyDelete))
}
