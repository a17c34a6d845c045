package contract

import (
	"errors"
	"fmt"
	"testing"
)

func TestRenderError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil",
			err:  nil,
			want: "",
		},
		{
			name: "provider",
			err:  &ProviderError{Stage: StageFirstCall, Err: errors.New("connection refused")},
			want: "[Provider API Error] connection refused",
		},
		{
			name: "wrapped provider",
			err:  fmt.Errorf("turn: %w", &ProviderError{Stage: StageSecondCall, Err: errors.New("429 rate limited")}),
			want: "[Provider API Error] 429 rate limited",
		},
		{
			name: "first call no choices",
			err:  &EmptyResponseError{Stage: StageFirstCall, Reason: EmptyNoChoices, Attempts: 1},
			want: "[Error] No response from the model",
		},
		{
			name: "first call nil message",
			err:  &EmptyResponseError{Stage: StageFirstCall, Reason: EmptyNilMessage, Attempts: 1},
			want: "[Error] response_message is None",
		},
		{
			name: "second call empty content after retry",
			err:  &EmptyResponseError{Stage: StageSecondCall, Reason: EmptyNoContent, Attempts: 2},
			want: "[Error] Final message is None (retry also failed)",
		},
		{
			name: "second call no choices after retry",
			err:  &EmptyResponseError{Stage: StageSecondCall, Reason: EmptyNoChoices, Attempts: 2},
			want: "[Error] No second response from the model (retry)",
		},
		{
			name: "other",
			err:  errors.New("boom"),
			want: "[Error] boom",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := RenderError(tc.err); got != tc.want {
				t.Fatalf("RenderError() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestProviderErrorMatchesSentinel(t *testing.T) {
	t.Parallel()

	cause := errors.New("timeout")
	err := &ProviderError{Stage: StageFirstCall, Err: cause}
	if !errors.Is(err, ErrModelInvoke) {
		t.Fatal("expected ProviderError to match ErrModelInvoke")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected ProviderError to match its cause")
	}
}

func TestToolResultJSON(t *testing.T) {
	t.Parallel()

	got := ToolResult{Success: false, Error: "Function 'x' is not implemented."}.JSON()
	want := `{"success":false,"error":"Function 'x' is not implemented."}`
	if got != want {
		t.Fatalf("JSON() = %s, want %s", got, want)
	}
}
