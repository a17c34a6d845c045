package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
)

var echoDescriptor = Descriptor{
	Name:        "echo",
	Description: "echo the message",
	Parameters: []Parameter{
		{Name: "message", Type: "string", Required: true},
		{Name: "tags", Type: "array", Items: "string"},
	},
}

func echoExecutor(seen *map[string]any) Executor {
	return func(_ context.Context, _ string, args map[string]any) (contractx.ToolResult, error) {
		*seen = args
		return contractx.ToolResult{Success: true, Payload: args["message"]}, nil
	}
}

func TestRegistrySpecsKeepRegistrationOrder(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, string, map[string]any) (contractx.ToolResult, error) {
		return contractx.ToolResult{Success: true}, nil
	}
	reg, err := NewRegistry([]Registration{
		{Descriptor: MachineInfoDescriptor, Executor: noop},
		{Descriptor: ManualSearchDescriptor, Executor: noop},
		{Descriptor: NotifyStaffDescriptor, Executor: noop},
	})
	require.NoError(t, err)

	specs := reg.Specs()
	require.Len(t, specs, 3)
	assert.Equal(t, ToolGetMachineInfo, specs[0].Name)
	assert.Equal(t, ToolSearchManual, specs[1].Name)
	assert.Equal(t, ToolNotifyStaff, specs[2].Name)

	params := specs[2].Parameters
	assert.Equal(t, "object", params["type"])
	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)
	recipients, ok := props["recipientUserIds"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "array", recipients["type"])
	assert.Equal(t, map[string]any{"type": "string"}, recipients["items"])
	assert.Len(t, params["required"], 8)
}

func TestRegistryRejectsBadDescriptors(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, string, map[string]any) (contractx.ToolResult, error) {
		return contractx.ToolResult{}, nil
	}
	cases := []struct {
		name string
		regs []Registration
	}{
		{name: "empty name", regs: []Registration{{Descriptor: Descriptor{Description: "x"}, Executor: noop}}},
		{name: "empty description", regs: []Registration{{Descriptor: Descriptor{Name: "x"}, Executor: noop}}},
		{name: "bad type", regs: []Registration{{Descriptor: Descriptor{Name: "x", Description: "x", Parameters: []Parameter{{Name: "a", Type: "date"}}}, Executor: noop}}},
		{name: "array without items", regs: []Registration{{Descriptor: Descriptor{Name: "x", Description: "x", Parameters: []Parameter{{Name: "a", Type: "array"}}}, Executor: noop}}},
		{name: "nil executor", regs: []Registration{{Descriptor: echoDescriptor}}},
		{name: "duplicate", regs: []Registration{{Descriptor: echoDescriptor, Executor: noop}, {Descriptor: echoDescriptor, Executor: noop}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewRegistry(tc.regs)
			require.Error(t, err)
			assert.ErrorIs(t, err, contractx.ErrValidation)
		})
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(nil)
	require.NoError(t, err)

	out := reg.Dispatch(context.Background(), "launchRocket", map[string]any{})
	assert.False(t, out.Success)
	assert.Equal(t, "Function 'launchRocket' is not implemented.", out.Error)
}

func TestDispatchPermissiveForwardsInvalidArguments(t *testing.T) {
	t.Parallel()

	var seen map[string]any
	reg, err := NewRegistry([]Registration{{Descriptor: echoDescriptor, Executor: echoExecutor(&seen)}})
	require.NoError(t, err)

	out := reg.Dispatch(context.Background(), "echo", nil)
	assert.True(t, out.Success)
	assert.NotNil(t, seen)
	assert.Empty(t, seen)
}

func TestDispatchStrictRejectsInvalidArguments(t *testing.T) {
	t.Parallel()

	var seen map[string]any
	reg, err := NewRegistry(
		[]Registration{{Descriptor: echoDescriptor, Executor: echoExecutor(&seen)}},
		WithStrictArguments(true),
	)
	require.NoError(t, err)

	out := reg.Dispatch(context.Background(), "echo", map[string]any{"tags": "not-an-array"})
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "arguments")
	assert.Nil(t, seen, "executor must not run")

	out = reg.Dispatch(context.Background(), "echo", map[string]any{"message": "hi", "tags": []any{"a"}})
	assert.True(t, out.Success)
	assert.Equal(t, "hi", out.Payload)
}

func TestDispatchExecutorErrorBecomesFailedResult(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry([]Registration{{
		Descriptor: echoDescriptor,
		Executor: func(context.Context, string, map[string]any) (contractx.ToolResult, error) {
			return contractx.ToolResult{}, errors.New("backend down")
		},
	}})
	require.NoError(t, err)

	out := reg.Dispatch(context.Background(), "echo", map[string]any{"message": "hi"})
	assert.False(t, out.Success)
	assert.Equal(t, "backend down", out.Error)
}

func TestDispatchRecoversExecutorPanic(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry([]Registration{{
		Descriptor: echoDescriptor,
		Executor: func(context.Context, string, map[string]any) (contractx.ToolResult, error) {
			panic("boom")
		},
	}})
	require.NoError(t, err)

	out := reg.Dispatch(context.Background(), "echo", map[string]any{"message": "hi"})
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "boom")
}
