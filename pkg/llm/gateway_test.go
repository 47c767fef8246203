package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayFallsBackOnFailure(t *testing.T) {
	primary := &Mock{Name: "primary", FailWith: &ErrModelUnavailable{Reason: "down"}}
	secondary := &Mock{Name: "secondary", Reply: "fallback answer"}

	gw := New([]Backend{primary, secondary}, nil)
	resp, err := gw.Generate(context.Background(), "question", "", Config{})
	require.NoError(t, err)
	assert.Equal(t, "fallback answer", resp.Text)
	assert.Equal(t, "secondary", resp.ModelName)
}

func TestGatewaySurfacesOriginalErrorWhenAllFail(t *testing.T) {
	primary := &Mock{Name: "primary", FailWith: &ErrModelUnavailable{Reason: "down"}}

	gw := New([]Backend{primary}, nil)
	_, err := gw.Generate(context.Background(), "question", "", Config{})
	assert.Error(t, err)
}

func TestGatewayEmitsTerminalMarker(t *testing.T) {
	primary := &Mock{Name: "primary", Reply: "hi"}
	gw := New([]Backend{primary}, nil)

	var sawFinal bool
	_, err := gw.GenerateStreaming(context.Background(), "q", "", Config{}, func(c StreamChunk) {
		if c.IsFinal {
			sawFinal = true
		}
	})
	require.NoError(t, err)
	assert.True(t, sawFinal)
}

func TestGatewayRetriesOnceOnOverflow(t *testing.T) {
	primary := &Mock{Name: "primary", FailOnceWith: &ErrContextExceeded{Reason: "too long"}, Reply: "shrunk answer"}
	gw := New([]Backend{primary}, nil)

	resp, err := gw.Generate(context.Background(), "question", "some context text that is long enough to matter here", Config{MaxTokens: 1024})
	require.NoError(t, err)
	assert.Equal(t, "shrunk answer", resp.Text)
}

func TestGatewayPrimaryBackend(t *testing.T) {
	primary := &Mock{Name: "primary"}
	secondary := &Mock{Name: "secondary"}
	gw := New([]Backend{primary, secondary}, nil)
	assert.Same(t, primary, gw.PrimaryBackend())

	empty := New(nil, nil)
	assert.Nil(t, empty.PrimaryBackend())
}

type fakeToolCounter struct {
	calls int64
}

func (f *fakeToolCounter) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	f.calls++
	return "result", nil
}

func (f *fakeToolCounter) CallCount() int64 {
	n := f.calls
	f.calls = 0
	return n
}

func TestGatewayReportsToolCallsMade(t *testing.T) {
	primary := &Mock{Name: "primary", Reply: "answer"}
	gw := New([]Backend{primary}, nil)

	counter := &fakeToolCounter{calls: 2}
	gw.SetTools(counter)

	resp, err := gw.Generate(context.Background(), "question", "", Config{})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.ToolCallsMade)
}
