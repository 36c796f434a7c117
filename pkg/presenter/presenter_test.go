package presenter

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func newBufferPresenter() (*TerminalPresenter, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewWithOptions(&out, &errOut), &out, &errOut
}

func TestErrorGoesToErrorOutput(t *testing.T) {
	p, out, errOut := newBufferPresenter()

	p.Error(errors.New("boom"), "Failed to load")
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Failed to load")
	assert.Contains(t, errOut.String(), "boom")
}

func TestErrorNilIsNoop(t *testing.T) {
	p, _, errOut := newBufferPresenter()

	p.Error(nil, "context")
	assert.Empty(t, errOut.String())
}

func TestQuietSuppressesInfoButNotErrors(t *testing.T) {
	p, out, errOut := newBufferPresenter()
	p.SetQuiet(true)
	assert.True(t, p.IsQuiet())

	p.Success("done")
	p.Warning("careful")
	p.Info("note")
	p.Section("Header")
	p.Separator()
	assert.Empty(t, out.String())

	p.Error(errors.New("boom"), "")
	assert.Contains(t, errOut.String(), "boom")
}

func TestSectionUnderlinesTitle(t *testing.T) {
	p, out, _ := newBufferPresenter()

	p.Section("Registry")
	assert.Contains(t, out.String(), "Registry")
	assert.Contains(t, out.String(), "--------")
}
