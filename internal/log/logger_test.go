package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetWithoutSetup(t *testing.T) {
	l := Get()
	assert.NotNil(t, l)
}

func TestSetupIsIdempotent(t *testing.T) {
	Setup("DEBUG")
	first := Get()
	Setup("ERROR") // ignored, once-guarded
	assert.Same(t, first, Get())
}

func TestWithComponent(t *testing.T) {
	l := WithComponent("edt")
	assert.NotNil(t, l)
}

func TestWithPlugin(t *testing.T) {
	l := WithPlugin("echo")
	assert.NotNil(t, l)
}

func TestWithTopic(t *testing.T) {
	l := WithTopic("TEXT_INPUT")
	assert.NotNil(t, l)
}
