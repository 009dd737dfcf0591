package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetDurationEnv(t *testing.T) {
	t.Setenv("CONCORD_TEST_DURATION", "90s")
	assert.Equal(t, 90*time.Second, GetDurationEnv("CONCORD_TEST_DURATION", time.Second))

	t.Setenv("CONCORD_TEST_DURATION", "not-a-duration")
	assert.Equal(t, time.Second, GetDurationEnv("CONCORD_TEST_DURATION", time.Second))

	assert.Equal(t, 5*time.Minute, GetDurationEnv("CONCORD_TEST_DURATION_UNSET", 5*time.Minute))
}

func TestGetBoolAndIntEnv(t *testing.T) {
	t.Setenv("CONCORD_TEST_BOOL", "false")
	t.Setenv("CONCORD_TEST_INT", "42")

	assert.False(t, GetBoolEnv("CONCORD_TEST_BOOL", true))
	assert.True(t, GetBoolEnv("CONCORD_TEST_BOOL_UNSET", true))
	assert.Equal(t, 42, GetIntEnv("CONCORD_TEST_INT", 7))

	t.Setenv("CONCORD_TEST_INT", "forty-two")
	assert.Equal(t, 7, GetIntEnv("CONCORD_TEST_INT", 7))
}

func TestGetAPIPrefix(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "empty", value: "", want: ""},
		{name: "root", value: "/", want: ""},
		{name: "missing slash", value: "api", want: "/api"},
		{name: "trailing slash", value: "/api/v1/", want: "/api/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("API_PREFIX", tt.value)
			assert.Equal(t, tt.want, GetAPIPrefix())
		})
	}
}
