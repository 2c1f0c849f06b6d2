package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("MM_TEST_VALUE", "configured")

	assert.Equal(t, "configured", getEnvOrDefault("MM_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", getEnvOrDefault("MM_TEST_MISSING", "fallback"))
}

func TestGetIntOrDefault(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{name: "valid value", value: "8", want: 8},
		{name: "zero falls back", value: "0", want: 4},
		{name: "negative falls back", value: "-2", want: 4},
		{name: "garbage falls back", value: "many", want: 4},
		{name: "empty falls back", value: "", want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MM_TEST_INT", tt.value)
			assert.Equal(t, tt.want, getIntOrDefault("MM_TEST_INT", 4))
		})
	}
}

func TestGetDurationOrDefault(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "valid value", value: "90s", want: 90 * time.Second},
		{name: "minutes", value: "2m", want: 2 * time.Minute},
		{name: "zero falls back", value: "0s", want: 4 * time.Minute},
		{name: "garbage falls back", value: "soon", want: 4 * time.Minute},
		{name: "empty falls back", value: "", want: 4 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MM_TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, getDurationOrDefault("MM_TEST_DURATION", 4*time.Minute))
		})
	}
}

func TestBuildAdapters(t *testing.T) {
	t.Run("no configuration yields no adapters", func(t *testing.T) {
		for _, key := range []string{"JIRA_BASE_URL", "SONAR_BASE_URL", "JENKINS_BASE_URL", "ZEPHYR_BASE_URL", "BITBUCKET_BASE_URL"} {
			t.Setenv(key, "")
		}
		calculators, breakers := buildAdapters()
		assert.Empty(t, calculators)
		assert.Empty(t, breakers)
	})

	t.Run("configured tools are registered with breakers", func(t *testing.T) {
		for _, key := range []string{"SONAR_BASE_URL", "JENKINS_BASE_URL", "ZEPHYR_BASE_URL", "BITBUCKET_BASE_URL"} {
			t.Setenv(key, "")
		}
		t.Setenv("JIRA_BASE_URL", "http://jira.internal")

		calculators, breakers := buildAdapters()
		assert.Len(t, calculators, 1)
		assert.Equal(t, "jira", calculators[0].Name())
		assert.Contains(t, breakers, "jira")
	})
}
